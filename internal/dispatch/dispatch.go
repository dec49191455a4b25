// Package dispatch routes a validated command to the resource collaborator
// and turns its outcome into a user-facing result.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"ai-commands/internal/command"
	"ai-commands/internal/domain"
	"ai-commands/internal/resources"
)

const (
	ResultSuccess = "success"
	ResultError   = "error"

	UnknownCommandMessage = "I couldn't determine what to create. Please try again."
	currencySymbol        = "฿"
	amountFormat          = "#,###.##"
)

type Creator interface {
	CreateTransaction(ctx context.Context, userID string, in resources.TransactionInput) (domain.Transaction, error)
	CreateTodo(ctx context.Context, userID string, in resources.TodoInput) (domain.Todo, error)
	CreatePost(ctx context.Context, userID string, in resources.PostInput) (domain.Post, error)
}

// Outcome says which branch produced a Result.
type Outcome int

const (
	OutcomeCreated Outcome = iota + 1
	OutcomeRejected
	OutcomeUnknownCommand
)

// Result is the normalized outcome of one dispatch. Resource is set only on
// success.
type Result struct {
	Type     string
	Message  string
	Resource *domain.ResourceRef
	Outcome  Outcome
}

func (r Result) Succeeded() bool {
	return r.Type == ResultSuccess
}

type Dispatcher struct {
	creator Creator
}

func New(c Creator) (*Dispatcher, error) {
	if c == nil {
		return nil, errors.New("dispatch: creator must not be nil")
	}
	return &Dispatcher{creator: c}, nil
}

// Dispatch makes at most one creation call. A collaborator validation
// failure is a Result; any other collaborator error is returned as is.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, cmd command.Command) (Result, error) {
	switch c := cmd.(type) {
	case command.Transaction:
		tx, err := d.creator.CreateTransaction(ctx, userID, resources.TransactionInput{
			Title:  c.Title,
			Amount: c.Amount,
			Kind:   c.Kind,
			Date:   c.Date,
		})
		if err != nil {
			return failure(err)
		}
		return success(
			fmt.Sprintf("✅ Transaction saved! %s %s", kindLabel(tx.Kind), formatAmount(tx.Amount)),
			domain.ResourceRef{ID: tx.ID, Kind: domain.KindTransaction, Title: tx.Title, URL: "/transactions/" + tx.ID},
		), nil

	case command.Todo:
		todo, err := d.creator.CreateTodo(ctx, userID, resources.TodoInput{Title: c.Title, Status: c.Status})
		if err != nil {
			return failure(err)
		}
		return success(
			"✅ Todo created! Task: "+todo.Title,
			domain.ResourceRef{ID: todo.ID, Kind: domain.KindTodo, Title: todo.Title, URL: "/todos/" + todo.ID},
		), nil

	case command.Post:
		post, err := d.creator.CreatePost(ctx, userID, resources.PostInput{Title: c.Title, Content: c.Content})
		if err != nil {
			return failure(err)
		}
		return success(
			"✅ Blog post created! Title: "+post.Title,
			domain.ResourceRef{ID: post.ID, Kind: domain.KindPost, Title: post.Title, URL: "/posts/" + post.ID},
		), nil

	default:
		return Result{Type: ResultError, Message: UnknownCommandMessage, Outcome: OutcomeUnknownCommand}, nil
	}
}

func success(msg string, ref domain.ResourceRef) Result {
	return Result{Type: ResultSuccess, Message: msg, Resource: &ref, Outcome: OutcomeCreated}
}

func failure(err error) (Result, error) {
	var verr *resources.ValidationError
	if errors.As(err, &verr) {
		return Result{Type: ResultError, Message: "Error: " + strings.Join(verr.Messages, ", "), Outcome: OutcomeRejected}, nil
	}
	return Result{}, fmt.Errorf("dispatch: create: %w", err)
}

func kindLabel(kind string) string {
	if strings.EqualFold(kind, domain.TransactionIncome) {
		return "Income"
	}
	return "Expense"
}

func formatAmount(v float64) string {
	return currencySymbol + humanize.FormatFloat(amountFormat, v)
}
