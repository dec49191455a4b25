// Package resources creates transactions, todos and posts for a user and
// reports over them.
package resources

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"ai-commands/internal/domain"
)

const (
	dateLayout       = "2006-01-02"
	recentPostsLimit = 3

	ViewDaily   = "daily"
	ViewMonthly = "monthly"
	ViewYearly  = "yearly"
)

// ErrInvalidReport is returned for an unknown summary view or an
// unparseable summary date.
var ErrInvalidReport = errors.New("resources: invalid report parameters")

// Store persists resources. ListTransactions bounds are inclusive
// YYYY-MM-DD dates, empty meaning unbounded, and results are ordered by date
// then creation time, newest first.
type Store interface {
	InsertTransaction(ctx context.Context, tx domain.Transaction) error
	InsertTodo(ctx context.Context, todo domain.Todo) error
	InsertPost(ctx context.Context, post domain.Post) error
	ListTransactions(ctx context.Context, userID, from, to string) ([]domain.Transaction, error)
	CountOpenTodos(ctx context.Context, userID string) (int, error)
	RecentPosts(ctx context.Context, userID string, limit int) ([]domain.Post, error)
}

// ValidationError lists every business rule an input broke.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "resources: validation failed: " + strings.Join(e.Messages, ", ")
}

type TransactionInput struct {
	Title  string
	Amount string
	Kind   string
	Date   time.Time
}

type TodoInput struct {
	Title  string
	Status string
}

type PostInput struct {
	Title   string
	Content string
}

type Service struct {
	store Store
	now   func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("resources: store must not be nil")
	}
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) CreateTransaction(ctx context.Context, userID string, in TransactionInput) (domain.Transaction, error) {
	var msgs []string
	title := strings.TrimSpace(in.Title)
	if title == "" {
		msgs = append(msgs, "Title can't be blank")
	}

	amountText := strings.TrimSpace(in.Amount)
	var amount float64
	switch {
	case amountText == "":
		msgs = append(msgs, "Amount can't be blank")
	default:
		v, err := strconv.ParseFloat(amountText, 64)
		switch {
		case err != nil, math.IsNaN(v), math.IsInf(v, 0):
			msgs = append(msgs, "Amount is not a number")
		case v <= 0:
			msgs = append(msgs, "Amount must be greater than 0")
		default:
			amount = v
		}
	}

	kind := strings.ToLower(strings.TrimSpace(in.Kind))
	switch kind {
	case domain.TransactionIncome, domain.TransactionExpense:
	case "":
		msgs = append(msgs, "Kind can't be blank")
	default:
		msgs = append(msgs, "Kind is not included in the list")
	}

	if len(msgs) > 0 {
		return domain.Transaction{}, &ValidationError{Messages: msgs}
	}

	date := in.Date
	if date.IsZero() {
		date = s.now()
	}
	tx := domain.Transaction{
		ID:        newID(),
		UserID:    userID,
		Title:     title,
		Amount:    amount,
		Kind:      kind,
		Date:      date.Format(dateLayout),
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.InsertTransaction(ctx, tx); err != nil {
		return domain.Transaction{}, fmt.Errorf("resources: insert transaction: %w", err)
	}
	return tx, nil
}

func (s *Service) CreateTodo(ctx context.Context, userID string, in TodoInput) (domain.Todo, error) {
	var msgs []string
	title := strings.TrimSpace(in.Title)
	if title == "" {
		msgs = append(msgs, "Title can't be blank")
	}
	status := strings.ToLower(strings.TrimSpace(in.Status))
	if status == "" {
		status = domain.TodoPending
	}
	switch status {
	case domain.TodoPending, domain.TodoInProgress, domain.TodoCompleted:
	default:
		msgs = append(msgs, "Status is not included in the list")
	}
	if len(msgs) > 0 {
		return domain.Todo{}, &ValidationError{Messages: msgs}
	}

	todo := domain.Todo{
		ID:        newID(),
		UserID:    userID,
		Title:     title,
		Status:    status,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.InsertTodo(ctx, todo); err != nil {
		return domain.Todo{}, fmt.Errorf("resources: insert todo: %w", err)
	}
	return todo, nil
}

func (s *Service) CreatePost(ctx context.Context, userID string, in PostInput) (domain.Post, error) {
	var msgs []string
	title := strings.TrimSpace(in.Title)
	if title == "" {
		msgs = append(msgs, "Title can't be blank")
	}
	body := strings.TrimSpace(in.Content)
	if body == "" {
		msgs = append(msgs, "Content can't be blank")
	}
	if len(msgs) > 0 {
		return domain.Post{}, &ValidationError{Messages: msgs}
	}

	post := domain.Post{
		ID:        newID(),
		UserID:    userID,
		Title:     title,
		Content:   body,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.InsertPost(ctx, post); err != nil {
		return domain.Post{}, fmt.Errorf("resources: insert post: %w", err)
	}
	return post, nil
}

var newID = func() string {
	return uuid.NewString()
}
