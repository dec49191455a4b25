// Package history keeps the per-user log of command exchanges.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-commands/internal/domain"
)

const DefaultLimit = 50

// Store persists turns. RecentTurns returns at most limit of the newest
// turns, ordered oldest first.
type Store interface {
	AppendTurn(ctx context.Context, turn domain.ChatTurn) error
	RecentTurns(ctx context.Context, userID string, limit int) ([]domain.ChatTurn, error)
	ClearTurns(ctx context.Context, userID string) (int, error)
}

type Recorder struct {
	store Store
	limit int
	now   func() time.Time
}

type Option func(*Recorder)

func WithLimit(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.limit = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

func New(store Store, opts ...Option) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("history: store must not be nil")
	}
	r := &Recorder{store: store, limit: DefaultLimit, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Recorder) Record(ctx context.Context, userID, userMessage, aiResponse string) (domain.ChatTurn, error) {
	turn := domain.ChatTurn{
		UserID:      userID,
		UserMessage: userMessage,
		AIResponse:  aiResponse,
		CreatedAt:   r.now().UTC(),
	}
	if err := r.store.AppendTurn(ctx, turn); err != nil {
		return domain.ChatTurn{}, fmt.Errorf("history: append turn: %w", err)
	}
	return turn, nil
}

func (r *Recorder) Recent(ctx context.Context, userID string) ([]domain.ChatTurn, error) {
	turns, err := r.store.RecentTurns(ctx, userID, r.limit)
	if err != nil {
		return nil, fmt.Errorf("history: recent turns: %w", err)
	}
	return turns, nil
}

func (r *Recorder) Clear(ctx context.Context, userID string) (int, error) {
	n, err := r.store.ClearTurns(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("history: clear turns: %w", err)
	}
	return n, nil
}

// Expand flattens turns into alternating user and assistant entries that
// share their turn's timestamp.
func Expand(turns []domain.ChatTurn) []domain.ChatEntry {
	out := make([]domain.ChatEntry, 0, 2*len(turns))
	for _, t := range turns {
		out = append(out,
			domain.ChatEntry{Role: domain.RoleUser, Content: t.UserMessage, CreatedAt: t.CreatedAt},
			domain.ChatEntry{Role: domain.RoleAssistant, Content: t.AIResponse, CreatedAt: t.CreatedAt},
		)
	}
	return out
}
