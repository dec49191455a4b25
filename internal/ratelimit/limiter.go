// Package ratelimit implements the per-user token window that gates
// interpreter calls.
//
// A user gets Capacity tokens per Window. The window opens on the first use
// after a reset and is reset lazily: every operation first reconciles the
// stored state against the clock. Read-modify-write cycles are serialized
// per user inside the process and guarded by a versioned conditional write
// in the store, so concurrent requests for one user cannot overspend.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-commands/internal/domain"
)

const (
	DefaultCapacity = 10
	DefaultWindow   = 5 * time.Hour
	maxAttempts     = 5
)

// ErrExhausted is returned by Consume when no tokens are left in the window.
var ErrExhausted = errors.New("ratelimit: tokens exhausted")

// Store persists rate state. GetRateState returns the zero state with
// Version 0 for unknown users. PutRateState must fail with
// domain.ErrVersionConflict when the stored version is not expectedVersion.
type Store interface {
	GetRateState(ctx context.Context, userID string) (domain.RateState, error)
	PutRateState(ctx context.Context, userID string, next domain.RateState, expectedVersion int64) error
}

// Status is the caller-visible view of a user's window.
type Status struct {
	Allowed         bool
	TokensUsed      int
	TokensRemaining int
	NextReset       time.Time
}

type Limiter struct {
	store       Store
	capacity    int
	window      time.Duration
	resetPhrase string
	now         func() time.Time
	locks       keyedMutex
}

type Option func(*Limiter)

func WithCapacity(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.capacity = n
		}
	}
}

func WithWindow(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.window = d
		}
	}
}

// WithResetPhrase sets the message that force-resets the window.
func WithResetPhrase(phrase string) Option {
	return func(l *Limiter) {
		if p := normalize(phrase); p != "" {
			l.resetPhrase = p
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

func New(store Store, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("ratelimit: store must not be nil")
	}
	l := &Limiter{
		store:       store,
		capacity:    DefaultCapacity,
		window:      DefaultWindow,
		resetPhrase: "please",
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *Limiter) Capacity() int { return l.capacity }

// Reconcile returns s reset to an empty window starting at now when s has no
// window yet or its window has elapsed. Otherwise s is returned unchanged.
func Reconcile(s domain.RateState, now time.Time, window time.Duration) domain.RateState {
	if s.ResetAt.IsZero() || !now.Before(s.ResetAt) {
		return domain.RateState{TokensUsed: 0, ResetAt: now.Add(window), Version: s.Version}
	}
	return s
}

// IsResetPhrase reports whether text is the reset phrase, ignoring
// surrounding whitespace and case.
func (l *Limiter) IsResetPhrase(text string) bool {
	return normalize(text) == l.resetPhrase
}

// Admit reports whether the user may spend a token, without spending it.
func (l *Limiter) Admit(ctx context.Context, userID string) (Status, error) {
	s, err := l.update(ctx, userID, func(s domain.RateState) (domain.RateState, error) {
		return s, nil
	})
	if err != nil {
		return Status{}, err
	}
	return l.status(s), nil
}

// Acquire admits and consumes one token as a single step. When the window is
// full the returned Status has Allowed false and nothing is written.
func (l *Limiter) Acquire(ctx context.Context, userID string) (Status, error) {
	allowed := false
	s, err := l.update(ctx, userID, func(s domain.RateState) (domain.RateState, error) {
		allowed = s.TokensUsed < l.capacity
		if allowed {
			s.TokensUsed++
		}
		return s, nil
	})
	if err != nil {
		return Status{}, err
	}
	st := l.status(s)
	st.Allowed = allowed
	return st, nil
}

// Consume spends one token, failing with ErrExhausted when none are left.
func (l *Limiter) Consume(ctx context.Context, userID string) (Status, error) {
	s, err := l.update(ctx, userID, func(s domain.RateState) (domain.RateState, error) {
		if s.TokensUsed >= l.capacity {
			return s, ErrExhausted
		}
		s.TokensUsed++
		return s, nil
	})
	if err != nil {
		return Status{}, err
	}
	return l.status(s), nil
}

// ForceReset empties the window and restarts it at the current time.
func (l *Limiter) ForceReset(ctx context.Context, userID string) (Status, error) {
	s, err := l.update(ctx, userID, func(s domain.RateState) (domain.RateState, error) {
		return domain.RateState{TokensUsed: 0, ResetAt: l.now().Add(l.window), Version: s.Version}, nil
	})
	if err != nil {
		return Status{}, err
	}
	return l.status(s), nil
}

func (l *Limiter) status(s domain.RateState) Status {
	remaining := l.capacity - s.TokensUsed
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		Allowed:         s.TokensUsed < l.capacity,
		TokensUsed:      s.TokensUsed,
		TokensRemaining: remaining,
		NextReset:       s.ResetAt,
	}
}

// update runs fn on the reconciled state and persists the result when it
// differs from what was loaded. Conflicting writes are retried from a fresh
// read.
func (l *Limiter) update(ctx context.Context, userID string, fn func(domain.RateState) (domain.RateState, error)) (domain.RateState, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.RateState{}, errors.New("ratelimit: user id must not be empty")
	}
	unlock := l.locks.lock(userID)
	defer unlock()

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		stored, err := l.store.GetRateState(ctx, userID)
		if err != nil {
			return domain.RateState{}, fmt.Errorf("ratelimit: load state: %w", err)
		}
		current := Reconcile(stored, l.now(), l.window)
		next, err := fn(current)
		if err != nil {
			return current, err
		}
		if next.TokensUsed == stored.TokensUsed && next.ResetAt.Equal(stored.ResetAt) {
			return stored, nil
		}
		next.Version = stored.Version + 1
		err = l.store.PutRateState(ctx, userID, next, stored.Version)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return domain.RateState{}, fmt.Errorf("ratelimit: save state: %w", err)
		}
		lastErr = err
	}
	return domain.RateState{}, fmt.Errorf("ratelimit: gave up after %d attempts: %w", maxAttempts, lastErr)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
