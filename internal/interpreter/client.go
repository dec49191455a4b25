// Package interpreter is the boundary to the generative model that turns
// free text into a command payload.
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ai-commands/internal/command"
	"ai-commands/internal/integrations/gemini"
)

const DefaultTimeout = 30 * time.Second

type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

type FailureKind string

const (
	FailureTransport FailureKind = "transport"
	FailureMalformed FailureKind = "malformed"
)

// Failure is the single error kind Parse returns. Kind is diagnostic only.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("interpreter: %s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

type Client struct {
	gen     TextGenerator
	log     zerolog.Logger
	timeout time.Duration
	now     func() time.Time
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

func New(gen TextGenerator, log zerolog.Logger, opts ...Option) (*Client, error) {
	if gen == nil {
		return nil, errors.New("interpreter: text generator must not be nil")
	}
	c := &Client{
		gen:     gen,
		log:     log.With().Str("component", "interpreter").Logger(),
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Parse sends text to the model and decodes the reply into a payload. The
// call is bounded by the client timeout regardless of ctx's deadline.
func (c *Client) Parse(ctx context.Context, text string) (command.Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.gen.GenerateText(ctx, buildPrompt(text, c.now()))
	if err != nil {
		kind := FailureTransport
		if errors.Is(err, gemini.ErrMalformedResponse) {
			kind = FailureMalformed
		}
		c.log.Error().Err(err).Str("kind", string(kind)).Msg("generate text failed")
		return nil, &Failure{Kind: kind, Err: err}
	}

	payload, err := decodePayload(raw)
	if err != nil {
		c.log.Error().Err(err).Str("kind", string(FailureMalformed)).Str("raw", raw).Msg("model reply is not a command payload")
		return nil, &Failure{Kind: FailureMalformed, Err: err}
	}
	return payload, nil
}
