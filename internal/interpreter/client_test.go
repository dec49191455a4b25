package interpreter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"ai-commands/internal/integrations/gemini"
)

type fakeGenerator struct {
	reply  string
	err    error
	prompt string
	calls  int
}

func (f *fakeGenerator) GenerateText(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.prompt = prompt
	return f.reply, f.err
}

// blockingGenerator waits for the context to end.
type blockingGenerator struct{}

func (blockingGenerator) GenerateText(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", fmt.Errorf("gemini: request failed: %w", ctx.Err())
}

func fixedNow() time.Time {
	return time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
}

func newTestClient(t *testing.T, gen TextGenerator, opts ...Option) *Client {
	t.Helper()
	c, err := New(gen, zerolog.Nop(), append([]Option{WithClock(fixedNow)}, opts...)...)
	require.NoError(t, err)
	return c
}

func requireFailure(t *testing.T, err error, kind FailureKind) {
	t.Helper()
	var f *Failure
	require.ErrorAs(t, err, &f)
	require.Equal(t, kind, f.Kind)
}

func TestParse_DecodesObject(t *testing.T) {
	gen := &fakeGenerator{reply: `{"action":"create_todo","title":"Buy milk","status":"pending"}`}
	c := newTestClient(t, gen)

	p, err := c.Parse(context.Background(), "  todo:   Buy milk ")
	require.NoError(t, err)
	require.JSONEq(t, `"create_todo"`, string(p["action"]))
	require.JSONEq(t, `"Buy milk"`, string(p["title"]))
	require.Equal(t, 1, gen.calls)
	require.Contains(t, gen.prompt, `User command: "todo: Buy milk"`)
	require.Contains(t, gen.prompt, `"date": "2026-10-14"`)
}

func TestParse_StripsFences(t *testing.T) {
	for _, reply := range []string{
		"```json\n{\"action\":\"create_post\",\"title\":\"Hi\",\"content\":\"Hi\"}\n```",
		"```\n{\"action\":\"create_post\",\"title\":\"Hi\",\"content\":\"Hi\"}\n```\n",
		"  {\"action\":\"create_post\",\"title\":\"Hi\",\"content\":\"Hi\"}  ",
	} {
		p, err := newTestClient(t, &fakeGenerator{reply: reply}).Parse(context.Background(), "post: Hi")
		require.NoError(t, err, reply)
		require.JSONEq(t, `"create_post"`, string(p["action"]))
	}
}

func TestParse_MalformedReplies(t *testing.T) {
	for _, reply := range []string{
		"",
		"```json\n```",
		"I cannot help with that",
		`["create_todo"]`,
		`"create_todo"`,
		`null`,
		`{"action":"create_todo"} {"action":"create_post"}`,
		`{"action":`,
	} {
		_, err := newTestClient(t, &fakeGenerator{reply: reply}).Parse(context.Background(), "x")
		requireFailure(t, err, FailureMalformed)
	}
}

func TestParse_UpstreamMalformedIsMalformed(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("%w: no text", gemini.ErrMalformedResponse)}
	_, err := newTestClient(t, gen).Parse(context.Background(), "x")
	requireFailure(t, err, FailureMalformed)
	require.ErrorIs(t, err, gemini.ErrMalformedResponse)
}

func TestParse_TransportFailure(t *testing.T) {
	for _, upstream := range []error{
		&gemini.HTTPStatusError{StatusCode: 503, Body: "unavailable"},
		errors.New("gemini: request failed: connection refused"),
	} {
		_, err := newTestClient(t, &fakeGenerator{err: upstream}).Parse(context.Background(), "x")
		requireFailure(t, err, FailureTransport)
	}
}

func TestParse_TimeoutBound(t *testing.T) {
	c := newTestClient(t, blockingGenerator{}, WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := c.Parse(context.Background(), "x")
	require.Less(t, time.Since(start), 2*time.Second)
	requireFailure(t, err, FailureTransport)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, zerolog.Nop())
	require.Error(t, err)

	c, err := New(&fakeGenerator{}, zerolog.Nop(), WithTimeout(-1))
	require.NoError(t, err)
	require.Equal(t, DefaultTimeout, c.timeout)
}

func TestBuildPrompt(t *testing.T) {
	p := buildPrompt("Expense 50 baht\nfor lunch", fixedNow())
	require.Contains(t, p, `User command: "Expense 50 baht for lunch"`)
	require.True(t, strings.HasSuffix(p, "No markdown. No explanation."))
	require.Contains(t, p, "create_transaction")
	require.Contains(t, p, "create_todo")
	require.Contains(t, p, "create_post")
}
