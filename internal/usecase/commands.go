package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ai-commands/internal/command"
	"ai-commands/internal/dispatch"
	"ai-commands/internal/domain"
	"ai-commands/internal/history"
	"ai-commands/internal/interpreter"
	"ai-commands/internal/ratelimit"
)

const (
	ReplySuccess = "success"
	ReplyError   = "error"

	msgNotUnderstood  = "Sorry, I didn't understand. Please try again."
	msgSystemError    = "System error occurred. Please try again."
	msgHistoryCleared = "Chat history cleared successfully"
	denialTimeLayout  = "02 Jan 2006 at 15:04"
)

type RateLimiter interface {
	IsResetPhrase(text string) bool
	Admit(ctx context.Context, userID string) (ratelimit.Status, error)
	Acquire(ctx context.Context, userID string) (ratelimit.Status, error)
	ForceReset(ctx context.Context, userID string) (ratelimit.Status, error)
	Capacity() int
}

type Interpreter interface {
	Parse(ctx context.Context, text string) (command.Payload, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, userID string, cmd command.Command) (dispatch.Result, error)
}

type HistoryRecorder interface {
	Record(ctx context.Context, userID, userMessage, aiResponse string) (domain.ChatTurn, error)
	Recent(ctx context.Context, userID string) ([]domain.ChatTurn, error)
	Clear(ctx context.Context, userID string) (int, error)
}

type TokenStatus struct {
	Used      int
	Remaining int
	NextReset time.Time
}

// Reply is what the caller shows for one turn. Code names the outcome kind
// and is empty on success. Details is only set for INTERNAL_ERROR.
type Reply struct {
	Type     string
	Message  string
	Resource *domain.ResourceRef
	Tokens   *TokenStatus
	Code     ErrorCode
	Details  string
}

type CommandInput struct {
	UserID  string
	Message string
}

type HistoryOutput struct {
	Entries []domain.ChatEntry
	Tokens  TokenStatus
}

type CommandService struct {
	limiter     RateLimiter
	interpreter Interpreter
	dispatcher  Dispatcher
	history     HistoryRecorder
	log         zerolog.Logger
	now         func() time.Time
	location    *time.Location
}

type Option func(*CommandService)

func WithClock(now func() time.Time) Option {
	return func(s *CommandService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the zone used to print the next reset time.
func WithLocation(loc *time.Location) Option {
	return func(s *CommandService) {
		if loc != nil {
			s.location = loc
		}
	}
}

func NewCommandService(l RateLimiter, i Interpreter, d Dispatcher, h HistoryRecorder, log zerolog.Logger, opts ...Option) (*CommandService, error) {
	if l == nil {
		return nil, errors.New("usecase: rate limiter must not be nil")
	}
	if i == nil {
		return nil, errors.New("usecase: interpreter must not be nil")
	}
	if d == nil {
		return nil, errors.New("usecase: dispatcher must not be nil")
	}
	if h == nil {
		return nil, errors.New("usecase: history recorder must not be nil")
	}
	s := &CommandService{
		limiter:     l,
		interpreter: i,
		dispatcher:  d,
		history:     h,
		log:         log,
		now:         time.Now,
		location:    time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Execute runs one command turn. Blank input returns a BLANK_INPUT error and
// records nothing. Every other call records exactly one chat turn and
// returns a Reply; the error is non-nil only for INTERNAL_ERROR.
func (s *CommandService) Execute(ctx context.Context, in CommandInput) (Reply, error) {
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return Reply{}, newError(ErrorInvalidInput, "missing_user", nil)
	}
	if strings.TrimSpace(in.Message) == "" {
		return Reply{}, newError(ErrorBlankInput, "blank_message", nil)
	}

	reply, failure := s.run(ctx, userID, in.Message)
	if failure != nil {
		s.log.Error().Err(failure.Err).Str("user_id", userID).Str("reason", failure.Reason).Msg("command failed unexpectedly")
		reply = Reply{
			Type:    ReplyError,
			Message: msgSystemError,
			Tokens:  reply.Tokens,
			Code:    ErrorInternal,
			Details: failure.Err.Error(),
		}
	}

	if _, err := s.history.Record(ctx, userID, in.Message, reply.Message); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("record chat turn failed")
		if failure == nil {
			failure = newError(ErrorInternal, "history_write_error", err)
			reply = Reply{
				Type:    ReplyError,
				Message: msgSystemError,
				Tokens:  reply.Tokens,
				Code:    ErrorInternal,
				Details: err.Error(),
			}
		}
	}

	if failure != nil {
		return reply, failure
	}
	return reply, nil
}

// run decides the outcome of a non-blank turn without recording it. A
// non-nil *Error means the catch-all applies; the returned Reply then only
// carries whatever token status was known.
func (s *CommandService) run(ctx context.Context, userID, message string) (reply Reply, failure *Error) {
	defer func() {
		if r := recover(); r != nil {
			failure = newError(ErrorInternal, "panic", fmt.Errorf("recovered: %v", r))
		}
	}()

	if s.limiter.IsResetPhrase(message) {
		st, err := s.limiter.ForceReset(ctx, userID)
		if err != nil {
			return Reply{}, newError(ErrorInternal, "rate_state_error", err)
		}
		msg := fmt.Sprintf("✨ Magic word accepted! Your tokens have been reset. You now have %d tokens available.", s.limiter.Capacity())
		return Reply{Type: ReplySuccess, Message: msg, Tokens: tokens(st)}, nil
	}

	st, err := s.limiter.Acquire(ctx, userID)
	if err != nil {
		return Reply{}, newError(ErrorInternal, "rate_state_error", err)
	}
	if !st.Allowed {
		msg := fmt.Sprintf("Token limit reached. Next reset on %s. Please wait.", st.NextReset.In(s.location).Format(denialTimeLayout))
		return Reply{Type: ReplyError, Message: msg, Tokens: tokens(st), Code: ErrorRateLimited}, nil
	}
	used := tokens(st)

	payload, err := s.interpreter.Parse(ctx, message)
	if err != nil {
		var f *interpreter.Failure
		if !errors.As(err, &f) {
			return Reply{Tokens: used}, newError(ErrorInternal, "interpreter_error", err)
		}
		code := ErrorInterpreterTransport
		if f.Kind == interpreter.FailureMalformed {
			code = ErrorInterpreterMalformed
		}
		return Reply{Type: ReplyError, Message: msgNotUnderstood, Tokens: used, Code: code}, nil
	}

	cmd, err := command.Validate(payload, s.now().In(s.location))
	if err != nil {
		var invalid *command.InvalidError
		if !errors.As(err, &invalid) {
			return Reply{Tokens: used}, newError(ErrorInternal, "validate_error", err)
		}
		s.log.Info().Str("user_id", userID).Str("action", invalid.Action).Strs("missing", invalid.Missing).Msg("invalid command")
		return Reply{Type: ReplyError, Message: dispatch.UnknownCommandMessage, Tokens: used, Code: ErrorInvalidCommand}, nil
	}

	res, err := s.dispatcher.Dispatch(ctx, userID, cmd)
	if err != nil {
		return Reply{Tokens: used}, newError(ErrorInternal, "dispatch_error", err)
	}
	out := Reply{Type: res.Type, Message: res.Message, Resource: res.Resource, Tokens: used}
	switch res.Outcome {
	case dispatch.OutcomeCreated:
	case dispatch.OutcomeUnknownCommand:
		out.Code = ErrorInvalidCommand
	default:
		out.Code = ErrorResourceValidation
	}
	return out, nil
}

func (s *CommandService) History(ctx context.Context, userID string) (HistoryOutput, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return HistoryOutput{}, newError(ErrorInvalidInput, "missing_user", nil)
	}
	turns, err := s.history.Recent(ctx, userID)
	if err != nil {
		return HistoryOutput{}, newError(ErrorInternal, "history_read_error", err)
	}
	st, err := s.limiter.Admit(ctx, userID)
	if err != nil {
		return HistoryOutput{}, newError(ErrorInternal, "rate_state_error", err)
	}
	return HistoryOutput{Entries: history.Expand(turns), Tokens: *tokens(st)}, nil
}

func (s *CommandService) ClearHistory(ctx context.Context, userID string) (Reply, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Reply{}, newError(ErrorInvalidInput, "missing_user", nil)
	}
	n, err := s.history.Clear(ctx, userID)
	if err != nil {
		return Reply{}, newError(ErrorInternal, "history_clear_error", err)
	}
	s.log.Info().Str("user_id", userID).Int("turns", n).Msg("chat history cleared")
	return Reply{Type: ReplySuccess, Message: msgHistoryCleared}, nil
}

// ResetTokens empties the user's window without recording a turn.
func (s *CommandService) ResetTokens(ctx context.Context, userID string) (TokenStatus, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return TokenStatus{}, newError(ErrorInvalidInput, "missing_user", nil)
	}
	st, err := s.limiter.ForceReset(ctx, userID)
	if err != nil {
		return TokenStatus{}, newError(ErrorInternal, "rate_state_error", err)
	}
	return *tokens(st), nil
}

func tokens(st ratelimit.Status) *TokenStatus {
	return &TokenStatus{Used: st.TokensUsed, Remaining: st.TokensRemaining, NextReset: st.NextReset}
}
