package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"ai-commands/internal/domain"
	"ai-commands/internal/resources"
	"ai-commands/internal/usecase"
)

type stubCommands struct {
	reply   usecase.Reply
	err     error
	history usecase.HistoryOutput
	in      usecase.CommandInput
	cleared string
	panics  bool
}

func (s *stubCommands) Execute(_ context.Context, in usecase.CommandInput) (usecase.Reply, error) {
	if s.panics {
		panic("boom")
	}
	s.in = in
	return s.reply, s.err
}

func (s *stubCommands) History(_ context.Context, userID string) (usecase.HistoryOutput, error) {
	s.in.UserID = userID
	return s.history, s.err
}

func (s *stubCommands) ClearHistory(_ context.Context, userID string) (usecase.Reply, error) {
	s.cleared = userID
	return s.reply, s.err
}

type stubReports struct {
	summary   domain.Summary
	dashboard domain.Dashboard
	err       error
	view      string
	date      string
}

func (s *stubReports) Summary(_ context.Context, _ string, view, date string) (domain.Summary, error) {
	s.view, s.date = view, date
	return s.summary, s.err
}

func (s *stubReports) Dashboard(context.Context, string) (domain.Dashboard, error) {
	return s.dashboard, s.err
}

func newTestHandler(t *testing.T, c *stubCommands, r *stubReports) *Handler {
	t.Helper()
	if r == nil {
		r = &stubReports{}
	}
	h, err := NewHandler(c, r, zerolog.Nop())
	require.NoError(t, err)
	return h
}

func makeEvent(method, path, body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: method,
		Path:       path,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"X-User-Id":    "user-1",
		},
		Body: body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func TestNewHandler_ValidatesDependencies(t *testing.T) {
	_, err := NewHandler(nil, &stubReports{}, zerolog.Nop())
	require.Error(t, err)
	_, err = NewHandler(&stubCommands{}, nil, zerolog.Nop())
	require.Error(t, err)
}

func TestHandle_CommandHappyPath(t *testing.T) {
	next := time.Date(2026, 10, 14, 17, 0, 0, 0, time.UTC)
	uc := &stubCommands{reply: usecase.Reply{
		Type:     usecase.ReplySuccess,
		Message:  "✅ Todo created! Task: Buy milk",
		Resource: &domain.ResourceRef{ID: "t-1", Kind: domain.KindTodo, Title: "Buy milk", URL: "/todos/t-1"},
		Tokens:   &usecase.TokenStatus{Used: 1, Remaining: 9, NextReset: next},
	}}
	h := newTestHandler(t, uc, nil)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/ai/commands", `{"message":"todo buy milk"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, usecase.CommandInput{UserID: "user-1", Message: "todo buy milk"}, uc.in)

	out := parseBody[commandResponse](t, resp.Body)
	require.Equal(t, "success", out.Type)
	require.Equal(t, "/todos/t-1", out.Resource.URL)
	require.Equal(t, domain.KindTodo, out.Resource.Kind)
	require.Equal(t, 1, *out.TokensUsed)
	require.Equal(t, 9, *out.TokensRemaining)
	require.True(t, next.Equal(*out.NextReset))
	require.Empty(t, out.Error)
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
}

func TestHandle_HandledErrorIsOK(t *testing.T) {
	uc := &stubCommands{reply: usecase.Reply{
		Type:    usecase.ReplyError,
		Message: "Token limit reached. Next reset on 14 Oct 2026 at 17:00. Please wait.",
		Tokens:  &usecase.TokenStatus{Used: 10, Remaining: 0},
		Code:    usecase.ErrorRateLimited,
	}}
	h := newTestHandler(t, uc, nil)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/ai/commands", `{"message":"hi"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := parseBody[commandResponse](t, resp.Body)
	require.Equal(t, "error", out.Type)
	require.Equal(t, string(usecase.ErrorRateLimited), out.Error)
	require.Nil(t, out.NextReset)
}

func TestHandle_InvalidBody(t *testing.T) {
	h := newTestHandler(t, &stubCommands{}, nil)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/ai/commands", `not-json`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	out := parseBody[errorResponse](t, resp.Body)
	require.Equal(t, string(usecase.ErrorInvalidInput), out.Error)
}

func TestHandle_MapsUseCaseErrors(t *testing.T) {
	internalReply := usecase.Reply{Type: usecase.ReplyError, Message: "System error occurred. Please try again.", Code: usecase.ErrorInternal, Details: "disk full"}
	cases := []struct {
		name    string
		reply   usecase.Reply
		err     error
		status  int
		code    string
		details string
	}{
		{name: "blank input", err: &usecase.Error{Code: usecase.ErrorBlankInput, Reason: "blank_message"}, status: http.StatusUnprocessableEntity, code: string(usecase.ErrorBlankInput)},
		{name: "invalid input", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "missing_user"}, status: http.StatusBadRequest, code: string(usecase.ErrorInvalidInput)},
		{name: "internal with reply", reply: internalReply, err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "history_write_error"}, status: http.StatusInternalServerError, code: string(usecase.ErrorInternal), details: "disk full"},
		{name: "internal without reply", err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "panic"}, status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(t, &stubCommands{reply: tc.reply, err: tc.err}, nil)

			resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/ai/commands", `{"message":"x"}`))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			out := parseBody[commandResponse](t, resp.Body)
			require.Equal(t, tc.code, out.Error)
			require.Equal(t, tc.details, out.Details)
		})
	}
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	h := newTestHandler(t, &stubCommands{reply: usecase.Reply{Type: usecase.ReplySuccess}}, nil)

	event := makeEvent(http.MethodPost, "/ai/commands", `{"message":"x"}`)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}

func TestHandle_Identity(t *testing.T) {
	t.Run("authorizer wins over header", func(t *testing.T) {
		uc := &stubCommands{reply: usecase.Reply{Type: usecase.ReplySuccess}}
		h := newTestHandler(t, uc, nil)

		event := makeEvent(http.MethodPost, "/ai/commands", `{"message":"x"}`)
		event.RequestContext.Authorizer = map[string]interface{}{"principalId": "principal-7"}
		_, err := h.Handle(context.Background(), event)
		require.NoError(t, err)
		require.Equal(t, "principal-7", uc.in.UserID)
	})

	t.Run("lowercase header", func(t *testing.T) {
		uc := &stubCommands{reply: usecase.Reply{Type: usecase.ReplySuccess}}
		h := newTestHandler(t, uc, nil)

		event := makeEvent(http.MethodPost, "/ai/commands", `{"message":"x"}`)
		delete(event.Headers, "X-User-Id")
		event.Headers["x-user-id"] = "user-9"
		_, err := h.Handle(context.Background(), event)
		require.NoError(t, err)
		require.Equal(t, "user-9", uc.in.UserID)
	})

	t.Run("missing", func(t *testing.T) {
		h := newTestHandler(t, &stubCommands{}, nil)

		event := makeEvent(http.MethodGet, "/ai/commands", "")
		delete(event.Headers, "X-User-Id")
		resp, err := h.Handle(context.Background(), event)
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Equal(t, errUnauthenticated, parseBody[errorResponse](t, resp.Body).Error)
	})
}

func TestHandle_History(t *testing.T) {
	at := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	uc := &stubCommands{history: usecase.HistoryOutput{
		Entries: []domain.ChatEntry{
			{Role: domain.RoleUser, Content: "todo x", CreatedAt: at},
			{Role: domain.RoleAssistant, Content: "✅ Todo created! Task: x", CreatedAt: at},
		},
		Tokens: usecase.TokenStatus{Used: 1, Remaining: 9, NextReset: at.Add(5 * time.Hour)},
	}}
	h := newTestHandler(t, uc, nil)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet, "/ai/commands/", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := parseBody[historyResponse](t, resp.Body)
	require.Len(t, out.Messages, 2)
	require.Equal(t, domain.RoleAssistant, out.Messages[1].Role)
	require.Equal(t, 9, out.TokensRemaining)
}

func TestHandle_ClearHistory(t *testing.T) {
	uc := &stubCommands{reply: usecase.Reply{Type: usecase.ReplySuccess, Message: "Chat history cleared successfully"}}
	h := newTestHandler(t, uc, nil)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodDelete, "/ai/commands", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "user-1", uc.cleared)
	require.Equal(t, "Chat history cleared successfully", parseBody[commandResponse](t, resp.Body).Message)
}

func TestHandle_Summary(t *testing.T) {
	reports := &stubReports{summary: domain.Summary{View: "monthly", From: "2026-10-01", To: "2026-10-31", Transactions: []domain.Transaction{}, TotalIncome: 100, Net: 100}}
	h := newTestHandler(t, &stubCommands{}, reports)

	event := makeEvent(http.MethodGet, "/transactions/summary", "")
	event.QueryStringParameters = map[string]string{"view": "monthly", "date": "2026-10-14"}
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "monthly", reports.view)
	require.Equal(t, "2026-10-14", reports.date)

	out := parseBody[domain.Summary](t, resp.Body)
	require.Equal(t, "2026-10-31", out.To)
	require.Equal(t, 100.0, out.Net)
}

func TestHandle_SummaryInvalidReport(t *testing.T) {
	reports := &stubReports{err: errors.Join(resources.ErrInvalidReport, errors.New("view \"weekly\""))}
	h := newTestHandler(t, &stubCommands{}, reports)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet, "/transactions/summary", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandle_Dashboard(t *testing.T) {
	reports := &stubReports{dashboard: domain.Dashboard{Income: 50, Expense: 20, Balance: 30, PendingTodos: 2, RecentPosts: []domain.Post{}}}
	h := newTestHandler(t, &stubCommands{}, reports)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet, "/dashboard", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 2, parseBody[domain.Dashboard](t, resp.Body).PendingTodos)
}

func TestHandle_Routing(t *testing.T) {
	h := newTestHandler(t, &stubCommands{}, nil)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet, "/nope", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = h.Handle(context.Background(), makeEvent(http.MethodPut, "/dashboard", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandle_RecoversPanic(t *testing.T) {
	h := newTestHandler(t, &stubCommands{panics: true}, nil)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/ai/commands", `{"message":"x"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, string(usecase.ErrorInternal), parseBody[errorResponse](t, resp.Body).Error)
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
}
