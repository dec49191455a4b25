// Package handler exposes the command service over API Gateway and over a
// plain HTTP router. Both transports share the endpoint functions below.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ai-commands/internal/domain"
	"ai-commands/internal/resources"
	"ai-commands/internal/usecase"
)

const (
	headerCorrelationID = "X-Correlation-Id"
	headerUserID        = "X-User-Id"

	errUnauthenticated = "UNAUTHENTICATED"
	errNotFound        = "NOT_FOUND"
	errMethod          = "METHOD_NOT_ALLOWED"
)

type CommandUseCase interface {
	Execute(ctx context.Context, in usecase.CommandInput) (usecase.Reply, error)
	History(ctx context.Context, userID string) (usecase.HistoryOutput, error)
	ClearHistory(ctx context.Context, userID string) (usecase.Reply, error)
}

type ReportUseCase interface {
	Summary(ctx context.Context, userID, view, date string) (domain.Summary, error)
	Dashboard(ctx context.Context, userID string) (domain.Dashboard, error)
}

type Handler struct {
	commands CommandUseCase
	reports  ReportUseCase
	log      zerolog.Logger
}

type commandRequest struct {
	Message string `json:"message"`
}

type commandResponse struct {
	Type            string              `json:"type"`
	Message         string              `json:"message"`
	Resource        *domain.ResourceRef `json:"resource,omitempty"`
	TokensUsed      *int                `json:"tokens_used,omitempty"`
	TokensRemaining *int                `json:"tokens_remaining,omitempty"`
	NextReset       *time.Time          `json:"next_reset,omitempty"`
	Details         string              `json:"details,omitempty"`
	Error           string              `json:"error,omitempty"`
}

type historyResponse struct {
	Messages        []domain.ChatEntry `json:"messages"`
	TokensUsed      int                `json:"tokens_used"`
	TokensRemaining int                `json:"tokens_remaining"`
	NextReset       time.Time          `json:"next_reset"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// result is a transport-neutral response.
type result struct {
	status int
	body   any
}

func NewHandler(commands CommandUseCase, reports ReportUseCase, log zerolog.Logger) (*Handler, error) {
	if commands == nil {
		return nil, errors.New("handler: command use case must not be nil")
	}
	if reports == nil {
		return nil, errors.New("handler: report use case must not be nil")
	}
	return &Handler{commands: commands, reports: reports, log: log}, nil
}

func (h *Handler) postCommand(ctx context.Context, userID string, body []byte) result {
	var req commandRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return result{http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Message: "request body must be JSON"}}
	}

	reply, err := h.commands.Execute(ctx, usecase.CommandInput{UserID: userID, Message: req.Message})
	if err != nil {
		switch code := usecase.CodeOf(err); code {
		case usecase.ErrorBlankInput:
			return result{http.StatusUnprocessableEntity, errorResponse{Error: string(code), Message: "Message cannot be empty"}}
		case usecase.ErrorInvalidInput:
			return result{http.StatusBadRequest, errorResponse{Error: string(code)}}
		}
		if reply.Type == "" {
			return result{http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)}}
		}
		return result{http.StatusInternalServerError, toCommandResponse(reply)}
	}
	return result{http.StatusOK, toCommandResponse(reply)}
}

func (h *Handler) getHistory(ctx context.Context, userID string) result {
	out, err := h.commands.History(ctx, userID)
	if err != nil {
		return h.failure(err)
	}
	return result{http.StatusOK, historyResponse{
		Messages:        out.Entries,
		TokensUsed:      out.Tokens.Used,
		TokensRemaining: out.Tokens.Remaining,
		NextReset:       out.Tokens.NextReset,
	}}
}

func (h *Handler) deleteHistory(ctx context.Context, userID string) result {
	reply, err := h.commands.ClearHistory(ctx, userID)
	if err != nil {
		return h.failure(err)
	}
	return result{http.StatusOK, toCommandResponse(reply)}
}

func (h *Handler) getSummary(ctx context.Context, userID, view, date string) result {
	summary, err := h.reports.Summary(ctx, userID, view, date)
	if err != nil {
		if errors.Is(err, resources.ErrInvalidReport) {
			return result{http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Message: err.Error()}}
		}
		return h.failure(err)
	}
	return result{http.StatusOK, summary}
}

func (h *Handler) getDashboard(ctx context.Context, userID string) result {
	dash, err := h.reports.Dashboard(ctx, userID)
	if err != nil {
		return h.failure(err)
	}
	return result{http.StatusOK, dash}
}

func (h *Handler) failure(err error) result {
	if usecase.CodeOf(err) == usecase.ErrorInvalidInput {
		return result{http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput)}}
	}
	h.log.Error().Err(err).Msg("request failed")
	return result{http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)}}
}

func unauthenticated() result {
	return result{http.StatusUnauthorized, errorResponse{Error: errUnauthenticated}}
}

func toCommandResponse(r usecase.Reply) commandResponse {
	out := commandResponse{
		Type:     r.Type,
		Message:  r.Message,
		Resource: r.Resource,
		Details:  r.Details,
		Error:    string(r.Code),
	}
	if r.Tokens != nil {
		used, remaining := r.Tokens.Used, r.Tokens.Remaining
		out.TokensUsed = &used
		out.TokensRemaining = &remaining
		if !r.Tokens.NextReset.IsZero() {
			next := r.Tokens.NextReset
			out.NextReset = &next
		}
	}
	return out
}

func correlationID(get func(string) string) string {
	if v := strings.TrimSpace(get(headerCorrelationID)); v != "" {
		return v
	}
	return uuid.NewString()
}
