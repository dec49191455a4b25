package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

var allowedMethods = map[string][]string{
	"/ai/commands":          {http.MethodGet, http.MethodPost, http.MethodDelete},
	"/transactions/summary": {http.MethodGet},
	"/dashboard":            {http.MethodGet},
}

// Handle serves API Gateway proxy events.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (resp events.APIGatewayProxyResponse, err error) {
	corrID := correlationID(func(name string) string { return headerValue(req.Headers, name) })
	path := strings.TrimRight(req.Path, "/")
	log := h.log.With().Str("correlation_id", corrID).Str("method", req.HTTPMethod).Str("path", path).Logger()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("panic", fmt.Sprint(rec)).Msg("panic recovered")
			resp, err = jsonResponse(corrID, result{http.StatusInternalServerError, errorResponse{Error: "INTERNAL_ERROR"}}), nil
		}
	}()

	res := h.route(ctx, req, path)
	log.Info().Int("status", res.status).Msg("request handled")
	return jsonResponse(corrID, res), nil
}

func (h *Handler) route(ctx context.Context, req events.APIGatewayProxyRequest, path string) result {
	methods, ok := allowedMethods[path]
	if !ok {
		return result{http.StatusNotFound, errorResponse{Error: errNotFound}}
	}
	if !slices.Contains(methods, req.HTTPMethod) {
		return result{http.StatusMethodNotAllowed, errorResponse{Error: errMethod}}
	}

	userID := lambdaUserID(req)
	if userID == "" {
		return unauthenticated()
	}

	switch {
	case path == "/ai/commands" && req.HTTPMethod == http.MethodPost:
		return h.postCommand(ctx, userID, []byte(req.Body))
	case path == "/ai/commands" && req.HTTPMethod == http.MethodGet:
		return h.getHistory(ctx, userID)
	case path == "/ai/commands":
		return h.deleteHistory(ctx, userID)
	case path == "/transactions/summary":
		return h.getSummary(ctx, userID, req.QueryStringParameters["view"], req.QueryStringParameters["date"])
	default:
		return h.getDashboard(ctx, userID)
	}
}

// lambdaUserID prefers the authorizer principal over the header.
func lambdaUserID(req events.APIGatewayProxyRequest) string {
	if p, ok := req.RequestContext.Authorizer["principalId"].(string); ok && strings.TrimSpace(p) != "" {
		return strings.TrimSpace(p)
	}
	return strings.TrimSpace(headerValue(req.Headers, headerUserID))
}

func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func jsonResponse(corrID string, res result) events.APIGatewayProxyResponse {
	body, err := json.Marshal(res.body)
	if err != nil {
		res.status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: res.status,
		Headers: map[string]string{
			"Content-Type":      "application/json",
			headerCorrelationID: corrID,
		},
		Body: string(body),
	}
}
