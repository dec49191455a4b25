package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gorilla/mux"
)

const maxBodyBytes = 64 << 10

// NewRouter mounts the same endpoints as Handle on a mux router. The caller
// is identified by the X-User-Id header.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(h.recoverMiddleware)

	r.HandleFunc("/ai/commands", h.serve(func(req *http.Request, userID string) result {
		body, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes))
		if err != nil {
			return result{http.StatusBadRequest, errorResponse{Error: "INVALID_INPUT", Message: "unreadable body"}}
		}
		return h.postCommand(req.Context(), userID, body)
	})).Methods(http.MethodPost)
	r.HandleFunc("/ai/commands", h.serve(func(req *http.Request, userID string) result {
		return h.getHistory(req.Context(), userID)
	})).Methods(http.MethodGet)
	r.HandleFunc("/ai/commands", h.serve(func(req *http.Request, userID string) result {
		return h.deleteHistory(req.Context(), userID)
	})).Methods(http.MethodDelete)
	r.HandleFunc("/transactions/summary", h.serve(func(req *http.Request, userID string) result {
		q := req.URL.Query()
		return h.getSummary(req.Context(), userID, q.Get("view"), q.Get("date"))
	})).Methods(http.MethodGet)
	r.HandleFunc("/dashboard", h.serve(func(req *http.Request, userID string) result {
		return h.getDashboard(req.Context(), userID)
	})).Methods(http.MethodGet)

	return r
}

func (h *Handler) serve(fn func(*http.Request, string) result) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		corrID := correlationID(r.Header.Get)
		w.Header().Set(headerCorrelationID, corrID)

		res := unauthenticated()
		if userID := strings.TrimSpace(r.Header.Get(headerUserID)); userID != "" {
			res = fn(r, userID)
		}
		h.log.Info().
			Str("correlation_id", corrID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", res.status).
			Msg("request handled")
		writeJSON(w, res)
	}
}

func (h *Handler) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.log.Error().
					Interface("panic", rec).
					Str("method", r.Method).
					Str("url", r.URL.String()).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				writeJSON(w, result{http.StatusInternalServerError, errorResponse{Error: "INTERNAL_ERROR"}})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, res result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(res.status)
	if err := json.NewEncoder(w).Encode(res.body); err != nil {
		w.Write([]byte(`{"error":"INTERNAL_ERROR"}`))
	}
}
