package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type tableLister interface {
	ListTables(ctx context.Context) ([]string, error)
}

// HealthHandler handles liveness and readiness probes.
type HealthHandler struct {
	tables tableLister
}

func NewHealthHandler(tables tableLister) *HealthHandler { return &HealthHandler{tables: tables} }

// Ping answers /health-check/ping without touching the store and
// /health-check/ready only when the store answers.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "ping":
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "pong"})
	case "ready":
		if _, err := h.tables.ListTables(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "ready"})
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}
