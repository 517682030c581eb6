package api

import (
	"context"
	"log/slog"
	"net/http"
)

// Pinger reports whether the knowledge base is reachable. Satisfied by
// *knowledge.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	pinger Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a health handler. pinger backs the readiness
// check.
func NewHealthHandler(pinger Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{pinger: pinger, logger: logger}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.liveness)
	mux.HandleFunc("GET /ready", h.readiness)
}

// liveness returns 200 OK while the process is alive.
func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness returns 200 OK when the knowledge base answers a ping.
func (h *HealthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	if h.pinger == nil {
		http.Error(w, "knowledge base not configured", http.StatusServiceUnavailable)
		return
	}
	if err := h.pinger.Ping(r.Context()); err != nil {
		h.logger.Error("readiness check failed", "error", err)
		http.Error(w, "knowledge base not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
