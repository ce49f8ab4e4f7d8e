package server

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/serije/internal/metrics"
	"github.com/desertthunder/serije/internal/repositories"
	"github.com/go-chi/chi/v5"
)

// SystemHandler serves health, metrics and the unimplemented log resource.
type SystemHandler struct {
	store  *repositories.Store
	logger *log.Logger
}

// Routes implements [Handler].
func (h *SystemHandler) Routes(r chi.Router) {
	r.HandleFunc("/baza/dnevnik", Serve(h.logger, notImplemented))
	r.Get("/zdravlje", Serve(h.logger, h.health))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
}

func (h *SystemHandler) health(r *http.Request) Result {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Error("health check failed", "error", err)
		return Result{Status: http.StatusServiceUnavailable, Body: map[string]string{"status": "nedostupno"}}
	}
	return OK(map[string]string{"status": "ok"})
}
