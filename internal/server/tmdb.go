package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/serije/internal/services"
	"github.com/desertthunder/serije/internal/shared"
	"github.com/go-chi/chi/v5"
)

// TMDBHandler relays series search and detail lookups to the catalog.
type TMDBHandler struct {
	catalog services.Catalog
	logger  *log.Logger
}

// Routes implements [Handler].
func (h *TMDBHandler) Routes(r chi.Router) {
	r.Get("/api/tmdb/serije", Serve(h.logger, h.search))
	r.Get("/api/tmdb/serija", Serve(h.logger, h.series))
}

func (h *TMDBHandler) search(r *http.Request) Result {
	query := strings.TrimSpace(r.URL.Query().Get("trazi"))
	if query == "" {
		return MissingField("trazi")
	}

	resp, err := h.catalog.SearchSeries(r.Context(), query, ParsePage(r.URL.Query().Get("stranica")))
	return Relay(resp, err)
}

func (h *TMDBHandler) series(r *http.Request) Result {
	id, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("id")))
	if err != nil || id <= 0 {
		return MissingField("id")
	}

	resp, err := h.catalog.SeriesDetail(r.Context(), id)
	return Relay(resp, err)
}

// ParsePage reads a 1-based page number, defaulting to 1.
func ParsePage(s string) int {
	page, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// Relay passes an upstream catalog response through with its status and body.
func Relay(resp *services.APIResponse, err error) Result {
	switch {
	case errors.Is(err, shared.ErrInvalidInput):
		return BadData()
	case err != nil:
		return Upstream(err)
	default:
		return Raw(resp.StatusCode, resp.ContentType(), resp.Body)
	}
}
