package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/serije/internal/auth"
	"github.com/desertthunder/serije/internal/models"
	"github.com/desertthunder/serije/internal/repositories"
	"github.com/desertthunder/serije/internal/services"
	"github.com/desertthunder/serije/internal/shared"
	"github.com/go-chi/chi/v5"
)

// FavoriteRequest is one favorite series in a request body.
type FavoriteRequest struct {
	SerijaID int    `json:"serija_id" validate:"gt=0"`
	Naziv    string `json:"naziv"`
	Poster   string `json:"poster"`
}

type replaceFavoritesRequest struct {
	Favoriti *[]FavoriteRequest `json:"favoriti" validate:"omitempty,dive"`
}

// FavoriteDetail is a favorite merged with the live TMDB series payload.
type FavoriteDetail struct {
	Favorit *models.Favorite `json:"favorit"`
	Serija  json.RawMessage  `json:"serija"`
}

// FavoriteHandler serves /baza/favoriti for the session user.
type FavoriteHandler struct {
	store   *repositories.Store
	catalog services.Catalog
	logger  *log.Logger
}

// Routes implements [Handler].
func (h *FavoriteHandler) Routes(r chi.Router) {
	r.Route("/baza/favoriti", func(r chi.Router) {
		r.Post("/{id}", Serve(h.logger, forbidden))
		r.Put("/{id}", Serve(h.logger, forbidden))

		r.Group(func(r chi.Router) {
			r.Use(auth.Require(func(w http.ResponseWriter, r *http.Request) {
				Unauthenticated().Write(w, r, nil)
			}))

			r.Get("/", Serve(h.logger, h.list))
			r.Post("/", Serve(h.logger, h.add))
			r.Put("/", Serve(h.logger, h.replace))
			r.Delete("/", Serve(h.logger, h.deleteAll))

			r.Get("/{id}", Serve(h.logger, h.detail))
			r.Delete("/{id}", Serve(h.logger, h.delete))
		})
	})
}

func sessionUser(r *http.Request) string {
	s, _ := auth.FromContext(r.Context())
	return s.UserID
}

func (h *FavoriteHandler) list(r *http.Request) Result {
	favorites, err := h.store.Favorites().ListByUser(r.Context(), sessionUser(r))
	if err != nil {
		return Internal(err)
	}
	return OK(favorites)
}

func (h *FavoriteHandler) add(r *http.Request) Result {
	var req FavoriteRequest
	if IsFormRequest(r) {
		form, err := formFavoriteRequest(r)
		if err != nil {
			return BadData()
		}
		req = form
	} else if err := DecodeJSON(r, &req); err != nil {
		return BadData()
	}
	if err := validate.Struct(req); err != nil {
		return ValidationResult(err)
	}

	fav := NewFavoriteFromRequest(r.Context(), h.catalog, h.logger, sessionUser(r), req)
	if err := h.store.Favorites().Create(r.Context(), fav); err != nil {
		if errors.Is(err, shared.ErrConflict) {
			return Conflict(OpisFavoriteExists)
		}
		return FromError(err, false)
	}

	return Created(fav)
}

func formFavoriteRequest(r *http.Request) (FavoriteRequest, error) {
	req := FavoriteRequest{Naziv: r.FormValue("naziv"), Poster: r.FormValue("poster")}
	if raw := strings.TrimSpace(r.FormValue("serija_id")); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return req, fmt.Errorf("%w: serija_id %q", shared.ErrInvalidArgument, raw)
		}
		req.SerijaID = id
	}
	return req, nil
}

// NewFavoriteFromRequest builds an unsaved favorite. A missing name or poster
// is filled from the catalog when it answers; lookup failures are only logged.
func NewFavoriteFromRequest(ctx context.Context, catalog services.Catalog, logger *log.Logger, userID string, req FavoriteRequest) *models.Favorite {
	fav := models.NewFavorite(0, userID, req.SerijaID, req.Naziv, req.Poster)
	if fav.Name() != "" || catalog == nil {
		return fav
	}

	series, err := catalog.Series(ctx, req.SerijaID)
	if err != nil {
		logger.Warn("could not fill favorite from catalog", "series", req.SerijaID, "error", err)
		return fav
	}

	fav.SetName(series.Name)
	if fav.PosterPath() == "" {
		fav.SetPosterPath(series.PosterPath)
	}
	return fav
}

func (h *FavoriteHandler) replace(r *http.Request) Result {
	var req replaceFavoritesRequest
	if err := DecodeJSON(r, &req); err != nil {
		return BadData()
	}
	if req.Favoriti == nil {
		return MissingField("favoriti")
	}
	if err := validate.Struct(req); err != nil {
		return ValidationResult(err)
	}

	userID := sessionUser(r)
	favorites := make([]*models.Favorite, 0, len(*req.Favoriti))
	for _, item := range *req.Favoriti {
		favorites = append(favorites, models.NewFavorite(0, userID, item.SerijaID, item.Naziv, item.Poster))
	}

	if err := h.store.ReplaceFavorites(r.Context(), userID, favorites); err != nil {
		if errors.Is(err, shared.ErrConflict) {
			return Conflict(OpisFavoriteExists)
		}
		return FromError(err, false)
	}

	return h.list(r)
}

func (h *FavoriteHandler) deleteAll(r *http.Request) Result {
	n, err := h.store.Favorites().DeleteByUser(r.Context(), sessionUser(r))
	if err != nil {
		return Internal(err)
	}
	return OK(map[string]int64{"obrisano": n})
}

func (h *FavoriteHandler) detail(r *http.Request) Result {
	detail, err := LoadFavoriteDetail(r.Context(), h.store.Favorites(), h.catalog, sessionUser(r), chi.URLParam(r, "id"))
	if err != nil {
		return FromError(err, false)
	}
	return OK(detail)
}

// LoadFavoriteDetail fetches a favorite owned by userID together with its
// TMDB detail. A favorite of another user is reported as not found.
func LoadFavoriteDetail(ctx context.Context, favorites *repositories.FavoriteRepository, catalog services.Catalog, userID, id string) (*FavoriteDetail, error) {
	fav, err := favorites.GetForUser(ctx, userID, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}

	resp, err := catalog.SeriesDetail(ctx, fav.SeriesID())
	if err != nil {
		return nil, err
	}
	if !resp.OK() || !json.Valid(resp.Body) {
		return nil, fmt.Errorf("%w: series %d status %d", shared.ErrAPIRequest, fav.SeriesID(), resp.StatusCode)
	}

	return &FavoriteDetail{Favorit: fav, Serija: json.RawMessage(resp.Body)}, nil
}

func (h *FavoriteHandler) delete(r *http.Request) Result {
	ctx := r.Context()
	userID := sessionUser(r)
	id := chi.URLParam(r, "id")

	fav, err := h.store.Favorites().GetForUser(ctx, userID, id)
	if err != nil {
		return FromError(err, false)
	}
	if err := h.store.Favorites().DeleteForUser(ctx, userID, id); err != nil {
		return FromError(err, false)
	}
	return OK(fav)
}
