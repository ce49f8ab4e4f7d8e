package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/serije/internal/shared"
)

// Favorite is a user's saved reference to a TMDB series.
type Favorite struct {
	base
	userID     string
	seriesID   int
	name       string
	posterPath string
}

// NewFavorite creates a favorite owned by userID for the TMDB series seriesID.
func NewFavorite(sequence int, userID string, seriesID int, name, posterPath string) *Favorite {
	return &Favorite{
		base:       newBase(sequence),
		userID:     userID,
		seriesID:   seriesID,
		name:       strings.TrimSpace(name),
		posterPath: strings.TrimSpace(posterPath),
	}
}

func (f *Favorite) UserID() string     { return f.userID }
func (f *Favorite) SeriesID() int      { return f.seriesID }
func (f *Favorite) Name() string       { return f.name }
func (f *Favorite) SetName(n string)   { f.name = strings.TrimSpace(n) }
func (f *Favorite) PosterPath() string { return f.posterPath }
func (f *Favorite) SetPosterPath(p string) {
	f.posterPath = strings.TrimSpace(p)
}

// Validate checks the owner and series reference.
func (f *Favorite) Validate() error {
	if f.userID == "" {
		return fmt.Errorf("%w: user id is required", shared.ErrInvalidInput)
	}
	if f.seriesID <= 0 {
		return fmt.Errorf("%w: series id must be positive", shared.ErrInvalidInput)
	}
	return nil
}

type favoriteJSON struct {
	ID         string    `json:"id"`
	UserID     string    `json:"korisnik_id"`
	SeriesID   int       `json:"serija_id"`
	Name       string    `json:"naziv"`
	PosterPath string    `json:"poster"`
	CreatedAt  time.Time `json:"kreiran"`
}

// MarshalJSON implements [json.Marshaler].
func (f *Favorite) MarshalJSON() ([]byte, error) {
	return json.Marshal(favoriteJSON{
		ID:         f.id,
		UserID:     f.userID,
		SeriesID:   f.seriesID,
		Name:       f.name,
		PosterPath: f.posterPath,
		CreatedAt:  f.createdAt,
	})
}
