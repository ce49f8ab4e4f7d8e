// package services implements HTTP clients for external metadata APIs
//
// TMDB (The Movie Database)
package services

import (
	"context"
	"fmt"
	"net/http"
)

// Catalog defines the interface for TV-series metadata providers.
//
// Passthrough methods return the upstream payload untouched so callers can
// relay both its status code and body.
type Catalog interface {
	// SearchSeries searches series by name. Page numbering starts at 1.
	SearchSeries(ctx context.Context, query string, page int) (*APIResponse, error)

	// SeriesDetail fetches the raw detail payload of one series.
	SeriesDetail(ctx context.Context, id int) (*APIResponse, error)

	// Series fetches and decodes the detail of one series.
	// Returns [shared.ErrSeriesNotFound] when the provider does not know id.
	Series(ctx context.Context, id int) (*Series, error)

	// Name returns the name of the provider (e.g., "TMDB")
	Name() string
}

// APIResponse represents a raw upstream response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// OK reports whether the upstream answered with a 2xx status.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ContentType returns the upstream content type, defaulting to JSON.
func (r *APIResponse) ContentType() string {
	if ct := r.Headers.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/json"
}

// Series represents a TV series detail
type Series struct {
	ID               int     `json:"id"`
	Name             string  `json:"name"`
	OriginalName     string  `json:"original_name"`
	Overview         string  `json:"overview"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	FirstAirDate     string  `json:"first_air_date"`
	LastAirDate      string  `json:"last_air_date"`
	Status           string  `json:"status"`
	Homepage         string  `json:"homepage"`
	NumberOfSeasons  int     `json:"number_of_seasons"`
	NumberOfEpisodes int     `json:"number_of_episodes"`
	VoteAverage      float64 `json:"vote_average"`
	Popularity       float64 `json:"popularity"`
	Genres           []Genre `json:"genres"`
}

// Genre is a TMDB genre tag
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// SearchResult represents one page of series search results
type SearchResult struct {
	Page         int      `json:"page"`
	TotalPages   int      `json:"total_pages"`
	TotalResults int      `json:"total_results"`
	Results      []Series `json:"results"`
}

const imageBaseURL = "https://image.tmdb.org/t/p/"

// PosterURL builds the w500 poster URL for a TMDB image path.
func PosterURL(path string) string {
	if path == "" {
		return ""
	}
	return fmt.Sprintf("%sw500%s", imageBaseURL, path)
}
