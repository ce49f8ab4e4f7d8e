package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/serije/internal/shared"
	tu "github.com/desertthunder/serije/internal/testing"
)

func newTestService(t *testing.T, baseURL string, retries int, client *http.Client) *TMDBService {
	t.Helper()
	cfg := shared.TMDBConfig{
		APIKey:     "test-key",
		BaseURL:    baseURL,
		Language:   "hr-HR",
		Timeout:    shared.Duration{Duration: time.Second},
		MaxRetries: retries,
	}
	s := NewTMDBService(cfg, client, log.New(io.Discard))
	s.backoff = time.Millisecond
	return s
}

func TestTMDBService(t *testing.T) {
	ctx := context.Background()

	t.Run("SearchSeries", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/search/tv" {
				t.Errorf("expected path /search/tv, got %s", r.URL.Path)
			}
			q := r.URL.Query()
			if q.Get("query") != "dark" || q.Get("page") != "2" {
				t.Errorf("unexpected query params: %s", r.URL.RawQuery)
			}
			if q.Get("api_key") != "test-key" {
				t.Errorf("expected api_key param, got %q", q.Get("api_key"))
			}
			if q.Get("language") != "hr-HR" {
				t.Errorf("expected language hr-HR, got %q", q.Get("language"))
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"page":2,"results":[]}`))
		}))
		defer server.Close()

		resp, err := newTestService(t, server.URL, 0, nil).SearchSeries(ctx, "dark", 2)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.StatusCode != http.StatusOK || string(resp.Body) != `{"page":2,"results":[]}` {
			t.Errorf("expected verbatim body, got %d %s", resp.StatusCode, resp.Body)
		}
		if resp.ContentType() != "application/json" {
			t.Errorf("unexpected content type %s", resp.ContentType())
		}
	})

	t.Run("Invalid Input", func(t *testing.T) {
		s := newTestService(t, "http://127.0.0.1:1", 0, nil)

		if _, err := s.SearchSeries(ctx, "", 1); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for empty query, got %v", err)
		}
		if _, err := s.SeriesDetail(ctx, 0); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for id 0, got %v", err)
		}
	})

	t.Run("Bearer Token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer v4-token" {
				t.Errorf("expected bearer token, got %q", got)
			}
			if r.URL.Query().Has("api_key") {
				t.Error("api_key must not be sent with a bearer token")
			}
			w.Write([]byte(`{"id":1399,"name":"Game of Thrones"}`))
		}))
		defer server.Close()

		cfg := shared.TMDBConfig{APIKey: "unused", ReadAccessToken: "v4-token", BaseURL: server.URL}
		series, err := NewTMDBService(cfg, nil, log.New(io.Discard)).Series(ctx, 1399)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if series.Name != "Game of Thrones" {
			t.Errorf("expected Game of Thrones, got %s", series.Name)
		}
	})

	t.Run("Series Not Found", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"status_code":34}`))
		}))
		defer server.Close()

		s := newTestService(t, server.URL, 2, nil)
		if _, err := s.Series(ctx, 42); !errors.Is(err, shared.ErrSeriesNotFound) {
			t.Errorf("expected ErrSeriesNotFound, got %v", err)
		}
		if calls.Load() != 1 {
			t.Errorf("404 must not be retried, got %d calls", calls.Load())
		}

		resp, err := s.SeriesDetail(ctx, 42)
		if err != nil {
			t.Fatalf("passthrough should not fail on 404: %v", err)
		}
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected relayed 404, got %d", resp.StatusCode)
		}
	})

	t.Run("Retries Server Errors", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		resp, err := newTestService(t, server.URL, 2, nil).SeriesDetail(ctx, 1)
		if err != nil {
			t.Fatalf("upstream status should be relayed, got %v", err)
		}
		if resp.StatusCode != http.StatusBadGateway {
			t.Errorf("expected 502 relayed, got %d", resp.StatusCode)
		}
		if calls.Load() != 3 {
			t.Errorf("expected 1 call + 2 retries, got %d", calls.Load())
		}
	})

	t.Run("Retry Then Succeed", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Write([]byte(`{"id":1}`))
		}))
		defer server.Close()

		resp, err := newTestService(t, server.URL, 2, nil).SeriesDetail(ctx, 1)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.StatusCode != http.StatusOK || calls.Load() != 2 {
			t.Errorf("expected success on second call, got %d after %d calls", resp.StatusCode, calls.Load())
		}
	})

	t.Run("Transport Failure", func(t *testing.T) {
		client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))}

		_, err := newTestService(t, "http://tmdb.invalid", 1, client).SeriesDetail(ctx, 1)
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("Circuit Breaker Opens", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		s := newTestService(t, server.URL, 0, nil)
		for range breakerTripAfter {
			if _, err := s.SeriesDetail(ctx, 1); err != nil {
				t.Fatalf("expected relayed 500 before the breaker opens, got %v", err)
			}
		}

		if _, err := s.SeriesDetail(ctx, 1); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable from open breaker, got %v", err)
		}
		if calls.Load() != breakerTripAfter {
			t.Errorf("open breaker must not reach upstream, got %d calls", calls.Load())
		}
	})

	t.Run("Context Cancelled", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		if _, err := newTestService(t, server.URL, 3, nil).SeriesDetail(cctx, 1); err == nil {
			t.Error("expected error for cancelled context")
		}
	})
}

func TestPosterURL(t *testing.T) {
	if got := PosterURL(""); got != "" {
		t.Errorf("expected empty URL, got %s", got)
	}
	if got := PosterURL("/abc.jpg"); got != "https://image.tmdb.org/t/p/w500/abc.jpg" {
		t.Errorf("unexpected poster URL %s", got)
	}
}
