package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/serije/internal/metrics"
	"github.com/desertthunder/serije/internal/shared"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	DefaultTMDBBaseURL = "https://api.themoviedb.org/3"
	defaultTimeout     = 10 * time.Second
	defaultBackoff     = 250 * time.Millisecond
	maxResponseBytes   = 4 << 20
	breakerName        = "tmdb-api"
	breakerTripAfter   = 5
)

// statusError marks a retryable upstream status so the breaker counts it as a failure.
type statusError struct{ code int }

func (e *statusError) Error() string { return fmt.Sprintf("tmdb returned status %d", e.code) }

// TMDBService implements [Catalog] for the TMDB v3 API.
//
// Every call waits on an outbound token bucket, runs through a circuit
// breaker, and is retried with exponential back-off on transport errors,
// 5xx and 429 responses.
type TMDBService struct {
	baseURL    string
	apiKey     string
	language   string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[*APIResponse]
	maxRetries int
	backoff    time.Duration
	logger     *log.Logger
}

// NewTMDBService creates a TMDB client from cfg.
//
// With a read access token the client authenticates with a v4 bearer token
// through an [oauth2.StaticTokenSource]; otherwise the v3 api_key query
// parameter is sent. A nil client uses a fresh [http.Client].
func NewTMDBService(cfg shared.TMDBConfig, client *http.Client, logger *log.Logger) *TMDBService {
	if client == nil {
		client = &http.Client{}
	}

	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	if cfg.ReadAccessToken != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.ReadAccessToken, TokenType: "Bearer"})
		client = oauth2.NewClient(ctx, src)
	} else {
		c := *client
		client = &c
	}
	client.Timeout = timeout

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultTMDBBaseURL
	}

	limit := rate.Inf
	burst := 1
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
		burst = max(1, int(cfg.RateLimit))
	}

	s := &TMDBService{
		baseURL:    baseURL,
		language:   cfg.Language,
		httpClient: client,
		limiter:    rate.NewLimiter(limit, burst),
		maxRetries: max(0, cfg.MaxRetries),
		backoff:    defaultBackoff,
		logger:     shared.WithLogger(logger, "service", "tmdb"),
	}
	if cfg.ReadAccessToken == "" {
		s.apiKey = cfg.APIKey
	}

	metrics.SetTMDBBreakerState(int(gobreaker.StateClosed))
	s.breaker = gobreaker.NewCircuitBreaker[*APIResponse](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripAfter
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("circuit breaker state change", "from", from.String(), "to", to.String())
			metrics.SetTMDBBreakerState(int(to))
		},
	})

	return s
}

// Name returns "TMDB"
func (s *TMDBService) Name() string { return "TMDB" }

// SearchSeries calls /search/tv.
func (s *TMDBService) SearchSeries(ctx context.Context, query string, page int) (*APIResponse, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrInvalidInput)
	}
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("include_adult", "false")

	return s.get(ctx, "search", "/search/tv", params)
}

// SeriesDetail calls /tv/{id}.
func (s *TMDBService) SeriesDetail(ctx context.Context, id int) (*APIResponse, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: series id must be positive", shared.ErrInvalidInput)
	}
	return s.get(ctx, "detail", fmt.Sprintf("/tv/%d", id), nil)
}

// Series fetches /tv/{id} and decodes it.
func (s *TMDBService) Series(ctx context.Context, id int) (*Series, error) {
	resp, err := s.SeriesDetail(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %d", shared.ErrSeriesNotFound, id)
	case !resp.OK():
		return nil, fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	var series Series
	if err := json.Unmarshal(resp.Body, &series); err != nil {
		return nil, fmt.Errorf("failed to decode series: %w", err)
	}
	return &series, nil
}

// get performs a GET through the breaker. Non-2xx responses are returned, not
// converted to errors, so callers can relay them.
func (s *TMDBService) get(ctx context.Context, endpoint, path string, params url.Values) (*APIResponse, error) {
	start := time.Now()

	resp, err := s.breaker.Execute(func() (*APIResponse, error) {
		return s.doWithRetry(ctx, endpoint, path, params)
	})

	var se *statusError
	switch {
	case err == nil:
		metrics.RecordTMDBRequest(endpoint, outcome(resp), time.Since(start))
		return resp, nil
	case errors.As(err, &se) && resp != nil:
		metrics.RecordTMDBRequest(endpoint, "upstream_error", time.Since(start))
		return resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordTMDBRequest(endpoint, "breaker_open", time.Since(start))
		s.logger.Warn("request rejected by circuit breaker", "endpoint", endpoint)
		return nil, fmt.Errorf("%w: tmdb circuit open", shared.ErrServiceUnavailable)
	default:
		metrics.RecordTMDBRequest(endpoint, "transport_error", time.Since(start))
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
}

func (s *TMDBService) doWithRetry(ctx context.Context, endpoint, path string, params url.Values) (*APIResponse, error) {
	var (
		resp *APIResponse
		err  error
	)

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.RecordTMDBRetry(endpoint)
			delay := s.backoff << (attempt - 1)
			s.logger.Debug("retrying request", "endpoint", endpoint, "attempt", attempt, "delay", delay)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		if werr := s.limiter.Wait(ctx); werr != nil {
			return nil, fmt.Errorf("rate limiter: %w", werr)
		}

		resp, err = s.do(ctx, path, params)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if !retryable(resp.StatusCode) {
			return resp, nil
		}
		err = &statusError{code: resp.StatusCode}
	}

	return resp, err
}

func (s *TMDBService) do(ctx context.Context, path string, params url.Values) (*APIResponse, error) {
	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	if s.language != "" {
		query.Set("language", s.language)
	}

	s.logger.Debug("tmdb request", "path", path, "params", query.Encode(), "api_key", mask(s.apiKey))

	if s.apiKey != "" {
		query.Set("api_key", s.apiKey)
	}

	fullURL := s.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		fullURL += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn("tmdb request failed", "path", path, "error", err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		s.logger.Warn("tmdb api error", "path", path, "status", resp.StatusCode)
	}

	return &APIResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: body}, nil
}

func retryable(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}

func outcome(resp *APIResponse) string {
	if resp.OK() {
		return "ok"
	}
	return "upstream_error"
}

func mask(key string) string {
	if key == "" {
		return ""
	}
	return "***"
}
