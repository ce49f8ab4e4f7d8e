// Package services defines the [Catalog] interface for TV-series metadata providers and implements it for TMDB.
//
// # TMDB Implementation
//
// [TMDBService] talks to the TMDB v3 REST API. Authentication is either the v3 api_key query parameter
// or a v4 read access token sent as a bearer token through an [oauth2.StaticTokenSource].
//
// Each request passes through, in order:
//   - a circuit breaker ([gobreaker.CircuitBreaker]) that opens after consecutive failures
//   - a bounded retry loop with exponential back-off for transport errors, 5xx and 429
//   - an outbound token bucket ([rate.Limiter]) shared by all callers
//   - a per-request timeout on the underlying [http.Client]
//
// # Passthrough
//
// [TMDBService.SearchSeries] and [TMDBService.SeriesDetail] return the upstream [APIResponse] unchanged,
// including non-2xx statuses, so HTTP handlers can relay it. [TMDBService.Series] decodes a detail
// payload into [Series].
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrInvalidInput] : empty query or non-positive series id
//   - [shared.ErrSeriesNotFound] : TMDB has no series with the id
//   - [shared.ErrAPIRequest] : TMDB answered with an unexpected status
//   - [shared.ErrServiceUnavailable] : transport failure or open circuit breaker
package services
