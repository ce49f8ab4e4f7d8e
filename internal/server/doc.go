// Package server provides HTTP routing, middleware, and the REST resources of the series catalog.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [ChiRouter] implements it with
// a [chi.Mux]; unmatched paths answer 404 and wrong methods 405, both with a JSON [Message].
//
// Custom handlers implement the [Handler] interface and mount their own routes, so each resource
// keeps its route table next to its handlers:
//   - [UserHandler] : /baza/korisnici, /baza/korisnici/{korime}, /baza/korisnici/{korime}/prijava
//   - [FavoriteHandler] : /baza/favoriti, /baza/favoriti/{id} (session required)
//   - [TMDBHandler] : /api/tmdb/serije, /api/tmdb/serija
//   - [SystemHandler] : /baza/dnevnik, /zdravlje, /metrics
//
// # Results
//
// Handlers return a [Result] instead of writing to the response. [Serve] writes exactly one response per
// Result, and [FromError] maps the sentinel errors of the shared package onto status codes:
//
//	417 nedostaje podatak      missing field (with polje)
//	400 krivi podaci           bad input, bad credentials
//	401 potrebna prijava       no session
//	404 nema resursa           not found
//	405 zabranjeno             forbidden operation
//	409 korisnik vec postoji   conflict
//	501 metoda nije implementirana
//	502 tmdb nedostupan        upstream failure
//	500 interna greska         anything else, details only in logs
//
// # Middleware
//
// Every request passes request id, real IP, access log, panic recovery, Prometheus metrics and session
// loading. Login endpoints are additionally rate limited per client IP.
package server
