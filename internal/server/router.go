package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ChiRouter implements the [Router] interface on top of a [chi.Mux].
//
// Unmatched paths answer 404 and known paths with a wrong method answer 405,
// both with a JSON [Message] body.
type ChiRouter struct {
	mux *chi.Mux
}

// NewChiRouter creates a new [ChiRouter] instance.
func NewChiRouter() *ChiRouter {
	mux := chi.NewRouter()
	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFound().Write(w, r, nil)
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		Forbidden().Write(w, r, nil)
	})
	return &ChiRouter{mux: mux}
}

// Use adds [Middleware] to the router's middleware stack, applied in the order it's added.
//
// All middleware must be added before the first route.
func (r *ChiRouter) Use(middleware ...Middleware) {
	for _, m := range middleware {
		r.mux.Use(m)
	}
}

// Handler registers a custom [Handler] implementation, which mounts its own routes.
func (r *ChiRouter) Handler(handler Handler) {
	handler.Routes(r.mux)
}

// ServeHTTP implements [http.Handler] for the entire router.
func (r *ChiRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}
