// package server contains the router, middleware & REST handlers for the series catalog web service
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/serije/internal/auth"
	"github.com/desertthunder/serije/internal/metrics"
	"github.com/desertthunder/serije/internal/repositories"
	"github.com/desertthunder/serije/internal/services"
	"github.com/desertthunder/serije/internal/shared"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, authentication, rate limiting, etc.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for groups of HTTP handlers in the series service.
// Implementations own a resource (users, favorites, pages) and mount all of its routes.
type Handler interface {
	Routes(r chi.Router) // Routes registers the handler's method/path patterns on r
}

// Router defines the interface for HTTP routing and middleware management.
// Implementations register handlers, apply middleware, and configure the HTTP server.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Options are the collaborators a [Server] is built from.
type Options struct {
	Config   *shared.Config
	Store    *repositories.Store
	Catalog  services.Catalog
	Hasher   *auth.Hasher
	Sessions *auth.Manager
	Logger   *log.Logger
}

// Server is the HTTP surface: REST resources, metrics, health and any mounted page handlers.
type Server struct {
	config     *shared.Config
	store      *repositories.Store
	sessions   *auth.Manager
	logger     *log.Logger
	router     Router
	loginLimit Middleware
}

// New builds a [Server] and registers the REST resources.
func New(opts Options) *Server {
	logger := shared.WithLogger(opts.Logger, "component", "http")

	router := NewChiRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		AccessLog(logger),
		middleware.Recoverer,
		metrics.Middleware,
		opts.Sessions.Load,
	)

	s := &Server{
		config:     opts.Config,
		store:      opts.Store,
		sessions:   opts.Sessions,
		logger:     logger,
		router:     router,
		loginLimit: LoginRateLimit(opts.Config.Server.LoginRateLimit),
	}

	router.Handler(&UserHandler{
		store:                opts.Store,
		hasher:               opts.Hasher,
		logger:               logger,
		loginLimit:           s.loginLimit,
		notFoundAsBadRequest: opts.Config.Compat.NotFoundAsBadRequest,
	})
	router.Handler(&FavoriteHandler{store: opts.Store, catalog: opts.Catalog, logger: logger})
	router.Handler(&TMDBHandler{catalog: opts.Catalog, logger: logger})
	router.Handler(&SystemHandler{store: opts.Store, logger: logger})

	return s
}

// Mount registers an additional [Handler], such as the page handlers.
func (s *Server) Mount(h Handler) { s.router.Handler(h) }

// LoginLimiter returns the per-IP limiter shared by every login endpoint.
func (s *Server) LoginLimiter() Middleware { return s.loginLimit }

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully within server.shutdown_timeout. Expired sessions are purged in
// the background while serving.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.sessions.RunPurge(ctx, s.config.Session.PurgeInterval.Duration)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.config.Server.ShutdownTimeout.Duration
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), timeout)
	defer stop()

	s.logger.Info("shutting down", "timeout", timeout)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}
