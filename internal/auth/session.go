package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/serije/internal/metrics"
	"github.com/desertthunder/serije/internal/models"
	"github.com/desertthunder/serije/internal/shared"
)

const tokenBytes = 32

type contextKey struct{}

// SessionStore persists sessions. [repositories.SessionRepository] satisfies it.
type SessionStore interface {
	Create(ctx context.Context, s *models.Session) error
	Get(ctx context.Context, token string, now time.Time) (*models.Session, error)
	Delete(ctx context.Context, token string) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Manager issues session cookies and resolves them back to [models.Session] values.
type Manager struct {
	store  SessionStore
	config shared.SessionConfig
	logger *log.Logger
	now    func() time.Time
}

// NewManager creates a session [Manager] over store.
func NewManager(store SessionStore, config shared.SessionConfig, logger *log.Logger) *Manager {
	return &Manager{
		store:  store,
		config: config,
		logger: shared.WithLogger(logger, "component", "sessions"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Start creates a session for user and sets the cookie. Any session already
// carried by r is destroyed first so a fresh token is issued on every login.
func (m *Manager) Start(w http.ResponseWriter, r *http.Request, user *models.User) (*models.Session, error) {
	ctx := r.Context()
	if old := m.token(r); old != "" {
		if err := m.store.Delete(ctx, old); err != nil {
			m.logger.Warn("failed to delete previous session", "error", err)
		}
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}

	now := m.now()
	session := &models.Session{
		Token:     token,
		UserID:    user.ID(),
		Username:  user.Username(),
		CreatedAt: now,
		ExpiresAt: now.Add(m.config.TTL.Duration),
	}
	if err := m.store.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.config.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.config.TTL.Seconds()),
		Secure:   m.config.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	m.logger.Debug("session started", "user", user.Username())
	return session, nil
}

// Destroy removes the session carried by r and expires the cookie.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request) error {
	if token := m.token(r); token != "" {
		if err := m.store.Delete(r.Context(), token); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.config.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   m.config.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Load resolves the session cookie and stores the session in the request
// context. Requests without a valid session pass through unchanged.
func (m *Manager) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := m.token(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		session, err := m.store.Get(r.Context(), token, m.now())
		if err != nil {
			if !errors.Is(err, shared.ErrNotFound) {
				m.logger.Error("session lookup failed", "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
	})
}

// Require runs next only when the request carries a session, and
// unauthenticated otherwise.
func Require(unauthenticated http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := FromContext(r.Context()); !ok {
				unauthenticated(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RunPurge deletes expired sessions every interval until ctx is cancelled.
func (m *Manager) RunPurge(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Purge(ctx)
		}
	}
}

// Purge deletes expired sessions once and returns how many were removed.
func (m *Manager) Purge(ctx context.Context) int64 {
	n, err := m.store.PurgeExpired(ctx, m.now())
	if err != nil {
		m.logger.Error("session purge failed", "error", err)
		return 0
	}

	metrics.RecordSessionsPurged(n)
	if n > 0 {
		m.logger.Info("purged expired sessions", "count", n)
	}
	return n
}

func (m *Manager) token(r *http.Request) string {
	cookie, err := r.Cookie(m.config.CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *models.Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored by [Manager.Load], if any.
func FromContext(ctx context.Context) (*models.Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*models.Session)
	return s, ok && s != nil
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
