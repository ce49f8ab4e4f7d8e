package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/serije/internal/models"
	"github.com/desertthunder/serije/internal/shared"
)

// SessionRepository persists server-held sessions keyed by cookie token.
type SessionRepository struct {
	db shared.DBTX
}

// NewSessionRepository creates a new [SessionRepository] with the given database connection or transaction
func NewSessionRepository(db shared.DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, s *models.Session) error {
	if s.Token == "" || s.UserID == "" {
		return fmt.Errorf("%w: session token and user id are required", shared.ErrInvalidInput)
	}

	query := `
		INSERT INTO sessions (token, user_id, username, created_at, expires_at) VALUES (?, ?, ?, ?, ?)
	`
	if _, err := r.db.ExecContext(ctx, query, s.Token, s.UserID, s.Username, s.CreatedAt.UTC(), s.ExpiresAt.UTC()); err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// Get retrieves a session by token that has not expired at now.
func (r *SessionRepository) Get(ctx context.Context, token string, now time.Time) (*models.Session, error) {
	query := `
		SELECT token, user_id, username, created_at, expires_at
		FROM sessions
		WHERE token = ? AND expires_at > ?
	`

	var s models.Session
	err := r.db.QueryRowContext(ctx, query, token, now.UTC()).Scan(&s.Token, &s.UserID, &s.Username, &s.CreatedAt, &s.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	return &s, nil
}

// Delete removes a session by token. Deleting an unknown token is not an error.
func (r *SessionRepository) Delete(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByUser removes every session of userID.
func (r *SessionRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}
	return result.RowsAffected()
}

// PurgeExpired removes sessions that expired at or before now.
func (r *SessionRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	return result.RowsAffected()
}
