package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/serije/internal/models"
	"github.com/desertthunder/serije/internal/shared"
)

// Store groups the repositories over one connection and runs multi-step
// operations atomically.
type Store struct {
	db *sql.DB
	q  shared.DBTX
}

// NewStore creates a [Store] backed by db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

func (s *Store) Users() *UserRepository         { return NewUserRepository(s.q) }
func (s *Store) Favorites() *FavoriteRepository { return NewFavoriteRepository(s.q) }
func (s *Store) Sessions() *SessionRepository   { return NewSessionRepository(s.q) }

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTx runs fn with a [Store] bound to a single transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
//
// Nested calls reuse the outer transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	if _, ok := s.q.(*sql.Tx); ok {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&Store{db: s.db, q: tx}); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateUser inserts user unless its username or email is already taken.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return s.InTx(ctx, func(tx *Store) error {
		users := tx.Users()

		taken, err := users.ExistsByUsername(ctx, user.Username())
		if err != nil {
			return err
		}
		if !taken {
			taken, err = users.ExistsByEmail(ctx, user.Email())
			if err != nil {
				return err
			}
		}
		if taken {
			return fmt.Errorf("%w: user %s", shared.ErrConflict, user.Username())
		}

		return users.Create(ctx, user)
	})
}

// UpdateUser loads the user by username, applies fn and persists the result.
func (s *Store) UpdateUser(ctx context.Context, username string, fn func(u *models.User) error) (*models.User, error) {
	var updated *models.User
	err := s.InTx(ctx, func(tx *Store) error {
		users := tx.Users()

		user, err := users.GetByUsername(ctx, username)
		if err != nil {
			return err
		}

		previousEmail := user.Email()
		if err := fn(user); err != nil {
			return err
		}

		if user.Email() != previousEmail {
			taken, err := users.ExistsByEmail(ctx, user.Email())
			if err != nil {
				return err
			}
			if taken {
				return fmt.Errorf("%w: email %s", shared.ErrConflict, user.Email())
			}
		}

		if err := users.Update(ctx, user); err != nil {
			return err
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteUser removes the user with all their favorites and sessions and
// returns the removed user.
func (s *Store) DeleteUser(ctx context.Context, username string) (*models.User, error) {
	var deleted *models.User
	err := s.InTx(ctx, func(tx *Store) error {
		user, err := tx.Users().GetByUsername(ctx, username)
		if err != nil {
			return err
		}

		if _, err := tx.Favorites().DeleteByUser(ctx, user.ID()); err != nil {
			return err
		}
		if _, err := tx.Sessions().DeleteByUser(ctx, user.ID()); err != nil {
			return err
		}
		if err := tx.Users().Delete(ctx, user.ID()); err != nil {
			return err
		}
		deleted = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// ReplaceFavorites swaps the whole favorites set of userID for favorites.
// Any failure leaves the previous set untouched.
func (s *Store) ReplaceFavorites(ctx context.Context, userID string, favorites []*models.Favorite) error {
	return s.InTx(ctx, func(tx *Store) error {
		repo := tx.Favorites()
		if _, err := repo.DeleteByUser(ctx, userID); err != nil {
			return err
		}

		for _, fav := range favorites {
			if fav.UserID() != userID {
				return fmt.Errorf("%w: favorite belongs to another user", shared.ErrInvalidInput)
			}
			if err := repo.Create(ctx, fav); err != nil {
				return err
			}
		}
		return nil
	})
}
