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

const favoriteColumns = `id, sequence, user_id, series_id, name, poster_path, created_at`

// FavoriteRepository implements [models.Repository] for [models.Favorite] persistence.
//
// A user can hold a given series at most once.
type FavoriteRepository struct {
	db shared.DBTX
}

// NewFavoriteRepository creates a new [FavoriteRepository] with the given database connection or transaction
func NewFavoriteRepository(db shared.DBTX) *FavoriteRepository {
	return &FavoriteRepository{db: db}
}

// Create inserts a new favorite with generated ID and sequence.
func (r *FavoriteRepository) Create(ctx context.Context, fav *models.Favorite) error {
	if err := fav.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "favorites")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	fav.SetID(shared.GenerateID())
	fav.SetSequence(sequence)

	query := `
		INSERT INTO favorites (` + favoriteColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		fav.ID(), sequence, fav.UserID(), fav.SeriesID(), fav.Name(), fav.PosterPath(), fav.CreatedAt(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: series %d for user %s", shared.ErrConflict, fav.SeriesID(), fav.UserID())
	}
	if err != nil {
		return fmt.Errorf("failed to insert favorite: %w", err)
	}

	return nil
}

// Get retrieves a favorite by ID
func (r *FavoriteRepository) Get(ctx context.Context, id string) (*models.Favorite, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+favoriteColumns+` FROM favorites WHERE id = ?`, id)
	fav, err := scanFavorite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: favorite %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query favorite: %w", err)
	}
	return fav, nil
}

// GetForUser retrieves a favorite by ID only when userID owns it.
func (r *FavoriteRepository) GetForUser(ctx context.Context, userID, id string) (*models.Favorite, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+favoriteColumns+` FROM favorites WHERE id = ? AND user_id = ?`, id, userID,
	)
	fav, err := scanFavorite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: favorite %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query favorite: %w", err)
	}
	return fav, nil
}

// UpdateMetadata stores the cached TMDB name and poster path of fav.
func (r *FavoriteRepository) UpdateMetadata(ctx context.Context, fav *models.Favorite) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE favorites SET name = ?, poster_path = ? WHERE id = ?`,
		fav.Name(), fav.PosterPath(), fav.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update favorite: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: favorite %s", shared.ErrNotFound, fav.ID())
	}
	return nil
}

// Delete removes a favorite by ID
func (r *FavoriteRepository) Delete(ctx context.Context, id string) error {
	return r.deleteOne(ctx, `DELETE FROM favorites WHERE id = ?`, id)
}

// DeleteForUser removes a favorite by ID only when userID owns it.
func (r *FavoriteRepository) DeleteForUser(ctx context.Context, userID, id string) error {
	return r.deleteOne(ctx, `DELETE FROM favorites WHERE id = ? AND user_id = ?`, id, userID)
}

func (r *FavoriteRepository) deleteOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete favorite: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: favorite %v", shared.ErrNotFound, args[0])
	}

	return nil
}

// DeleteByUser removes every favorite owned by userID and returns how many were removed.
func (r *FavoriteRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM favorites WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete favorites: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows, nil
}

// ListByUser retrieves the favorites owned by userID, ordered by sequence.
func (r *FavoriteRepository) ListByUser(ctx context.Context, userID string) ([]*models.Favorite, error) {
	return r.List(ctx, map[string]any{"user_id": userID})
}

// List retrieves all favorites matching the given criteria ("user_id", "series_id"), ordered by sequence
func (r *FavoriteRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Favorite, error) {
	query := `SELECT ` + favoriteColumns + ` FROM favorites WHERE 1 = 1`
	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	if seriesID, ok := criteria["series_id"].(int); ok && seriesID > 0 {
		query += " AND series_id = ?"
		args = append(args, seriesID)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer rows.Close()

	favorites := []*models.Favorite{}
	for rows.Next() {
		fav, err := scanFavorite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		favorites = append(favorites, fav)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return favorites, nil
}

func scanFavorite(s scanner) (*models.Favorite, error) {
	var (
		id, userID, name, poster string
		sequence, seriesID       int
		createdAt                time.Time
	)

	if err := s.Scan(&id, &sequence, &userID, &seriesID, &name, &poster, &createdAt); err != nil {
		return nil, err
	}

	fav := models.NewFavorite(sequence, userID, seriesID, name, poster)
	fav.SetID(id)
	fav.SetCreatedAt(createdAt)
	return fav, nil
}
