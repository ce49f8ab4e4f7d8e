// package models defines the data model for the series catalog service
package models

import (
	"context"
	"time"
)

// Model defines the base interface for all persistent models in the series catalog service.
// Implementations include User and Favorite.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(ctx context.Context, model T) error                      // Create inserts a new model into the database
	Get(ctx context.Context, id string) (T, error)                  // Get retrieves a model by its ID
	Delete(ctx context.Context, id string) error                    // Delete removes a model from the database by its ID
	List(ctx context.Context, criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// base holds the identity and timestamps shared by persistent models.
type base struct {
	id        string
	sequence  int
	createdAt time.Time
}

func newBase(sequence int) base {
	return base{sequence: sequence, createdAt: time.Now().UTC()}
}

func (b *base) ID() string { return b.id }
func (b *base) SetID(id string) { b.id = id }
func (b *base) Sequence() int { return b.sequence }
func (b *base) SetSequence(seq int) { b.sequence = seq }
func (b *base) CreatedAt() time.Time { return b.createdAt }
func (b *base) SetCreatedAt(t time.Time) { b.createdAt = t }
