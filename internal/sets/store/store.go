// Package store persists saved sets.
package store

import (
	"context"

	"usersapi/internal/sets/models"
)

// Store is the persistence contract for saved sets. Read and write scoping
// by owner happens here, not in the service.
type Store interface {
	// Insert stores a new set and returns it with the assigned id.
	Insert(ctx context.Context, set *models.UserSet) (*models.UserSet, error)

	// FindByID returns a set readable by the subject: their own, or any
	// set marked shared. Wraps sentinel.ErrNotFound when absent.
	FindByID(ctx context.Context, id int64, subject string) (*models.UserSet, error)

	// ListByOwner returns all sets owned by the subject.
	ListByOwner(ctx context.Context, subject string) ([]*models.UserSet, error)

	// Update overwrites mutable fields of a set owned by the subject.
	// Wraps sentinel.ErrNotFound when the subject owns no such set.
	Update(ctx context.Context, id int64, subject string, set *models.UserSet) (*models.UserSet, error)

	// Delete removes a set owned by the subject. Wraps
	// sentinel.ErrNotFound when the subject owns no such set.
	Delete(ctx context.Context, id int64, subject string) error
}
