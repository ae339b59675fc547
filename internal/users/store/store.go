// Package store persists user profile records. Implementations return
// sentinel errors for infrastructure facts; the service layer translates
// those into domain errors.
package store

import (
	"context"
	"time"

	"usersapi/internal/users/models"
	"usersapi/internal/users/search"
)

// Store executes structured queries against persisted user records.
//
// Writes rely on the database's row-level atomicity; there is no optimistic
// or pessimistic locking above that, so concurrent updates to the same
// record resolve last-write-wins on updated_date.
type Store interface {
	// Insert persists a new record and returns it with the store-assigned ID.
	// A duplicate keycloak_id among non-deleted records yields
	// sentinel.ErrConflict.
	Insert(ctx context.Context, user *models.UserProfile) (*models.UserProfile, error)

	// FindBySubject returns the non-deleted record for a keycloak subject,
	// or sentinel.ErrNotFound.
	FindBySubject(ctx context.Context, subject string) (*models.UserProfile, error)

	// FindAndCount executes a search filter and returns one page of rows
	// plus the total match count.
	FindAndCount(ctx context.Context, filter *search.Filter) ([]*models.UserProfile, int, error)

	// Update applies the non-nil patch fields to the non-deleted record for
	// a subject and returns the updated row, or sentinel.ErrNotFound.
	Update(ctx context.Context, subject string, patch models.Patch) (*models.UserProfile, error)

	// Exists reports whether any record (deleted or not) exists for a
	// subject and whether it completed registration.
	Exists(ctx context.Context, subject string) (models.Existence, error)

	// ListAll returns every record, deleted included. Used by the category
	// migration pass.
	ListAll(ctx context.Context) ([]*models.UserProfile, error)

	// UpdateCategories rewrites one record's category sets by numeric ID,
	// bypassing the deleted filter. Each call is an independent write.
	UpdateCategories(ctx context.Context, id int64, roles, usages []string, now time.Time) error
}
