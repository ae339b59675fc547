package service

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"usersapi/internal/users/categories"
	"usersapi/pkg/requestcontext"
)

// migrationConcurrency bounds concurrent category rewrites so a bulk pass
// does not saturate the connection pool.
const migrationConcurrency = 8

// MigrationFailure records one record the bulk pass could not rewrite.
type MigrationFailure struct {
	UserID int64  `json:"user_id"`
	Reason string `json:"reason"`
}

// MigrationReport summarizes one bulk re-normalization pass.
type MigrationReport struct {
	Total    int                `json:"total"`
	Updated  int                `json:"updated"`
	Failures []MigrationFailure `json:"failures,omitempty"`
}

// RenormalizeAll rewrites legacy category labels to canonical codes across
// every record, including deleted ones. Each record is an independent write;
// one failure never rolls back or blocks the rest. The pass is idempotent
// because the normalizer passes canonical codes through unchanged.
func (s *Service) RenormalizeAll(ctx context.Context) (*MigrationReport, error) {
	users, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	report := &MigrationReport{Total: len(users)}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(migrationConcurrency)

	for _, user := range users {
		roles := categories.NormalizeRoles(user.Roles)
		usages := categories.NormalizeUsages(user.PortalUsages)
		if equalSets(roles, user.Roles) && equalSets(usages, user.PortalUsages) {
			s.metrics.AddMigrationRecords("unchanged", 1)
			continue
		}

		id := user.ID
		g.Go(func() error {
			if err := s.store.UpdateCategories(gctx, id, roles, usages, now); err != nil {
				s.logger.ErrorContext(gctx, "category rewrite failed", "user_id", id, "error", err)
				s.metrics.AddMigrationRecords("failed", 1)
				mu.Lock()
				report.Failures = append(report.Failures, MigrationFailure{
					UserID: id,
					Reason: err.Error(),
				})
				mu.Unlock()
				return nil
			}
			s.metrics.AddMigrationRecords("updated", 1)
			mu.Lock()
			report.Updated++
			mu.Unlock()
			return nil
		})
	}

	// Workers swallow per-record errors, so Wait only reports context
	// cancellation.
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("category migration interrupted: %w", err)
	}

	s.invalidateSearchCache(ctx)
	s.logger.InfoContext(ctx, "category migration finished",
		"total", report.Total, "updated", report.Updated, "failed", len(report.Failures))
	return report, nil
}

// equalSets compares ordered category slices; the normalizer preserves
// order, so element-wise equality means the record needs no write.
func equalSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
