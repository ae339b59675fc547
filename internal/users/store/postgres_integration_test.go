//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"usersapi/internal/users/models"
	"usersapi/internal/users/search"
	"usersapi/internal/users/store"
	"usersapi/pkg/platform/sentinel"
	"usersapi/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

func newTestUser(subject string) *models.UserProfile {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.UserProfile{
		KeycloakID:            subject,
		FirstName:             "Jane",
		LastName:              "Doe",
		Affiliation:           "Example University",
		Roles:                 []string{"researcher"},
		PortalUsages:          []string{"identifying_dataset"},
		CompletedRegistration: true,
		CreationDate:          now,
		UpdatedDate:           now,
	}
}

func (s *PostgresStoreSuite) TestInsertAndFind() {
	ctx := context.Background()

	inserted, err := s.store.Insert(ctx, newTestUser("kc-1"))
	s.Require().NoError(err)
	s.NotZero(inserted.ID)

	found, err := s.store.FindBySubject(ctx, "kc-1")
	s.Require().NoError(err)
	s.Equal(inserted.ID, found.ID)
	s.Equal([]string{"researcher"}, found.Roles)
}

// Concurrent creation for one identity must yield exactly one success; the
// rest surface the unique violation as a conflict.
func (s *PostgresStoreSuite) TestConcurrentInsertUniqueViolation() {
	ctx := context.Background()
	subject := "kc-race-" + uuid.NewString()
	const goroutines = 20

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Insert(ctx, newTestUser(subject))
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load())
	s.Equal(int32(goroutines-1), conflictCount.Load())
}

func (s *PostgresStoreSuite) TestUpdatePatchSemantics() {
	ctx := context.Background()
	_, err := s.store.Insert(ctx, newTestUser("kc-patch"))
	s.Require().NoError(err)

	newAff := "New Institute"
	updated, err := s.store.Update(ctx, "kc-patch", models.Patch{
		Affiliation: &newAff,
		UpdatedDate: time.Now().UTC().Truncate(time.Microsecond),
	})
	s.Require().NoError(err)
	s.Equal("New Institute", updated.Affiliation)
	s.Equal("Jane", updated.FirstName)
}

func (s *PostgresStoreSuite) TestFindAndCountContainment() {
	ctx := context.Background()

	multi := newTestUser("kc-multi")
	multi.Roles = []string{"researcher", "developer", "astronaut"}
	_, err := s.store.Insert(ctx, multi)
	s.Require().NoError(err)

	single := newTestUser("kc-single")
	single.Roles = []string{"researcher"}
	_, err = s.store.Insert(ctx, single)
	s.Require().NoError(err)

	s.Run("contains-all matches supersets", func() {
		rows, total, err := s.store.FindAndCount(ctx, &search.Filter{
			Roles: []string{"researcher", "developer"},
			Limit: search.DefaultPageSize,
		})
		s.Require().NoError(err)
		s.Equal(1, total)
		s.Equal("kc-multi", rows[0].KeycloakID)
	})

	s.Run("other matches out-of-universe sets", func() {
		rows, total, err := s.store.FindAndCount(ctx, &search.Filter{
			RolesOther:   true,
			RoleUniverse: []string{"researcher", "developer"},
			Limit:        search.DefaultPageSize,
		})
		s.Require().NoError(err)
		s.Equal(1, total)
		s.Equal("kc-multi", rows[0].KeycloakID)
	})

	s.Run("ilike match over name and affiliation", func() {
		rows, total, err := s.store.FindAndCount(ctx, &search.Filter{
			Match: "example uni",
			Limit: search.DefaultPageSize,
		})
		s.Require().NoError(err)
		s.Equal(2, total)
		s.Len(rows, 2)
	})

	s.Run("sorted pages are disjoint and stable", func() {
		page0, _, err := s.store.FindAndCount(ctx, &search.Filter{
			Sort:  []search.SortKey{{Field: "last_name", Direction: search.Ascending}},
			Limit: 1, Offset: 0,
		})
		s.Require().NoError(err)
		page1, _, err := s.store.FindAndCount(ctx, &search.Filter{
			Sort:  []search.SortKey{{Field: "last_name", Direction: search.Ascending}},
			Limit: 1, Offset: 1,
		})
		s.Require().NoError(err)
		s.Require().Len(page0, 1)
		s.Require().Len(page1, 1)
		s.NotEqual(page0[0].ID, page1[0].ID)
	})
}

func (s *PostgresStoreSuite) TestUpdateCategoriesBypassesDeletedFilter() {
	ctx := context.Background()

	user := newTestUser("kc-deleted")
	user.Deleted = true
	user.Roles = []string{"Community member"}
	inserted, err := s.store.Insert(ctx, user)
	s.Require().NoError(err)

	now := time.Now().UTC().Truncate(time.Microsecond)
	err = s.store.UpdateCategories(ctx, inserted.ID, []string{"community_member"}, []string{}, now)
	s.Require().NoError(err)

	all, err := s.store.ListAll(ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 1)
	s.Equal([]string{"community_member"}, all[0].Roles)
}

func (s *PostgresStoreSuite) TestExistsIncludesDeleted() {
	ctx := context.Background()

	user := newTestUser("kc-ex")
	user.Deleted = true
	_, err := s.store.Insert(ctx, user)
	s.Require().NoError(err)

	existence, err := s.store.Exists(ctx, "kc-ex")
	s.Require().NoError(err)
	s.True(existence.Exists)
	s.True(existence.CompletedRegistration)

	_, err = s.store.FindBySubject(ctx, "kc-ex")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
