package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"usersapi/internal/users/models"
	"usersapi/internal/users/store"
	"usersapi/pkg/requestcontext"
)

// failingCategoriesStore injects write failures for chosen record ids.
type failingCategoriesStore struct {
	store.Store
	failIDs map[int64]bool
}

func (f *failingCategoriesStore) UpdateCategories(ctx context.Context, id int64, roles, usages []string, now time.Time) error {
	if f.failIDs[id] {
		return errors.New("simulated write failure")
	}
	return f.Store.UpdateCategories(ctx, id, roles, usages, now)
}

type MigrationSuite struct {
	suite.Suite
	store *store.InMemoryStore
	ctx   context.Context
	now   time.Time
}

func TestMigrationSuite(t *testing.T) {
	suite.Run(t, new(MigrationSuite))
}

func (s *MigrationSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.now = time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *MigrationSuite) seed(subject string, roles []string, deleted bool) *models.UserProfile {
	user, err := s.store.Insert(s.ctx, &models.UserProfile{
		KeycloakID:            subject,
		Roles:                 roles,
		PortalUsages:          []string{},
		CompletedRegistration: true,
		Deleted:               deleted,
		CreationDate:          s.now.Add(-time.Hour),
		UpdatedDate:           s.now.Add(-time.Hour),
	})
	s.Require().NoError(err)
	return user
}

func (s *MigrationSuite) TestRenormalizeAll() {
	s.Run("rewrites legacy labels including deleted records", func() {
		s.seed("kc-legacy", []string{"Community member"}, false)
		s.seed("kc-deleted", []string{"Federal Employee"}, true)
		s.seed("kc-clean", []string{"researcher"}, false)

		report, err := New(s.store).RenormalizeAll(s.ctx)
		s.Require().NoError(err)
		s.Equal(3, report.Total)
		s.Equal(2, report.Updated)
		s.Empty(report.Failures)

		all, err := s.store.ListAll(s.ctx)
		s.Require().NoError(err)
		for _, u := range all {
			for _, role := range u.Roles {
				s.Contains([]string{"community_member", "federal_employee", "researcher"}, role)
			}
		}
	})

	s.Run("idempotent second pass writes nothing", func() {
		s.seed("kc-idem", []string{"Community member"}, false)
		svc := New(s.store)

		first, err := svc.RenormalizeAll(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, first.Updated)

		second, err := svc.RenormalizeAll(s.ctx)
		s.Require().NoError(err)
		s.Zero(second.Updated)
	})

	s.Run("one failure never aborts the rest", func() {
		bad := s.seed("kc-bad", []string{"Community member"}, false)
		s.seed("kc-good", []string{"Federal Employee"}, false)

		wrapped := &failingCategoriesStore{Store: s.store, failIDs: map[int64]bool{bad.ID: true}}
		report, err := New(wrapped).RenormalizeAll(s.ctx)
		s.Require().NoError(err)

		s.Equal(1, report.Updated)
		s.Require().Len(report.Failures, 1)
		s.Equal(bad.ID, report.Failures[0].UserID)
		s.Contains(report.Failures[0].Reason, "simulated write failure")

		all, err := s.store.ListAll(s.ctx)
		s.Require().NoError(err)
		for _, u := range all {
			if u.KeycloakID == "kc-good" {
				s.Equal([]string{"federal_employee"}, u.Roles)
			}
			if u.KeycloakID == "kc-bad" {
				s.Equal([]string{"Community member"}, u.Roles)
			}
		}
	})
}
