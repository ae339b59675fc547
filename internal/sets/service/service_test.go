package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"usersapi/internal/sets/models"
	"usersapi/internal/sets/store"
	dErrors "usersapi/pkg/domain-errors"
	"usersapi/pkg/requestcontext"
)

type SetsServiceSuite struct {
	suite.Suite
	store   *store.InMemoryStore
	service *Service
	ctx     context.Context
	now     time.Time
}

func TestSetsServiceSuite(t *testing.T) {
	suite.Run(t, new(SetsServiceSuite))
}

func (s *SetsServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.service = New(s.store)
	s.now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *SetsServiceSuite) payload(alias string, shared bool) *models.SetPayload {
	return &models.SetPayload{
		Alias:          &alias,
		Content:        json.RawMessage(`{"ids":[1,2,3]}`),
		SharedPublicly: &shared,
	}
}

func (s *SetsServiceSuite) TestCreate() {
	s.Run("stamps owner and timestamps", func() {
		set, err := s.service.Create(s.ctx, "kc-1", s.payload("my genes", false))
		s.Require().NoError(err)
		s.NotZero(set.ID)
		s.Equal("kc-1", set.KeycloakID)
		s.Equal(s.now, set.CreationDate)
		s.Equal(s.now, set.UpdatedDate)
	})

	s.Run("missing alias rejected", func() {
		_, err := s.service.Create(s.ctx, "kc-1", &models.SetPayload{Content: json.RawMessage(`{}`)})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("invalid content rejected", func() {
		alias := "broken"
		_, err := s.service.Create(s.ctx, "kc-1", &models.SetPayload{
			Alias:   &alias,
			Content: json.RawMessage(`{not json`),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *SetsServiceSuite) TestOwnershipScoping() {
	private, err := s.service.Create(s.ctx, "kc-owner", s.payload("private", false))
	s.Require().NoError(err)
	shared, err := s.service.Create(s.ctx, "kc-owner", s.payload("shared", true))
	s.Require().NoError(err)

	s.Run("owner reads both", func() {
		_, err := s.service.Get(s.ctx, "kc-owner", private.ID)
		s.NoError(err)
		_, err = s.service.Get(s.ctx, "kc-owner", shared.ID)
		s.NoError(err)
	})

	s.Run("stranger reads only the shared one", func() {
		_, err := s.service.Get(s.ctx, "kc-stranger", shared.ID)
		s.NoError(err)
		_, err = s.service.Get(s.ctx, "kc-stranger", private.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("list returns only owned sets", func() {
		sets, err := s.service.List(s.ctx, "kc-owner")
		s.Require().NoError(err)
		s.Len(sets, 2)

		sets, err = s.service.List(s.ctx, "kc-stranger")
		s.Require().NoError(err)
		s.Empty(sets)
	})

	s.Run("stranger cannot mutate a shared set", func() {
		_, err := s.service.Update(s.ctx, "kc-stranger", shared.ID, s.payload("hijacked", true))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

		err = s.service.Delete(s.ctx, "kc-stranger", shared.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *SetsServiceSuite) TestUpdateAndDelete() {
	set, err := s.service.Create(s.ctx, "kc-1", s.payload("v1", false))
	s.Require().NoError(err)

	later := requestcontext.WithTime(context.Background(), s.now.Add(time.Hour))
	updated, err := s.service.Update(later, "kc-1", set.ID, s.payload("v2", true))
	s.Require().NoError(err)
	s.Equal("v2", updated.Alias)
	s.True(updated.SharedPublicly)
	s.Equal(s.now.Add(time.Hour), updated.UpdatedDate)
	s.Equal(set.CreationDate, updated.CreationDate)

	s.Require().NoError(s.service.Delete(s.ctx, "kc-1", set.ID))
	_, err = s.service.Get(s.ctx, "kc-1", set.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
