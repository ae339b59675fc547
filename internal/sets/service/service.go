// Package service implements saved-set operations.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"usersapi/internal/sets/models"
	"usersapi/internal/sets/store"
	dErrors "usersapi/pkg/domain-errors"
	"usersapi/pkg/platform/sentinel"
	"usersapi/pkg/requestcontext"
)

// Service orchestrates saved-set CRUD. Ownership scoping lives in the
// store; the service validates payloads and stamps timestamps.
type Service struct {
	store  store.Store
	logger *slog.Logger
}

// Option configures optional service collaborators.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New creates the saved-set service.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new set for the subject.
func (s *Service) Create(ctx context.Context, subject string, payload *models.SetPayload) (*models.UserSet, error) {
	if err := validatePayload(payload); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	set := &models.UserSet{
		KeycloakID:   subject,
		Alias:        *payload.Alias,
		Content:      payload.Content,
		CreationDate: now,
		UpdatedDate:  now,
	}
	if payload.SharedPublicly != nil {
		set.SharedPublicly = *payload.SharedPublicly
	}
	return s.store.Insert(ctx, set)
}

// Get returns a set the subject may read: their own or any shared one.
func (s *Service) Get(ctx context.Context, subject string, id int64) (*models.UserSet, error) {
	set, err := s.store.FindByID(ctx, id, subject)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return set, nil
}

// List returns all sets the subject owns.
func (s *Service) List(ctx context.Context, subject string) ([]*models.UserSet, error) {
	return s.store.ListByOwner(ctx, subject)
}

// Update overwrites a set the subject owns.
func (s *Service) Update(ctx context.Context, subject string, id int64, payload *models.SetPayload) (*models.UserSet, error) {
	if err := validatePayload(payload); err != nil {
		return nil, err
	}

	set := &models.UserSet{
		Alias:       *payload.Alias,
		Content:     payload.Content,
		UpdatedDate: requestcontext.Now(ctx),
	}
	if payload.SharedPublicly != nil {
		set.SharedPublicly = *payload.SharedPublicly
	}

	updated, err := s.store.Update(ctx, id, subject, set)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return updated, nil
}

// Delete removes a set the subject owns.
func (s *Service) Delete(ctx context.Context, subject string, id int64) error {
	if err := s.store.Delete(ctx, id, subject); err != nil {
		return wrapStoreErr(err)
	}
	return nil
}

func validatePayload(payload *models.SetPayload) error {
	if payload.Alias == nil || *payload.Alias == "" {
		return dErrors.New(dErrors.CodeBadRequest, "alias is required")
	}
	if len(payload.Content) == 0 || !json.Valid(payload.Content) {
		return dErrors.New(dErrors.CodeBadRequest, "content must be valid JSON")
	}
	return nil
}

func wrapStoreErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "user set does not exist")
	}
	return err
}
