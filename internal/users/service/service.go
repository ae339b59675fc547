// Package service implements the user-directory engine: registration
// lifecycle, directory search, visibility policy and anonymizing deletion.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"usersapi/internal/audit"
	"usersapi/internal/users/cache"
	"usersapi/internal/users/categories"
	usersmetrics "usersapi/internal/users/metrics"
	"usersapi/internal/users/models"
	"usersapi/internal/users/search"
	"usersapi/internal/users/store"
	dErrors "usersapi/pkg/domain-errors"
	"usersapi/pkg/platform/sentinel"
	"usersapi/pkg/requestcontext"
)

const (
	profileImageExtension   = "jpeg"
	profileImageContentType = "image/jpeg"

	missingRegistrationFields = "Some required fields are missing to complete user registration"
)

// ObjectStorage is the collaborator interface for profile-image storage.
// Image operations are pass-throughs: the engine only builds the key and
// translates failures.
type ObjectStorage interface {
	PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// Service orchestrates all user-directory operations. It is stateless
// between requests; every operation is an independent unit of work.
type Service struct {
	store         store.Store
	images        ObjectStorage
	auditor       *audit.Publisher
	cache         *cache.SearchCache
	metrics       *usersmetrics.Metrics
	logger        *slog.Logger
	presignExpiry time.Duration
}

// Option configures optional service collaborators.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *usersmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAudit(p *audit.Publisher) Option {
	return func(s *Service) { s.auditor = p }
}

func WithSearchCache(c *cache.SearchCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithObjectStorage(images ObjectStorage, presignExpiry time.Duration) Option {
	return func(s *Service) {
		s.images = images
		s.presignExpiry = presignExpiry
	}
}

// New creates the user-directory service.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:         st,
		logger:        slog.Default(),
		presignExpiry: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs a paginated directory query. Every returned row carries only
// the restricted attribute set, regardless of who asks.
func (s *Service) Search(ctx context.Context, params search.Params) (*models.SearchResult, error) {
	filter, err := search.Build(params)
	if err != nil {
		return nil, err
	}

	if cached, hit, err := s.cache.Get(ctx, filter); err == nil && hit {
		s.metrics.IncSearchCacheHits()
		return cached, nil
	}

	rows, total, err := s.store.FindAndCount(ctx, filter)
	if err != nil {
		return nil, err
	}

	result := &models.SearchResult{
		Users: make([]*models.RestrictedProfile, 0, len(rows)),
		Total: total,
	}
	for _, row := range rows {
		result.Users = append(result.Users, row.Restricted())
	}

	s.metrics.IncSearches()
	if err := s.cache.Set(ctx, filter, result); err != nil {
		s.logger.WarnContext(ctx, "search cache write failed", "error", err)
	}
	return result, nil
}

// GetProfile fetches a profile for a caller. An empty target means the
// caller's own record. Non-owners get the restricted attribute set.
func (s *Service) GetProfile(ctx context.Context, caller, target string) (models.ProfileView, error) {
	subject := target
	if subject == "" {
		subject = caller
	}
	user, err := s.store.FindBySubject(ctx, subject)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return user.ViewFor(subject == caller), nil
}

// CheckExists reports whether any record exists for a subject and whether it
// completed registration, without exposing profile fields.
func (s *Service) CheckExists(ctx context.Context, subject string) (models.Existence, error) {
	return s.store.Exists(ctx, subject)
}

// Create inserts a new profile for the verified subject. Identity, ID and
// timestamps come from the server; anything the caller supplied for them was
// already discarded during payload decoding.
func (s *Service) Create(ctx context.Context, subject string, payload *models.RegistrationPayload) (*models.UserProfile, error) {
	now := requestcontext.Now(ctx)
	user := &models.UserProfile{
		KeycloakID:   subject,
		CreationDate: now,
		UpdatedDate:  now,
		Roles:        []string{},
		PortalUsages: []string{},
		// A payload that already carries all required consent fields is a
		// full registration.
		CompletedRegistration: payload.CanCompleteRegistration(),
	}
	applyPayload(user, payload)

	created, err := s.store.Insert(ctx, user)
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	s.metrics.IncProfilesCreated()
	s.auditor.Emit(ctx, audit.ActionProfileCreated, subject)
	s.invalidateSearchCache(ctx)
	return created, nil
}

// Update applies a partial overwrite to the caller's own record. Fields
// absent from the payload are left unchanged.
func (s *Service) Update(ctx context.Context, subject string, payload *models.RegistrationPayload) (*models.UserProfile, error) {
	updated, err := s.store.Update(ctx, subject, payloadPatch(payload, requestcontext.Now(ctx)))
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	s.invalidateSearchCache(ctx)
	return updated, nil
}

// CompleteRegistration validates the consent gate and flips the
// completed_registration flag. This is the only path that sets it.
func (s *Service) CompleteRegistration(ctx context.Context, subject string, payload *models.RegistrationPayload) (*models.UserProfile, error) {
	if !payload.CanCompleteRegistration() {
		return nil, dErrors.New(dErrors.CodeBadRequest, missingRegistrationFields)
	}

	patch := payloadPatch(payload, requestcontext.Now(ctx))
	completed := true
	patch.CompletedRegistration = &completed

	updated, err := s.store.Update(ctx, subject, patch)
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	s.metrics.IncRegistrationsCompleted()
	s.auditor.Emit(ctx, audit.ActionRegistrationCompleted, subject)
	s.invalidateSearchCache(ctx)
	return updated, nil
}

// Delete anonymizes the caller's record: every personally identifying field
// is overwritten with an independent random token and the record is marked
// deleted. The row stays forever; nothing links it back to the person.
// Deleting an already-deleted record returns NotFound (the identity key was
// scrambled by the first delete), which makes the operation idempotent in
// effect.
func (s *Service) Delete(ctx context.Context, subject string) error {
	patch := anonymizingPatch(requestcontext.Now(ctx))
	if _, err := s.store.Update(ctx, subject, patch); err != nil {
		return wrapStoreErr(err)
	}

	s.metrics.IncProfilesAnonymized()
	s.auditor.Emit(ctx, audit.ActionProfileAnonymized, subject)
	s.invalidateSearchCache(ctx)
	return nil
}

// PresignProfileImageUpload returns a URL for uploading the caller's profile
// image. The key is derived from the verified subject, so a caller can only
// ever write their own image.
func (s *Service) PresignProfileImageUpload(ctx context.Context, subject string) (*models.PresignedUpload, error) {
	if s.images == nil {
		return nil, dErrors.New(dErrors.CodeDependency, "profile image storage is not configured")
	}
	key := profileImageKey(subject)
	url, err := s.images.PresignUpload(ctx, key, profileImageContentType, s.presignExpiry)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeDependency, "could not presign profile image upload")
	}
	return &models.PresignedUpload{S3Key: key, PresignURL: url}, nil
}

// DeleteProfileImage removes the caller's profile image object.
func (s *Service) DeleteProfileImage(ctx context.Context, subject string) error {
	if s.images == nil {
		return dErrors.New(dErrors.CodeDependency, "profile image storage is not configured")
	}
	if err := s.images.Delete(ctx, profileImageKey(subject)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeDependency, "could not delete profile image")
	}
	return nil
}

func (s *Service) invalidateSearchCache(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "search cache invalidation failed", "error", err)
	}
}

func profileImageKey(subject string) string {
	return subject + "." + profileImageExtension
}

// applyPayload copies present payload fields onto a fresh profile, running
// category sets through the normalizer.
func applyPayload(user *models.UserProfile, payload *models.RegistrationPayload) {
	setString := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	setString(&user.FirstName, payload.FirstName)
	setString(&user.LastName, payload.LastName)
	setString(&user.Email, payload.Email)
	setString(&user.PublicEmail, payload.PublicEmail)
	setString(&user.Affiliation, payload.Affiliation)
	setString(&user.ERACommonsID, payload.ERACommonsID)
	setString(&user.NIHNedID, payload.NIHNedID)
	setString(&user.CommercialUseReason, payload.CommercialUseReason)
	setString(&user.LinkedIn, payload.LinkedIn)
	setString(&user.ExternalIndividualFullname, payload.ExternalIndividualFullname)
	setString(&user.ExternalIndividualEmail, payload.ExternalIndividualEmail)
	setString(&user.ProfileImageKey, payload.ProfileImageKey)
	if payload.Roles != nil {
		user.Roles = categories.NormalizeRoles(*payload.Roles)
	}
	if payload.PortalUsages != nil {
		user.PortalUsages = categories.NormalizeUsages(*payload.PortalUsages)
	}
	if payload.ConsentDate != nil {
		consent := *payload.ConsentDate
		user.ConsentDate = &consent
	}
	if payload.UnderstandDisclaimer != nil {
		user.UnderstandDisclaimer = *payload.UnderstandDisclaimer
	}
	if payload.AcceptedTerms != nil {
		user.AcceptedTerms = *payload.AcceptedTerms
	}
}

// payloadPatch converts a payload into a store patch, normalizing category
// sets. Immutable fields never appear here.
func payloadPatch(payload *models.RegistrationPayload, now time.Time) models.Patch {
	patch := models.Patch{
		FirstName:                  payload.FirstName,
		LastName:                   payload.LastName,
		Email:                      payload.Email,
		PublicEmail:                payload.PublicEmail,
		Affiliation:                payload.Affiliation,
		ERACommonsID:               payload.ERACommonsID,
		NIHNedID:                   payload.NIHNedID,
		CommercialUseReason:        payload.CommercialUseReason,
		LinkedIn:                   payload.LinkedIn,
		ExternalIndividualFullname: payload.ExternalIndividualFullname,
		ExternalIndividualEmail:    payload.ExternalIndividualEmail,
		ProfileImageKey:            payload.ProfileImageKey,
		ConsentDate:                payload.ConsentDate,
		UnderstandDisclaimer:       payload.UnderstandDisclaimer,
		AcceptedTerms:              payload.AcceptedTerms,
		UpdatedDate:                now,
	}
	if payload.Roles != nil {
		roles := categories.NormalizeRoles(*payload.Roles)
		patch.Roles = &roles
	}
	if payload.PortalUsages != nil {
		usages := categories.NormalizeUsages(*payload.PortalUsages)
		patch.PortalUsages = &usages
	}
	return patch
}

// anonymizingPatch overwrites every personally identifying field with an
// independent random token. No two fields share a token, so nothing is
// recoverable or correlatable afterwards.
func anonymizingPatch(now time.Time) models.Patch {
	scramble := func() *string {
		token := uuid.NewString()
		return &token
	}
	deleted := true
	return models.Patch{
		KeycloakID:                 scramble(),
		Email:                      scramble(),
		Affiliation:                scramble(),
		PublicEmail:                scramble(),
		NIHNedID:                   scramble(),
		ERACommonsID:               scramble(),
		FirstName:                  scramble(),
		LastName:                   scramble(),
		LinkedIn:                   scramble(),
		ExternalIndividualFullname: scramble(),
		ExternalIndividualEmail:    scramble(),
		Deleted:                    &deleted,
		UpdatedDate:                now,
	}
}

// wrapStoreErr translates store sentinels into domain errors. Anything else
// is a store failure and propagates unmodified; the transport layer turns it
// into an opaque 500.
func wrapStoreErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "user does not exist")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "user already exists")
	default:
		return err
	}
}
