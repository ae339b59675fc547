package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"usersapi/internal/platform/logger"
	"usersapi/internal/users/models"
	"usersapi/internal/users/search"
	dErrors "usersapi/pkg/domain-errors"
	"usersapi/pkg/testutil"
)

// stubValidator accepts the fixed token "valid" and maps it to a subject.
type stubValidator struct {
	subject string
}

func (v *stubValidator) ValidateToken(token string) (string, error) {
	if token == "valid" {
		return v.subject, nil
	}
	return "", errors.New("token verification failed")
}

// stubService scripts per-operation results for handler tests.
type stubService struct {
	searchResult *models.SearchResult
	searchErr    error
	profile      models.ProfileView
	profileErr   error
	existence    models.Existence
	created      *models.UserProfile
	createErr    error
	updated      *models.UserProfile
	updateErr    error
	completeErr  error
	deleteErr    error
	presigned    *models.PresignedUpload
	presignErr   error

	gotSubject string
	gotTarget  string
	gotParams  search.Params
}

func (f *stubService) Search(_ context.Context, params search.Params) (*models.SearchResult, error) {
	f.gotParams = params
	return f.searchResult, f.searchErr
}

func (f *stubService) GetProfile(_ context.Context, caller, target string) (models.ProfileView, error) {
	f.gotSubject, f.gotTarget = caller, target
	return f.profile, f.profileErr
}

func (f *stubService) CheckExists(_ context.Context, subject string) (models.Existence, error) {
	f.gotTarget = subject
	return f.existence, nil
}

func (f *stubService) Create(_ context.Context, subject string, _ *models.RegistrationPayload) (*models.UserProfile, error) {
	f.gotSubject = subject
	return f.created, f.createErr
}

func (f *stubService) Update(_ context.Context, subject string, _ *models.RegistrationPayload) (*models.UserProfile, error) {
	f.gotSubject = subject
	return f.updated, f.updateErr
}

func (f *stubService) CompleteRegistration(_ context.Context, subject string, _ *models.RegistrationPayload) (*models.UserProfile, error) {
	f.gotSubject = subject
	return f.updated, f.completeErr
}

func (f *stubService) Delete(_ context.Context, subject string) error {
	f.gotSubject = subject
	return f.deleteErr
}

func (f *stubService) PresignProfileImageUpload(_ context.Context, subject string) (*models.PresignedUpload, error) {
	f.gotSubject = subject
	return f.presigned, f.presignErr
}

func (f *stubService) DeleteProfileImage(_ context.Context, subject string) error {
	f.gotSubject = subject
	return f.deleteErr
}

type UsersHandlerSuite struct {
	suite.Suite
	service *stubService
	router  chi.Router
}

func TestUsersHandlerSuite(t *testing.T) {
	suite.Run(t, new(UsersHandlerSuite))
}

func (s *UsersHandlerSuite) SetupTest() {
	s.service = &stubService{
		searchResult: &models.SearchResult{Users: []*models.RestrictedProfile{}},
		profile:      &models.UserProfile{KeycloakID: "kc-1"},
		created:      &models.UserProfile{ID: 1, KeycloakID: "kc-1"},
		updated:      &models.UserProfile{ID: 1, KeycloakID: "kc-1"},
		presigned:    &models.PresignedUpload{S3Key: "kc-1.jpeg", PresignURL: "https://bucket/url"},
	}
	s.router = chi.NewRouter()
	h := New(s.service, logger.New(), nil, &stubValidator{subject: "kc-1"})
	h.Register(s.router)
}

// =============================================================================
// Authentication boundary
// =============================================================================

func (s *UsersHandlerSuite) TestRequiresAuth() {
	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/users/search"},
		{http.MethodGet, "/users"},
		{http.MethodPost, "/users"},
		{http.MethodPut, "/users"},
		{http.MethodPut, "/users/complete-registration"},
		{http.MethodDelete, "/users"},
		{http.MethodGet, "/users/image/presigned"},
		{http.MethodDelete, "/users/image"},
		{http.MethodGet, "/users/exists/kc-2"},
	}
	for _, route := range routes {
		req := testutil.NewRequest(s.T(), route.method, route.path)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "Forbidden")
	}
}

func (s *UsersHandlerSuite) TestInvalidTokenForbidden() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/users")
	req.Header.Set("Authorization", "Bearer forged")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusForbidden)
}

// =============================================================================
// Routing + success envelopes
// =============================================================================

func (s *UsersHandlerSuite) TestGetOwnProfile() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/users")
	req.Header.Set("Authorization", "Bearer valid")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	s.Equal("kc-1", s.service.gotSubject)
	s.Empty(s.service.gotTarget)
}

func (s *UsersHandlerSuite) TestGetProfileByID() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/users/kc-other")
	req.Header.Set("Authorization", "Bearer valid")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	s.Equal("kc-other", s.service.gotTarget)
}

func (s *UsersHandlerSuite) TestCreateReturns201() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/users", map[string]any{"first_name": "Jane"})
	req.Header.Set("Authorization", "Bearer valid")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	s.Equal("kc-1", s.service.gotSubject)
}

func (s *UsersHandlerSuite) TestDeleteReturnsSuccess() {
	req := testutil.NewRequest(s.T(), http.MethodDelete, "/users")
	req.Header.Set("Authorization", "Bearer valid")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	body := testutil.UnmarshalResponse[map[string]bool](s.T(), rr)
	s.True((*body)["success"])
}

func (s *UsersHandlerSuite) TestPresignedImage() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/users/image/presigned")
	req.Header.Set("Authorization", "Bearer valid")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	upload := testutil.UnmarshalResponse[models.PresignedUpload](s.T(), rr)
	s.Equal("kc-1.jpeg", upload.S3Key)
	s.Equal("https://bucket/url", upload.PresignURL)
}

func (s *UsersHandlerSuite) TestSearchParamParsing() {
	req := testutil.NewRequest(s.T(), http.MethodGet,
		"/users/search?pageSize=10&pageIndex=2&match=smith&roles=researcher,other&roleOptions=researcher&roleOptions=developer&sort=last_name:asc")
	req.Header.Set("Authorization", "Bearer valid")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	s.Equal(10, s.service.gotParams.PageSize)
	s.Equal(2, s.service.gotParams.PageIndex)
	s.Equal("smith", s.service.gotParams.Match)
	s.Equal([]string{"researcher", "other"}, s.service.gotParams.Roles)
	s.Equal([]string{"researcher", "developer"}, s.service.gotParams.RoleUniverse)
	s.Equal([]string{"last_name:asc"}, s.service.gotParams.Sort)
}

// =============================================================================
// Error envelopes
// =============================================================================

func (s *UsersHandlerSuite) TestMalformedBodyIs400() {
	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/users", "{not json")
	req.Header.Set("Authorization", "Bearer valid")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid request body")
}

func (s *UsersHandlerSuite) TestNonNumericPagingIs400() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/users/search?pageSize=ten")
	req.Header.Set("Authorization", "Bearer valid")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
}

func (s *UsersHandlerSuite) TestNotFoundMapsTo404() {
	s.service.profileErr = dErrors.New(dErrors.CodeNotFound, "user does not exist")
	req := testutil.NewRequest(s.T(), http.MethodGet, "/users/kc-gone")
	req.Header.Set("Authorization", "Bearer valid")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "user does not exist")
}

func (s *UsersHandlerSuite) TestConflictMapsTo409() {
	s.service.createErr = dErrors.New(dErrors.CodeConflict, "user already exists")
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/users", map[string]any{})
	req.Header.Set("Authorization", "Bearer valid")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusConflict)
}

func (s *UsersHandlerSuite) TestMissingRegistrationFieldsIs400() {
	s.service.completeErr = dErrors.New(dErrors.CodeBadRequest,
		"Some required fields are missing to complete user registration")
	req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/users/complete-registration", map[string]any{})
	req.Header.Set("Authorization", "Bearer valid")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest,
		"Some required fields are missing to complete user registration")
}

func (s *UsersHandlerSuite) TestUnexpectedErrorIsOpaque500() {
	s.service.searchErr = errors.New("pq: connection reset by peer")
	req := testutil.NewRequest(s.T(), http.MethodGet, "/users/search")
	req.Header.Set("Authorization", "Bearer valid")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusInternalServerError, "Internal Server Error")
}

func (s *UsersHandlerSuite) TestDependencyFailureIs400() {
	s.service.presignErr = dErrors.New(dErrors.CodeDependency, "could not presign profile image upload")
	req := testutil.NewRequest(s.T(), http.MethodGet, "/users/image/presigned")
	req.Header.Set("Authorization", "Bearer valid")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
}
