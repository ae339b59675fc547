// Package handler exposes the user-directory HTTP surface.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"usersapi/internal/platform/metrics"
	"usersapi/internal/platform/middleware"
	"usersapi/internal/transport/shared"
	"usersapi/internal/users/models"
	"usersapi/internal/users/search"
	dErrors "usersapi/pkg/domain-errors"
	"usersapi/pkg/requestcontext"
)

// Service defines the user-directory operations the handler depends on.
type Service interface {
	Search(ctx context.Context, params search.Params) (*models.SearchResult, error)
	GetProfile(ctx context.Context, caller, target string) (models.ProfileView, error)
	CheckExists(ctx context.Context, subject string) (models.Existence, error)
	Create(ctx context.Context, subject string, payload *models.RegistrationPayload) (*models.UserProfile, error)
	Update(ctx context.Context, subject string, payload *models.RegistrationPayload) (*models.UserProfile, error)
	CompleteRegistration(ctx context.Context, subject string, payload *models.RegistrationPayload) (*models.UserProfile, error)
	Delete(ctx context.Context, subject string) error
	PresignProfileImageUpload(ctx context.Context, subject string) (*models.PresignedUpload, error)
	DeleteProfileImage(ctx context.Context, subject string) error
}

// Handler handles user-directory endpoints.
type Handler struct {
	logger       *slog.Logger
	users        Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new users Handler.
func New(
	users Service,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		users:        users,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the user routes with the chi router. Every route sits
// behind token validation; there is no anonymous surface.
func (h *Handler) Register(r chi.Router) {
	usersRouter := chi.NewRouter()
	usersRouter.Use(middleware.Recovery(h.logger))
	usersRouter.Use(middleware.RequestID)
	usersRouter.Use(middleware.Logger(h.logger))
	usersRouter.Use(middleware.Timeout(30 * time.Second))
	usersRouter.Use(middleware.ContentTypeJSON)
	usersRouter.Use(middleware.Latency(h.metrics))
	usersRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	usersRouter.Get("/search", h.handleSearch)
	usersRouter.Get("/exists/{id}", h.handleExists)
	usersRouter.Get("/image/presigned", h.handlePresignImage)
	usersRouter.Delete("/image", h.handleDeleteImage)
	usersRouter.Get("/{id}", h.handleGetProfile)
	usersRouter.Get("/", h.handleGetProfile)
	usersRouter.Post("/", h.handleCreate)
	usersRouter.Put("/complete-registration", h.handleCompleteRegistration)
	usersRouter.Put("/", h.handleUpdate)
	usersRouter.Delete("/", h.handleDelete)

	r.Mount("/users", usersRouter)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params, err := parseSearchParams(r)
	if err != nil {
		h.warn(ctx, "invalid search request", err)
		shared.WriteError(w, err)
		return
	}

	result, err := h.users.Search(ctx, params)
	if err != nil {
		h.respondError(w, ctx, "user search failed", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

// handleGetProfile serves both GET /users (own record, full attribute set)
// and GET /users/{id} (restricted for non-owners).
func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.Subject(ctx)
	target := chi.URLParam(r, "id")

	view, err := h.users.GetProfile(ctx, caller, target)
	if err != nil {
		h.respondError(w, ctx, "profile fetch failed", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleExists(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	existence, err := h.users.CheckExists(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, ctx, "existence check failed", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, existence)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := decodePayload(r)
	if err != nil {
		h.warn(ctx, "invalid create request", err)
		shared.WriteError(w, err)
		return
	}

	created, err := h.users.Create(ctx, requestcontext.Subject(ctx), payload)
	if err != nil {
		h.respondError(w, ctx, "profile creation failed", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := decodePayload(r)
	if err != nil {
		h.warn(ctx, "invalid update request", err)
		shared.WriteError(w, err)
		return
	}

	updated, err := h.users.Update(ctx, requestcontext.Subject(ctx), payload)
	if err != nil {
		h.respondError(w, ctx, "profile update failed", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleCompleteRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := decodePayload(r)
	if err != nil {
		h.warn(ctx, "invalid registration request", err)
		shared.WriteError(w, err)
		return
	}

	completed, err := h.users.CompleteRegistration(ctx, requestcontext.Subject(ctx), payload)
	if err != nil {
		h.respondError(w, ctx, "registration completion failed", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, completed)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.users.Delete(ctx, requestcontext.Subject(ctx)); err != nil {
		h.respondError(w, ctx, "profile deletion failed", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) handlePresignImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	upload, err := h.users.PresignProfileImageUpload(ctx, requestcontext.Subject(ctx))
	if err != nil {
		h.respondError(w, ctx, "image presign failed", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, upload)
}

func (h *Handler) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.users.DeleteProfileImage(ctx, requestcontext.Subject(ctx)); err != nil {
		h.respondError(w, ctx, "image deletion failed", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// respondError logs at the right severity and writes the error envelope.
// Coded errors carry a client-safe message; anything uncoded becomes an
// opaque 500.
func (h *Handler) respondError(w http.ResponseWriter, ctx context.Context, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	} else {
		h.warn(ctx, msg, err)
	}
	shared.WriteError(w, err)
}

func (h *Handler) warn(ctx context.Context, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
}

// decodePayload reads a registration payload. Unknown fields are dropped by
// the decoder, which is how caller-supplied id, keycloak_id,
// completed_registration and creation_date get stripped: the payload type
// simply has no slots for them.
func decodePayload(r *http.Request) (*models.RegistrationPayload, error) {
	var payload models.RegistrationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	return &payload, nil
}

// parseSearchParams maps the search query string onto search.Params.
// Multi-valued params accept both repetition and comma separation.
func parseSearchParams(r *http.Request) (search.Params, error) {
	q := r.URL.Query()

	params := search.Params{
		PageSize:      search.DefaultPageSize,
		Match:         q.Get("match"),
		Sort:          multiValue(q["sort"]),
		Roles:         multiValue(q["roles"]),
		Usages:        multiValue(q["dataUses"]),
		RoleUniverse:  multiValue(q["roleOptions"]),
		UsageUniverse: multiValue(q["usageOptions"]),
	}

	if raw := q.Get("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return search.Params{}, dErrors.New(dErrors.CodeBadRequest, "pageSize must be an integer")
		}
		params.PageSize = n
	}
	if raw := q.Get("pageIndex"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return search.Params{}, dErrors.New(dErrors.CodeBadRequest, "pageIndex must be an integer")
		}
		params.PageIndex = n
	}
	return params, nil
}

func multiValue(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
