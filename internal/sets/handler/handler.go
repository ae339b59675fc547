// Package handler exposes the saved-set HTTP surface.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"usersapi/internal/platform/metrics"
	"usersapi/internal/platform/middleware"
	setModels "usersapi/internal/sets/models"
	"usersapi/internal/transport/shared"
	dErrors "usersapi/pkg/domain-errors"
	"usersapi/pkg/requestcontext"
)

// Service defines the saved-set operations the handler depends on.
type Service interface {
	Create(ctx context.Context, subject string, payload *setModels.SetPayload) (*setModels.UserSet, error)
	Get(ctx context.Context, subject string, id int64) (*setModels.UserSet, error)
	List(ctx context.Context, subject string) ([]*setModels.UserSet, error)
	Update(ctx context.Context, subject string, id int64, payload *setModels.SetPayload) (*setModels.UserSet, error)
	Delete(ctx context.Context, subject string, id int64) error
}

// Handler handles saved-set endpoints.
type Handler struct {
	logger       *slog.Logger
	sets         Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new sets Handler.
func New(
	sets Service,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		sets:         sets,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the saved-set routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	setsRouter := chi.NewRouter()
	setsRouter.Use(middleware.Recovery(h.logger))
	setsRouter.Use(middleware.RequestID)
	setsRouter.Use(middleware.Logger(h.logger))
	setsRouter.Use(middleware.Timeout(30 * time.Second))
	setsRouter.Use(middleware.ContentTypeJSON)
	setsRouter.Use(middleware.Latency(h.metrics))
	setsRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	setsRouter.Get("/", h.handleList)
	setsRouter.Post("/", h.handleCreate)
	setsRouter.Get("/{id}", h.handleGet)
	setsRouter.Put("/{id}", h.handleUpdate)
	setsRouter.Delete("/{id}", h.handleDelete)

	r.Mount("/user-sets", setsRouter)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sets, err := h.sets.List(ctx, requestcontext.Subject(ctx))
	if err != nil {
		h.respondError(w, ctx, "user set list failed", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, sets)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := decodePayload(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	created, err := h.sets.Create(ctx, requestcontext.Subject(ctx), payload)
	if err != nil {
		h.respondError(w, ctx, "user set creation failed", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := setID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	set, err := h.sets.Get(ctx, requestcontext.Subject(ctx), id)
	if err != nil {
		h.respondError(w, ctx, "user set fetch failed", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, set)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := setID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	payload, err := decodePayload(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	updated, err := h.sets.Update(ctx, requestcontext.Subject(ctx), id, payload)
	if err != nil {
		h.respondError(w, ctx, "user set update failed", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := setID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.sets.Delete(ctx, requestcontext.Subject(ctx), id); err != nil {
		h.respondError(w, ctx, "user set deletion failed", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) respondError(w http.ResponseWriter, ctx context.Context, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	} else {
		h.logger.WarnContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	shared.WriteError(w, err)
}

func decodePayload(r *http.Request) (*setModels.SetPayload, error) {
	var payload setModels.SetPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	return &payload, nil
}

func setID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeBadRequest, "set id must be an integer")
	}
	return id, nil
}
