// Package handlers contains the HTTP handler implementations for the
// PostureWatch API.
//
// This file implements the alert persistence API:
//   - Create, List (own alerts or by explicit user id)
//   - Mark one read, mark all read
//   - Route registration
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"posturewatch/internal/core"
	"posturewatch/internal/types"
)

// maxListLimit bounds the ?limit query parameter.
const maxListLimit = 500

// AlertRepo defines the data access contract for alerts. Every method is
// scoped to the owning user. Mirrors db.AlertRepository.
type AlertRepo interface {
	Create(ctx context.Context, userID string, in types.AlertInput) (*types.Alert, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*types.Alert, error)
	MarkRead(ctx context.Context, userID, alertID string) (*types.Alert, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// AlertEventPublisher announces newly stored alerts to downstream consumers.
// Optional; failures are logged and never fail the request.
type AlertEventPublisher interface {
	PublishAlertCreated(ctx context.Context, alert *types.Alert) error
}

// MarkAllReadResponse is the body of PATCH /v1/alerts/read/all.
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}

// AlertHandler serves /v1/alerts. The owning user always comes from the
// authenticated Actor, never from the request body.
type AlertHandler struct {
	repo      AlertRepo
	publisher AlertEventPublisher
	validator *core.Validator
	logger    *slog.Logger
}

// NewAlertHandler creates an AlertHandler. publisher may be nil.
func NewAlertHandler(repo AlertRepo, publisher AlertEventPublisher, v *core.Validator, l *slog.Logger) *AlertHandler {
	if l == nil {
		l = slog.Default()
	}
	return &AlertHandler{
		repo:      repo,
		publisher: publisher,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts alert routes on the provided chi.Router.
func (h *AlertHandler) RegisterRoutes(r chi.Router) {
	r.Route("/alerts", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Patch("/read/all", h.MarkAllRead)
		r.Get("/{userID}", h.ListForUser)
		r.Patch("/{id}/read", h.MarkRead)
	})
}

// Create handles POST /v1/alerts.
func (h *AlertHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := core.RequireActor(w, r)
	if !ok {
		return
	}

	var req types.AlertInput
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	alert, err := h.repo.Create(r.Context(), actor.ID, req)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "alert stored",
		"alert_id", alert.ID,
		"user_id", actor.ID,
		"has_image", alert.Image != "",
	)

	if h.publisher != nil {
		if err := h.publisher.PublishAlertCreated(r.Context(), alert); err != nil {
			h.logger.WarnContext(r.Context(), "alert event publish failed",
				"alert_id", alert.ID,
				"error", err,
			)
		}
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: alert})
}

// List handles GET /v1/alerts: the caller's alerts, newest first.
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := core.RequireActor(w, r)
	if !ok {
		return
	}
	h.list(w, r, actor.ID)
}

// ListForUser handles GET /v1/alerts/{userID}. The path user must be the
// caller.
func (h *AlertHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := core.RequireActor(w, r)
	if !ok {
		return
	}

	userID := chi.URLParam(r, "userID")
	if userID != actor.ID {
		core.Error(w, r, types.NewAppError(
			types.ErrCodePermissionUserMismatch,
			"cannot read alerts of another user",
			nil,
		))
		return
	}
	h.list(w, r, userID)
}

func (h *AlertHandler) list(w http.ResponseWriter, r *http.Request, userID string) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	alerts, err := h.repo.ListByUser(r.Context(), userID, limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: alerts})
}

// MarkRead handles PATCH /v1/alerts/{id}/read.
func (h *AlertHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := core.RequireActor(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField, "alert id is required", nil))
		return
	}

	alert, err := h.repo.MarkRead(r.Context(), actor.ID, id)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: alert})
}

// MarkAllRead handles PATCH /v1/alerts/read/all.
func (h *AlertHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := core.RequireActor(w, r)
	if !ok {
		return
	}

	n, err := h.repo.MarkAllRead(r.Context(), actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "alerts marked read", "user_id", actor.ID, "count", n)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: MarkAllReadResponse{Updated: n}})
}

// parseLimit returns 0 (repository default) for an empty value.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxListLimit {
		return 0, types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidParam,
			"limit must be an integer between 1 and "+strconv.Itoa(maxListLimit),
			err,
			map[string]any{"parameter": "limit"},
		)
	}
	return n, nil
}
