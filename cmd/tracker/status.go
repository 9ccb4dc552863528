package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"posturewatch/internal/core"
	"posturewatch/internal/observer"
	"posturewatch/internal/pipeline"
	"posturewatch/internal/types"
)

// alertListResponse is the body of GET /alerts.
type alertListResponse struct {
	Alerts []types.Alert `json:"alerts"`
	Unread int           `json:"unread"`
}

// statusHandler serves the local status panel and notification list.
type statusHandler struct {
	status  *pipeline.StatusBoard
	list    *observer.AlertList
	updates observer.Observer
	logger  *slog.Logger
}

// newStatusRouter builds the tracker's local HTTP API. Mark-read updates go
// through updates so every observer sees them. metricsHandler may be nil.
func newStatusRouter(status *pipeline.StatusBoard, list *observer.AlertList, updates observer.Observer, metricsHandler http.Handler, logger *slog.Logger) http.Handler {
	h := &statusHandler{status: status, list: list, updates: updates, logger: logger}

	r := chi.NewRouter()
	r.Use(core.RequestIDMiddleware)
	r.Use(core.RequestLogger(logger, nil))
	r.Use(core.NewCORSMiddleware([]string{"*"}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		core.JSON(w, r, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Get("/status", h.getStatus)
	r.Route("/alerts", func(r chi.Router) {
		r.Get("/", h.listAlerts)
		r.Patch("/read/all", h.markAllRead)
		r.Patch("/{id}/read", h.markRead)
	})
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}
	return r
}

func (h *statusHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: h.status.Snapshot()})
}

func (h *statusHandler) listAlerts(w http.ResponseWriter, r *http.Request) {
	h.writeList(w, r)
}

func (h *statusHandler) markRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.list.Get(id); !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundAlert, "alert not found", nil))
		return
	}

	if err := h.updates.Apply(r.Context(), observer.Update{Kind: observer.MarkRead, AlertID: id}); err != nil {
		h.logger.WarnContext(r.Context(), "mark read update failed", "alert_id", id, "error", err)
	}

	alert, _ := h.list.Get(id)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: alert})
}

func (h *statusHandler) markAllRead(w http.ResponseWriter, r *http.Request) {
	if err := h.updates.Apply(r.Context(), observer.Update{Kind: observer.MarkAllRead}); err != nil {
		h.logger.WarnContext(r.Context(), "mark all read update failed", "error", err)
	}
	h.writeList(w, r)
}

func (h *statusHandler) writeList(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: alertListResponse{
		Alerts: h.list.Snapshot(),
		Unread: h.list.Unread(),
	}})
}
