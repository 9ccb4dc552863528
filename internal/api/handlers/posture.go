package handlers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"posturewatch/internal/core"
	"posturewatch/internal/external"
	"posturewatch/internal/types"
)

// PostureHandler proxies feature vectors to the inference backend. It is a
// public route: the tracker may run anonymously.
type PostureHandler struct {
	inference external.Inference
	logger    *slog.Logger
}

// NewPostureHandler creates a PostureHandler.
func NewPostureHandler(inference external.Inference, l *slog.Logger) *PostureHandler {
	if l == nil {
		l = slog.Default()
	}
	return &PostureHandler{inference: inference, logger: l}
}

// RegisterRoutes mounts POST /posture/predict.
func (h *PostureHandler) RegisterRoutes(r chi.Router) {
	r.Post("/posture/predict", h.Predict)
}

// Predict handles POST /v1/posture/predict. The body must be a JSON object;
// it is forwarded untouched and the backend's answer is returned as is.
//
// Upstream HTTP errors surface as 502 with the backend's detail, transport
// failures as 500.
func (h *PostureHandler) Predict(w http.ResponseWriter, r *http.Request) {
	var payload json.RawMessage
	if err := core.DecodeJSON(w, r, &payload); err != nil {
		core.Error(w, r, err)
		return
	}

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidFeatures,
			"features must be a JSON object",
			nil,
		))
		return
	}

	out, err := h.inference.Predict(r.Context(), trimmed)
	if err != nil {
		h.logger.WarnContext(r.Context(), "posture prediction failed", "error", err)
		core.Error(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}
