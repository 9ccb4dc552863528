package external

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"posturewatch/internal/types"
)

// DefaultInferenceTimeout bounds a forwarded prediction.
const DefaultInferenceTimeout = 10 * time.Second

// InferenceClientConfig holds the configuration for an InferenceClient.
type InferenceClientConfig struct {
	URL     string
	Timeout time.Duration // defaults to DefaultInferenceTimeout
	Logger  *slog.Logger
}

// InferenceClient forwards prediction payloads to the model-serving backend.
type InferenceClient struct {
	base    *BaseClient
	url     string
	timeout time.Duration
	logger  *slog.Logger
}

// NewInferenceClient creates an InferenceClient.
func NewInferenceClient(httpClient *http.Client, cfg InferenceClientConfig, opts ...BaseClientOption) *InferenceClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultInferenceTimeout
	}
	return &InferenceClient{
		base:    NewBaseClient(httpClient, "inference", NoRetry(), UserAgent, opts...),
		url:     cfg.URL,
		timeout: timeout,
		logger:  logger,
	}
}

// Predict posts payload and returns the backend's JSON body unchanged.
//
// An HTTP error from the backend yields an upstream_classifier AppError (or
// upstream_unavailable for 5xx) carrying the backend body in
// Details["detail"]. Transport failures and timeouts yield
// internal_unexpected_error.
func (c *InferenceClient) Predict(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create inference request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "inference request failed", "error", err)
		return nil, wrapError("inference", "Predict", types.ErrCodeInternalUnexpected, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		appErr := statusError("inference", "Predict", types.ErrCodeUpstreamClassifier, resp)
		c.logger.WarnContext(ctx, "inference backend returned error", "status", resp.StatusCode)
		return nil, appErr
	}

	var out json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamInvalidPayload, "malformed inference response", err)
	}
	return out, nil
}

var _ Inference = (*InferenceClient)(nil)
