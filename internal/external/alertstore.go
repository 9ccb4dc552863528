package external

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"posturewatch/internal/types"
)

// AlertStoreClientConfig holds the configuration for an AlertStoreClient.
type AlertStoreClientConfig struct {
	BaseURL string // API root, e.g. https://api.example.com
	Logger  *slog.Logger
}

// AlertStoreClient implements AlertStore against the alert persistence API.
type AlertStoreClient struct {
	base    *BaseClient
	baseURL string
	logger  *slog.Logger
}

// NewAlertStoreClient creates an AlertStoreClient. Alert creation is not
// idempotent, so it is never retried.
func NewAlertStoreClient(httpClient *http.Client, cfg AlertStoreClientConfig, opts ...BaseClientOption) *AlertStoreClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertStoreClient{
		base:    NewBaseClient(httpClient, "alert-store", NoRetry(), UserAgent, opts...),
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// CreateAlert posts input to /v1/alerts with token as bearer credentials and
// returns the stored record.
func (c *AlertStoreClient) CreateAlert(ctx context.Context, token string, input types.AlertInput) (types.Alert, error) {
	if token == "" {
		return types.Alert{}, types.NewAppError(types.ErrCodeAuthTokenMissing, "alert store requires a bearer token", nil)
	}

	body, err := json.Marshal(input)
	if err != nil {
		return types.Alert{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to serialize alert", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/alerts", bytes.NewReader(body))
	if err != nil {
		return types.Alert{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create alert request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.base.Do(req)
	if err != nil {
		return types.Alert{}, wrapError("alert store", "CreateAlert", types.ErrCodeUpstreamAlertStore, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		code := types.ErrCodeUpstreamAlertStore
		if resp.StatusCode == http.StatusUnauthorized {
			code = types.ErrCodeAuthTokenInvalid
		}
		return types.Alert{}, statusError("alert store", "CreateAlert", code, resp)
	}

	var envelope struct {
		Data types.Alert `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return types.Alert{}, types.NewAppError(types.ErrCodeUpstreamInvalidPayload, "malformed alert store response", err)
	}
	stored := envelope.Data

	c.logger.InfoContext(ctx, "alert persisted", "alert_id", stored.ID)
	return stored, nil
}

var _ AlertStore = (*AlertStoreClient)(nil)
