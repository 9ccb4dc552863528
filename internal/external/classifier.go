package external

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"posturewatch/internal/types"
)

// ClassifierClientConfig holds the configuration for a ClassifierClient.
type ClassifierClientConfig struct {
	URL    string // full predict endpoint
	Logger *slog.Logger
}

// ClassifierClient implements Classifier over JSON/HTTP. It never retries:
// the throttle window after a failure is the retry.
type ClassifierClient struct {
	base   *BaseClient
	url    string
	logger *slog.Logger
}

// NewClassifierClient creates a ClassifierClient. Request budgets come from
// the caller's context.
func NewClassifierClient(httpClient *http.Client, cfg ClassifierClientConfig, opts ...BaseClientOption) *ClassifierClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ClassifierClient{
		base:   NewBaseClient(httpClient, "classifier", NoRetry(), UserAgent, opts...),
		url:    cfg.URL,
		logger: logger,
	}
}

// classifyResponse is the union of the service's success and error shapes:
// {class_id, label, confidence, proba} or {error, detail}.
type classifyResponse struct {
	Label      *string         `json:"label"`
	ClassID    json.RawMessage `json:"class_id"`
	Confidence *float64        `json:"confidence"`
	Proba      json.RawMessage `json:"proba,omitempty"`
	Error      string          `json:"error"`
	Detail     string          `json:"detail"`
}

// labelSource yields a label from one response field, if that field is set.
type labelSource func(classifyResponse) (string, bool)

// labelSources is tried in order; the first that yields wins. A field only
// counts as missing when absent or null, so an empty label is kept.
var labelSources = []labelSource{
	func(r classifyResponse) (string, bool) {
		if r.Label == nil {
			return "", false
		}
		return *r.Label, true
	},
	func(r classifyResponse) (string, bool) {
		raw := bytes.TrimSpace(r.ClassID)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			return "", false
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s, true
		}
		return string(raw), true
	},
}

// resolveLabel returns the first available label or types.UnknownLabel.
func resolveLabel(r classifyResponse) string {
	for _, src := range labelSources {
		if label, ok := src(r); ok {
			return label
		}
	}
	return types.UnknownLabel
}

// Classify posts fv and parses the label and confidence. Transport failures,
// non-2xx answers, error bodies and malformed JSON all return an error together
// with a failure-marked result.
func (c *ClassifierClient) Classify(ctx context.Context, fv types.FeatureVector) (types.ClassificationResult, error) {
	fail := func(err error) (types.ClassificationResult, error) {
		return types.ClassificationFailure(err), err
	}

	body, err := json.Marshal(fv)
	if err != nil {
		return fail(types.NewAppError(types.ErrCodeInternalUnexpected, "failed to serialize features", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fail(types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create classify request", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return fail(wrapError("classifier", "Classify", types.ErrCodeUpstreamClassifier, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fail(statusError("classifier", "Classify", types.ErrCodeUpstreamClassifier, resp))
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var parsed classifyResponse
	if err := dec.Decode(&parsed); err != nil {
		return fail(types.NewAppError(types.ErrCodeUpstreamInvalidPayload, "malformed classifier response", err))
	}
	if parsed.Error != "" {
		return fail(types.NewAppErrorWithDetails(
			types.ErrCodeUpstreamClassifier,
			"classifier reported an error: "+parsed.Error,
			nil,
			map[string]any{"detail": parsed.Detail},
		))
	}

	result := types.ClassificationResult{Label: resolveLabel(parsed)}
	if parsed.Confidence != nil {
		result.Confidence = *parsed.Confidence
	}

	c.logger.DebugContext(ctx, "posture classified",
		"label", result.Label,
		"confidence", strconv.FormatFloat(result.Confidence, 'f', 3, 64),
	)

	return result, nil
}

var _ Classifier = (*ClassifierClient)(nil)
