package external

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"posturewatch/internal/types"
)

// PoseModelConfig is the fixed model configuration sent with every frame.
type PoseModelConfig struct {
	OutputStride   int
	InputWidth     int
	InputHeight    int
	FlipHorizontal bool
}

// PoseEstimatorClientConfig holds the configuration for a PoseEstimatorClient.
type PoseEstimatorClientConfig struct {
	URL      string // estimate endpoint
	ReadyURL string // optional readiness endpoint checked by Warmup
	Model    PoseModelConfig
	Logger   *slog.Logger
}

// PoseEstimatorClient implements PoseEstimator against an HTTP model server.
// The frame's encoded bytes are the request body; model settings travel as
// query parameters.
type PoseEstimatorClient struct {
	base     *BaseClient
	endpoint string
	readyURL string
	logger   *slog.Logger
}

// NewPoseEstimatorClient creates a PoseEstimatorClient. Estimation is
// idempotent so transient 5xx answers are retried once.
func NewPoseEstimatorClient(httpClient *http.Client, cfg PoseEstimatorClientConfig, opts ...BaseClientOption) (*PoseEstimatorClient, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "invalid pose estimator url", err)
	}
	q := u.Query()
	if cfg.Model.OutputStride > 0 {
		q.Set("output_stride", strconv.Itoa(cfg.Model.OutputStride))
	}
	if cfg.Model.InputWidth > 0 && cfg.Model.InputHeight > 0 {
		q.Set("input_width", strconv.Itoa(cfg.Model.InputWidth))
		q.Set("input_height", strconv.Itoa(cfg.Model.InputHeight))
	}
	q.Set("flip_horizontal", strconv.FormatBool(cfg.Model.FlipHorizontal))
	u.RawQuery = q.Encode()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	retry := RetryPolicy{MaxRetries: 1, MinWait: 20 * time.Millisecond, MaxWait: 100 * time.Millisecond}
	return &PoseEstimatorClient{
		base:     NewBaseClient(httpClient, "pose-estimator", retry, UserAgent, opts...),
		endpoint: u.String(),
		readyURL: cfg.ReadyURL,
		logger:   logger,
	}, nil
}

// Warmup checks that the model server is up and has its model loaded. A
// failure here means the tracker cannot start.
func (c *PoseEstimatorClient) Warmup(ctx context.Context) error {
	if c.readyURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.readyURL, nil)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create readiness request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return wrapError("pose estimator", "Warmup", types.ErrCodeUpstreamPoseEstimator, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError("pose estimator", "Warmup", types.ErrCodeUpstreamPoseEstimator, resp)
	}

	c.logger.InfoContext(ctx, "pose estimator ready", "url", c.readyURL)
	return nil
}

// Estimate sends frame to the estimator. An empty Pose is a valid answer.
func (c *PoseEstimatorClient) Estimate(ctx context.Context, frame types.Frame) (types.Pose, error) {
	if len(frame.Data) == 0 {
		return types.Pose{}, types.NewAppError(types.ErrCodeValidationInvalidFrame, "frame has no data", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(frame.Data))
	if err != nil {
		return types.Pose{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create estimate request", err)
	}
	contentType := frame.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Frame-Seq", strconv.FormatUint(frame.Seq, 10))

	resp, err := c.base.Do(req)
	if err != nil {
		return types.Pose{}, wrapError("pose estimator", "Estimate", types.ErrCodeUpstreamPoseEstimator, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return types.Pose{}, statusError("pose estimator", "Estimate", types.ErrCodeUpstreamPoseEstimator, resp)
	}

	var pose types.Pose
	if err := json.NewDecoder(resp.Body).Decode(&pose); err != nil {
		return types.Pose{}, types.NewAppError(types.ErrCodeUpstreamInvalidPayload, "malformed pose estimator response", err)
	}
	return dedupeParts(pose), nil
}

// dedupeParts keeps the highest-scoring keypoint per part, preserving the
// order in which parts first appear.
func dedupeParts(pose types.Pose) types.Pose {
	idx := make(map[types.AnatomicalPart]int, len(pose.Keypoints))
	out := make([]types.Keypoint, 0, len(pose.Keypoints))
	for _, kp := range pose.Keypoints {
		if i, seen := idx[kp.Part]; seen {
			if kp.Score > out[i].Score {
				out[i] = kp
			}
			continue
		}
		idx[kp.Part] = len(out)
		out = append(out, kp)
	}
	pose.Keypoints = out
	return pose
}

var _ PoseEstimator = (*PoseEstimatorClient)(nil)
