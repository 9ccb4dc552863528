package frames

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"posturewatch/internal/external"
	"posturewatch/internal/types"
)

// maxFrameBytes bounds a single snapshot download.
const maxFrameBytes = 10 << 20

// HTTPSourceConfig configures an HTTPSource.
type HTTPSourceConfig struct {
	URL     string
	Width   int // used when the image header cannot be read
	Height  int
	Timeout time.Duration
	Logger  *slog.Logger
}

// HTTPSource pulls one still image per Next from a camera snapshot endpoint
// (for example an IP camera's /snapshot.jpg).
type HTTPSource struct {
	base   *external.BaseClient
	cfg    HTTPSourceConfig
	seq    atomic.Uint64
	clock  types.Clock
	logger *slog.Logger
}

// NewHTTPSource creates an HTTPSource. Snapshot fetches are never retried: the
// next tick is the retry.
func NewHTTPSource(cfg HTTPSourceConfig, opts ...external.BaseClientOption) *HTTPSource {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPSource{
		base:   external.NewBaseClient(&http.Client{Timeout: timeout}, "camera", external.NoRetry(), external.UserAgent, opts...),
		cfg:    cfg,
		clock:  types.RealClock{},
		logger: logger,
	}
}

// Open fetches one frame to prove the camera is reachable.
func (s *HTTPSource) Open(ctx context.Context) error {
	if _, err := s.fetch(ctx); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamFrameSource, "camera is not reachable", err)
	}
	s.logger.InfoContext(ctx, "camera stream acquired", "url", s.cfg.URL)
	return nil
}

// Next returns the current camera image. Any failure is reported as
// ErrNoFrame so the cycle is skipped.
func (s *HTTPSource) Next(ctx context.Context) (types.Frame, error) {
	f, err := s.fetch(ctx)
	if err != nil {
		s.logger.DebugContext(ctx, "camera frame unavailable", "error", err)
		return types.Frame{}, fmt.Errorf("%w: %v", ErrNoFrame, err)
	}
	return f, nil
}

// Close is a no-op; each fetch is its own request.
func (s *HTTPSource) Close() error { return nil }

func (s *HTTPSource) fetch(ctx context.Context) (types.Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return types.Frame{}, err
	}

	resp, err := s.base.Do(req)
	if err != nil {
		return types.Frame{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.Frame{}, fmt.Errorf("camera returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes))
	if err != nil {
		return types.Frame{}, fmt.Errorf("read frame: %w", err)
	}
	if len(data) == 0 {
		return types.Frame{}, fmt.Errorf("camera returned an empty body")
	}

	w, h, sniffed := dimensions(data, s.cfg.Width, s.cfg.Height)
	contentType := resp.Header.Get("Content-Type")
	if sniffed != "" {
		contentType = sniffed
	}

	return types.Frame{
		Seq:         s.seq.Add(1),
		Timestamp:   s.clock.Now(),
		Width:       w,
		Height:      h,
		Data:        data,
		ContentType: contentType,
	}, nil
}

var _ Source = (*HTTPSource)(nil)
