// Package pipeline runs the real-time posture signal pipeline: frame
// acquisition, pose estimation, feature extraction, throttled classification
// and alert generation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"posturewatch/internal/external"
	"posturewatch/internal/frames"
	"posturewatch/internal/posture"
	"posturewatch/internal/types"
)

// DefaultFrameInterval paces the loop at roughly 30 frames per second.
const DefaultFrameInterval = 33 * time.Millisecond

// ErrNoFrame is the sensing gap reported by a frame source.
var ErrNoFrame = frames.ErrNoFrame

// Warmer is implemented by estimators that must load a model before the
// first frame.
type Warmer interface {
	Warmup(ctx context.Context) error
}

// TrackerConfig wires a Tracker. Source, Estimator, Throttler and Alerts are
// required.
type TrackerConfig struct {
	Source    frames.Source
	Estimator external.PoseEstimator
	Throttler *Throttler
	Alerts    *AlertGenerator
	Status    *StatusBoard
	Interval  time.Duration // defaults to DefaultFrameInterval
	Width     int           // used when a frame carries no size
	Height    int
	Clock     types.Clock
	Logger    *slog.Logger
	Metrics   Metrics
}

// Tracker is the acquisition loop. Each cycle runs to completion before the
// next is scheduled, so the throttle and cooldown state needs no locking.
type Tracker struct {
	cfg TrackerConfig
}

// NewTracker validates cfg and creates a Tracker.
func NewTracker(cfg TrackerConfig) (*Tracker, error) {
	if cfg.Source == nil || cfg.Estimator == nil || cfg.Throttler == nil || cfg.Alerts == nil {
		return nil, errors.New("pipeline: source, estimator, throttler and alerts are required")
	}
	if cfg.Status == nil {
		cfg.Status = NewStatusBoard()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultFrameInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = types.RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NopMetrics{}
	}
	return &Tracker{cfg: cfg}, nil
}

// Status returns the board the tracker reports to.
func (t *Tracker) Status() *StatusBoard { return t.cfg.Status }

// Run starts the loop and blocks until ctx is cancelled or a finite source
// is exhausted, both of which return nil. Setup failures (model warmup,
// stream acquisition) are returned and shown as StatusError; nothing that
// happens inside a cycle stops the loop.
func (t *Tracker) Run(ctx context.Context) error {
	if err := t.setup(ctx); err != nil {
		t.cfg.Status.failed(err)
		t.cfg.Logger.ErrorContext(ctx, "tracker setup failed", "error", err)
		return err
	}
	defer func() {
		if err := t.cfg.Source.Close(); err != nil {
			t.cfg.Logger.WarnContext(ctx, "releasing frame source failed", "error", err)
		}
		t.cfg.Status.stopped()
	}()

	t.cfg.Status.started()
	t.cfg.Logger.InfoContext(ctx, "tracking posture", "interval", t.cfg.Interval.String())

	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			t.cfg.Logger.InfoContext(ctx, "tracker cancelled")
			return nil
		}

		// An in-flight cycle finishes even if ctx is cancelled meanwhile.
		if err := t.cycle(context.WithoutCancel(ctx)); errors.Is(err, frames.ErrExhausted) {
			t.cfg.Logger.InfoContext(ctx, "frame source exhausted")
			return nil
		}

		select {
		case <-ctx.Done():
			t.cfg.Logger.InfoContext(ctx, "tracker cancelled")
			return nil
		case <-ticker.C:
		}
	}
}

func (t *Tracker) setup(ctx context.Context) error {
	if w, ok := t.cfg.Estimator.(Warmer); ok {
		if err := w.Warmup(ctx); err != nil {
			return fmt.Errorf("load pose model: %w", err)
		}
	}
	if err := t.cfg.Source.Open(ctx); err != nil {
		return fmt.Errorf("acquire video stream: %w", err)
	}
	return nil
}

// cycle runs one frame through the chain. Only frames.ErrExhausted is
// returned; every other outcome is absorbed here.
func (t *Tracker) cycle(ctx context.Context) error {
	frame, err := t.cfg.Source.Next(ctx)
	if err != nil {
		if errors.Is(err, frames.ErrExhausted) {
			return err
		}
		t.cfg.Metrics.FrameSkipped(ctx, types.SkipReasonNoFrame)
		return nil
	}

	pose, err := t.cfg.Estimator.Estimate(ctx, frame)
	if err != nil {
		t.cfg.Logger.WarnContext(ctx, "pose estimation failed", "frame_seq", frame.Seq, "error", err)
		t.cfg.Metrics.FrameSkipped(ctx, types.SkipReasonEstimatorErr)
		return nil
	}

	t.cfg.Status.frame(pose)
	if pose.Empty() {
		t.cfg.Metrics.FrameSkipped(ctx, types.SkipReasonNoPose)
		return nil
	}

	width, height := frame.Width, frame.Height
	if width <= 0 || height <= 0 {
		width, height = t.cfg.Width, t.cfg.Height
	}

	fv, err := posture.Extract(pose, width, height)
	if err != nil {
		if !errors.Is(err, posture.ErrInsufficientLandmarks) {
			t.cfg.Logger.WarnContext(ctx, "feature extraction failed", "frame_seq", frame.Seq, "error", err)
		}
		t.cfg.Metrics.FrameSkipped(ctx, types.SkipReasonLandmarks)
		return nil
	}
	t.cfg.Status.features(fv)

	res, sent := t.cfg.Throttler.Submit(ctx, fv)
	if !sent {
		t.cfg.Metrics.FrameSkipped(ctx, types.SkipReasonThrottled)
		return nil
	}
	t.cfg.Metrics.FrameProcessed(ctx)
	t.cfg.Status.classified(res, t.cfg.Clock.Now())

	if !res.IsGood() {
		return nil
	}
	if alert, ok := t.cfg.Alerts.OnGood(ctx, &frame); ok {
		t.cfg.Status.alerted(alert.CreatedAt)
	}
	return nil
}
