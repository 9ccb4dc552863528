package pipeline

import (
	"context"
	"log/slog"
	"time"

	"posturewatch/internal/external"
	"posturewatch/internal/types"
)

// DefaultClassifyInterval is the minimum gap between classification requests.
const DefaultClassifyInterval = 1000 * time.Millisecond

// ThrottlerConfig configures a Throttler.
type ThrottlerConfig struct {
	Interval time.Duration // defaults to DefaultClassifyInterval
	Timeout  time.Duration // per-request budget; 0 means the caller's context only
	Clock    types.Clock
	Logger   *slog.Logger
	Metrics  Metrics
}

// Throttler caps outbound classification requests at one per Interval.
// Calls inside the window are dropped, never queued. It is owned by a single
// Tracker and is not safe for concurrent use.
type Throttler struct {
	classifier external.Classifier
	interval   time.Duration
	timeout    time.Duration
	clock      types.Clock
	logger     *slog.Logger
	metrics    Metrics

	lastSent time.Time
}

// NewThrottler creates a Throttler in front of classifier.
func NewThrottler(classifier external.Classifier, cfg ThrottlerConfig) *Throttler {
	t := &Throttler{
		classifier: classifier,
		interval:   cfg.Interval,
		timeout:    cfg.Timeout,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
	if t.interval <= 0 {
		t.interval = DefaultClassifyInterval
	}
	if t.clock == nil {
		t.clock = types.RealClock{}
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.metrics == nil {
		t.metrics = NopMetrics{}
	}
	return t
}

// Submit classifies fv unless the previous request went out less than
// Interval ago, in which case sent is false and nothing is called.
//
// The window restarts when a request is sent, whatever its outcome, so a
// failed request is retried naturally by the next window. Failures come back
// as a failure-marked result and are logged here.
func (t *Throttler) Submit(ctx context.Context, fv types.FeatureVector) (res types.ClassificationResult, sent bool) {
	now := t.clock.Now()
	if !t.lastSent.IsZero() && now.Sub(t.lastSent) < t.interval {
		return types.ClassificationResult{}, false
	}
	t.lastSent = now

	callCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	res, err := t.classifier.Classify(callCtx, fv)
	latency := t.clock.Now().Sub(now)
	if err != nil || res.Failed {
		if err == nil {
			err = res.Err
		}
		t.metrics.ClassificationFailed(ctx, latency)
		t.logger.WarnContext(ctx, "classification failed", "error", err, "latency_ms", latency.Milliseconds())
		return types.ClassificationFailure(err), true
	}

	t.metrics.Classified(ctx, res.Label, latency)
	return res, true
}
