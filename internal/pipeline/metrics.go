package pipeline

import (
	"context"
	"time"
)

// Metrics receives pipeline telemetry. Implementations must be cheap and
// non-blocking: they are called from the frame loop.
type Metrics interface {
	FrameProcessed(ctx context.Context)
	FrameSkipped(ctx context.Context, reason string)
	Classified(ctx context.Context, label string, latency time.Duration)
	ClassificationFailed(ctx context.Context, latency time.Duration)
	AlertGenerated(ctx context.Context)
	AlertPersistFailed(ctx context.Context)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) FrameProcessed(context.Context)                      {}
func (NopMetrics) FrameSkipped(context.Context, string)                {}
func (NopMetrics) Classified(context.Context, string, time.Duration)   {}
func (NopMetrics) ClassificationFailed(context.Context, time.Duration) {}
func (NopMetrics) AlertGenerated(context.Context)                      {}
func (NopMetrics) AlertPersistFailed(context.Context)                  {}

var _ Metrics = NopMetrics{}
