// Package metrics provides the telemetry backends for the tracker and the
// API: a Prometheus collector scraped over HTTP and a CloudWatch recorder
// that flushes aggregated counters.
package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"posturewatch/internal/core"
	"posturewatch/internal/pipeline"
)

var (
	_ core.MetricsCollector = (*Prometheus)(nil)
	_ pipeline.Metrics      = (*Prometheus)(nil)
)

// Prometheus holds every collector on a private registry, so several
// instances can coexist in one process (tests, tracker plus API).
type Prometheus struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	framesProcessed prometheus.Counter
	framesSkipped   *prometheus.CounterVec
	classifications *prometheus.CounterVec
	classifyLatency *prometheus.HistogramVec
	alertsGenerated prometheus.Counter
	persistFailures prometheus.Counter
}

// NewPrometheus creates the collectors under namespace. The namespace is
// lower-cased to satisfy Prometheus naming.
func NewPrometheus(namespace string) *Prometheus {
	ns := strings.ToLower(namespace)
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		framesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "frames_processed_total",
			Help:      "Frames that reached the classifier",
		}),
		framesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "frames_skipped_total",
			Help:      "Frames dropped before classification, by reason",
		}, []string{"reason"}),
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "classifications_total",
			Help:      "Classification outcomes by label",
		}, []string{"label"}),
		classifyLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "classification_duration_seconds",
			Help:      "Classifier round-trip latency in seconds",
			Buckets:   []float64{.025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"result"}),
		alertsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "alerts_generated_total",
			Help:      "Alerts emitted to local observers",
		}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "alert_persist_failures_total",
			Help:      "Alerts the remote store did not accept",
		}),
	}

	p.registry.MustRegister(
		p.httpRequests,
		p.httpDuration,
		p.framesProcessed,
		p.framesSkipped,
		p.classifications,
		p.classifyLatency,
		p.alertsGenerated,
		p.persistFailures,
		collectors.NewGoCollector(),
	)
	return p
}

// Handler serves the registry in the exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func (p *Prometheus) RecordRequest(method, endpoint, status string, duration time.Duration) {
	p.httpRequests.WithLabelValues(method, endpoint, status).Inc()
	p.httpDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (p *Prometheus) FrameProcessed(context.Context) { p.framesProcessed.Inc() }

func (p *Prometheus) FrameSkipped(_ context.Context, reason string) {
	p.framesSkipped.WithLabelValues(reason).Inc()
}

func (p *Prometheus) Classified(_ context.Context, label string, latency time.Duration) {
	p.classifications.WithLabelValues(strings.ToLower(label)).Inc()
	p.classifyLatency.WithLabelValues("ok").Observe(latency.Seconds())
}

func (p *Prometheus) ClassificationFailed(_ context.Context, latency time.Duration) {
	p.classifications.WithLabelValues("failed").Inc()
	p.classifyLatency.WithLabelValues("failed").Observe(latency.Seconds())
}

func (p *Prometheus) AlertGenerated(context.Context) { p.alertsGenerated.Inc() }

func (p *Prometheus) AlertPersistFailed(context.Context) { p.persistFailures.Inc() }
