// Package main is the entry point for the posture tracker.
//
// It loads the configuration, wires the frame source, the pose estimator,
// the classifier and the alert pipeline, then runs the frame loop next to a
// small HTTP server exposing the tracker status and the local alert list.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM):
// the loop stops, in-flight alert saves are drained and the server closes.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"golang.org/x/sync/errgroup"

	"posturewatch/internal/config"
	"posturewatch/internal/external"
	"posturewatch/internal/frames"
	"posturewatch/internal/metrics"
	"posturewatch/internal/observer"
	"posturewatch/internal/pipeline"
)

// drainTimeout bounds how long shutdown waits for pending alert saves.
const drainTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// app is the wired tracker process.
type app struct {
	tracker *pipeline.Tracker
	alerts  *pipeline.AlertGenerator
	list    *observer.AlertList
	updates observer.Observer
	router  http.Handler

	// flusher is set for the cloudwatch backend.
	flusher *metrics.CloudWatch
	closers []func()
}

func (a *app) close() {
	for _, c := range a.closers {
		c()
	}
}

func run() error {
	cfg, err := config.LoadTrackerConfig(nil)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("posture tracker starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"addr", cfg.Addr,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer stop()
		return a.tracker.Run(gCtx)
	})

	g.Go(func() error {
		logger.Info("status server listening", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if a.flusher != nil {
		g.Go(func() error { return a.flusher.Run(gCtx, metrics.DefaultFlushInterval) })
	}

	runErr := g.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if !a.alerts.Drain(drainCtx) {
		logger.Warn("pending alert saves abandoned at shutdown")
	}

	if runErr != nil {
		return runErr
	}
	logger.Info("tracker stopped cleanly")
	return nil
}

// build wires every component from cfg. Nothing is started.
func build(ctx context.Context, cfg *config.TrackerConfig, logger *slog.Logger) (*app, error) {
	a := &app{}

	clients, err := external.NewClientRegistry(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating clients: %w", err)
	}

	pipelineMetrics, metricsHandler, err := newMetricsBackend(ctx, cfg, logger, a)
	if err != nil {
		return nil, err
	}

	a.list = observer.NewAlertList(cfg.Alerts.HistoryLimit)
	fanout := observer.Fanout{a.list}
	if cfg.MQTT.Broker != "" {
		mq, err := observer.DialMQTT(cfg.MQTT, logger.With("component", "mqtt"))
		if err != nil {
			return nil, fmt.Errorf("connecting to MQTT broker: %w", err)
		}
		a.closers = append(a.closers, mq.Close)
		fanout = append(fanout, mq)
	}
	a.updates = fanout

	var snapshot pipeline.Snapshotter
	if cfg.Alerts.Snapshots {
		snapshot = frames.PNGDataURL
	}

	a.alerts = pipeline.NewAlertGenerator(pipeline.AlertGeneratorConfig{
		Cooldown:       cfg.Alerts.Cooldown,
		PersistTimeout: cfg.Alerts.PersistTimeout,
		Observer:       fanout,
		Store:          clients.AlertStore,
		Tokens:         pipeline.StaticToken(cfg.Alerts.AuthToken.Unmask()),
		Snapshot:       snapshot,
		Logger:         logger.With("component", "alerts"),
		Metrics:        pipelineMetrics,
	})

	throttler := pipeline.NewThrottler(clients.Classifier, pipeline.ThrottlerConfig{
		Interval: cfg.Classifier.Interval,
		Timeout:  cfg.Classifier.Timeout,
		Logger:   logger.With("component", "throttler"),
		Metrics:  pipelineMetrics,
	})

	a.tracker, err = pipeline.NewTracker(pipeline.TrackerConfig{
		Source:    newFrameSource(cfg.Camera, logger),
		Estimator: clients.Estimator,
		Throttler: throttler,
		Alerts:    a.alerts,
		Interval:  cfg.Camera.Interval,
		Width:     cfg.Camera.Width,
		Height:    cfg.Camera.Height,
		Logger:    logger.With("component", "tracker"),
		Metrics:   pipelineMetrics,
	})
	if err != nil {
		return nil, err
	}

	a.router = newStatusRouter(a.tracker.Status(), a.list, a.updates, metricsHandler, logger)
	return a, nil
}

// newFrameSource prefers the camera URL over a frames directory.
func newFrameSource(cfg config.CameraConfig, logger *slog.Logger) frames.Source {
	if cfg.URL != "" {
		return frames.NewHTTPSource(frames.HTTPSourceConfig{
			URL:     cfg.URL,
			Width:   cfg.Width,
			Height:  cfg.Height,
			Timeout: cfg.Timeout,
			Logger:  logger.With("component", "camera"),
		})
	}
	return frames.NewDirSource(frames.DirSourceConfig{
		Dir:    cfg.FramesDir,
		Loop:   cfg.Loop,
		Width:  cfg.Width,
		Height: cfg.Height,
		Logger: logger.With("component", "frames"),
	})
}

// newMetricsBackend returns the pipeline metrics sink and, for Prometheus,
// the scrape handler.
func newMetricsBackend(ctx context.Context, cfg *config.TrackerConfig, logger *slog.Logger, a *app) (pipeline.Metrics, http.Handler, error) {
	switch cfg.Metrics.Backend {
	case "prometheus":
		p := metrics.NewPrometheus(cfg.Metrics.Namespace)
		return p, p.Handler(), nil
	case "cloudwatch":
		awsCfg, err := config.LoadAWS(ctx, cfg.AWS)
		if err != nil {
			return nil, nil, err
		}
		cw := metrics.NewCloudWatch(cloudwatch.NewFromConfig(awsCfg), cfg.Metrics.Namespace, logger.With("component", "metrics"))
		a.flusher = cw
		return cw, nil, nil
	default:
		return pipeline.NopMetrics{}, nil, nil
	}
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
