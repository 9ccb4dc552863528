// Package main is the entry point for the PostureWatch API server.
//
// It initializes the configuration, connects to PostgreSQL, builds the HTTP
// server with the core chassis (middleware, routing, health checks) and
// mounts the alert and posture handlers.
//
// Outside Lambda it runs as a standard HTTP server on the configured port.
// Inside Lambda the chi router is bridged to API Gateway proxy events via
// chiadapter.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
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

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"

	"posturewatch/internal/api/handlers"
	"posturewatch/internal/auth"
	"posturewatch/internal/config"
	"posturewatch/internal/core"
	"posturewatch/internal/db"
	"posturewatch/internal/external"
	"posturewatch/internal/metrics"
	"posturewatch/internal/queue"
)

var (
	_ core.Authenticator           = (*auth.TokenVerifier)(nil)
	_ handlers.AlertRepo           = (*db.AlertRepository)(nil)
	_ handlers.AlertEventPublisher = (*queue.AlertPublisher)(nil)
	_ external.Inference           = (*external.InferenceClient)(nil)
	_ core.MetricsCollector        = (*metrics.Prometheus)(nil)
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// deps are the process-level resources the server is assembled from. Tests
// fill them with fakes.
type deps struct {
	DB        db.DBTX
	Pinger    db.Pinger
	Publisher handlers.AlertEventPublisher
	Inference external.Inference
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadAPIConfig(nil)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("posturewatch API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}

	if cfg.Database.AutoMigrate {
		if err := db.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return err
		}
		logger.Info("database schema applied")
	}

	d := deps{
		DB:     pool,
		Pinger: pool,
		Inference: external.NewInferenceClient(
			&http.Client{Timeout: cfg.Inference.Timeout},
			external.InferenceClientConfig{
				URL:     cfg.Inference.URL,
				Timeout: cfg.Inference.Timeout,
				Logger:  logger.With("client", "inference"),
			},
		),
	}

	if cfg.AWS.AlertQueueURL != "" {
		awsCfg, err := config.LoadAWS(ctx, cfg.AWS)
		if err != nil {
			pool.Close()
			return err
		}
		d.Publisher = queue.NewAlertPublisher(sqs.NewFromConfig(awsCfg), cfg.AWS, logger.With("component", "queue"))
		logger.Info("alert events enabled", "queue_url", cfg.AWS.AlertQueueURL)
	}

	srv, err := newServer(cfg, logger, d)
	if err != nil {
		pool.Close()
		return err
	}
	srv.Closers = append(srv.Closers, func(context.Context) error {
		pool.Close()
		return nil
	})

	if isLambdaEnvironment() {
		return runLambda(srv, logger)
	}
	return runHTTPServer(srv, cfg, logger)
}

// newServer assembles the core chassis around d and mounts every route.
func newServer(cfg *config.APIConfig, logger *slog.Logger, d deps) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}

	verifier, err := auth.NewTokenVerifier(auth.VerifierConfigFrom(cfg.Auth))
	if err != nil {
		return nil, fmt.Errorf("creating token verifier: %w", err)
	}
	srv.Authenticator = verifier

	if cfg.Metrics.Backend == "prometheus" {
		p := metrics.NewPrometheus(cfg.Metrics.Namespace)
		srv.Metrics = p
		srv.RootHandlers["/metrics"] = p.Handler()
	}

	if d.Pinger != nil {
		srv.HealthProbes = append(srv.HealthProbes, db.HealthProbe{DB: d.Pinger})
	}

	alertHandler := handlers.NewAlertHandler(db.NewAlertRepository(d.DB), d.Publisher, srv.Validator, logger.With("handler", "alerts"))
	postureHandler := handlers.NewPostureHandler(d.Inference, logger.With("handler", "posture"))
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		alertHandler.RegisterRoutes,
		postureHandler.RegisterRoutes,
	)

	srv.MountRoutes()
	return srv, nil
}

// isLambdaEnvironment returns true if the process is running inside AWS Lambda.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}

// runLambda serves API Gateway proxy events through the chi router. It
// blocks for the lifetime of the execution environment.
func runLambda(srv *core.Server, logger *slog.Logger) error {
	adapter := chiadapter.New(srv.Router())
	logger.Info("starting Lambda handler")
	lambda.Start(adapter.ProxyWithContext)
	return nil
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.APIConfig, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	// DB pool and other resources.
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}
