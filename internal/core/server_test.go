package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"posturewatch/internal/config"
)

// testLogger discards everything.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.APIConfig {
	return &config.APIConfig{
		Environment: "local",
		Server: config.ServerConfig{
			Port:               "8080",
			MaxBodyBytes:       1 << 20,
			RequestTimeout:     5 * time.Second,
			CorsAllowedOrigins: []string{"*"},
		},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := NewServer(testConfig(), testLogger())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

// mockMetricsCollector records RecordRequest calls.
type mockMetricsCollector struct {
	calls []metricsCall
}

type metricsCall struct {
	method, endpoint, status string
	duration                 time.Duration
}

func (m *mockMetricsCollector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	m.calls = append(m.calls, metricsCall{method, endpoint, status, duration})
}

func TestNewServer_Success(t *testing.T) {
	cfg := testConfig()
	logger := testLogger()

	srv, err := NewServer(cfg, logger)
	if err != nil {
		t.Fatalf("NewServer returned unexpected error: %v", err)
	}
	if srv.Config != cfg {
		t.Error("Config field not set correctly")
	}
	if srv.Logger != logger {
		t.Error("Logger field not set correctly")
	}
	if srv.Validator == nil {
		t.Error("Validator should be initialized by constructor")
	}
	if srv.router == nil {
		t.Error("internal router should be initialized by constructor")
	}
	if srv.Handler() == nil || srv.Router() == nil {
		t.Error("Handler and Router must not be nil")
	}
}

func TestNewServer_NilDependencies(t *testing.T) {
	if _, err := NewServer(nil, testLogger()); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := NewServer(testConfig(), nil); err == nil {
		t.Error("expected error for nil logger")
	}
}

func TestShutdown_RunsAllClosers(t *testing.T) {
	srv := newTestServer(t)

	var order []string
	srv.Closers = []func(context.Context) error{
		func(context.Context) error { order = append(order, "first"); return errors.New("boom") },
		func(context.Context) error { order = append(order, "second"); return nil },
	}

	err := srv.Shutdown(context.Background())
	if err == nil {
		t.Fatal("expected shutdown error")
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("closers ran in unexpected order: %v", order)
	}
}

func TestShutdown_NoClosers(t *testing.T) {
	srv := newTestServer(t)
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
