package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func serveHealth(t *testing.T, probes ...HealthProbe) (*httptest.ResponseRecorder, healthResponse) {
	t.Helper()
	srv := newTestServer(t)
	srv.HealthProbes = probes

	rec := httptest.NewRecorder()
	srv.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid health body: %v", err)
	}
	return rec, resp
}

func okProbe(name string) HealthProbe {
	return HealthProbeFunc{ProbeName: name, Fn: func(context.Context) error { return nil }}
}

func TestHandleHealth_NoProbes(t *testing.T) {
	rec, resp := serveHealth(t)
	if rec.Code != http.StatusOK || resp.Status != "healthy" {
		t.Errorf("expected healthy 200, got %d %+v", rec.Code, resp)
	}
}

func TestHandleHealth_AllHealthy(t *testing.T) {
	rec, resp := serveHealth(t, okProbe("database"), okProbe("queue"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp.Components["database"].Status != "healthy" || resp.Components["queue"].Status != "healthy" {
		t.Errorf("unexpected components %+v", resp.Components)
	}
}

func TestHandleHealth_FailingProbe(t *testing.T) {
	failing := HealthProbeFunc{ProbeName: "database", Fn: func(context.Context) error {
		return errors.New("connection refused")
	}}

	rec, resp := serveHealth(t, okProbe("queue"), failing)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if resp.Components["database"].Message != "connection refused" {
		t.Errorf("unexpected database status %+v", resp.Components["database"])
	}
	if resp.Components["queue"].Status != "healthy" {
		t.Errorf("healthy probe should stay healthy: %+v", resp.Components["queue"])
	}
}

func TestHandleHealth_PanickingProbe(t *testing.T) {
	panicking := HealthProbeFunc{ProbeName: "database", Fn: func(context.Context) error { panic("nil pool") }}

	rec, resp := serveHealth(t, panicking)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if resp.Components["database"].Status != "unhealthy" {
		t.Errorf("expected unhealthy, got %+v", resp.Components["database"])
	}
}

func TestHandleHealth_SlowProbeTimesOut(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the health deadline")
	}
	slow := HealthProbeFunc{ProbeName: "database", Fn: func(ctx context.Context) error {
		time.Sleep(healthCheckTimeout + time.Second)
		return nil
	}}

	rec, resp := serveHealth(t, slow)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if resp.Components["database"].Message != "health check timed out" {
		t.Errorf("unexpected message %q", resp.Components["database"].Message)
	}
}
