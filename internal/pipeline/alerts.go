package pipeline

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"posturewatch/internal/external"
	"posturewatch/internal/observer"
	"posturewatch/internal/types"
)

// Alert defaults.
const (
	DefaultAlertCooldown  = 8000 * time.Millisecond
	DefaultPersistTimeout = 10 * time.Second

	GoodPostureTitle = "Great Posture!"
	GoodPostureBody  = "You maintained good posture."
)

// TokenSource yields the bearer token used to persist alerts. An empty token
// means anonymous use and persistence is skipped.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed token, typically from ALERT_AUTH_TOKEN.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// Snapshotter encodes a frame into the image attached to an alert.
type Snapshotter func(types.Frame) (string, error)

// AlertGeneratorConfig configures an AlertGenerator. Observer, Store,
// Tokens and Snapshot are all optional.
type AlertGeneratorConfig struct {
	Cooldown       time.Duration // defaults to DefaultAlertCooldown
	PersistTimeout time.Duration // defaults to DefaultPersistTimeout
	Observer       observer.Observer
	Store          external.AlertStore
	Tokens         TokenSource
	Snapshot       Snapshotter
	Clock          types.Clock
	Logger         *slog.Logger
	Metrics        Metrics
}

// AlertGenerator turns good-posture classifications into alerts, at most one
// per cooldown window. The local observer is updated synchronously; remote
// persistence runs detached and its outcome is only logged.
//
// OnGood is called from a single frame loop and is not safe for concurrent
// use. Drain must only be called once that loop has stopped, so no new
// persistence starts while it waits.
type AlertGenerator struct {
	cfg AlertGeneratorConfig

	lastAlert time.Time
	inflight  sync.WaitGroup
}

// NewAlertGenerator creates an AlertGenerator.
func NewAlertGenerator(cfg AlertGeneratorConfig) *AlertGenerator {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultAlertCooldown
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = DefaultPersistTimeout
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
	return &AlertGenerator{cfg: cfg}
}

// OnGood handles one positive classification for frame (nil when no frame
// is at hand). It returns the emitted alert, or false when the call fell
// inside the cooldown window.
func (g *AlertGenerator) OnGood(ctx context.Context, frame *types.Frame) (*types.Alert, bool) {
	now := g.cfg.Clock.Now()
	if !g.lastAlert.IsZero() && now.Sub(g.lastAlert) < g.cfg.Cooldown {
		return nil, false
	}
	g.lastAlert = now

	alert := &types.Alert{
		ID:        strconv.FormatInt(now.UnixMilli(), 10),
		Title:     GoodPostureTitle,
		Body:      GoodPostureBody,
		CreatedAt: now,
		Read:      false,
		Image:     g.snapshot(ctx, frame),
	}

	g.cfg.Metrics.AlertGenerated(ctx)

	if g.cfg.Observer != nil {
		if err := g.cfg.Observer.Apply(ctx, observer.Update{Kind: observer.Prepend, Alert: alert}); err != nil {
			g.cfg.Logger.ErrorContext(ctx, "local alert emission failed", "alert_id", alert.ID, "error", err)
		}
	}

	g.persist(ctx, alert)
	return alert, true
}

// snapshot is best effort: any failure yields no image.
func (g *AlertGenerator) snapshot(ctx context.Context, frame *types.Frame) string {
	if g.cfg.Snapshot == nil || frame == nil {
		return ""
	}
	img, err := g.cfg.Snapshot(*frame)
	if err != nil {
		g.cfg.Logger.DebugContext(ctx, "alert snapshot unavailable", "error", err)
		return ""
	}
	return img
}

// persist starts the detached store call when a token is available.
func (g *AlertGenerator) persist(ctx context.Context, alert *types.Alert) {
	if g.cfg.Store == nil || g.cfg.Tokens == nil {
		return
	}

	token, err := g.cfg.Tokens.Token(ctx)
	if err != nil {
		g.cfg.Logger.WarnContext(ctx, "alert token unavailable; alert not saved", "alert_id", alert.ID, "error", err)
		return
	}
	if token == "" {
		g.cfg.Logger.DebugContext(ctx, "anonymous session; alert not saved", "alert_id", alert.ID)
		return
	}

	input := types.AlertInput{Title: alert.Title, Body: alert.Body, Image: alert.Image}
	detached := context.WithoutCancel(ctx)

	g.inflight.Add(1)
	go func() {
		defer g.inflight.Done()

		pctx, cancel := context.WithTimeout(detached, g.cfg.PersistTimeout)
		defer cancel()

		stored, err := g.cfg.Store.CreateAlert(pctx, token, input)
		if err != nil {
			g.cfg.Metrics.AlertPersistFailed(pctx)
			g.cfg.Logger.WarnContext(pctx, "failed saving alert", "alert_id", alert.ID, "error", err)
			return
		}
		g.cfg.Logger.InfoContext(pctx, "alert saved", "alert_id", alert.ID, "stored_id", stored.ID)
	}()
}

// Drain waits for in-flight persistence calls until ctx is done. It reports
// whether everything finished. Call it after the tracker has stopped.
func (g *AlertGenerator) Drain(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		g.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
