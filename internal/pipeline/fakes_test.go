package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"posturewatch/internal/frames"
	"posturewatch/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeClassifier struct {
	mu          sync.Mutex
	calls       int
	result      types.ClassificationResult
	err         error
	hadDeadline bool
}

func (f *fakeClassifier) Classify(ctx context.Context, _ types.FeatureVector) (types.ClassificationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	_, f.hadDeadline = ctx.Deadline()
	if f.err != nil {
		return types.ClassificationFailure(f.err), f.err
	}
	return f.result, nil
}

func (f *fakeClassifier) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeEstimator struct {
	pose      types.Pose
	err       error
	warmupErr error
	calls     int
}

func (f *fakeEstimator) Estimate(context.Context, types.Frame) (types.Pose, error) {
	f.calls++
	return f.pose, f.err
}

func (f *fakeEstimator) Warmup(context.Context) error { return f.warmupErr }

// fakeSource yields the same frame limit times, then ErrExhausted. A
// negative limit never ends.
type fakeSource struct {
	mu      sync.Mutex
	frame   types.Frame
	limit   int
	served  int
	openErr error
	nextErr error
	opened  bool
	closed  bool
	onNext  func(served int)
}

func (s *fakeSource) Open(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return s.openErr
	}
	s.opened = true
	return nil
}

func (s *fakeSource) Next(context.Context) (types.Frame, error) {
	s.mu.Lock()
	if s.nextErr != nil {
		s.mu.Unlock()
		return types.Frame{}, s.nextErr
	}
	if s.limit >= 0 && s.served >= s.limit {
		s.mu.Unlock()
		return types.Frame{}, frames.ErrExhausted
	}
	s.served++
	served := s.served
	f := s.frame
	f.Seq = uint64(served)
	s.mu.Unlock()

	if s.onNext != nil {
		s.onNext(served)
	}
	return f, nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSource) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type storeCall struct {
	token string
	input types.AlertInput
}

type fakeStore struct {
	mu    sync.Mutex
	calls []storeCall
	err   error
	gate  chan struct{}
}

func (s *fakeStore) CreateAlert(ctx context.Context, token string, input types.AlertInput) (types.Alert, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return types.Alert{}, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, storeCall{token: token, input: input})
	if s.err != nil {
		return types.Alert{}, s.err
	}
	return types.Alert{ID: "stored-1", Title: input.Title}, nil
}

func (s *fakeStore) Calls() []storeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storeCall, len(s.calls))
	copy(out, s.calls)
	return out
}

type failingTokens struct{}

func (failingTokens) Token(context.Context) (string, error) { return "", errors.New("session expired") }

type countingMetrics struct {
	mu             sync.Mutex
	processed      int
	skipped        map[string]int
	classified     int
	failed         int
	alerts         int
	persistFailure int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{skipped: map[string]int{}}
}

func (m *countingMetrics) FrameProcessed(context.Context) {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *countingMetrics) FrameSkipped(_ context.Context, reason string) {
	m.mu.Lock()
	m.skipped[reason]++
	m.mu.Unlock()
}

func (m *countingMetrics) Classified(context.Context, string, time.Duration) {
	m.mu.Lock()
	m.classified++
	m.mu.Unlock()
}

func (m *countingMetrics) ClassificationFailed(context.Context, time.Duration) {
	m.mu.Lock()
	m.failed++
	m.mu.Unlock()
}

func (m *countingMetrics) AlertGenerated(context.Context) {
	m.mu.Lock()
	m.alerts++
	m.mu.Unlock()
}

func (m *countingMetrics) AlertPersistFailed(context.Context) {
	m.mu.Lock()
	m.persistFailure++
	m.mu.Unlock()
}

func (m *countingMetrics) PersistFailures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persistFailure
}

// uprightPose is a seated, level pose in a 100x100 frame.
func uprightPose() types.Pose {
	kp := func(part types.AnatomicalPart, x, y float64) types.Keypoint {
		return types.Keypoint{Part: part, Position: types.Point{X: x, Y: y}, Score: 0.9}
	}
	return types.Pose{Keypoints: []types.Keypoint{
		kp(types.PartNose, 50, 30),
		kp(types.PartLeftShoulder, 40, 50),
		kp(types.PartRightShoulder, 60, 50),
		kp(types.PartLeftHip, 40, 90),
		kp(types.PartRightHip, 60, 90),
	}}
}

func testFrame() types.Frame {
	return types.Frame{Width: 100, Height: 100, Data: []byte("frame"), ContentType: "image/png"}
}
