package pipeline

import (
	"fmt"
	"sync"
	"time"

	"posturewatch/internal/posture"
	"posturewatch/internal/types"
)

// Lifecycle messages shown by the status panel.
const (
	StatusInitializing = "Initializing posture tracker…"
	StatusTracking     = "Tracking posture…"
	StatusError        = "Error starting tracker."
	StatusStopped      = "Tracker stopped."

	initialPostureLabel = "Detecting posture…"
)

// Status is the tracker's user-visible state. Only setup failures change
// Message to StatusError; per-cycle failures never show up here.
type Status struct {
	Message          string                  `json:"message"`
	Running          bool                    `json:"running"`
	PostureLabel     string                  `json:"posture_label"`
	Suggestion       string                  `json:"suggestion"`
	Display          *posture.DisplayMetrics `json:"display,omitempty"`
	VisibleKeypoints int                     `json:"visible_keypoints"`
	FramesProcessed  uint64                  `json:"frames_processed"`
	LastClassifiedAt *time.Time              `json:"last_classified_at,omitempty"`
	LastAlertAt      *time.Time              `json:"last_alert_at,omitempty"`
	Error            string                  `json:"error,omitempty"`
}

// StatusBoard holds the current Status. The frame loop writes it; the
// status server reads it from other goroutines.
type StatusBoard struct {
	mu sync.RWMutex
	s  Status
}

// NewStatusBoard returns a board in the initializing state.
func NewStatusBoard() *StatusBoard {
	return &StatusBoard{s: Status{
		Message:      StatusInitializing,
		PostureLabel: initialPostureLabel,
	}}
}

// Snapshot returns a copy of the current status.
func (b *StatusBoard) Snapshot() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := b.s
	if s.Display != nil {
		d := *s.Display
		s.Display = &d
	}
	return s
}

func (b *StatusBoard) update(fn func(*Status)) {
	b.mu.Lock()
	fn(&b.s)
	b.mu.Unlock()
}

func (b *StatusBoard) started() {
	b.update(func(s *Status) {
		s.Message = StatusTracking
		s.Running = true
		s.Error = ""
	})
}

func (b *StatusBoard) failed(err error) {
	b.update(func(s *Status) {
		s.Message = StatusError
		s.Running = false
		s.Error = err.Error()
	})
}

func (b *StatusBoard) stopped() {
	b.update(func(s *Status) {
		s.Message = StatusStopped
		s.Running = false
	})
}

func (b *StatusBoard) frame(pose types.Pose) {
	b.update(func(s *Status) {
		s.FramesProcessed++
		s.VisibleKeypoints = posture.VisibleKeypoints(pose)
	})
}

func (b *StatusBoard) features(fv types.FeatureVector) {
	d := posture.Display(fv)
	b.update(func(s *Status) { s.Display = &d })
}

// classified records a successful classification. Failed results leave the
// label and suggestion at their prior values.
func (b *StatusBoard) classified(res types.ClassificationResult, at time.Time) {
	if res.Failed {
		return
	}
	b.update(func(s *Status) {
		s.PostureLabel = "ML: " + res.Label
		s.Suggestion = fmt.Sprintf("Confidence: %.1f%%", res.Confidence*100)
		s.LastClassifiedAt = &at
	})
}

func (b *StatusBoard) alerted(at time.Time) {
	b.update(func(s *Status) { s.LastAlertAt = &at })
}
