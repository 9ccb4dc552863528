package observer

import (
	"context"
	"sync"

	"posturewatch/internal/types"
)

// DefaultHistoryLimit bounds AlertList when no limit is given.
const DefaultHistoryLimit = 50

// AlertList is the in-memory, newest-first alert history the local
// notification UI reads. It is safe for concurrent use: the pipeline writes
// while the status server reads.
type AlertList struct {
	mu     sync.RWMutex
	alerts []types.Alert
	limit  int
}

// NewAlertList creates an AlertList keeping at most limit alerts.
func NewAlertList(limit int) *AlertList {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &AlertList{limit: limit}
}

// Apply implements Observer. MarkRead of an unknown id returns
// types.ErrCodeNotFoundAlert.
func (l *AlertList) Apply(_ context.Context, u Update) error {
	if err := u.Validate(); err != nil {
		return types.NewAppError(types.ErrCodeValidationMissingField, err.Error(), nil)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	switch u.Kind {
	case Prepend:
		l.alerts = append([]types.Alert{*u.Alert}, l.alerts...)
		if len(l.alerts) > l.limit {
			l.alerts = l.alerts[:l.limit]
		}
	case MarkRead:
		for i := range l.alerts {
			if l.alerts[i].ID == u.AlertID {
				l.alerts[i].Read = true
				return nil
			}
		}
		return types.NewAppError(types.ErrCodeNotFoundAlert, "alert not found", nil)
	case MarkAllRead:
		for i := range l.alerts {
			l.alerts[i].Read = true
		}
	}
	return nil
}

// Snapshot returns a copy of the alerts, newest first.
func (l *AlertList) Snapshot() []types.Alert {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]types.Alert, len(l.alerts))
	copy(out, l.alerts)
	return out
}

// Get returns the alert with id.
func (l *AlertList) Get(id string) (types.Alert, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, a := range l.alerts {
		if a.ID == id {
			return a, true
		}
	}
	return types.Alert{}, false
}

// Unread counts alerts not yet marked read.
func (l *AlertList) Unread() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, a := range l.alerts {
		if !a.Read {
			n++
		}
	}
	return n
}

var _ Observer = (*AlertList)(nil)
