// Package observer delivers alert updates from the pipeline to its local
// consumers: the in-memory alert list behind the notification UI, and
// optional sinks such as an MQTT topic.
package observer

import (
	"context"
	"errors"
	"fmt"

	"posturewatch/internal/types"
)

// UpdateKind tags an Update.
type UpdateKind string

const (
	// Prepend adds a new alert to the front of the list.
	Prepend UpdateKind = "prepend"
	// MarkRead sets read on the alert named by AlertID.
	MarkRead UpdateKind = "mark_read"
	// MarkAllRead sets read on every alert.
	MarkAllRead UpdateKind = "mark_all_read"
)

// Update is the single message type observers receive. Alert is set for
// Prepend, AlertID for MarkRead.
type Update struct {
	Kind    UpdateKind   `json:"kind"`
	Alert   *types.Alert `json:"alert,omitempty"`
	AlertID string       `json:"alert_id,omitempty"`
}

// Validate checks that the fields required by Kind are present.
func (u Update) Validate() error {
	switch u.Kind {
	case Prepend:
		if u.Alert == nil {
			return errors.New("observer: prepend update without alert")
		}
	case MarkRead:
		if u.AlertID == "" {
			return errors.New("observer: mark_read update without alert id")
		}
	case MarkAllRead:
	default:
		return fmt.Errorf("observer: unknown update kind %q", u.Kind)
	}
	return nil
}

// Observer receives alert updates. Apply must not block on slow I/O; sinks
// that talk to the network hand the work off and return.
type Observer interface {
	Apply(ctx context.Context, u Update) error
}

// Func adapts a plain function to Observer.
type Func func(ctx context.Context, u Update) error

func (f Func) Apply(ctx context.Context, u Update) error { return f(ctx, u) }

// Fanout applies every update to each observer in order. One failing
// observer does not stop delivery to the rest; all errors are joined.
type Fanout []Observer

func (f Fanout) Apply(ctx context.Context, u Update) error {
	var errs []error
	for _, o := range f {
		if o == nil {
			continue
		}
		if err := o.Apply(ctx, u); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Observer = Func(nil)
	_ Observer = Fanout(nil)
)
