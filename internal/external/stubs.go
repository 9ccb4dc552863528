package external

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"posturewatch/internal/types"
)

// StubAlertStore implements AlertStore without a backend: it logs the alert
// and echoes it back. The tracker uses it when no alert API is configured so
// that alerts still reach the local observers.
type StubAlertStore struct {
	logger *slog.Logger
	clock  types.Clock
}

// NewStubAlertStore creates a StubAlertStore.
func NewStubAlertStore(logger *slog.Logger) *StubAlertStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubAlertStore{logger: logger, clock: types.RealClock{}}
}

func (s *StubAlertStore) CreateAlert(ctx context.Context, _ string, input types.AlertInput) (types.Alert, error) {
	now := s.clock.Now()
	s.logger.InfoContext(ctx, "stub: CreateAlert called",
		"title", input.Title,
		"has_image", input.Image != "",
	)
	return types.Alert{
		ID:        "stub_" + strconv.FormatInt(now.UnixMilli(), 10),
		Title:     input.Title,
		Body:      input.Body,
		Image:     input.Image,
		CreatedAt: now.Truncate(time.Millisecond),
	}, nil
}

var _ AlertStore = (*StubAlertStore)(nil)
