// Package frames provides the video frame sources the tracker reads from and
// the snapshot encoding attached to alerts.
package frames

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"posturewatch/internal/types"
)

var (
	// ErrNoFrame means no frame is available this cycle. The tracker skips the
	// cycle and tries again on the next tick.
	ErrNoFrame = errors.New("frames: no frame available")

	// ErrExhausted means a finite source has delivered its last frame.
	ErrExhausted = errors.New("frames: source exhausted")
)

// Source yields frames. Open acquires the underlying stream and fails when
// it cannot be reached; Close releases it.
type Source interface {
	Open(ctx context.Context) error
	Next(ctx context.Context) (types.Frame, error)
	Close() error
}

// dimensions reads the pixel size from the image header, falling back to the
// given defaults when the bytes cannot be decoded.
func dimensions(data []byte, defWidth, defHeight int) (int, int, string) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return defWidth, defHeight, ""
	}
	return cfg.Width, cfg.Height, "image/" + format
}
