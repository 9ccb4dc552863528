package db

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Snapshot images arrive as base64 PNG data URLs and are stored zstd
// compressed. The encoder and decoder are safe for concurrent EncodeAll and
// DecodeAll calls, so one of each is shared.
var (
	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecErr  error
)

func initCodec() {
	encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if codecErr != nil {
		return
	}
	decoder, codecErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
}

// compressImage returns nil for an empty image so the column stays NULL.
func compressImage(dataURL string) ([]byte, error) {
	if dataURL == "" {
		return nil, nil
	}
	codecOnce.Do(initCodec)
	if codecErr != nil {
		return nil, fmt.Errorf("zstd codec: %w", codecErr)
	}
	return encoder.EncodeAll([]byte(dataURL), nil), nil
}

func decompressImage(b []byte) (string, error) {
	if len(b) == 0 {
		return "", nil
	}
	codecOnce.Do(initCodec)
	if codecErr != nil {
		return "", fmt.Errorf("zstd codec: %w", codecErr)
	}
	out, err := decoder.DecodeAll(b, nil)
	if err != nil {
		return "", fmt.Errorf("zstd decompression failed: %w", err)
	}
	return string(out), nil
}
