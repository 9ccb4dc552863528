package frames

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"

	"posturewatch/internal/types"
)

// PNGDataURL encodes the frame as a base64 PNG data URL, the format stored
// with alerts. Frames that are already PNG are embedded without re-encoding.
func PNGDataURL(f types.Frame) (string, error) {
	if len(f.Data) == 0 {
		return "", errors.New("frames: empty frame")
	}

	data := f.Data
	if f.ContentType != "image/png" {
		img, _, err := image.Decode(bytes.NewReader(f.Data))
		if err != nil {
			return "", fmt.Errorf("frames: decode snapshot: %w", err)
		}
		var buf bytes.Buffer
		enc := png.Encoder{CompressionLevel: png.BestSpeed}
		if err := enc.Encode(&buf, img); err != nil {
			return "", fmt.Errorf("frames: encode snapshot: %w", err)
		}
		data = buf.Bytes()
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}
