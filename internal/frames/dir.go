package frames

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"posturewatch/internal/types"
)

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// DirSourceConfig configures a DirSource.
type DirSourceConfig struct {
	Dir    string
	Loop   bool
	Width  int
	Height int
	Logger *slog.Logger
}

// DirSource replays the images of a directory in lexical order. It is the
// offline stand-in for a camera: recorded sessions, demos and tests.
type DirSource struct {
	cfg    DirSourceConfig
	files  []string
	next   int
	seq    uint64
	clock  types.Clock
	logger *slog.Logger
}

// NewDirSource creates a DirSource. Files are listed on Open.
func NewDirSource(cfg DirSourceConfig) *DirSource {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DirSource{cfg: cfg, clock: types.RealClock{}, logger: logger}
}

// Open lists the directory. A directory without images is a setup failure.
func (s *DirSource) Open(ctx context.Context) error {
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamFrameSource, "cannot read frames directory", err)
	}

	s.files = s.files[:0]
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		s.files = append(s.files, filepath.Join(s.cfg.Dir, e.Name()))
	}
	sort.Strings(s.files)

	if len(s.files) == 0 {
		return types.NewAppError(types.ErrCodeUpstreamFrameSource,
			fmt.Sprintf("no images in %s", s.cfg.Dir), nil)
	}

	s.next = 0
	s.logger.InfoContext(ctx, "frame replay opened", "dir", s.cfg.Dir, "frames", len(s.files), "loop", s.cfg.Loop)
	return nil
}

// Next returns the next image. Without Loop, ErrExhausted follows the last
// file. An unreadable file yields ErrNoFrame and is skipped.
func (s *DirSource) Next(ctx context.Context) (types.Frame, error) {
	if err := ctx.Err(); err != nil {
		return types.Frame{}, err
	}
	if len(s.files) == 0 {
		return types.Frame{}, ErrNoFrame
	}
	if s.next >= len(s.files) {
		if !s.cfg.Loop {
			return types.Frame{}, ErrExhausted
		}
		s.next = 0
	}

	path := s.files[s.next]
	s.next++

	data, err := os.ReadFile(path)
	if err != nil {
		return types.Frame{}, fmt.Errorf("%w: %v", ErrNoFrame, err)
	}

	w, h, contentType := dimensions(data, s.cfg.Width, s.cfg.Height)
	if contentType == "" {
		return types.Frame{}, fmt.Errorf("%w: %s is not a decodable image", ErrNoFrame, filepath.Base(path))
	}

	s.seq++
	return types.Frame{
		Seq:         s.seq,
		Timestamp:   s.clock.Now(),
		Width:       w,
		Height:      h,
		Data:        data,
		ContentType: contentType,
	}, nil
}

// Close forgets the file list.
func (s *DirSource) Close() error {
	s.files = nil
	return nil
}

var _ Source = (*DirSource)(nil)
