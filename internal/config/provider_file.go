package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
)

// FileProvider implements SecretProvider by reading each key as a file path,
// the convention used by Docker and Kubernetes mounted secrets. Trailing
// newlines are trimmed.
type FileProvider struct {
	readFile func(string) ([]byte, error)
}

// NewFileProvider creates a FileProvider backed by the OS filesystem.
func NewFileProvider() *FileProvider {
	return &FileProvider{readFile: os.ReadFile}
}

// GetParametersBatch reads every path in keys. Missing files are omitted from
// the result; any other read failure aborts the batch.
func (p *FileProvider) GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := p.readFile(key)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		result[key] = strings.TrimRight(string(b), "\r\n")
	}
	return result, nil
}
