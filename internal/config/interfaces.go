package config

import "context"

// SecretProvider resolves secret references to plaintext values. The loader
// uses it for every *_FILE variable whose target variable is unset.
type SecretProvider interface {
	// GetParametersBatch returns key -> value for every reference it could
	// resolve. Unresolvable references are omitted, not errors.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
