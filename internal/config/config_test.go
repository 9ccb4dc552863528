package config

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretStringRedaction(t *testing.T) {
	secret := SecretString("super-secret-value")

	assert.Equal(t, "***REDACTED***", secret.String())
	assert.Equal(t, "***REDACTED***", fmt.Sprintf("%v", secret))
	assert.Equal(t, "***REDACTED***", fmt.Sprintf("%s", secret))
	assert.Equal(t, "super-secret-value", secret.Unmask())
}

func TestSecretStringJSONRedaction(t *testing.T) {
	cfg := AlertConfig{AuthToken: "tok-123"}

	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "tok-123")
	assert.Contains(t, string(b), `"AuthToken":"***REDACTED***"`)
}
