// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent drift bugs.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Resolve *_FILE secret references through the SecretProvider and inject
//     the values back into the environment.
//  4. Use envconfig to process struct tags.
//  5. Populate BuildInfo from linker-injected variables.
//  6. Validate the struct using go-playground/validator, then cross-field rules.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by the loaders.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// fileSuffix marks a variable whose value is the path of a secret file. For
// example AUTH_SECRET_FILE=/run/secrets/jwt fills AUTH_SECRET.
const fileSuffix = "_FILE"

type envLookup func(key string) (string, bool)

type envSet func(key, value string) error

type environ func() []string

// loaderDeps holds the injectable dependencies for the loader, enabling
// testing without mutating global state.
type loaderDeps struct {
	lookupEnv envLookup
	setEnv    envSet
	environ   environ
	loadDot   func() error
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
		environ:   os.Environ,
		loadDot:   func() error { return godotenv.Load() },
	}
}

// LoadTrackerConfig loads and validates the tracker configuration. A nil
// provider defaults to FileProvider.
func LoadTrackerConfig(provider SecretProvider) (*TrackerConfig, error) {
	return loadTrackerConfigWithDeps(provider, defaultDeps())
}

// LoadAPIConfig loads and validates the API configuration. A nil provider
// defaults to FileProvider.
func LoadAPIConfig(provider SecretProvider) (*APIConfig, error) {
	return loadAPIConfigWithDeps(provider, defaultDeps())
}

func loadTrackerConfigWithDeps(provider SecretProvider, deps loaderDeps) (*TrackerConfig, error) {
	var cfg TrackerConfig
	if err := load(provider, deps, &cfg); err != nil {
		return nil, err
	}
	cfg.Build = NewBuildInfo()

	if cfg.Camera.URL == "" && cfg.Camera.FramesDir == "" {
		return nil, &ConfigError{
			Type:    ErrMissingEnv,
			Message: "one of CAMERA_URL or FRAMES_DIR must be set",
		}
	}
	return &cfg, nil
}

func loadAPIConfigWithDeps(provider SecretProvider, deps loaderDeps) (*APIConfig, error) {
	var cfg APIConfig
	if err := load(provider, deps, &cfg); err != nil {
		return nil, err
	}
	cfg.Build = NewBuildInfo()
	return &cfg, nil
}

// load runs steps 1-4 and 6 of the lifecycle into target.
func load(provider SecretProvider, deps loaderDeps, target any) error {
	time.Local = time.UTC

	// godotenv does not override variables already set in the environment.
	if deps.loadDot != nil {
		_ = deps.loadDot()
	}

	if provider == nil {
		provider = NewFileProvider()
	}
	if err := resolveSecretFiles(provider, deps); err != nil {
		return err
	}

	if err := envconfig.Process("", target); err != nil {
		return &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	if err := validator.New().Struct(target); err != nil {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}
	return nil
}

// resolveSecretFiles scans the environment for *_FILE variables, reads the
// referenced secrets through provider and sets the target variables. A target
// that is already set is left alone (Env > Dotenv > File).
func resolveSecretFiles(provider SecretProvider, deps loaderDeps) error {
	pathToTarget := make(map[string]string)
	var paths []string

	for _, entry := range deps.environ() {
		eqIdx := strings.IndexByte(entry, '=')
		if eqIdx < 0 {
			continue
		}
		key := entry[:eqIdx]
		if !strings.HasSuffix(key, fileSuffix) || key == fileSuffix {
			continue
		}

		target := strings.TrimSuffix(key, fileSuffix)
		if _, exists := deps.lookupEnv(target); exists {
			continue
		}

		path := entry[eqIdx+1:]
		if path == "" {
			continue
		}
		pathToTarget[path] = target
		paths = append(paths, path)
	}

	if len(paths) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, paths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSecretResolution,
			Message: fmt.Sprintf("failed to resolve %d secret files", len(paths)),
			Err:     err,
		}
	}

	var missing []string
	for _, path := range paths {
		target := pathToTarget[path]
		value, ok := resolved[path]
		if !ok {
			missing = append(missing, target)
			continue
		}
		if err := deps.setEnv(target, value); err != nil {
			return &ConfigError{
				Type:    ErrSecretResolution,
				Message: fmt.Sprintf("failed to set resolved value for %s", target),
				Err:     err,
			}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSecretResolution,
			Message: fmt.Sprintf("secret files not found for: %s", strings.Join(missing, ", ")),
		}
	}
	return nil
}
