package core

import (
	"context"

	"posturewatch/internal/types"
)

// Authenticator decouples the HTTP layer from the token format so tests can
// inject a fake.
type Authenticator interface {
	// ResolveToken verifies a bearer token and returns the Actor it names.
	//
	// Distinct error codes:
	// - ErrCodeAuthTokenInvalid if the token is malformed or its signature,
	//   issuer or audience does not match.
	// - ErrCodeAuthTokenExpired if the token is well formed but expired.
	ResolveToken(ctx context.Context, token string) (*types.Actor, error)
}
