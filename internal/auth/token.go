// Package auth verifies the bearer tokens issued by the identity provider and
// turns them into Actors for the API chassis.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"posturewatch/internal/config"
	"posturewatch/internal/types"
)

// Claims are the token claims the API relies on. The subject is the user id
// that owns alerts.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// VerifierConfig configures a TokenVerifier.
type VerifierConfig struct {
	SigningMethod string // HS256 or RS256
	Secret        string // HS256 shared secret
	PublicKey     string // RS256 PEM public key
	Issuer        string // optional expected iss
	Audience      string // optional expected aud
	Leeway        time.Duration
	Clock         types.Clock
}

// VerifierConfigFrom maps the environment configuration onto VerifierConfig.
func VerifierConfigFrom(cfg config.AuthConfig) VerifierConfig {
	return VerifierConfig{
		SigningMethod: cfg.SigningMethod,
		Secret:        cfg.Secret.Unmask(),
		PublicKey:     cfg.PublicKey.Unmask(),
		Issuer:        cfg.Issuer,
		Audience:      cfg.Audience,
		Leeway:        cfg.Leeway,
	}
}

// TokenVerifier validates JWTs and resolves them to user Actors.
type TokenVerifier struct {
	method jwt.SigningMethod
	key    any
	parser *jwt.Parser
}

// NewTokenVerifier builds a verifier for one signing method. Unknown methods
// and unusable keys are configuration errors.
func NewTokenVerifier(cfg VerifierConfig) (*TokenVerifier, error) {
	v := &TokenVerifier{}

	switch cfg.SigningMethod {
	case "HS256":
		if cfg.Secret == "" {
			return nil, errors.New("secret required for HS256")
		}
		v.method = jwt.SigningMethodHS256
		v.key = []byte(cfg.Secret)
	case "RS256":
		if cfg.PublicKey == "" {
			return nil, errors.New("public key required for RS256")
		}
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKey))
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}
		v.method = jwt.SigningMethodRS256
		v.key = key
	default:
		return nil, fmt.Errorf("unsupported signing method: %q", cfg.SigningMethod)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	if cfg.Clock != nil {
		opts = append(opts, jwt.WithTimeFunc(cfg.Clock.Now))
	}
	v.parser = jwt.NewParser(opts...)

	return v, nil
}

// ResolveToken implements core.Authenticator. The token subject becomes the
// Actor id.
func (v *TokenVerifier) ResolveToken(_ context.Context, token string) (*types.Actor, error) {
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, types.NewAppError(types.ErrCodeAuthTokenExpired, "token has expired", err)
		}
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "token is invalid", err)
	}

	if claims.Subject == "" {
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "token has no subject", nil)
	}

	return &types.Actor{ID: claims.Subject, Type: types.ActorTypeUser}, nil
}
