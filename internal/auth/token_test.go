package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posturewatch/internal/config"
	"posturewatch/internal/types"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func signHS256(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func validClaims() Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-42",
			Issuer:    "https://id.example.com",
			Audience:  jwt.ClaimStrings{"posturewatch"},
			IssuedAt:  jwt.NewNumericDate(testNow.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
		},
	}
}

func hsVerifier(t *testing.T) *TokenVerifier {
	t.Helper()
	v, err := NewTokenVerifier(VerifierConfig{
		SigningMethod: "HS256",
		Secret:        "s3cret",
		Issuer:        "https://id.example.com",
		Audience:      "posturewatch",
		Clock:         fixedClock{testNow},
	})
	require.NoError(t, err)
	return v
}

func TestResolveToken_HS256(t *testing.T) {
	v := hsVerifier(t)

	actor, err := v.ResolveToken(context.Background(), signHS256(t, "s3cret", validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "user-42", actor.ID)
	assert.Equal(t, types.ActorTypeUser, actor.Type)
}

func TestResolveToken_Rejections(t *testing.T) {
	v := hsVerifier(t)

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(testNow.Add(-time.Hour))

	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "https://evil.example.com"

	wrongAudience := validClaims()
	wrongAudience.Audience = jwt.ClaimStrings{"other"}

	noSubject := validClaims()
	noSubject.Subject = ""

	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims()).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name     string
		token    string
		wantCode types.ErrorCode
	}{
		{name: "expired", token: signHS256(t, "s3cret", expired), wantCode: types.ErrCodeAuthTokenExpired},
		{name: "wrong secret", token: signHS256(t, "other", validClaims()), wantCode: types.ErrCodeAuthTokenInvalid},
		{name: "wrong issuer", token: signHS256(t, "s3cret", wrongIssuer), wantCode: types.ErrCodeAuthTokenInvalid},
		{name: "wrong audience", token: signHS256(t, "s3cret", wrongAudience), wantCode: types.ErrCodeAuthTokenInvalid},
		{name: "no subject", token: signHS256(t, "s3cret", noSubject), wantCode: types.ErrCodeAuthTokenInvalid},
		{name: "no expiry", token: signHS256(t, "s3cret", noExpiry), wantCode: types.ErrCodeAuthTokenInvalid},
		{name: "alg none", token: noneToken, wantCode: types.ErrCodeAuthTokenInvalid},
		{name: "garbage", token: "not.a.jwt", wantCode: types.ErrCodeAuthTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor, err := v.ResolveToken(context.Background(), tt.token)
			assert.Nil(t, actor)

			var appErr *types.AppError
			require.True(t, errors.As(err, &appErr), "got %v", err)
			assert.Equal(t, tt.wantCode, appErr.Code)
		})
	}
}

func TestResolveToken_LeewayAcceptsSlightlyExpired(t *testing.T) {
	v, err := NewTokenVerifier(VerifierConfig{
		SigningMethod: "HS256",
		Secret:        "s3cret",
		Leeway:        30 * time.Second,
		Clock:         fixedClock{testNow},
	})
	require.NoError(t, err)

	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(testNow.Add(-10 * time.Second))

	_, err = v.ResolveToken(context.Background(), signHS256(t, "s3cret", claims))
	assert.NoError(t, err)
}

func TestResolveToken_RS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	v, err := NewTokenVerifier(VerifierConfig{
		SigningMethod: "RS256",
		PublicKey:     string(pemKey),
		Clock:         fixedClock{testNow},
	})
	require.NoError(t, err)

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims()).SignedString(key)
	require.NoError(t, err)

	actor, err := v.ResolveToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", actor.ID)

	// An HS256 token must not pass an RS256 verifier.
	_, err = v.ResolveToken(context.Background(), signHS256(t, string(pemKey), validClaims()))
	assert.Error(t, err)
}

func TestNewTokenVerifier_ConfigErrors(t *testing.T) {
	tests := []VerifierConfig{
		{SigningMethod: "HS256"},
		{SigningMethod: "RS256"},
		{SigningMethod: "RS256", PublicKey: "not pem"},
		{SigningMethod: "ES512", Secret: "x"},
	}
	for _, cfg := range tests {
		_, err := NewTokenVerifier(cfg)
		assert.Error(t, err, "config %+v", cfg)
	}
}

func TestVerifierConfigFrom(t *testing.T) {
	cfg := VerifierConfigFrom(config.AuthConfig{
		SigningMethod: "HS256",
		Secret:        config.SecretString("abc"),
		Issuer:        "iss",
		Audience:      "aud",
		Leeway:        time.Second,
	})

	assert.Equal(t, "abc", cfg.Secret)
	assert.Equal(t, "iss", cfg.Issuer)
	assert.Equal(t, "aud", cfg.Audience)
	assert.Equal(t, time.Second, cfg.Leeway)
}
