package core

import (
	"context"
	"sync"

	"posturewatch/internal/types"
)

// MockAuthenticator implements Authenticator for tests. It returns Actor, or
// Err when set, unless ResolveTokenFunc overrides both.
//
//	mock := &MockAuthenticator{
//	    Actor: &types.Actor{ID: "user_1", Type: types.ActorTypeUser},
//	}
type MockAuthenticator struct {
	Actor            *types.Actor
	Err              error
	ResolveTokenFunc func(ctx context.Context, token string) (*types.Actor, error)

	mu    sync.Mutex
	Calls []string
}

// ResolveToken records the token and returns the configured outcome.
func (m *MockAuthenticator) ResolveToken(ctx context.Context, token string) (*types.Actor, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, token)
	m.mu.Unlock()

	if m.ResolveTokenFunc != nil {
		return m.ResolveTokenFunc(ctx, token)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Actor, nil
}

var _ Authenticator = (*MockAuthenticator)(nil)
