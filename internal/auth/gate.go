// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

package auth

import (
	"context"
	"errors"
	"strings"
)

// Gate rejection messages.
const (
	MsgNoToken      = "Access Denied. No token provided."
	MsgTokenInvalid = "Token is not valid"
	MsgTokenExpired = "Token expired"
)

// TokenVerifier verifies bearer tokens.
type TokenVerifier interface {
	Verify(token string) (Identity, error)
}

var _ TokenVerifier = (*TokenService)(nil)

// Gate authenticates the raw Authorization header of a request.
type Gate struct {
	tokens TokenVerifier
}

// NewGate creates a Gate backed by tokens.
func NewGate(tokens TokenVerifier) (*Gate, error) {
	if tokens == nil {
		return nil, errors.New("token verifier is required")
	}
	return &Gate{tokens: tokens}, nil
}

// Authenticate returns the Identity carried by rawHeader. The header may be
// "Bearer <token>" or the bare token. Every rejection is KindAuthentication.
func (g *Gate) Authenticate(rawHeader string) (Identity, error) {
	if rawHeader == "" {
		return Identity{}, NewError(KindAuthentication, MsgNoToken)
	}

	token := strings.TrimSpace(strings.TrimPrefix(rawHeader, "Bearer "))
	if token == "" {
		return Identity{}, NewError(KindAuthentication, MsgTokenInvalid)
	}

	identity, err := g.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return Identity{}, NewError(KindAuthentication, MsgTokenExpired)
		}
		return Identity{}, NewError(KindAuthentication, MsgTokenInvalid)
	}
	return identity, nil
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the Identity attached by WithIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok
}
