// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultTokenTTL is the lifetime of an issued bearer token.
const DefaultTokenTTL = 7 * 24 * time.Hour

// Token verification failures.
var (
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenInvalidSignature = errors.New("token signature invalid")
)

// ErrEmptySecret is returned when a TokenService is built without a secret.
var ErrEmptySecret = oops.Code("AUTH_EMPTY_SECRET").Errorf("token signing secret is required")

// Identity is the authenticated principal carried by a valid token.
type Identity struct {
	UserID ulid.ULID
	Email  string
}

// TokenClaims is the signed payload of a bearer token.
type TokenClaims struct {
	jwt.RegisteredClaims
	ID    string `json:"id"`
	Email string `json:"email"`
}

// TokenService issues and verifies HS256 bearer tokens.
// The secret is fixed at construction and never exposed.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithTokenTTL overrides DefaultTokenTTL.
func WithTokenTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithTokenClock sets the time source used for issue and expiry checks.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTokenService creates a TokenService signing with secret.
func NewTokenService(secret string, opts ...TokenOption) (*TokenService, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	s := &TokenService{
		secret: []byte(secret),
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs a token for the user and returns it with its expiry.
func (s *TokenService) Issue(userID ulid.ULID, email string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		ID:    userID.String(),
		Email: email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	return signed, expiresAt, nil
}

// Verify checks the token's signature and expiry and returns its Identity.
// Errors match ErrTokenMalformed, ErrTokenExpired or ErrTokenInvalidSignature.
func (s *TokenService) Verify(token string) (Identity, error) {
	claims := &TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Identity{}, classifyTokenError(err)
	}
	if !parsed.Valid {
		return Identity{}, oops.Code("TOKEN_INVALID").Wrap(ErrTokenInvalidSignature)
	}

	id, err := ulid.Parse(claims.ID)
	if err != nil {
		return Identity{}, oops.Code("TOKEN_MALFORMED").With("claim", "id").Wrap(ErrTokenMalformed)
	}
	return Identity{UserID: id, Email: claims.Email}, nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return oops.Code("TOKEN_MALFORMED").Wrap(errors.Join(ErrTokenMalformed, err))
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return oops.Code("TOKEN_INVALID_SIGNATURE").Wrap(errors.Join(ErrTokenInvalidSignature, err))
	case errors.Is(err, jwt.ErrTokenExpired):
		return oops.Code("TOKEN_EXPIRED").Wrap(errors.Join(ErrTokenExpired, err))
	default:
		return oops.Code("TOKEN_MALFORMED").Wrap(errors.Join(ErrTokenMalformed, err))
	}
}
