// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

package auth_test

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafguard/leafguard/internal/auth"
	"github.com/leafguard/leafguard/pkg/errutil"
)

const testSecret = "test-signing-secret"

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNewTokenService_RequiresSecret(t *testing.T) {
	svc, err := auth.NewTokenService("")
	require.Error(t, err)
	assert.Nil(t, svc)
	errutil.AssertErrorCode(t, err, "AUTH_EMPTY_SECRET")
}

func TestTokenService_RoundTrip(t *testing.T) {
	svc, err := auth.NewTokenService(testSecret)
	require.NoError(t, err)

	userID := ulid.Make()
	token, expiresAt, err := svc.Issue(userID, "ada@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), expiresAt, time.Minute)

	identity, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, userID, identity.UserID)
	assert.Equal(t, "ada@example.com", identity.Email)
}

func TestTokenService_Expiry(t *testing.T) {
	issuedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	issuer, err := auth.NewTokenService(testSecret, auth.WithTokenClock(fixedClock(issuedAt)))
	require.NoError(t, err)

	token, expiresAt, err := issuer.Issue(ulid.Make(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, issuedAt.Add(auth.DefaultTokenTTL), expiresAt)

	t.Run("valid just before expiry", func(t *testing.T) {
		verifier, err := auth.NewTokenService(testSecret, auth.WithTokenClock(fixedClock(expiresAt.Add(-time.Minute))))
		require.NoError(t, err)
		_, err = verifier.Verify(token)
		assert.NoError(t, err)
	})

	t.Run("expired after exp", func(t *testing.T) {
		verifier, err := auth.NewTokenService(testSecret, auth.WithTokenClock(fixedClock(expiresAt.Add(time.Minute))))
		require.NoError(t, err)
		_, err = verifier.Verify(token)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrTokenExpired)
	})
}

func TestTokenService_CustomTTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc, err := auth.NewTokenService(testSecret, auth.WithTokenTTL(time.Hour), auth.WithTokenClock(fixedClock(now)))
	require.NoError(t, err)

	_, expiresAt, err := svc.Issue(ulid.Make(), "a@b.c")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), expiresAt)
}

func TestTokenService_VerifyFailures(t *testing.T) {
	svc, err := auth.NewTokenService(testSecret)
	require.NoError(t, err)

	rotated, err := auth.NewTokenService("another-secret")
	require.NoError(t, err)
	foreign, _, err := rotated.Issue(ulid.Make(), "a@b.c")
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, auth.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		ID:               ulid.Make().String(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, auth.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		ID:               ulid.Make().String(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	badID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		ID:               "42",
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty string", "", auth.ErrTokenMalformed},
		{"garbage", "not-a-token", auth.ErrTokenMalformed},
		{"rotated secret", foreign, auth.ErrTokenInvalidSignature},
		{"alg none", noneToken, auth.ErrTokenInvalidSignature},
		{"non HS256 alg", hs512, auth.ErrTokenInvalidSignature},
		{"non ulid subject", badID, auth.ErrTokenMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(tt.token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

// swapFirstChar replaces the first character of a base64url segment with a
// different alphabet character so the decoded bytes change.
func swapFirstChar(segment string) string {
	if segment[0] == 'A' {
		return "B" + segment[1:]
	}
	return "A" + segment[1:]
}

func TestTokenService_VerifyRejectsTamperedToken(t *testing.T) {
	svc, err := auth.NewTokenService(testSecret)
	require.NoError(t, err)
	token, _, err := svc.Issue(ulid.Make(), "ada@example.com")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	t.Run("signature byte changed", func(t *testing.T) {
		forged := strings.Join([]string{parts[0], parts[1], swapFirstChar(parts[2])}, ".")
		require.NotEqual(t, token, forged)

		_, err := svc.Verify(forged)
		require.Error(t, err)
		errutil.AssertSentinel(t, err, auth.ErrTokenInvalidSignature, "TOKEN_INVALID_SIGNATURE")
	})

	t.Run("payload claim changed", func(t *testing.T) {
		payload, err := base64.RawURLEncoding.DecodeString(parts[1])
		require.NoError(t, err)
		altered := strings.Replace(string(payload), "ada@example.com", "eve@example.com", 1)
		require.NotEqual(t, string(payload), altered)

		forged := strings.Join([]string{parts[0], base64.RawURLEncoding.EncodeToString([]byte(altered)), parts[2]}, ".")
		_, err = svc.Verify(forged)
		require.Error(t, err)
		errutil.AssertSentinel(t, err, auth.ErrTokenInvalidSignature, "TOKEN_INVALID_SIGNATURE")
	})

	t.Run("header byte changed", func(t *testing.T) {
		header, err := base64.RawURLEncoding.DecodeString(parts[0])
		require.NoError(t, err)
		altered := strings.Replace(string(header), `"typ":"JWT"`, `"typ":"JWS"`, 1)
		require.NotEqual(t, string(header), altered)

		forged := strings.Join([]string{base64.RawURLEncoding.EncodeToString([]byte(altered)), parts[1], parts[2]}, ".")
		_, err = svc.Verify(forged)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrTokenInvalidSignature)
	})
}
