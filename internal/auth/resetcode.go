// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/samber/oops"
)

// DefaultResetCodeTTL is how long a reset code stays valid.
const DefaultResetCodeTTL = 15 * time.Minute

// resetCodeSpace is the number of distinct 6-digit codes.
var resetCodeSpace = big.NewInt(1_000_000)

// ResetCode is a freshly generated reset code. Code is the plaintext that is
// mailed to the user; only Hash and ExpiresAt are persisted.
type ResetCode struct {
	Code      string
	Hash      string
	ExpiresAt time.Time
}

// ResetCodeGenerator issues and checks short-lived numeric reset codes.
type ResetCodeGenerator struct {
	ttl time.Duration
}

// NewResetCodeGenerator returns a generator whose codes live for ttl.
// A non-positive ttl uses DefaultResetCodeTTL.
func NewResetCodeGenerator(ttl time.Duration) *ResetCodeGenerator {
	if ttl <= 0 {
		ttl = DefaultResetCodeTTL
	}
	return &ResetCodeGenerator{ttl: ttl}
}

// TTL returns the configured code lifetime.
func (g *ResetCodeGenerator) TTL() time.Duration {
	return g.ttl
}

// Generate draws a uniform code in 000000-999999 and returns it with its
// digest and expiry.
func (g *ResetCodeGenerator) Generate(now time.Time) (ResetCode, error) {
	n, err := rand.Int(rand.Reader, resetCodeSpace)
	if err != nil {
		return ResetCode{}, oops.Code("RESET_CODE_GENERATE_FAILED").Wrap(err)
	}
	code := fmt.Sprintf("%06d", n.Int64())
	return ResetCode{
		Code:      code,
		Hash:      HashResetCode(code),
		ExpiresAt: now.Add(g.ttl),
	}, nil
}

// Verify reports whether code matches hash and now is before expiresAt.
func (g *ResetCodeGenerator) Verify(code, hash string, expiresAt, now time.Time) bool {
	if code == "" || hash == "" {
		return false
	}
	computed := HashResetCode(code)
	match := subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
	return match && now.Before(expiresAt)
}

// HashResetCode returns the hex SHA-256 digest used to store and look up a code.
func HashResetCode(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}
