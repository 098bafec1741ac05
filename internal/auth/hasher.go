// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	argon2SaltLen = 16 // salt length in bytes
	argon2KeyLen  = 32 // output length in bytes
	argon2Prefix  = "$argon2id$"
)

// Upper bounds on argon2id cost. Hashes whose encoded parameters exceed them
// never verify, so a corrupt row cannot exhaust memory or CPU.
const (
	MaxHashMemory  = 1 << 20 // KiB (1 GiB)
	MaxHashTime    = 10
	MaxHashThreads = 64
	maxSaltLen     = 64
	maxKeyLen      = 64
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// HashParams is the argon2id work factor.
type HashParams struct {
	Time    uint32 // iterations
	Memory  uint32 // KiB
	Threads uint8  // parallelism
}

// DefaultHashParams are the OWASP-recommended argon2id parameters.
var DefaultHashParams = HashParams{
	Time:    1,
	Memory:  64 * 1024,
	Threads: 4,
}

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a self-describing salted hash of the password.
	Hash(password string) (string, error)

	// Verify reports whether password matches the stored hash.
	// Malformed or unsupported hashes never match.
	Verify(password, hash string) bool

	// NeedsUpgrade returns true if the hash should be re-hashed with argon2id.
	NeedsUpgrade(hash string) bool
}

// Argon2idHasher implements PasswordHasher using argon2id, and verifies
// bcrypt hashes written by earlier deployments.
type Argon2idHasher struct {
	params HashParams
}

var _ PasswordHasher = (*Argon2idHasher)(nil)

// NewArgon2idHasher creates a hasher with the given work factor.
// Zero fields fall back to DefaultHashParams.
func NewArgon2idHasher(params HashParams) *Argon2idHasher {
	if params.Time == 0 {
		params.Time = DefaultHashParams.Time
	}
	if params.Memory == 0 {
		params.Memory = DefaultHashParams.Memory
	}
	if params.Threads == 0 {
		params.Threads = DefaultHashParams.Threads
	}
	return &Argon2idHasher{params: params}
}

// Hash produces an argon2id hash of the password in PHC string format:
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, argon2KeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks if the password matches the stored hash.
func (h *Argon2idHasher) Verify(password, encodedHash string) bool {
	if password == "" || encodedHash == "" {
		return false
	}
	if isBcrypt(encodedHash) {
		return bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password)) == nil
	}
	return verifyArgon2id(password, encodedHash)
}

// NeedsUpgrade returns true if the hash is not argon2id (e.g., bcrypt).
func (h *Argon2idHasher) NeedsUpgrade(hash string) bool {
	return !strings.HasPrefix(hash, argon2Prefix)
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") ||
		strings.HasPrefix(hash, "$2b$") ||
		strings.HasPrefix(hash, "$2y$")
}

func verifyArgon2id(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false
	}
	// Zero values make argon2 panic; large ones exhaust the process.
	if threads == 0 || threads > MaxHashThreads ||
		iterations == 0 || iterations > MaxHashTime ||
		memory == 0 || memory > MaxHashMemory {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) > maxSaltLen {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	keyLen := len(expected)
	if keyLen == 0 || keyLen > maxKeyLen {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, iterations, memory, uint8(threads), uint32(keyLen))
	return subtle.ConstantTimeCompare(computed, expected) == 1
}
