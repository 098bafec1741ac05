// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// User is a registered account.
// ResetCodeHash and ResetCodeExpiresAt are both set or both nil.
type User struct {
	ID                 ulid.ULID
	Name               string
	Email              string
	PasswordHash       string
	ResetCodeHash      *string
	ResetCodeExpiresAt *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewUser creates a User with a fresh ID. Email is stored as given.
func NewUser(name, email, passwordHash string) (*User, error) {
	if name == "" {
		return nil, oops.Code("USER_INVALID").Errorf("name cannot be empty")
	}
	if email == "" {
		return nil, oops.Code("USER_INVALID").Errorf("email cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID").Errorf("password hash cannot be empty")
	}
	now := time.Now().UTC()
	return &User{
		ID:           ulid.Make(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// SetResetCode records a pending reset code digest, replacing any previous one.
func (u *User) SetResetCode(hash string, expiresAt time.Time) {
	u.ResetCodeHash = &hash
	u.ResetCodeExpiresAt = &expiresAt
}

// ClearResetCode drops any pending reset code.
func (u *User) ClearResetCode() {
	u.ResetCodeHash = nil
	u.ResetCodeExpiresAt = nil
}

// HasPendingReset reports whether an unexpired reset code is recorded at now.
func (u *User) HasPendingReset(now time.Time) bool {
	return u.ResetCodeHash != nil && u.ResetCodeExpiresAt != nil && now.Before(*u.ResetCodeExpiresAt)
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user.
	// Returns ErrAlreadyExists if the email is taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by exact email.
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// SetResetCode stores a reset code digest and expiry, overwriting any previous pair.
	// Returns ErrResetCodeTaken if another user holds hash with an expiry after now.
	SetResetCode(ctx context.Context, id ulid.ULID, hash string, expiresAt, now time.Time) error

	// GetByResetCode retrieves the user holding hash with an expiry after now.
	// Returns ErrNotFound when no user, or more than one, holds it.
	GetByResetCode(ctx context.Context, hash string, now time.Time) (*User, error)

	// ResetPassword sets a new password hash and clears the reset pair, as one
	// all-or-nothing write. Returns ErrNotFound if the user is gone and
	// ErrResetCodeConsumed if the user no longer holds codeHash or it expired
	// at or before now.
	ResetPassword(ctx context.Context, id ulid.ULID, codeHash, passwordHash string, now time.Time) error

	// UpdatePassword updates only the password hash.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// PurgeExpiredResetCodes clears reset pairs that expired at or before now.
	PurgeExpiredResetCodes(ctx context.Context, now time.Time) (int64, error)
}
