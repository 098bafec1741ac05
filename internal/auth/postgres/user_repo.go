// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

// Package postgres implements auth repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/leafguard/leafguard/internal/auth"
	"github.com/leafguard/leafguard/internal/store"
)

const userColumns = `id, name, email, password_hash, reset_code_hash, reset_code_expires_at, created_at, updated_at`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	db store.DB
}

var _ auth.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates a new UserRepository over db.
func NewUserRepository(db store.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create stores a new user. A taken email maps to auth.ErrAlreadyExists.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		user.ID.String(),
		user.Name,
		user.Email,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("USER_ALREADY_EXISTS").
				With("email", user.Email).
				With("constraint", pgErr.ConstraintName).
				Wrap(auth.ErrAlreadyExists)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id.String())

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves a user by exact email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").
			With("email", email).
			Wrap(err)
	}
	return user, nil
}

// SetResetCode overwrites the user's reset pair. Expired pairs holding the
// same digest are released first; an unexpired one held by another user
// violates the unique index and maps to auth.ErrResetCodeTaken.
func (r *UserRepository) SetResetCode(ctx context.Context, id ulid.ULID, hash string, expiresAt, now time.Time) error {
	return store.WithTx(ctx, r.db, func(ctx context.Context, q store.DB) error {
		if _, err := q.Exec(ctx, `
			UPDATE users
			SET reset_code_hash = NULL, reset_code_expires_at = NULL, updated_at = now()
			WHERE reset_code_hash = $1 AND reset_code_expires_at <= $2
		`, hash, now); err != nil {
			return oops.Code("USER_SET_RESET_CODE_FAILED").
				With("operation", "release expired digest").
				With("id", id.String()).
				Wrap(err)
		}

		result, err := q.Exec(ctx, `
			UPDATE users
			SET reset_code_hash = $2, reset_code_expires_at = $3, updated_at = now()
			WHERE id = $1
		`, id.String(), hash, expiresAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				return oops.Code("RESET_CODE_TAKEN").
					With("id", id.String()).
					With("constraint", pgErr.ConstraintName).
					Wrap(auth.ErrResetCodeTaken)
			}
			return oops.Code("USER_SET_RESET_CODE_FAILED").
				With("operation", "store digest").
				With("id", id.String()).
				Wrap(err)
		}
		if result.RowsAffected() == 0 {
			return oops.Code("USER_NOT_FOUND").
				With("id", id.String()).
				Wrap(auth.ErrNotFound)
		}
		return nil
	})
}

// GetByResetCode retrieves the single user holding hash, if it expires after
// now. More than one holder is treated as no match.
func (r *UserRepository) GetByResetCode(ctx context.Context, hash string, now time.Time) (*auth.User, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE reset_code_hash = $1 AND reset_code_expires_at > $2
		LIMIT 2
	`, hash, now)
	if err != nil {
		return nil, oops.Code("USER_GET_BY_RESET_CODE_FAILED").Wrap(err)
	}
	defer rows.Close()

	var found []*auth.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, oops.Code("USER_GET_BY_RESET_CODE_FAILED").Wrap(err)
		}
		found = append(found, user)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("USER_GET_BY_RESET_CODE_FAILED").Wrap(err)
	}

	switch len(found) {
	case 0:
		return nil, oops.Code("RESET_CODE_NOT_FOUND").Wrap(auth.ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return nil, oops.Code("RESET_CODE_AMBIGUOUS").Wrap(auth.ErrNotFound)
	}
}

// ResetPassword locks the user row, checks it still holds an unexpired
// codeHash, then sets the new password and clears the reset pair.
func (r *UserRepository) ResetPassword(ctx context.Context, id ulid.ULID, codeHash, passwordHash string, now time.Time) error {
	return store.WithTx(ctx, r.db, func(ctx context.Context, q store.DB) error {
		var (
			current   *string
			expiresAt *time.Time
		)
		err := q.QueryRow(ctx,
			`SELECT reset_code_hash, reset_code_expires_at FROM users WHERE id = $1 FOR UPDATE`,
			id.String()).Scan(&current, &expiresAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return oops.Code("USER_NOT_FOUND").
				With("id", id.String()).
				Wrap(auth.ErrNotFound)
		}
		if err != nil {
			return oops.Code("USER_RESET_PASSWORD_FAILED").
				With("operation", "lock user").
				With("id", id.String()).
				Wrap(err)
		}
		if current == nil || *current != codeHash || expiresAt == nil || !now.Before(*expiresAt) {
			return oops.Code("RESET_CODE_CONSUMED").
				With("id", id.String()).
				Wrap(auth.ErrResetCodeConsumed)
		}

		result, err := q.Exec(ctx, `
			UPDATE users
			SET password_hash = $2, reset_code_hash = NULL, reset_code_expires_at = NULL, updated_at = now()
			WHERE id = $1 AND reset_code_hash = $3 AND reset_code_expires_at > $4
		`, id.String(), passwordHash, codeHash, now)
		if err != nil {
			return oops.Code("USER_RESET_PASSWORD_FAILED").
				With("operation", "update password").
				With("id", id.String()).
				Wrap(err)
		}
		if result.RowsAffected() == 0 {
			return oops.Code("RESET_CODE_CONSUMED").
				With("id", id.String()).
				Wrap(auth.ErrResetCodeConsumed)
		}
		return nil
	})
}

// UpdatePassword updates only the password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	result, err := r.db.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1
	`, id.String(), passwordHash)
	if err != nil {
		return oops.Code("USER_UPDATE_PASSWORD_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// PurgeExpiredResetCodes clears every reset pair that expired at or before now.
func (r *UserRepository) PurgeExpiredResetCodes(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.Exec(ctx, `
		UPDATE users
		SET reset_code_hash = NULL, reset_code_expires_at = NULL, updated_at = now()
		WHERE reset_code_expires_at IS NOT NULL AND reset_code_expires_at <= $1
	`, now)
	if err != nil {
		return 0, oops.Code("RESET_CODE_PURGE_FAILED").Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanUser scans a single row into a User.
// pgx.ErrNoRows is returned unwrapped for callers to classify.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr string
		user  auth.User
	)
	err := row.Scan(
		&idStr,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.ResetCodeHash,
		&user.ResetCodeExpiresAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context
		}
		return nil, oops.Code("USER_SCAN_FAILED").Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").With("id", idStr).Wrap(err)
	}
	user.ID = id
	return &user, nil
}
