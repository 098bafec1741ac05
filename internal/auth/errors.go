// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// Repository sentinels. Implementations wrap these with oops codes so callers
// match with errors.Is.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when a unique constraint would be violated.
	ErrAlreadyExists = errors.New("already exists")

	// ErrResetCodeConsumed is returned when a reset code was cleared,
	// replaced or expired between lookup and use.
	ErrResetCodeConsumed = errors.New("reset code consumed")

	// ErrResetCodeTaken is returned when another user holds the same
	// unexpired reset code digest.
	ErrResetCodeTaken = errors.New("reset code taken")
)

// Kind classifies flow failures for transport mapping.
type Kind int

// Failure kinds.
const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindAuthentication
	KindConflict
)

// Error codes attached to flow failures.
const (
	CodeValidation      = "AUTH_VALIDATION"
	CodeNotFound        = "AUTH_NOT_FOUND"
	CodeUnauthenticated = "AUTH_UNAUTHENTICATED"
	CodeConflict        = "AUTH_CONFLICT"
	CodeInternal        = "AUTH_INTERNAL"
)

// String returns the lower-case kind name used in metrics labels.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuthentication:
		return "authentication"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Code returns the oops error code for the kind.
func (k Kind) Code() string {
	switch k {
	case KindValidation:
		return CodeValidation
	case KindNotFound:
		return CodeNotFound
	case KindAuthentication:
		return CodeUnauthenticated
	case KindConflict:
		return CodeConflict
	default:
		return CodeInternal
	}
}

// Error is a classified flow failure. Message is safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NewError builds a classified oops error carrying the public message.
func NewError(kind Kind, message string) error {
	return oops.Code(kind.Code()).
		With("public_message", message).
		Wrap(&Error{Kind: kind, Message: message})
}

// internalError wraps an unexpected dependency failure. The public message is
// generic; the cause is kept for logs and non-production details.
func internalError(operation, message string, cause error) error {
	return oops.Code(CodeInternal).
		With("operation", operation).
		With("public_message", message).
		Wrap(&Error{Kind: KindInternal, Message: message, cause: cause})
}

// KindOf reports the failure kind of err. Unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage returns the client-safe message carried by err, or fallback
// when err is unclassified.
func PublicMessage(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}

// Detail returns the underlying cause text of an internal failure, or "" when
// err has no cause. It is meant for non-production diagnostics only.
func Detail(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.cause != nil {
			return e.cause.Error()
		}
		return ""
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
