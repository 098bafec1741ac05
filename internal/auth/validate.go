// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

package auth

import "github.com/samber/oops"

// FieldError names the first input field that failed validation.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// field is one required input with the message reported when it is missing.
type field struct {
	name    string
	value   string
	message string
}

func required(name, value, message string) field {
	return field{name: name, value: value, message: message}
}

// validate returns the first missing field in order, or nil when all are present.
func validate(fields ...field) *FieldError {
	for _, f := range fields {
		if f.value == "" {
			return &FieldError{Field: f.name, Message: f.message}
		}
	}
	return nil
}

// validationError converts a FieldError into a classified flow failure.
func validationError(fe *FieldError) error {
	return oops.Code(CodeValidation).
		With("public_message", fe.Message).
		With("field", fe.Field).
		Wrap(&Error{Kind: KindValidation, Message: fe.Message, cause: fe})
}
