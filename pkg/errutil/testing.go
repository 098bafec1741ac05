// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireOops(t *testing.T, err error) oops.OopsError {
	t.Helper()
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	return oopsErr
}

// AssertErrorCode asserts that err is an oops error with the given code.
// The code is the innermost one in the chain.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	assert.Equal(t, code, requireOops(t, err).Code())
}

// AssertErrorContext asserts that err carries key=value in its oops context.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	errCtx := requireOops(t, err).Context()
	if assert.Contains(t, errCtx, key) {
		assert.Equal(t, value, errCtx[key])
	}
}

// AssertSentinel asserts that err wraps sentinel and is tagged with code,
// the shape repositories return for not-found and conflict cases.
func AssertSentinel(t *testing.T, err, sentinel error, code string) {
	t.Helper()
	assert.ErrorIs(t, err, sentinel)
	AssertErrorCode(t, err, code)
}
