// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

// Package errutil holds helpers for logging and asserting oops errors.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs err at error level on logger.
// For oops errors the code and context map are emitted as separate attributes
// so operators can filter on them. Extra attrs are appended after the error
// attributes.
func LogError(ctx context.Context, logger *slog.Logger, msg string, err error, attrs ...any) {
	if logger == nil {
		logger = slog.Default()
	}

	fields := make([]any, 0, 6+len(attrs))
	if oopsErr, ok := oops.AsOops(err); ok {
		fields = append(fields, "error", oopsErr.Error())
		if code := oopsErr.Code(); code != nil && code != "" {
			fields = append(fields, "code", code)
		}
		if errCtx := oopsErr.Context(); len(errCtx) > 0 {
			fields = append(fields, "context", errCtx)
		}
	} else {
		fields = append(fields, "error", err)
	}
	fields = append(fields, attrs...)

	logger.ErrorContext(ctx, msg, fields...)
}

// Code returns the oops code carried by err, or "" when err carries none.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}
