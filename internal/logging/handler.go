// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

// Package logging provides structured logging with OpenTelemetry trace context
// and redaction of credential-bearing attributes.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// Redacted replaces the value of any attribute whose key names a credential.
const Redacted = "[REDACTED]"

// sensitiveKeys are matched case-insensitively against attribute keys.
var sensitiveKeys = []string{
	"password",
	"token",
	"secret",
	"authorization",
	"reset_code",
	"hash",
}

func isSensitive(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// Options configures Setup.
type Options struct {
	Service string
	Version string
	// Format is "json" or "text". Empty means json.
	Format string
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// Writer defaults to os.Stderr.
	Writer io.Writer
}

// ParseLevel maps a level name to a slog.Level. Unknown names map to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// contextHandler wraps a slog.Handler to add service identity and trace context.
type contextHandler struct {
	handler slog.Handler
	service string
	version string
}

// Handle adds service, version and trace context to the record.
func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(
		slog.String("service", h.service),
		slog.String("version", h.version),
	)

	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.HasTraceID() {
		r.AddAttrs(slog.String("trace_id", spanCtx.TraceID().String()))
	}
	if spanCtx.HasSpanID() {
		r.AddAttrs(slog.String("span_id", spanCtx.SpanID().String()))
	}

	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return h.handler.Handle(ctx, r)
}

// Enabled reports whether the wrapped handler accepts level.
func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// WithAttrs returns a new handler with the given attributes.
func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{
		handler: h.handler.WithAttrs(attrs),
		service: h.service,
		version: h.version,
	}
}

// WithGroup returns a new handler with the given group.
func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{
		handler: h.handler.WithGroup(name),
		service: h.service,
		version: h.version,
	}
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindGroup && isSensitive(a.Key) {
		return slog.String(a.Key, Redacted)
	}
	return a
}

// Setup creates a configured slog.Logger.
func Setup(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{
		Level:       ParseLevel(opts.Level),
		ReplaceAttr: redact,
	}

	var base slog.Handler
	if opts.Format == "text" {
		base = slog.NewTextHandler(w, handlerOpts)
	} else {
		base = slog.NewJSONHandler(w, handlerOpts)
	}

	return slog.New(&contextHandler{
		handler: base,
		service: opts.Service,
		version: opts.Version,
	})
}

// SetDefault configures and installs the default logger, returning it.
func SetDefault(opts Options) *slog.Logger {
	logger := Setup(opts)
	slog.SetDefault(logger)
	return logger
}
