// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

package web

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/samber/oops"

	"github.com/leafguard/leafguard/internal/auth"
	"github.com/leafguard/leafguard/pkg/errutil"
)

type middleware func(http.Handler) http.Handler

// chain applies middleware so the first listed runs innermost.
func chain(h http.Handler, mw ...middleware) http.Handler {
	for _, m := range mw {
		h = m(h)
	}
	return h
}

// requireIdentity rejects requests without a valid bearer token and attaches
// the identity to the request context otherwise.
func (s *Server) requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := s.gate.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			s.writeError(w, err, auth.MsgTokenInvalid)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		s.logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if recovered == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
				panic(recovered)
			}
			err := oops.Code("HTTP_PANIC").
				With("method", r.Method).
				With("path", r.URL.Path).
				With("stack", string(debug.Stack())).
				Errorf("panic: %v", recovered)
			errutil.LogError(r.Context(), s.logger, "panic recovered", err)
			writeJSON(w, http.StatusInternalServerError, envelope{Error: "Internal Server Error"})
		}()
		next.ServeHTTP(w, r)
	})
}
