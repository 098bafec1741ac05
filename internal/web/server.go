// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

// Package web exposes the credential flows as a JSON HTTP API.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/leafguard/leafguard/internal/auth"
)

// DefaultBasePath is the prefix the auth routes are mounted under.
const DefaultBasePath = "/api"

// Flow is the set of credential operations served over HTTP.
type Flow interface {
	Register(ctx context.Context, in auth.RegisterInput) (auth.PublicUser, error)
	Login(ctx context.Context, email, password string) (auth.LoginResult, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, code, newPassword string) error
	ChangePassword(ctx context.Context, currentPassword, newPassword string) error
}

var _ Flow = (*auth.Service)(nil)

// Authenticator resolves the Authorization header to an identity.
type Authenticator interface {
	Authenticate(rawHeader string) (auth.Identity, error)
}

var _ Authenticator = (*auth.Gate)(nil)

// Options configures a Server.
type Options struct {
	// BasePath prefixes "/auth/...". Empty mounts the routes at the root.
	BasePath string
	// ExposeDetails adds the internal error text to 500 responses.
	ExposeDetails bool
	Logger        *slog.Logger
	Clock         func() time.Time
}

// Server serves the auth API.
type Server struct {
	addr          string
	flow          Flow
	gate          Authenticator
	basePath      string
	exposeDetails bool
	logger        *slog.Logger
	now           func() time.Time

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates a Server listening on addr once started.
func NewServer(addr string, flow Flow, gate Authenticator, opts Options) (*Server, error) {
	if flow == nil {
		return nil, oops.Errorf("auth flow is required")
	}
	if gate == nil {
		return nil, oops.Errorf("authenticator is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	basePath := strings.TrimRight(opts.BasePath, "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	return &Server{
		addr:          addr,
		flow:          flow,
		gate:          gate,
		basePath:      basePath,
		exposeDetails: opts.ExposeDetails,
		logger:        opts.Logger,
		now:           opts.Clock,
	}, nil
}

// Handler returns the full middleware-wrapped route tree.
func (s *Server) Handler() http.Handler {
	return chain(s.routes(), s.recoverPanic, s.accessLog)
}

// Start begins serving. The returned channel receives a serve error, if any,
// and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("http server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("http server started", "addr", listener.Addr().String(), "base_path", s.basePath)
	return errCh, nil
}

// Stop gracefully shuts the server down, waiting for in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_http_server").Wrap(err)
		}
	}
	s.logger.Info("http server stopped")
	return nil
}

// Addr returns the listen address, or "" if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
