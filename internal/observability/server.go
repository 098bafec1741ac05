// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

// Package observability provides HTTP endpoints for metrics and health checks.
package observability

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"

	"github.com/leafguard/leafguard/internal/auth"
)

// ReadinessChecker reports whether the service can take traffic. A nil error
// means ready.
type ReadinessChecker func(ctx context.Context) error

const readinessTimeout = 2 * time.Second

// Metrics contains the credential flow metrics.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

var _ auth.Recorder = (*Metrics)(nil)

// NewMetrics creates and registers the auth metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leafguard_auth_requests_total",
				Help: "Total number of auth operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "leafguard_auth_request_duration_seconds",
				Help: "Duration of auth operations",
				// Password hashing dominates, so buckets start near argon2 cost.
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"operation"},
		),
	}

	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.RequestDuration)

	return m
}

// ObserveAuth records one completed auth operation.
func (m *Metrics) ObserveAuth(operation, outcome string, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(operation, outcome).Inc()
	m.RequestDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// Server provides HTTP endpoints for observability (metrics and health probes).
type Server struct {
	addr       string
	logger     *slog.Logger
	listener   net.Listener
	httpServer *http.Server
	registry   *prometheus.Registry
	metrics    *Metrics
	isReady    ReadinessChecker
	running    atomic.Bool
}

// NewServer creates a new observability server.
// addr is "host:port"; use ":0" to pick a free port.
func NewServer(addr string, readiness ReadinessChecker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Server{
		addr:     addr,
		logger:   logger,
		registry: registry,
		metrics:  NewMetrics(registry),
		isReady:  readiness,
	}
}

// Metrics returns the auth metrics for wiring into the flow.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler returns the mux serving metrics and probes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)
	return mux
}

// Start begins serving observability endpoints.
// The returned channel receives a serve error, if any, and is closed when the
// server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("observability server already running")
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
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("observability server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("observability server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the observability server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_observability_server").Wrap(err)
		}
	}

	s.logger.Info("observability server stopped")
	return nil
}

// Addr returns the address the server is listening on, or "" if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // client may disconnect
	w.Write([]byte("ok\n"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if s.isReady != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		if err := s.isReady(ctx); err != nil {
			s.logger.WarnContext(ctx, "readiness check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			//nolint:errcheck // client may disconnect
			w.Write([]byte("not ready\n"))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // client may disconnect
	w.Write([]byte("ok\n"))
}
