// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package observability serves Prometheus metrics and health probes on a
// listener separate from the public API.
package observability

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// ReadinessChecker returns nil while the backing store answers. It runs
// with the probe request's context bounded by readinessTimeout.
type ReadinessChecker func(ctx context.Context) error

const readinessTimeout = 3 * time.Second

// probeStatus is the body of both health endpoints.
type probeStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Server exposes /metrics, /healthz/liveness and /healthz/readiness.
type Server struct {
	addr     string
	registry *prometheus.Registry
	metrics  *Metrics
	storeUp  prometheus.Gauge
	check    ReadinessChecker

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
}

// NewServer builds a server for addr ("host:port"). check may be nil, in
// which case the service always reports ready.
func NewServer(addr string, check ReadinessChecker) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	storeUp := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "accounts_store_up",
		Help: "1 if the last readiness probe reached the account store, 0 otherwise",
	})
	registry.MustRegister(storeUp)

	return &Server{
		addr:     addr,
		registry: registry,
		metrics:  NewMetrics(registry),
		storeUp:  storeUp,
		check:    check,
	}
}

// Metrics returns the API metrics registered on this server.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler returns the probe and metrics routes.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})))
	r.GET("/healthz/liveness", func(c *gin.Context) {
		c.JSON(http.StatusOK, probeStatus{Status: "ok"})
	})
	r.GET("/healthz/readiness", s.readiness)
	return r
}

func (s *Server) readiness(c *gin.Context) {
	if s.check == nil {
		s.storeUp.Set(1)
		c.JSON(http.StatusOK, probeStatus{Status: "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()
	if err := s.check(ctx); err != nil {
		s.storeUp.Set(0)
		slog.Warn("readiness check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, probeStatus{Status: "not ready", Error: err.Error()})
		return
	}
	s.storeUp.Set(1)
	c.JSON(http.StatusOK, probeStatus{Status: "ready"})
}

// Start listens on the configured address and serves in the background.
// The returned channel carries a serve failure and is closed once serving
// ends.
func (s *Server) Start() (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpServer != nil {
		return nil, oops.Code("OBSERVABILITY_RUNNING").Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, oops.Code("OBSERVABILITY_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.listener = listener
	s.httpServer = srv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()
	return errCh, nil
}

// Stop shuts the server down. Stopping a server that is not running is a
// no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return oops.With("operation", "shutdown observability server").Wrap(err)
	}
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
