// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api provides the HTTP surface of the reqwatch daemon: lint-on-post,
// report retrieval, run history, manual audit triggers and the operational
// endpoints (health, readiness, metrics).
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/reqwatch/internal/api/middleware"
	"github.com/ManuGH/reqwatch/internal/audit"
	"github.com/ManuGH/reqwatch/internal/config"
	"github.com/ManuGH/reqwatch/internal/health"
	"github.com/ManuGH/reqwatch/internal/policy"
)

// AuditTrigger requests an asynchronous audit run. It returns false when the
// daemon cannot accept the request, e.g. a run is already queued.
type AuditTrigger func() bool

// Server wires handlers and middleware into one http.Handler.
type Server struct {
	cfg     config.Config
	health  *health.Manager
	history *audit.History
	trigger AuditTrigger
	version string

	// policyFn returns the current lint policy; hot reloads swap it out
	// underneath the server.
	policyFn func() *policy.Policy
}

// Options carries the server dependencies.
type Options struct {
	Config  config.Config
	Health  *health.Manager
	History *audit.History
	Trigger AuditTrigger
	Policy  func() *policy.Policy
	Version string
}

// New creates a Server. Health, History, Trigger and Policy are optional;
// endpoints depending on an absent dependency answer 503.
func New(opts Options) *Server {
	policyFn := opts.Policy
	if policyFn == nil {
		policyFn = func() *policy.Policy { return policy.Default() }
	}
	return &Server{
		cfg:      opts.Config,
		health:   opts.Health,
		history:  opts.History,
		trigger:  opts.Trigger,
		version:  opts.Version,
		policyFn: policyFn,
	}
}

// Handler builds the route tree with the canonical middleware stack.
func (s *Server) Handler() http.Handler {
	tracingService := ""
	if s.cfg.Tracing.Enabled {
		tracingService = "reqwatch-api"
	}

	r := middleware.NewRouter(middleware.StackConfig{
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        tracingService,
		EnableLogging:         true,
	})

	// Operational endpoints stay outside the rate limit so probes and
	// scrapers are never throttled.
	if s.health != nil {
		r.Get("/healthz", s.health.ServeHealth)
		r.Get("/readyz", s.health.ServeReady)
	}
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(s.cfg.RateLimitRPM))

		r.Post("/lint", s.handleLint)
		r.Get("/report", s.handleReport)
		r.Get("/runs", s.handleRuns)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuditRateLimit())
			r.Post("/audit", s.handleAudit)
		})
	})

	return r
}
