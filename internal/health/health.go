// SPDX-License-Identifier: MIT

// Package health provides health and readiness check functionality for
// production deployments. It supports Docker HEALTHCHECK and Kubernetes
// probes with detailed component status.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ManuGH/reqwatch/internal/log"
)

// Status represents the overall health/readiness status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult represents the result of a component health check
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse represents the full health check response
type HealthResponse struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker defines the interface for health checks
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager manages health and readiness checks
type Manager struct {
	version  string
	checkers []Checker
}

// NewManager creates a new health check manager
func NewManager(version string) *Manager {
	return &Manager{
		version:  version,
		checkers: make([]Checker, 0),
	}
}

// RegisterChecker adds a health checker to the manager
func (m *Manager) RegisterChecker(checker Checker) {
	m.checkers = append(m.checkers, checker)
}

// Health performs a health check (liveness probe). The response is 200 as
// long as the process is alive, regardless of component state.
func (m *Manager) Health(ctx context.Context, verbose bool) HealthResponse {
	resp := HealthResponse{
		Status:    StatusHealthy,
		Version:   m.version,
		Timestamp: time.Now(),
	}

	if verbose && len(m.checkers) > 0 {
		resp.Checks = make(map[string]CheckResult)
		resp.Status = m.runChecks(ctx, resp.Checks)
	}

	return resp
}

// Ready performs a readiness check. Ready is false only when a component is
// unhealthy; degraded components keep serving traffic.
func (m *Manager) Ready(ctx context.Context) ReadinessResponse {
	resp := ReadinessResponse{
		Ready:     true,
		Status:    StatusHealthy,
		Timestamp: time.Now(),
	}

	if len(m.checkers) == 0 {
		return resp
	}

	resp.Checks = make(map[string]CheckResult)
	resp.Status = m.runChecks(ctx, resp.Checks)
	if resp.Status == StatusUnhealthy {
		resp.Ready = false
	}
	return resp
}

func (m *Manager) runChecks(ctx context.Context, out map[string]CheckResult) Status {
	status := StatusHealthy
	for _, checker := range m.checkers {
		result := checker.Check(ctx)
		out[checker.Name()] = result

		switch result.Status {
		case StatusUnhealthy:
			status = StatusUnhealthy
		case StatusDegraded:
			if status != StatusUnhealthy {
				status = StatusDegraded
			}
		}
	}
	return status
}

// ServeHealth handles HTTP health check requests
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "health")
	verbose := r.URL.Query().Get("verbose") == "true"

	resp := m.Health(r.Context(), verbose)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK) // Always 200 for liveness
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "health.encode_error").Msg("failed to encode health response")
	}
}

// ServeReady handles HTTP readiness check requests
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "readiness")

	resp := m.Ready(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if resp.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "readiness.encode_error").Msg("failed to encode readiness response")
	}

	logger.Debug().
		Str(log.FieldEvent, "readiness.checked").
		Str("status", string(resp.Status)).
		Bool("ready", resp.Ready).
		Msg("readiness check performed")
}

// Pinger is implemented by stores that can verify connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker reports unhealthy when the underlying store cannot be reached.
// Used for the run history database and the optional Redis cache.
type PingChecker struct {
	name string
	ping Pinger
}

// NewPingChecker creates a checker over a store's Ping method.
func NewPingChecker(name string, ping Pinger) *PingChecker {
	return &PingChecker{name: name, ping: ping}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	if c.ping == nil {
		return CheckResult{
			Status:  StatusHealthy,
			Message: "not configured (optional)",
		}
	}
	if err := c.ping.Ping(ctx); err != nil {
		return CheckResult{
			Status: StatusUnhealthy,
			Error:  err.Error(),
		}
	}
	return CheckResult{Status: StatusHealthy, Message: "reachable"}
}

// FreshnessChecker reports on the age of the most recent completed audit.
type FreshnessChecker struct {
	lastRun   func(ctx context.Context) (time.Time, error)
	warnAfter time.Duration
	failAfter time.Duration
}

// NewFreshnessChecker creates a checker over the timestamp of the last audit.
// The run is degraded past warnAfter and unhealthy past failAfter. A zero
// timestamp with a nil error means no audit has completed yet, which is
// degraded rather than unhealthy so a freshly started daemon stays ready.
func NewFreshnessChecker(lastRun func(ctx context.Context) (time.Time, error), warnAfter, failAfter time.Duration) *FreshnessChecker {
	if warnAfter <= 0 {
		warnAfter = 2 * time.Hour
	}
	if failAfter <= 0 {
		failAfter = 24 * time.Hour
	}
	return &FreshnessChecker{
		lastRun:   lastRun,
		warnAfter: warnAfter,
		failAfter: failAfter,
	}
}

func (c *FreshnessChecker) Name() string { return "last_audit" }

func (c *FreshnessChecker) Check(ctx context.Context) CheckResult {
	lastRun, err := c.lastRun(ctx)
	if err != nil {
		return CheckResult{
			Status: StatusUnhealthy,
			Error:  err.Error(),
		}
	}
	if lastRun.IsZero() {
		return CheckResult{
			Status:  StatusDegraded,
			Message: "no completed audit yet",
		}
	}

	age := time.Since(lastRun)
	switch {
	case age > c.failAfter:
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("last audit %s ago", age.Round(time.Second)),
		}
	case age > c.warnAfter:
		return CheckResult{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("last audit %s ago", age.Round(time.Second)),
		}
	}
	return CheckResult{Status: StatusHealthy, Message: "recent audit available"}
}

// IndexChecker probes the upstream package index. An unreachable index only
// degrades the daemon: lint and parse keep working offline, verification is
// what suffers.
type IndexChecker struct {
	lookup func(ctx context.Context) error
}

// NewIndexChecker creates a checker over a representative index lookup.
func NewIndexChecker(lookup func(ctx context.Context) error) *IndexChecker {
	return &IndexChecker{lookup: lookup}
}

func (c *IndexChecker) Name() string { return "package_index" }

func (c *IndexChecker) Check(ctx context.Context) CheckResult {
	if c.lookup == nil {
		return CheckResult{
			Status:  StatusHealthy,
			Message: "not configured (optional)",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.lookup(ctx); err != nil {
		return CheckResult{
			Status:  StatusDegraded,
			Error:   err.Error(),
			Message: "index unreachable, verification degraded",
		}
	}
	return CheckResult{Status: StatusHealthy, Message: "index reachable"}
}
