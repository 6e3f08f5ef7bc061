// SPDX-License-Identifier: MIT

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/ManuGH/reqwatch/internal/audit"
	"github.com/ManuGH/reqwatch/internal/lint"
	"github.com/ManuGH/reqwatch/internal/log"
	"github.com/ManuGH/reqwatch/internal/manifest"
	"github.com/ManuGH/reqwatch/internal/policy"
	"github.com/ManuGH/reqwatch/internal/resolve"
)

// maxLintBody bounds posted manifests. Real requirements files are a few KB;
// 1 MiB leaves generous headroom.
const maxLintBody = 1 << 20

type lintResponse struct {
	Findings lint.Findings `json:"findings"`
	Summary  lintSummary   `json:"summary"`
}

type lintSummary struct {
	Entries  int `json:"entries"`
	Info     int `json:"info"`
	Warnings int `json:"warnings"`
	Errors   int `json:"errors"`
}

// handleLint lints a manifest posted as text/plain. Includes are not expanded;
// the endpoint never touches the filesystem or the network.
func (s *Server) handleLint(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	body := http.MaxBytesReader(w, r.Body, maxLintBody)
	defer func() { _ = body.Close() }()

	file, err := manifest.Parse(body, "requirements-dev.txt")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "manifest too large"})
			return
		}
		logger.Warn().Err(err).Str(log.FieldEvent, "lint.read_failed").Msg("failed to read posted manifest")
		writeError(w, err)
		return
	}

	res := resolve.FromFile(file)
	findings := lint.New().Run(r.Context(), res, s.policyFn())
	findings.Sort()

	resp := lintResponse{
		// Empty slice, not null, so clients can range unconditionally.
		Findings: findings,
		Summary: lintSummary{
			Entries:  len(res.Entries),
			Info:     findings.Count(policy.SeverityInfo),
			Warnings: findings.Count(policy.SeverityWarning),
			Errors:   findings.Count(policy.SeverityError),
		},
	}
	if resp.Findings == nil {
		resp.Findings = lint.Findings{}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleReport serves the most recent audit report.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeServiceUnavailable(w, "run history not configured")
		return
	}

	report, err := s.history.Latest(r.Context())
	if err != nil {
		if errors.Is(err, audit.ErrNoRuns) {
			writeNotFound(w)
			return
		}
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Str(log.FieldEvent, "report.load_failed").Msg("failed to load latest report")
		writeInternalError(w)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

type runsResponse struct {
	Since time.Time         `json:"since"`
	Runs  []audit.RunRecord `json:"runs"`
}

// handleRuns lists run summaries since the given RFC 3339 timestamp,
// defaulting to the last 24 hours.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeServiceUnavailable(w, "run history not configured")
		return
	}

	since := time.Now().Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, errors.New("invalid since parameter, want RFC 3339"))
			return
		}
		since = parsed
	}

	runs, err := s.history.RunsSince(r.Context(), since)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Str(log.FieldEvent, "runs.load_failed").Msg("failed to query run history")
		writeInternalError(w)
		return
	}
	if runs == nil {
		runs = []audit.RunRecord{}
	}

	writeJSON(w, http.StatusOK, runsResponse{Since: since.UTC(), Runs: runs})
}

// handleAudit requests an asynchronous audit run.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.trigger == nil {
		writeServiceUnavailable(w, "audit trigger not configured")
		return
	}

	if !s.trigger() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "audit already queued"})
		return
	}

	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().Str(log.FieldEvent, "audit.triggered").Msg("audit run requested")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
