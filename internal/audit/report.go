// SPDX-License-Identifier: MIT

// Package audit runs the full pipeline over a manifest tree: resolve the
// includes, lint the result, and in verify mode check the entries against
// the package index and the VCS forges.
package audit

import (
	"time"

	"github.com/ManuGH/reqwatch/internal/lint"
	"github.com/ManuGH/reqwatch/internal/policy"
	"github.com/ManuGH/reqwatch/internal/probe"
)

// Summary aggregates a run for dashboards and history queries.
type Summary struct {
	Files    int `json:"files"`
	Entries  int `json:"entries"`
	Info     int `json:"info"`
	Warnings int `json:"warnings"`
	Errors   int `json:"errors"`
}

// Verification holds the network-backed checks of a verify-mode run.
type Verification struct {
	// Probes are the VCS fetchability results.
	Probes []probe.Result `json:"probes,omitempty"`
	// MissingProjects are requirement names the package index does not know.
	MissingProjects []string `json:"missing_projects,omitempty"`
	// IndexErrors are lookup failures that prevented a verdict.
	IndexErrors []string `json:"index_errors,omitempty"`
}

// Report is the result of one audit run.
type Report struct {
	RunID     string        `json:"run_id"`
	Manifest  string        `json:"manifest"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Findings  lint.Findings `json:"findings"`
	Verify    *Verification `json:"verify,omitempty"`
	Summary   Summary       `json:"summary"`
}

// Clean reports whether the run produced no error-severity findings and no
// failed verification.
func (r *Report) Clean() bool {
	if r.Findings.HasErrors() {
		return false
	}
	if r.Verify != nil {
		if len(r.Verify.MissingProjects) > 0 {
			return false
		}
		for _, p := range r.Verify.Probes {
			if p.Outcome == probe.OutcomeNotFound {
				return false
			}
		}
	}
	return true
}

func summarize(files, entries int, findings lint.Findings) Summary {
	return Summary{
		Files:    files,
		Entries:  entries,
		Info:     findings.Count(policy.SeverityInfo),
		Warnings: findings.Count(policy.SeverityWarning),
		Errors:   findings.Count(policy.SeverityError),
	}
}
