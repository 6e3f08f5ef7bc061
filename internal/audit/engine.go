// SPDX-License-Identifier: MIT

package audit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/reqwatch/internal/index"
	"github.com/ManuGH/reqwatch/internal/lint"
	xglog "github.com/ManuGH/reqwatch/internal/log"
	"github.com/ManuGH/reqwatch/internal/metrics"
	"github.com/ManuGH/reqwatch/internal/policy"
	"github.com/ManuGH/reqwatch/internal/probe"
	"github.com/ManuGH/reqwatch/internal/resolve"
)

// DefaultConcurrency bounds the verify-mode fanout to index and forges.
const DefaultConcurrency = 4

// Engine wires resolver, linter, policy and the optional verify clients.
type Engine struct {
	Resolver *resolve.Resolver
	Linter   *lint.Linter
	Policy   *policy.Policy

	// Index and Prober are consulted only when Verify is set.
	Index  *index.Client
	Prober *probe.GitProber
	Verify bool

	// Concurrency bounds the verify fanout; default DefaultConcurrency.
	Concurrency int

	// History records completed runs when set.
	History *History
	// ReportPath receives the latest report as durable JSON when set.
	ReportPath string
}

// Run audits rootManifest (relative to the resolver root) and returns the
// report. The report is produced even when it carries error findings; the
// error return covers unreadable roots and infrastructure failures.
func (e *Engine) Run(ctx context.Context, rootManifest string) (*Report, error) {
	runID := uuid.NewString()
	ctx = xglog.ContextWithRunID(ctx, runID)
	logger := xglog.WithComponentFromContext(ctx, "audit")

	started := time.Now()

	res, err := e.Resolver.Resolve(ctx, rootManifest)
	if err != nil {
		metrics.RecordAuditRun(false, time.Since(started))
		return nil, fmt.Errorf("audit %s: %w", rootManifest, err)
	}

	linter := e.Linter
	if linter == nil {
		linter = lint.New()
	}
	findings := linter.Run(ctx, res, e.Policy)

	report := &Report{
		RunID:     runID,
		Manifest:  rootManifest,
		StartedAt: started.UTC(),
		Findings:  findings,
	}

	if e.Verify {
		verification, err := e.verify(ctx, res)
		if err != nil {
			metrics.RecordAuditRun(false, time.Since(started))
			return nil, err
		}
		report.Verify = verification
	}

	report.Duration = time.Since(started)
	report.Summary = summarize(len(res.Files), len(res.Entries), findings)

	metrics.RecordAuditRun(true, report.Duration)
	metrics.SetAuditFindings(report.Summary.Info, report.Summary.Warnings, report.Summary.Errors)
	metrics.SetAuditEntries(report.Summary.Entries)

	if e.ReportPath != "" {
		if err := WriteReport(ctx, e.ReportPath, report); err != nil {
			return nil, fmt.Errorf("write report: %w", err)
		}
	}
	if e.History != nil {
		if err := e.History.Record(ctx, report); err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
	}

	logger.Info().
		Str(xglog.FieldRunID, runID).
		Str(xglog.FieldManifest, rootManifest).
		Int("findings", len(findings)).
		Int("errors", report.Summary.Errors).
		Dur("duration", report.Duration).
		Msg("audit run completed")

	return report, nil
}

// verify fans out index lookups and VCS probes over the resolved entries.
func (e *Engine) verify(ctx context.Context, res *resolve.Resolution) (*Verification, error) {
	concurrency := e.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	var (
		mu  sync.Mutex
		out Verification
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	seen := map[string]bool{}
	for _, entry := range res.Entries {
		entry := entry

		switch {
		case entry.Req != nil && e.Index != nil:
			name := entry.Req.Name
			if seen["idx:"+name] {
				continue
			}
			seen["idx:"+name] = true

			g.Go(func() error {
				_, err := e.Index.Lookup(ctx, name)
				if err == nil {
					return nil
				}
				mu.Lock()
				defer mu.Unlock()
				if errors.Is(err, index.ErrNotFound) {
					out.MissingProjects = append(out.MissingProjects, name)
				} else {
					out.IndexErrors = append(out.IndexErrors, fmt.Sprintf("%s: %v", name, err))
				}
				return nil
			})

		case entry.VCS != nil && e.Prober != nil:
			url := entry.VCS.URL
			if seen["vcs:"+url] {
				continue
			}
			seen["vcs:"+url] = true

			g.Go(func() error {
				result, err := e.Prober.Probe(ctx, entry.VCS)
				if err != nil {
					return err
				}
				mu.Lock()
				out.Probes = append(out.Probes, result)
				mu.Unlock()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}

	sort.Strings(out.MissingProjects)
	sort.Strings(out.IndexErrors)
	sort.Slice(out.Probes, func(i, j int) bool { return out.Probes[i].URL < out.Probes[j].URL })

	return &out, nil
}
