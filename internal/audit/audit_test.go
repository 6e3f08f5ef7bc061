// SPDX-License-Identifier: MIT
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/reqwatch/internal/index"
	"github.com/ManuGH/reqwatch/internal/lint"
	"github.com/ManuGH/reqwatch/internal/policy"
	"github.com/ManuGH/reqwatch/internal/probe"
	"github.com/ManuGH/reqwatch/internal/resolve"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestEngineRun(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"requirements-dev.txt": "-r base.txt\ncoverage >= 4.4.1\nmock>=2.0.0\n",
		"base.txt":             "six >= 1.4.0\n",
	})

	engine := &Engine{
		Resolver: resolve.New(dir),
		Policy:   policy.Default(),
	}

	report, err := engine.Run(context.Background(), "requirements-dev.txt")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.RunID == "" {
		t.Fatal("missing run id")
	}
	if report.Summary.Files != 2 || report.Summary.Entries != 3 {
		t.Fatalf("summary = %+v", report.Summary)
	}
	// "mock>=2.0.0" is valid but not canonically formatted.
	if report.Summary.Info != 1 {
		t.Fatalf("info findings = %d, want 1", report.Summary.Info)
	}
	if !report.Clean() {
		t.Fatal("run with only info findings must be clean")
	}
}

func TestEngineRunUnreadableRoot(t *testing.T) {
	engine := &Engine{
		Resolver: resolve.New(t.TempDir()),
	}
	if _, err := engine.Run(context.Background(), "missing.txt"); err == nil {
		t.Fatal("expected error for missing root manifest")
	}
}

func TestEngineWritesReport(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"requirements-dev.txt": "coverage >= 4.4.1\n",
	})
	reportPath := filepath.Join(t.TempDir(), "report.json")

	engine := &Engine{
		Resolver:   resolve.New(dir),
		ReportPath: reportPath,
	}
	report, err := engine.Run(context.Background(), "requirements-dev.txt")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var onDisk Report
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if onDisk.RunID != report.RunID {
		t.Fatalf("run id mismatch: %s vs %s", onDisk.RunID, report.RunID)
	}
}

func TestEngineRecordsHistory(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"requirements-dev.txt": "coverage >= 4.4.1\npillow >= 2.0\npillow < 1.0\n",
	})

	history, err := OpenHistory(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("OpenHistory: %v", err)
	}
	defer func() { _ = history.Close() }()

	engine := &Engine{
		Resolver: resolve.New(dir),
		History:  history,
	}

	ctx := context.Background()
	first, err := engine.Run(ctx, "requirements-dev.txt")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := engine.Run(ctx, "requirements-dev.txt"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	runs, err := history.RunsSince(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("RunsSince: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	if runs[0].Errors == 0 {
		t.Fatal("conflicting constraints must count as errors")
	}

	latest, err := history.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.RunID == first.RunID {
		t.Fatal("Latest returned the older run")
	}
	if latest.Clean() {
		t.Fatal("latest run must not be clean")
	}

	if _, err := history.RunsSince(ctx, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("RunsSince future: %v", err)
	}
}

func TestHistoryLatestEmpty(t *testing.T) {
	history, err := OpenHistory(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("OpenHistory: %v", err)
	}
	defer func() { _ = history.Close() }()

	if _, err := history.Latest(context.Background()); err != ErrNoRuns {
		t.Fatalf("err = %v, want ErrNoRuns", err)
	}
}

func TestEngineVerify(t *testing.T) {
	indexSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pypi/coverage/json":
			fmt.Fprint(w, `{"info":{"name":"coverage"},"releases":{"4.4.1":[]}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer indexSrv.Close()

	forge := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-git-upload-pack-advertisement")
		_, _ = w.Write([]byte("001e# service=git-upload-pack\n"))
	}))
	defer forge.Close()

	dir := writeTree(t, map[string]string{
		"requirements-dev.txt": fmt.Sprintf(
			"coverage >= 4.4.1\nghost-package >= 1.0\ngit+%s/korepwx/pytest#egg=pytest\n", forge.URL),
	})

	engine := &Engine{
		Resolver: resolve.New(dir),
		Linter:   lint.New(),
		Index:    index.New(index.Options{BaseURL: indexSrv.URL}),
		Prober:   probe.NewGitProber(probe.Options{}),
		Verify:   true,
	}

	report, err := engine.Run(context.Background(), "requirements-dev.txt")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Verify == nil {
		t.Fatal("verify section missing")
	}
	if len(report.Verify.MissingProjects) != 1 || report.Verify.MissingProjects[0] != "ghost-package" {
		t.Fatalf("missing projects = %v", report.Verify.MissingProjects)
	}
	if len(report.Verify.Probes) != 1 || !report.Verify.Probes[0].Fetchable() {
		t.Fatalf("probes = %+v", report.Verify.Probes)
	}
	if report.Clean() {
		t.Fatal("missing project must fail cleanliness")
	}
}
