// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ManuGH/reqwatch/internal/audit"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunVersion(t *testing.T) {
	code, stdout, _ := runCLI(t, "-version")
	if code != 0 {
		t.Fatalf("exit = %d, want 0", code)
	}
	if strings.TrimSpace(stdout) != "dev" {
		t.Fatalf("version output = %q", stdout)
	}
}

func TestRunUsageError(t *testing.T) {
	code, _, stderr := runCLI(t, "--no-such-flag")
	if code != 2 {
		t.Fatalf("exit = %d, want 2\n%s", code, stderr)
	}
}

func TestRunCleanManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "requirements-dev.txt")
	writeFile(t, path, "coverage >= 4.4.1\nmock >= 2.0.0\n")

	code, stdout, stderr := runCLI(t, "-f", path)
	if code != 0 {
		t.Fatalf("exit = %d, want 0\nstdout: %s\nstderr: %s", code, stdout, stderr)
	}
	if !strings.Contains(stdout, "is clean") {
		t.Fatalf("stdout = %q", stdout)
	}
}

func TestRunReportsFindings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "requirements-dev.txt")
	writeFile(t, path, "???broken line\nmock >= 2.0.0\n")

	code, stdout, _ := runCLI(t, "-f", path)
	if code != 1 {
		t.Fatalf("exit = %d, want 1\n%s", code, stdout)
	}
	if !strings.Contains(stdout, "REQ001") {
		t.Fatalf("stdout missing syntax finding:\n%s", stdout)
	}
	if !strings.Contains(stdout, "requirements-dev.txt:1:") {
		t.Fatalf("stdout missing provenance:\n%s", stdout)
	}
}

func TestRunUnreadableManifest(t *testing.T) {
	code, _, stderr := runCLI(t, "-f", filepath.Join(t.TempDir(), "missing.txt"))
	if code != 1 {
		t.Fatalf("exit = %d, want 1", code)
	}
	if !strings.Contains(stderr, "Audit error") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestRunWithPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "requirements-dev.txt")
	writeFile(t, path, "tensorflow >= 2.0.0\n")

	polPath := filepath.Join(dir, "policy.yaml")
	writeFile(t, polPath, "banned:\n  - name: tensorflow\n    reason: CPU-only runners\n")

	code, stdout, _ := runCLI(t, "-f", path, "-policy", polPath)
	if code != 1 {
		t.Fatalf("exit = %d, want 1\n%s", code, stdout)
	}
	if !strings.Contains(stdout, "REQ008") || !strings.Contains(stdout, "CPU-only runners") {
		t.Fatalf("stdout missing ban finding:\n%s", stdout)
	}
}

func TestRunBadPolicyFile(t *testing.T) {
	dir := t.TempDir()
	polPath := filepath.Join(dir, "policy.yaml")
	writeFile(t, polPath, "no_such_key: true\n")

	code, _, stderr := runCLI(t, "-f", "requirements-dev.txt", "-policy", polPath)
	if code != 1 {
		t.Fatalf("exit = %d, want 1", code)
	}
	if !strings.Contains(stderr, "Policy error") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestRunJSONOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "requirements-dev.txt")
	writeFile(t, path, "mock>=2.0.0\n")

	code, stdout, _ := runCLI(t, "-f", path, "-json")
	if code != 0 {
		t.Fatalf("exit = %d, want 0 (formatting is info severity)\n%s", code, stdout)
	}

	var report audit.Report
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("stdout is not a JSON report: %v\n%s", err, stdout)
	}
	if report.RunID == "" || report.Summary.Entries != 1 {
		t.Fatalf("report = %+v", report.Summary)
	}
}

func TestRunQuietSuppressesFindings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "requirements-dev.txt")
	writeFile(t, path, "???broken\n")

	code, stdout, _ := runCLI(t, "-f", path, "-q")
	if code != 1 {
		t.Fatalf("exit = %d, want 1", code)
	}
	if stdout != "" {
		t.Fatalf("quiet run produced output: %q", stdout)
	}
}

func TestRunFixRewritesCanonically(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "requirements-dev.txt")
	extra := filepath.Join(dir, "extra.txt")
	writeFile(t, root, "-r extra.txt\nmock>=2.0.0,<3  # dev only\n")
	writeFile(t, extra, "coverage>=4.4.1\n")

	code, stdout, stderr := runCLI(t, "-f", root, "-fix", "-q")
	if code != 0 {
		t.Fatalf("exit = %d\nstdout: %s\nstderr: %s", code, stdout, stderr)
	}

	got, err := os.ReadFile(root)
	if err != nil {
		t.Fatal(err)
	}
	want := "-r extra.txt\nmock >= 2.0.0, < 3  # dev only\n"
	if string(got) != want {
		t.Fatalf("rewritten root = %q, want %q", got, want)
	}

	got, err = os.ReadFile(extra)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "coverage >= 4.4.1\n" {
		t.Fatalf("rewritten include = %q", got)
	}
}
