// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// SPDX-License-Identifier: MIT

// validate lints a pip requirements manifest tree from the command line.
//
// Usage:
//
//	validate -f requirements-dev.txt
//	validate -f requirements-dev.txt -policy policy.yaml -json
//	validate -f requirements-dev.txt -fix
//	validate -f requirements-dev.txt -verify
//
// Exit codes:
//   - 0: Manifest is clean (no error-severity findings)
//   - 1: Error findings present, or the manifest could not be audited
//   - 2: Usage error
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"github.com/ManuGH/reqwatch/internal/audit"
	"github.com/ManuGH/reqwatch/internal/index"
	"github.com/ManuGH/reqwatch/internal/lint"
	"github.com/ManuGH/reqwatch/internal/manifest"
	"github.com/ManuGH/reqwatch/internal/policy"
	"github.com/ManuGH/reqwatch/internal/probe"
	"github.com/ManuGH/reqwatch/internal/resolve"
)

var Version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var (
		file        string
		policyPath  string
		asJSON      bool
		quiet       bool
		fix         bool
		verify      bool
		showVersion bool
	)

	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&file, "file", "requirements-dev.txt", "path to the root manifest")
	fs.StringVar(&file, "f", "requirements-dev.txt", "path to the root manifest (shorthand)")
	fs.StringVar(&policyPath, "policy", "", "path to YAML policy file")
	fs.BoolVar(&asJSON, "json", false, "emit the full report as JSON")
	fs.BoolVar(&quiet, "q", false, "suppress per-finding output")
	fs.BoolVar(&fix, "fix", false, "rewrite the manifest tree in canonical form")
	fs.BoolVar(&verify, "verify", false, "check entries against the package index and repository hosts")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if showVersion {
		fmt.Fprintln(stdout, Version)
		return 0
	}

	// Keep structured logs out of CLI output.
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)

	pol := policy.Default()
	if policyPath != "" {
		loaded, err := policy.Load(policyPath)
		if err != nil {
			fmt.Fprintf(stderr, "Policy error in %s:\n  %v\n", policyPath, err)
			return 1
		}
		pol = loaded
	}

	root := filepath.Dir(file)
	engine := &audit.Engine{
		Resolver: resolve.New(root),
		Policy:   pol,
		Verify:   verify,
	}
	if verify {
		engine.Index = index.New(index.Options{})
		engine.Prober = probe.NewGitProber(probe.Options{})
	}

	ctx := context.Background()
	report, err := engine.Run(ctx, filepath.Base(file))
	if err != nil {
		fmt.Fprintf(stderr, "Audit error for %s:\n  %v\n", file, err)
		return 1
	}

	if fix {
		if err := rewriteTree(root, report); err != nil {
			fmt.Fprintf(stderr, "Fix error:\n  %v\n", err)
			return 1
		}
	}

	if asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintf(stderr, "Encode error: %v\n", err)
			return 1
		}
	} else if !quiet {
		printFindings(stdout, report.Findings)
	}

	if report.Clean() {
		if !asJSON && !quiet {
			fmt.Fprintf(stdout, "✓ %s is clean (%d entries in %d files)\n",
				file, report.Summary.Entries, report.Summary.Files)
		}
		return 0
	}
	if !asJSON && !quiet {
		fmt.Fprintf(stdout, "✗ %s: %d errors, %d warnings\n",
			file, report.Summary.Errors, report.Summary.Warnings)
	}
	if report.Summary.Errors > 0 || notFetchable(report) {
		return 1
	}
	return 0
}

func printFindings(w io.Writer, findings lint.Findings) {
	for _, f := range findings {
		fmt.Fprintf(w, "%s:%d: %s [%s] %s\n", f.Path, f.Line, f.Severity, f.Rule, f.Message)
	}
}

// notFetchable reports whether verification found a missing project or a
// dead repository.
func notFetchable(report *audit.Report) bool {
	if report.Verify == nil {
		return false
	}
	if len(report.Verify.MissingProjects) > 0 {
		return true
	}
	for _, p := range report.Verify.Probes {
		if p.Outcome == probe.OutcomeNotFound {
			return true
		}
	}
	return false
}

// rewriteTree writes every resolved manifest back in canonical form. Each
// file is replaced atomically so a crash cannot leave a half-written
// manifest behind.
func rewriteTree(root string, report *audit.Report) error {
	res, err := resolve.New(root).Resolve(context.Background(), report.Manifest)
	if err != nil {
		return err
	}

	for _, f := range res.Files {
		rendered := manifest.Render(f)
		target := filepath.Join(root, f.Path)
		if err := renameio.WriteFile(target, []byte(rendered), 0o644); err != nil {
			return fmt.Errorf("rewrite %s: %w", f.Path, err)
		}
	}
	return nil
}
