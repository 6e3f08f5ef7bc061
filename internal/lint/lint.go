// SPDX-License-Identifier: MIT

package lint

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	xglog "github.com/ManuGH/reqwatch/internal/log"
	"github.com/ManuGH/reqwatch/internal/manifest"
	"github.com/ManuGH/reqwatch/internal/pep440"
	"github.com/ManuGH/reqwatch/internal/policy"
	"github.com/ManuGH/reqwatch/internal/resolve"
)

// knownOptions are pip directives the linter accepts without a finding.
// Anything else dash-prefixed is REQ006.
var knownOptions = map[string]bool{
	"-e": true, "--editable": true,
	"-c": true, "--constraint": true,
	"-i": true, "--index-url": true,
	"--extra-index-url": true,
	"-f": true, "--find-links": true,
	"--no-binary": true, "--only-binary": true,
	"--pre": true, "--no-index": true,
	"--trusted-host": true,
	"--hash":         true, "--require-hashes": true,
}

// Linter applies the rule set to a resolved manifest tree.
type Linter struct{}

// New returns a Linter.
func New() *Linter { return &Linter{} }

// Run lints the resolution under the given policy and returns findings
// sorted by file and line. A nil policy means policy.Default().
func (l *Linter) Run(ctx context.Context, res *resolve.Resolution, pol *policy.Policy) Findings {
	if pol == nil {
		pol = policy.Default()
	}
	logger := xglog.WithComponentFromContext(ctx, "lint")

	var findings Findings
	add := func(rule, path string, line int, name, msg string) {
		if pol.RuleDisabled(rule) {
			return
		}
		findings = append(findings, Finding{
			Rule:     rule,
			Severity: pol.SeverityFor(rule, defaultSeverity[rule]),
			Path:     path,
			Line:     line,
			Name:     name,
			Message:  msg,
		})
	}

	for _, file := range res.Files {
		l.lintLines(file, pol, add)
	}
	l.lintEntries(res.Entries, pol, add)

	for _, issue := range res.Issues {
		if issue.Cycle {
			add(RuleIncludeCycle, issue.Path, issue.Line, "", issue.Err.Error())
			continue
		}
		add(RuleSyntax, issue.Path, issue.Line, "", issue.Err.Error())
	}

	findings.Sort()

	logger.Debug().
		Str(xglog.FieldManifest, res.Root).
		Int("findings", len(findings)).
		Int("errors", findings.Count(policy.SeverityError)).
		Msg("lint completed")

	return findings
}

// lintLines applies the per-line rules to one parsed file.
func (l *Linter) lintLines(file *manifest.File, pol *policy.Policy, add func(rule, path string, line int, name, msg string)) {
	for i := range file.Lines {
		line := &file.Lines[i]
		switch line.Kind {
		case manifest.KindInvalid:
			if errors.Is(line.Err, manifest.ErrSpecifier) {
				add(RuleSpecifier, file.Path, line.Number, "", line.Err.Error())
			} else {
				add(RuleSyntax, file.Path, line.Number, "", line.Err.Error())
			}
			continue

		case manifest.KindOption:
			opt := strings.Fields(line.Option)[0]
			if !knownOptions[opt] {
				add(RuleUnknownOption, file.Path, line.Number, "",
					fmt.Sprintf("unknown option %q", opt))
			}

		case manifest.KindVCS:
			if line.VCS.Egg == "" {
				add(RuleVCSNoEgg, file.Path, line.Number, "",
					"vcs reference has no #egg= fragment; installed name is unknown")
			}
			if host := vcsHost(line.VCS); host != "" && !pol.VCSHostAllowed(host) {
				add(RuleVCSHost, file.Path, line.Number, manifest.NormalizeName(line.VCS.Egg),
					fmt.Sprintf("vcs host %q is not in the allowed host list", host))
			}
		}

		if canonical := line.Canonical(); canonical != strings.TrimSpace(line.Raw) {
			add(RuleFormatting, file.Path, line.Number, "",
				fmt.Sprintf("non-canonical formatting; canonical form is %q", canonical))
		}
	}
}

// lintEntries applies the cross-file, name-keyed rules.
func (l *Linter) lintEntries(entries []resolve.Entry, pol *policy.Policy, add func(rule, path string, line int, name, msg string)) {
	type occurrence struct {
		path string
		line int
	}
	first := map[string]occurrence{}
	merged := map[string]pep440.SpecifierSet{}
	last := map[string]occurrence{}

	for _, e := range entries {
		name := e.Name()

		if name != "" {
			if prev, ok := first[name]; ok {
				add(RuleDuplicate, e.Path, e.Line, name,
					fmt.Sprintf("duplicate requirement %q (first seen at %s:%d)", name, prev.path, prev.line))
			} else {
				first[name] = occurrence{e.Path, e.Line}
			}

			if ban, ok := pol.BanFor(name); ok {
				msg := fmt.Sprintf("package %q is banned", name)
				if ban.Reason != "" {
					msg += ": " + ban.Reason
				}
				add(RuleBanned, e.Path, e.Line, name, msg)
			}
		}

		switch {
		case e.Req != nil:
			merged[name] = append(merged[name], e.Req.Specifiers...)
			last[name] = occurrence{e.Path, e.Line}

			if pol.PinRequired(name) && !e.Req.Specifiers.Pinned() {
				add(RuleUnpinned, e.Path, e.Line, name,
					fmt.Sprintf("requirement %q is not pinned to an exact version", name))
			}

		case e.VCS != nil:
			if name != "" && pol.PinRequired(name) && e.VCS.Rev == "" {
				add(RuleUnpinned, e.Path, e.Line, name,
					fmt.Sprintf("vcs reference for %q has no pinned revision", name))
			}
		}
	}

	// Conflicts are judged on the union of every specifier set carried by a
	// name, so "pkg >= 2.0" in one file and "pkg < 1.0" in an include clash.
	for name, set := range merged {
		if set.Conflicts() {
			at := last[name]
			add(RuleConflict, at.path, at.line, name,
				fmt.Sprintf("constraints for %q are unsatisfiable: %s", name, set.String()))
		}
	}
}

// vcsHost extracts the lowercased host of a direct source reference, without
// userinfo or port. Empty when the URL has no parseable host.
func vcsHost(v *manifest.VCSRef) string {
	u, err := url.Parse(v.URL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
