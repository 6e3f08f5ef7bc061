// SPDX-License-Identifier: MIT

// Package lint checks a resolved manifest tree against structural rules and
// the configured audit policy.
package lint

import (
	"fmt"
	"sort"

	"github.com/ManuGH/reqwatch/internal/policy"
)

// Rule IDs. The set is closed; the policy references rules by these IDs.
const (
	RuleSyntax        = "REQ001"
	RuleSpecifier     = "REQ002"
	RuleDuplicate     = "REQ003"
	RuleConflict      = "REQ004"
	RuleVCSNoEgg      = "REQ005"
	RuleUnknownOption = "REQ006"
	RuleUnpinned      = "REQ007"
	RuleBanned        = "REQ008"
	RuleIncludeCycle  = "REQ009"
	RuleFormatting    = "REQ010"
	RuleVCSHost       = "REQ011"
)

// defaultSeverity maps each rule to its severity before policy overrides.
var defaultSeverity = map[string]policy.Severity{
	RuleSyntax:        policy.SeverityError,
	RuleSpecifier:     policy.SeverityError,
	RuleDuplicate:     policy.SeverityWarning,
	RuleConflict:      policy.SeverityError,
	RuleVCSNoEgg:      policy.SeverityWarning,
	RuleUnknownOption: policy.SeverityWarning,
	RuleUnpinned:      policy.SeverityWarning,
	RuleBanned:        policy.SeverityError,
	RuleIncludeCycle:  policy.SeverityError,
	RuleFormatting:    policy.SeverityInfo,
	RuleVCSHost:       policy.SeverityError,
}

// Finding is one lint result with provenance.
type Finding struct {
	Rule     string          `json:"rule"`
	Severity policy.Severity `json:"severity"`
	Path     string          `json:"path"`
	Line     int             `json:"line"`
	// Name is the normalized package name when the finding concerns one.
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s:%d: %s [%s] %s", f.Path, f.Line, f.Severity, f.Rule, f.Message)
}

// Findings is a sortable finding list.
type Findings []Finding

// Sort orders findings by path, line, then rule ID for stable output.
func (fs Findings) Sort() {
	sort.SliceStable(fs, func(i, j int) bool {
		if fs[i].Path != fs[j].Path {
			return fs[i].Path < fs[j].Path
		}
		if fs[i].Line != fs[j].Line {
			return fs[i].Line < fs[j].Line
		}
		return fs[i].Rule < fs[j].Rule
	})
}

// HasErrors reports whether any finding is at error severity.
func (fs Findings) HasErrors() bool {
	for _, f := range fs {
		if f.Severity == policy.SeverityError {
			return true
		}
	}
	return false
}

// Count returns the number of findings at the given severity.
func (fs Findings) Count(sev policy.Severity) int {
	n := 0
	for _, f := range fs {
		if f.Severity == sev {
			n++
		}
	}
	return n
}
