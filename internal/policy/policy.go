// SPDX-License-Identifier: MIT

// Package policy defines the audit policy: banned packages, pinning
// requirements and per-rule overrides. Policies load from YAML with strict
// decoding, mirroring the manifest convention of recording exclusions (such
// as keeping an accelerated numerical-computing build out of a CPU-only
// environment) as enforceable rules instead of trailing comments.
package policy

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/reqwatch/internal/manifest"
)

// Severity levels for findings.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError:
		return true
	}
	return false
}

// Ban names a package that must not appear in the resolved manifest tree.
type Ban struct {
	// Name is normalized on load.
	Name   string `yaml:"name"`
	Reason string `yaml:"reason,omitempty"`
}

// Policy is the full audit policy.
type Policy struct {
	// Banned packages are rejected wherever they appear, directly or through
	// an include.
	Banned []Ban `yaml:"banned,omitempty"`

	// RequirePinned demands an exact "==" pin: true for every package, or
	// use RequirePinnedNames for a named subset.
	RequirePinned      bool     `yaml:"require_pinned,omitempty"`
	RequirePinnedNames []string `yaml:"require_pinned_names,omitempty"`

	// AllowedVCSHosts restricts direct source references to the listed hosts.
	// Empty means any host.
	AllowedVCSHosts []string `yaml:"allowed_vcs_hosts,omitempty"`

	// DisabledRules suppresses rules by ID (e.g. "REQ007").
	DisabledRules []string `yaml:"disabled_rules,omitempty"`

	// SeverityOverrides adjusts a rule's severity by ID.
	SeverityOverrides map[string]Severity `yaml:"severity_overrides,omitempty"`
}

// Default returns the policy used when none is configured: structural rules
// only, nothing banned, no pinning demands.
func Default() *Policy {
	return &Policy{}
}

// Load reads and validates a YAML policy file. Unknown fields are rejected.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates policy YAML.
func Parse(data []byte) (*Policy, error) {
	var p Policy
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode policy: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	p.normalize()
	return &p, nil
}

func (p *Policy) validate() error {
	for _, b := range p.Banned {
		if err := manifest.ValidateName(b.Name); err != nil {
			return fmt.Errorf("banned entry: %w", err)
		}
	}
	for _, n := range p.RequirePinnedNames {
		if err := manifest.ValidateName(n); err != nil {
			return fmt.Errorf("require_pinned_names entry: %w", err)
		}
	}
	for _, id := range p.DisabledRules {
		if !knownRule(id) {
			return fmt.Errorf("disabled_rules: unknown rule %q", id)
		}
	}
	for id, sev := range p.SeverityOverrides {
		if !knownRule(id) {
			return fmt.Errorf("severity_overrides: unknown rule %q", id)
		}
		if !sev.Valid() {
			return fmt.Errorf("severity_overrides[%s]: unknown severity %q", id, sev)
		}
	}
	return nil
}

func (p *Policy) normalize() {
	for i := range p.Banned {
		p.Banned[i].Name = manifest.NormalizeName(p.Banned[i].Name)
	}
	for i := range p.RequirePinnedNames {
		p.RequirePinnedNames[i] = manifest.NormalizeName(p.RequirePinnedNames[i])
	}
}

// BanFor returns the ban entry matching the normalized package name.
func (p *Policy) BanFor(name string) (Ban, bool) {
	for _, b := range p.Banned {
		if b.Name == name {
			return b, true
		}
	}
	return Ban{}, false
}

// PinRequired reports whether the normalized package name must be pinned.
func (p *Policy) PinRequired(name string) bool {
	if p.RequirePinned {
		return true
	}
	for _, n := range p.RequirePinnedNames {
		if n == name {
			return true
		}
	}
	return false
}

// RuleDisabled reports whether the rule ID is suppressed.
func (p *Policy) RuleDisabled(id string) bool {
	for _, d := range p.DisabledRules {
		if d == id {
			return true
		}
	}
	return false
}

// SeverityFor returns the effective severity for a rule, applying overrides.
func (p *Policy) SeverityFor(id string, fallback Severity) Severity {
	if s, ok := p.SeverityOverrides[id]; ok {
		return s
	}
	return fallback
}

// VCSHostAllowed reports whether host may serve direct source references.
func (p *Policy) VCSHostAllowed(host string) bool {
	if len(p.AllowedVCSHosts) == 0 {
		return true
	}
	for _, h := range p.AllowedVCSHosts {
		if h == host {
			return true
		}
	}
	return false
}

// ruleIDs is the closed set of lint rules the policy may reference.
var ruleIDs = map[string]bool{
	"REQ001": true, "REQ002": true, "REQ003": true, "REQ004": true,
	"REQ005": true, "REQ006": true, "REQ007": true, "REQ008": true,
	"REQ009": true, "REQ010": true, "REQ011": true,
}

func knownRule(id string) bool { return ruleIDs[id] }
