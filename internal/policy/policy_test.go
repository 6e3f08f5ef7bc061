// SPDX-License-Identifier: MIT
package policy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const samplePolicy = `
banned:
  - name: TensorFlow
    reason: CPU-only build, accelerated framework must not be installed
require_pinned_names:
  - selenium
allowed_vcs_hosts:
  - github.com
disabled_rules:
  - REQ007
severity_overrides:
  REQ005: error
`

func TestParsePolicy(t *testing.T) {
	p, err := Parse([]byte(samplePolicy))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	ban, ok := p.BanFor("tensorflow")
	if !ok {
		t.Fatal("banned name not normalized on load")
	}
	if !strings.Contains(ban.Reason, "CPU-only") {
		t.Fatalf("reason = %q", ban.Reason)
	}
	if _, ok := p.BanFor("numpy"); ok {
		t.Fatal("unexpected ban")
	}

	if !p.PinRequired("selenium") || p.PinRequired("coverage") {
		t.Fatal("require_pinned_names not applied")
	}
	if !p.RuleDisabled("REQ007") || p.RuleDisabled("REQ008") {
		t.Fatal("disabled_rules not applied")
	}
	if got := p.SeverityFor("REQ005", SeverityWarning); got != SeverityError {
		t.Fatalf("override severity = %q", got)
	}
	if got := p.SeverityFor("REQ002", SeverityError); got != SeverityError {
		t.Fatalf("fallback severity = %q", got)
	}
	if !p.VCSHostAllowed("github.com") || p.VCSHostAllowed("evil.example") {
		t.Fatal("vcs host allowlist not applied")
	}
}

func TestParsePolicyRejectsUnknownFields(t *testing.T) {
	if _, err := Parse([]byte("bannned:\n  - name: x\n")); err == nil {
		t.Fatal("expected strict decoding to reject typo field")
	}
}

func TestParsePolicyRejectsBadValues(t *testing.T) {
	cases := []string{
		"banned:\n  - name: 'not a name'\n",
		"disabled_rules:\n  - REQ999\n",
		"severity_overrides:\n  REQ001: fatal\n",
		"require_pinned_names:\n  - '???'\n",
	}
	for _, in := range cases {
		if _, err := Parse([]byte(in)); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestDefaultPolicyIsPermissive(t *testing.T) {
	p := Default()
	if _, ok := p.BanFor("tensorflow"); ok {
		t.Fatal("default policy must ban nothing")
	}
	if p.PinRequired("coverage") {
		t.Fatal("default policy must not require pins")
	}
	if !p.VCSHostAllowed("anything.example") {
		t.Fatal("default policy must allow all vcs hosts")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte(samplePolicy), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := p.BanFor("tensorflow"); !ok {
		t.Fatal("policy file not applied")
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected error for missing policy file")
	}
}
