// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validBase() Config {
	cfg := Default()
	cfg.ManifestRoot = "/srv/manifests"
	return cfg
}

func TestValidateDefaultsWithRoot(t *testing.T) {
	if err := Validate(validBase()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing manifest root", func(c *Config) { c.ManifestRoot = "" }},
		{"missing manifest", func(c *Config) { c.Manifest = "" }},
		{"bad listen", func(c *Config) { c.Listen = "no-port" }},
		{"zero rate limit", func(c *Config) { c.RateLimitRPM = 0 }},
		{"zero concurrency", func(c *Config) { c.VerifyConcurrency = 0 }},
		{"zero probe rate", func(c *Config) { c.ProbeRate = 0 }},
		{"zero debounce", func(c *Config) { c.WatchDebounce = 0 }},
		{"tracing without endpoint", func(c *Config) { c.Tracing.Enabled = true }},
		{"bad tracing protocol", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Endpoint = "otel:4317"
			c.Tracing.Protocol = "udp"
		}},
		{"sample ratio out of range", func(c *Config) { c.Tracing.SampleRatio = 1.5 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validBase()
			tc.mutate(&cfg)
			if err := Validate(cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("REQWATCH_MANIFEST_ROOT", "/srv/manifests")
	t.Setenv("REQWATCH_MANIFEST", "requirements.txt")
	t.Setenv("REQWATCH_VERIFY", "true")
	t.Setenv("REQWATCH_VERIFY_CONCURRENCY", "8")
	t.Setenv("REQWATCH_PROBE_RATE", "0.5")
	t.Setenv("REQWATCH_INDEX_TTL", "30m")
	t.Setenv("REQWATCH_OUTBOUND_HOSTS", "github.com, pypi.org")

	cfg, err := ApplyEnv(Default())
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}

	if cfg.ManifestRoot != "/srv/manifests" || cfg.Manifest != "requirements.txt" {
		t.Fatalf("paths = %q, %q", cfg.ManifestRoot, cfg.Manifest)
	}
	if !cfg.Verify || cfg.VerifyConcurrency != 8 {
		t.Fatalf("verify = %v/%d", cfg.Verify, cfg.VerifyConcurrency)
	}
	if cfg.ProbeRate != 0.5 || cfg.IndexTTL != 30*time.Minute {
		t.Fatalf("probe rate = %v, index ttl = %v", cfg.ProbeRate, cfg.IndexTTL)
	}
	if len(cfg.OutboundHosts) != 2 || cfg.OutboundHosts[1] != "pypi.org" {
		t.Fatalf("outbound hosts = %v", cfg.OutboundHosts)
	}
	// Untouched fields keep their defaults.
	if cfg.Listen != ":8080" {
		t.Fatalf("listen = %q", cfg.Listen)
	}
}

func TestApplyEnvRejectsMalformedValues(t *testing.T) {
	t.Setenv("REQWATCH_VERIFY", "maybe")
	if _, err := ApplyEnv(Default()); err == nil {
		t.Fatal("expected error for malformed bool")
	}
}

func TestLoaderMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reqwatch.yaml")
	content := `
manifest_root: /srv/manifests
manifest: requirements-dev.txt
verify: true
probe_rate: 1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	// Env wins over file.
	t.Setenv("REQWATCH_PROBE_RATE", "4")

	cfg, err := (&Loader{Path: path}).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ManifestRoot != "/srv/manifests" || !cfg.Verify {
		t.Fatalf("file not applied: %+v", cfg)
	}
	if cfg.ProbeRate != 4 {
		t.Fatalf("env did not win: probe_rate = %v", cfg.ProbeRate)
	}
}

func TestLoaderRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reqwatch.yaml")
	if err := os.WriteFile(path, []byte("manifst_root: /srv\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := (&Loader{Path: path}).Load(); err == nil {
		t.Fatal("expected strict decoding to reject typo key")
	}
}

func TestLoaderValidates(t *testing.T) {
	// No manifest_root anywhere.
	os.Unsetenv("REQWATCH_MANIFEST_ROOT")
	if _, err := (&Loader{}).Load(); err == nil {
		t.Fatal("expected validation error for missing manifest_root")
	}
}
