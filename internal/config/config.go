// SPDX-License-Identifier: MIT

// Package config loads the daemon configuration: defaults, then an optional
// strict YAML file, then REQWATCH_* environment variables. The merged result
// is validated as a whole; an invalid config is rejected atomically.
package config

import (
	"fmt"
	"net"
	"time"
)

// Config is the full daemon configuration.
type Config struct {
	// ManifestRoot confines every manifest and include. Required.
	ManifestRoot string `yaml:"manifest_root"`
	// Manifest is the root manifest path relative to ManifestRoot.
	Manifest string `yaml:"manifest"`
	// PolicyPath points at the YAML audit policy; empty means the default
	// permissive policy.
	PolicyPath string `yaml:"policy"`

	// DataDir holds the run history, probe store and latest report.
	DataDir string `yaml:"data_dir"`

	// Listen is the API listen address.
	Listen string `yaml:"listen"`
	// RateLimitRPM caps mutating API requests per client per minute.
	RateLimitRPM int `yaml:"rate_limit_rpm"`

	// LogLevel is a zerolog level name.
	LogLevel string `yaml:"log_level"`

	// Verify enables network checks (index lookups, VCS probes) per run.
	Verify bool `yaml:"verify"`
	// VerifyConcurrency bounds the verify fanout.
	VerifyConcurrency int `yaml:"verify_concurrency"`

	// IndexURL is the package index base URL.
	IndexURL string `yaml:"index_url"`
	// IndexTTL is the cache lifetime of index lookups.
	IndexTTL time.Duration `yaml:"index_ttl"`

	// ProbeTTL is the probe-store result lifetime.
	ProbeTTL time.Duration `yaml:"probe_ttl"`
	// ProbeRate limits probes per second per forge host.
	ProbeRate float64 `yaml:"probe_rate"`

	// OutboundEnforce turns on the outbound host allowlist.
	OutboundEnforce bool `yaml:"outbound_enforce"`
	// OutboundHosts is the allowlist; empty allows any host.
	OutboundHosts []string `yaml:"outbound_hosts"`

	// RedisAddr enables the shared Redis cache when non-empty.
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// WatchDebounce delays re-audit after a manifest change.
	WatchDebounce time.Duration `yaml:"watch_debounce"`
	// AuditInterval is the periodic re-audit fallback when watching fails.
	AuditInterval time.Duration `yaml:"audit_interval"`

	// Tracing configures the OTLP trace exporter.
	Tracing TracingConfig `yaml:"tracing"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
	// Endpoint is the OTLP collector address, host:port.
	Endpoint string `yaml:"endpoint"`
	// Protocol is "grpc" or "http".
	Protocol string `yaml:"protocol"`
	// SampleRatio in [0,1]; 0 falls back to 1.0.
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Manifest:          "requirements-dev.txt",
		DataDir:           "data",
		Listen:            ":8080",
		RateLimitRPM:      60,
		LogLevel:          "info",
		VerifyConcurrency: 4,
		IndexURL:          "https://pypi.org",
		IndexTTL:          15 * time.Minute,
		ProbeTTL:          time.Hour,
		ProbeRate:         2,
		WatchDebounce:     500 * time.Millisecond,
		AuditInterval:     time.Hour,
		Tracing: TracingConfig{
			Protocol:    "grpc",
			SampleRatio: 1.0,
		},
	}
}

// Validate checks the merged configuration.
func Validate(cfg Config) error {
	if cfg.ManifestRoot == "" {
		return fmt.Errorf("manifest_root is required")
	}
	if cfg.Manifest == "" {
		return fmt.Errorf("manifest is required")
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if _, _, err := net.SplitHostPort(cfg.Listen); err != nil {
		return fmt.Errorf("listen %q: %w", cfg.Listen, err)
	}
	if cfg.RateLimitRPM <= 0 {
		return fmt.Errorf("rate_limit_rpm must be positive")
	}
	if cfg.VerifyConcurrency <= 0 {
		return fmt.Errorf("verify_concurrency must be positive")
	}
	if cfg.IndexTTL <= 0 || cfg.ProbeTTL <= 0 {
		return fmt.Errorf("index_ttl and probe_ttl must be positive")
	}
	if cfg.ProbeRate <= 0 {
		return fmt.Errorf("probe_rate must be positive")
	}
	if cfg.WatchDebounce <= 0 || cfg.AuditInterval <= 0 {
		return fmt.Errorf("watch_debounce and audit_interval must be positive")
	}
	if cfg.Tracing.Enabled {
		if cfg.Tracing.Endpoint == "" {
			return fmt.Errorf("tracing.endpoint is required when tracing is enabled")
		}
		switch cfg.Tracing.Protocol {
		case "grpc", "http":
		default:
			return fmt.Errorf("tracing.protocol %q: must be grpc or http", cfg.Tracing.Protocol)
		}
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be in [0,1]")
	}
	return nil
}
