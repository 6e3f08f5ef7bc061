// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// envPrefix namespaces every configuration variable.
const envPrefix = "REQWATCH_"

// ApplyEnv overlays REQWATCH_* environment variables on cfg. Unset variables
// leave the current value untouched; malformed values are errors, not
// silent fallbacks.
func ApplyEnv(cfg Config) (Config, error) {
	var err error

	setString(&cfg.ManifestRoot, "MANIFEST_ROOT")
	setString(&cfg.Manifest, "MANIFEST")
	setString(&cfg.PolicyPath, "POLICY")
	setString(&cfg.DataDir, "DATA_DIR")
	setString(&cfg.Listen, "LISTEN")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.IndexURL, "INDEX_URL")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setString(&cfg.Tracing.Endpoint, "TRACE_ENDPOINT")
	setString(&cfg.Tracing.Protocol, "TRACE_PROTOCOL")

	if err = setBool(&cfg.Verify, "VERIFY"); err != nil {
		return cfg, err
	}
	if err = setBool(&cfg.OutboundEnforce, "OUTBOUND_ENFORCE"); err != nil {
		return cfg, err
	}
	if err = setBool(&cfg.Tracing.Enabled, "TRACE_ENABLED"); err != nil {
		return cfg, err
	}

	if err = setInt(&cfg.RateLimitRPM, "RATE_LIMIT_RPM"); err != nil {
		return cfg, err
	}
	if err = setInt(&cfg.VerifyConcurrency, "VERIFY_CONCURRENCY"); err != nil {
		return cfg, err
	}
	if err = setInt(&cfg.RedisDB, "REDIS_DB"); err != nil {
		return cfg, err
	}

	if err = setFloat(&cfg.ProbeRate, "PROBE_RATE"); err != nil {
		return cfg, err
	}
	if err = setFloat(&cfg.Tracing.SampleRatio, "TRACE_SAMPLE_RATIO"); err != nil {
		return cfg, err
	}

	if err = setDuration(&cfg.IndexTTL, "INDEX_TTL"); err != nil {
		return cfg, err
	}
	if err = setDuration(&cfg.ProbeTTL, "PROBE_TTL"); err != nil {
		return cfg, err
	}
	if err = setDuration(&cfg.WatchDebounce, "WATCH_DEBOUNCE"); err != nil {
		return cfg, err
	}
	if err = setDuration(&cfg.AuditInterval, "AUDIT_INTERVAL"); err != nil {
		return cfg, err
	}

	if raw, ok := os.LookupEnv(envPrefix + "OUTBOUND_HOSTS"); ok {
		cfg.OutboundHosts = nil
		for _, h := range strings.Split(raw, ",") {
			if h = strings.TrimSpace(h); h != "" {
				cfg.OutboundHosts = append(cfg.OutboundHosts, h)
			}
		}
	}

	return cfg, nil
}

func setString(dst *string, name string) {
	if raw, ok := os.LookupEnv(envPrefix + name); ok {
		*dst = raw
	}
}

func setBool(dst *bool, name string) error {
	raw, ok := os.LookupEnv(envPrefix + name)
	if !ok {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("%s%s=%q: %w", envPrefix, name, raw, err)
	}
	*dst = v
	return nil
}

func setInt(dst *int, name string) error {
	raw, ok := os.LookupEnv(envPrefix + name)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%s%s=%q: %w", envPrefix, name, raw, err)
	}
	*dst = v
	return nil
}

func setFloat(dst *float64, name string) error {
	raw, ok := os.LookupEnv(envPrefix + name)
	if !ok {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("%s%s=%q: %w", envPrefix, name, raw, err)
	}
	*dst = v
	return nil
}

func setDuration(dst *time.Duration, name string) error {
	raw, ok := os.LookupEnv(envPrefix + name)
	if !ok {
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s%s=%q: %w", envPrefix, name, raw, err)
	}
	*dst = v
	return nil
}
