// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// SPDX-License-Identifier: MIT

// daemon runs the reqwatch service: it watches a requirements manifest tree,
// audits it on change and on a schedule, and serves reports over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ManuGH/reqwatch/internal/config"
	"github.com/ManuGH/reqwatch/internal/daemon"
	xglog "github.com/ManuGH/reqwatch/internal/log"
	"github.com/ManuGH/reqwatch/internal/telemetry"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := &config.Loader{Path: *configPath}
	cfg, err := loader.Load()
	if err != nil {
		logger := xglog.WithComponent("daemon")
		logger.Fatal().
			Err(err).
			Str(xglog.FieldEvent, "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: "reqwatch",
	})
	logger := xglog.WithComponent("daemon")

	if *configPath != "" {
		logger.Info().
			Str(xglog.FieldEvent, "config.loaded").
			Str("source", "file").
			Str(xglog.FieldPath, *configPath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str(xglog.FieldEvent, "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	provider, err := telemetry.NewProvider(ctx, telemetryConfig(cfg, version))
	if err != nil {
		logger.Fatal().Err(err).
			Str(xglog.FieldEvent, "telemetry.init_failed").
			Msg("failed to initialize tracing")
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}()

	holder := config.NewHolder(cfg, loader)

	d, err := daemon.New(ctx, holder, version)
	if err != nil {
		logger.Fatal().Err(err).
			Str(xglog.FieldEvent, "startup.failed").
			Msg("failed to build daemon")
	}

	logger.Info().
		Str(xglog.FieldEvent, "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str(xglog.FieldManifest, cfg.Manifest).
		Str(xglog.FieldPath, cfg.ManifestRoot).
		Bool("verify", cfg.Verify).
		Msg("starting reqwatch")

	if err := d.Run(ctx); err != nil {
		logger.Fatal().Err(err).
			Str(xglog.FieldEvent, "daemon.failed").
			Msg("daemon failed")
	}

	logger.Info().Msg("server exiting")
}

// telemetryConfig maps the daemon configuration onto the tracer setup.
func telemetryConfig(cfg config.Config, version string) telemetry.Config {
	return telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    "reqwatch",
		ServiceVersion: version,
		Environment:    os.Getenv("REQWATCH_ENVIRONMENT"),
		ExporterType:   cfg.Tracing.Protocol,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SampleRatio,
	}
}
