// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package daemon wires configuration, storage, audit engine, watcher and the
// HTTP API into one long-running process.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ManuGH/reqwatch/internal/api"
	"github.com/ManuGH/reqwatch/internal/audit"
	"github.com/ManuGH/reqwatch/internal/cache"
	"github.com/ManuGH/reqwatch/internal/config"
	"github.com/ManuGH/reqwatch/internal/health"
	"github.com/ManuGH/reqwatch/internal/index"
	xglog "github.com/ManuGH/reqwatch/internal/log"
	"github.com/ManuGH/reqwatch/internal/netutil"
	"github.com/ManuGH/reqwatch/internal/policy"
	"github.com/ManuGH/reqwatch/internal/probe"
	"github.com/ManuGH/reqwatch/internal/resolve"
	"github.com/ManuGH/reqwatch/internal/watch"
)

const shutdownTimeout = 30 * time.Second

// Daemon owns every long-lived component of the reqwatch process.
type Daemon struct {
	holder  *config.Holder
	cfg     config.Config
	logger  zerolog.Logger
	version string

	history    *audit.History
	probeStore *probe.Store
	cache      cache.Cache
	redis      *cache.Redis
	memory     *cache.Memory
	engine     *audit.Engine
	health     *health.Manager
	server     *api.Server
	watcher    *watch.Watcher

	// auditCh serializes audit runs; capacity one coalesces bursts.
	auditCh chan struct{}

	polMu sync.RWMutex
	pol   *policy.Policy
}

// New builds a Daemon from the current configuration snapshot. Storage is
// opened eagerly so misconfiguration fails at startup, not mid-audit.
func New(ctx context.Context, holder *config.Holder, version string) (*Daemon, error) {
	cfg := holder.Get()
	logger := xglog.WithComponent("daemon")

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	d := &Daemon{
		holder:  holder,
		cfg:     cfg,
		logger:  logger,
		version: version,
		auditCh: make(chan struct{}, 1),
	}

	if err := d.loadPolicy(cfg.PolicyPath); err != nil {
		return nil, err
	}

	history, err := audit.OpenHistory(filepath.Join(cfg.DataDir, "runs.db"))
	if err != nil {
		return nil, err
	}
	d.history = history

	store, err := probe.OpenStore(filepath.Join(cfg.DataDir, "probes"), cfg.ProbeTTL)
	if err != nil {
		d.close()
		return nil, err
	}
	d.probeStore = store

	d.cache = d.openCache(ctx, cfg)

	outbound := netutil.OutboundPolicy{
		Enforce: cfg.OutboundEnforce,
		Hosts:   cfg.OutboundHosts,
	}
	idx := index.New(index.Options{
		BaseURL:  cfg.IndexURL,
		Cache:    d.cache,
		TTL:      cfg.IndexTTL,
		Outbound: outbound,
	})
	prober := probe.NewGitProber(probe.Options{
		Store:       store,
		PerHostRate: rate.Limit(cfg.ProbeRate),
		Outbound:    outbound,
	})

	d.engine = &audit.Engine{
		Resolver:    resolve.New(cfg.ManifestRoot),
		Index:       idx,
		Prober:      prober,
		Verify:      cfg.Verify,
		Concurrency: cfg.VerifyConcurrency,
		History:     history,
		ReportPath:  filepath.Join(cfg.DataDir, "report.json"),
	}
	d.engine.Policy = d.currentPolicy()

	d.health = d.buildHealthManager(idx, cfg)

	d.server = api.New(api.Options{
		Config:  cfg,
		Health:  d.health,
		History: history,
		Trigger: d.RequestAudit,
		Policy:  d.currentPolicy,
		Version: version,
	})

	d.watcher = watch.New(cfg.ManifestRoot, cfg.WatchDebounce, cfg.AuditInterval, func(context.Context) {
		d.RequestAudit()
	})

	return d, nil
}

// openCache prefers Redis when configured and falls back to the in-process
// cache so an unreachable Redis degrades the daemon instead of stopping it.
func (d *Daemon) openCache(ctx context.Context, cfg config.Config) cache.Cache {
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedis(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err == nil {
			d.redis = redisCache
			return redisCache
		}
		d.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "cache.redis_unavailable").
			Msg("redis unreachable, using in-process cache")
	}

	d.memory = cache.NewMemory(time.Minute)
	return d.memory
}

func (d *Daemon) buildHealthManager(idx *index.Client, cfg config.Config) *health.Manager {
	hm := health.NewManager(d.version)

	hm.RegisterChecker(health.NewPingChecker("run_history", d.history))
	hm.RegisterChecker(health.NewFreshnessChecker(d.lastAudit, 2*cfg.AuditInterval, 24*time.Hour))

	if cfg.Verify {
		hm.RegisterChecker(health.NewIndexChecker(func(ctx context.Context) error {
			// Any index answer, including 404, proves reachability.
			_, err := idx.Lookup(ctx, "pip")
			if errors.Is(err, index.ErrNotFound) {
				return nil
			}
			return err
		}))
	}
	if d.redis != nil {
		hm.RegisterChecker(health.NewPingChecker("redis", d.redis))
	}
	return hm
}

func (d *Daemon) lastAudit(ctx context.Context) (time.Time, error) {
	report, err := d.history.Latest(ctx)
	if err != nil {
		if errors.Is(err, audit.ErrNoRuns) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return report.StartedAt, nil
}

func (d *Daemon) loadPolicy(path string) error {
	pol := policy.Default()
	if path != "" {
		loaded, err := policy.Load(path)
		if err != nil {
			return fmt.Errorf("load policy: %w", err)
		}
		pol = loaded
	}

	d.polMu.Lock()
	d.pol = pol
	d.polMu.Unlock()

	d.engineSetPolicy(pol)
	return nil
}

func (d *Daemon) engineSetPolicy(pol *policy.Policy) {
	if d.engine != nil {
		d.engine.Policy = pol
	}
}

func (d *Daemon) currentPolicy() *policy.Policy {
	d.polMu.RLock()
	defer d.polMu.RUnlock()
	return d.pol
}

// RequestAudit queues an audit run. Returns false when one is already queued.
func (d *Daemon) RequestAudit() bool {
	select {
	case d.auditCh <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run blocks until ctx is cancelled or a component fails fatally.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.close()

	g, ctx := errgroup.WithContext(ctx)

	// Config watcher is best-effort: startup must not fail when inotify is
	// unavailable.
	if err := d.holder.StartWatcher(ctx); err != nil {
		d.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "config.watcher_start_failed").
			Msg("failed to start config watcher")
	}

	// Apply reloaded configuration: policy follows immediately, address or
	// storage changes need a restart.
	updates := make(chan config.Config, 1)
	d.holder.RegisterListener(updates)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case cfg := <-updates:
				d.applyConfig(cfg)
			}
		}
	})

	// SIGHUP triggers a manual reload.
	g.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-hup:
				d.logger.Info().Str(xglog.FieldEvent, "config.reload_signal").Msg("received SIGHUP, reloading config")
				if err := d.holder.Reload(ctx); err != nil {
					d.logger.Warn().Err(err).Msg("config reload failed")
				}
			}
		}
	})

	// Manifest watcher queues audits on change and on the periodic interval.
	g.Go(func() error {
		err := d.watcher.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	// Audit worker: one run at a time, starting with a baseline audit.
	d.RequestAudit()
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-d.auditCh:
				d.runAudit(ctx)
			}
		}
	})

	// HTTP server.
	srv := &http.Server{
		Addr:              d.cfg.Listen,
		Handler:           d.server.Handler(),
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	g.Go(func() error {
		d.logger.Info().
			Str(xglog.FieldEvent, "startup").
			Str("addr", d.cfg.Listen).
			Str("version", d.version).
			Msg("API server listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		// Detached-but-bounded context so shutdown completes even though the
		// parent is already cancelled.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	d.logger.Info().Str(xglog.FieldEvent, "shutdown").Msg("daemon stopped")
	return err
}

func (d *Daemon) runAudit(ctx context.Context) {
	if _, err := d.engine.Run(ctx, d.cfg.Manifest); err != nil {
		d.logger.Error().Err(err).
			Str(xglog.FieldEvent, "audit.failed").
			Str(xglog.FieldManifest, d.cfg.Manifest).
			Msg("audit run failed")
	}
}

// applyConfig picks up what can change at runtime. Listen address, data dir
// and manifest root changes are logged but need a restart.
func (d *Daemon) applyConfig(cfg config.Config) {
	if err := d.loadPolicy(cfg.PolicyPath); err != nil {
		d.logger.Error().Err(err).Msg("reloaded policy rejected, keeping previous policy")
	}

	if cfg.Listen != d.cfg.Listen || cfg.DataDir != d.cfg.DataDir || cfg.ManifestRoot != d.cfg.ManifestRoot {
		d.logger.Warn().
			Str(xglog.FieldEvent, "config.restart_required").
			Msg("listen, data_dir or manifest_root changed; restart to apply")
	}

	d.engine.Verify = cfg.Verify
	d.engine.Concurrency = cfg.VerifyConcurrency
	d.RequestAudit()
}

func (d *Daemon) close() {
	if d.probeStore != nil {
		if err := d.probeStore.Close(); err != nil {
			d.logger.Warn().Err(err).Msg("failed to close probe store")
		}
		d.probeStore = nil
	}
	if d.history != nil {
		if err := d.history.Close(); err != nil {
			d.logger.Warn().Err(err).Msg("failed to close run history")
		}
		d.history = nil
	}
	if d.redis != nil {
		_ = d.redis.Close()
		d.redis = nil
	}
	if d.memory != nil {
		d.memory.Stop()
		d.memory = nil
	}
	d.holder.Stop()
}
