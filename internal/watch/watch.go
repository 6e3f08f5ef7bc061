// SPDX-License-Identifier: MIT

// Package watch re-triggers audits when the manifest tree changes. File
// events are debounced; when the filesystem watcher cannot be set up the
// watcher degrades to periodic re-audits instead of failing the daemon.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/reqwatch/internal/log"
)

// Trigger is invoked after a debounced change or on the periodic fallback.
type Trigger func(ctx context.Context)

// Watcher observes a manifest root directory.
type Watcher struct {
	// Root is the directory holding the manifest tree.
	Root string
	// Debounce delays the trigger after the last event, default 500ms.
	Debounce time.Duration
	// Interval is the periodic re-audit fallback, default 1h.
	Interval time.Duration
	// OnChange runs after changes and on every interval tick.
	OnChange Trigger

	logger zerolog.Logger

	// newWatcher allows tests to force the periodic fallback.
	newWatcher func() (*fsnotify.Watcher, error)
}

// New creates a Watcher over root.
func New(root string, debounce, interval time.Duration, onChange Trigger) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Watcher{
		Root:       root,
		Debounce:   debounce,
		Interval:   interval,
		OnChange:   onChange,
		logger:     xglog.WithComponent("watch"),
		newWatcher: fsnotify.NewWatcher,
	}
}

// Run blocks until ctx is cancelled. Watcher setup failures are logged and
// degrade to the periodic loop.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := w.newWatcher()
	if err == nil {
		err = w.addDirs(fsw)
	}
	if err != nil {
		w.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "watch.degraded").
			Dur("interval", w.Interval).
			Msg("file watching unavailable, falling back to periodic audits")
		if fsw != nil {
			_ = fsw.Close()
		}
		return w.periodic(ctx)
	}
	defer func() { _ = fsw.Close() }()

	w.logger.Info().
		Str(xglog.FieldEvent, "watch.started").
		Str(xglog.FieldPath, w.Root).
		Msg("watching manifest tree")

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return w.periodic(ctx)
			}
			if !w.relevant(event) {
				continue
			}
			// New directories must be picked up so nested includes created
			// later still trigger audits.
			if event.Has(fsnotify.Create) {
				w.maybeAddDir(fsw, event.Name)
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(w.Debounce, func() {
				w.logger.Debug().
					Str(xglog.FieldEvent, "watch.changed").
					Str(xglog.FieldPath, event.Name).
					Msg("manifest tree changed")
				w.OnChange(ctx)
			})

		case err, ok := <-fsw.Errors:
			if !ok {
				return w.periodic(ctx)
			}
			w.logger.Error().Err(err).Str(xglog.FieldEvent, "watch.error").Msg("watcher error")

		case <-ticker.C:
			w.OnChange(ctx)
		}
	}
}

// relevant filters events down to manifest-shaped files and directories.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return true
}

// addDirs registers the root and its subdirectories.
func (w *Watcher) addDirs(fsw *fsnotify.Watcher) error {
	return filepath.WalkDir(w.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) maybeAddDir(fsw *fsnotify.Watcher, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := fsw.Add(path); err != nil {
		w.logger.Warn().Err(err).Str(xglog.FieldPath, path).Msg("failed to watch new directory")
	}
}

// periodic is the fallback loop when file watching is unavailable.
func (w *Watcher) periodic(ctx context.Context) error {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.OnChange(ctx)
		}
	}
}
