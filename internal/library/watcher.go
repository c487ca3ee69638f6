package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/xiao2945/danci-sub000/internal/ir"
)

// Reloader installs a snapshot. *engine.Engine implements it.
type Reloader interface {
	Reload(snap ir.Snapshot) error
	Generation() int64
}

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	// Patterns are passed to Discover on every reload.
	Patterns []string

	// Debounce is how long changes are collected before reloading.
	// Defaults to 200ms.
	Debounce time.Duration

	Logger *slog.Logger

	// OnReload is called after every reload attempt.
	OnReload func(ReloadResult)
}

// ReloadResult reports one reload attempt.
type ReloadResult struct {
	Files      []string
	Rules      int
	Generation int64
	Err        error
}

// Watcher reloads a Reloader whenever a library file changes.
type Watcher struct {
	config  WatcherConfig
	target  Reloader
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	mu      sync.Mutex
	pending bool
	dirs    map[string]bool
}

// NewWatcher creates a watcher for target.
func NewWatcher(target Reloader, config WatcherConfig) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.Debounce <= 0 {
		config.Debounce = 200 * time.Millisecond
	}
	return &Watcher{
		config:  config,
		target:  target,
		watcher: fsw,
		logger:  logger,
		dirs:    make(map[string]bool),
	}, nil
}

// Reload discovers, loads and installs the library once.
func (w *Watcher) Reload() ReloadResult {
	res := w.reload()
	if res.Err != nil {
		w.logger.Warn("library reload failed", "error", res.Err)
	} else {
		w.logger.Info("library reloaded", "files", len(res.Files), "rules", res.Rules, "generation", res.Generation)
	}
	if w.config.OnReload != nil {
		w.config.OnReload(res)
	}
	return res
}

func (w *Watcher) reload() ReloadResult {
	files, err := Discover(w.config.Patterns)
	if err != nil {
		return ReloadResult{Err: err}
	}
	w.watchDirs(files)

	res := ReloadResult{Files: files}
	lib, errs := LoadAll(files)
	if len(errs) > 0 {
		res.Err = errors.Join(errs...)
		return res
	}
	if err := w.target.Reload(lib.Snapshot()); err != nil {
		res.Err = err
		return res
	}
	res.Rules = len(lib.Entries)
	res.Generation = w.target.Generation()
	return res
}

// watchDirs adds the directories holding files and the static base of
// every glob pattern.
func (w *Watcher) watchDirs(files []string) {
	var dirs []string
	for _, f := range files {
		dirs = append(dirs, filepath.Dir(f))
	}
	for _, p := range w.config.Patterns {
		if containsGlob(p) {
			base, _ := doublestar.SplitPattern(filepath.ToSlash(p))
			dirs = append(dirs, filepath.FromSlash(base))
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, d := range dirs {
		d = filepath.Clean(d)
		if w.dirs[d] {
			continue
		}
		if err := w.watcher.Add(d); err != nil {
			w.logger.Warn("failed to watch directory", "path", d, "error", err)
			continue
		}
		w.dirs[d] = true
		w.logger.Debug("watching directory", "path", d)
	}
}

// Run reloads once, then reloads after every batch of changes until ctx
// is done. It closes the underlying watcher on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	w.Reload()

	ticker := time.NewTicker(w.config.Debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)

		case <-ticker.C:
			w.mu.Lock()
			due := w.pending
			w.pending = false
			w.mu.Unlock()
			if due {
				w.Reload()
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if _, ok := FormatOf(event.Name); !ok {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	w.mu.Lock()
	w.pending = true
	w.mu.Unlock()
	w.logger.Debug("library change detected", "path", event.Name, "op", event.Op.String())
}
