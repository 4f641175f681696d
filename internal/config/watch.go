package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watcher hot-reloads a config file. File-change events are debounced so a
// burst of writes from an editor re-reads the file once; editors that save via
// rename still trigger through the Create event.
type Watcher struct {
	path     string
	debounce time.Duration
	onReload func(*Config)
}

// NewWatcher watches path and calls onReload (may be nil) after each
// successful reload. A debounce of zero falls back to the default.
func NewWatcher(path string, debounce time.Duration, onReload func(*Config)) *Watcher {
	if debounce <= 0 {
		debounce = time.Duration(DefaultConfig().ReloadDebounceMs) * time.Millisecond
	}
	return &Watcher{path: path, debounce: debounce, onReload: onReload}
}

// Run watches until ctx is canceled. It fails up front when the file cannot
// be read, so a misconfigured path surfaces at startup instead of as a
// silently dead watcher.
func (w *Watcher) Run(ctx context.Context) error {
	v := viper.New()
	v.SetConfigFile(w.path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("watch config %s: %w", w.path, err)
	}

	reload := func() {
		cfg, err := Load(w.path)
		if err != nil {
			slog.Warn("config hot-reload load failed", "path", w.path, "error", err)
			return
		}
		Set(cfg)
		if w.onReload != nil {
			w.onReload(cfg)
		}
		slog.Info("config hot-reloaded", "path", w.path)
	}

	var debounce *time.Timer
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		if filepath.Clean(e.Name) != filepath.Clean(w.path) {
			return
		}
		if debounce != nil {
			debounce.Stop()
		}
		debounce = time.AfterFunc(w.debounce, reload)
	})

	<-ctx.Done()
	return nil
}
