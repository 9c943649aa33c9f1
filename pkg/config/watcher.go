package config

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 500 * time.Millisecond

// ReloadFunc receives the freshly loaded configuration after a file change.
type ReloadFunc func(*Config)

// Watcher reloads a config file when it changes on disk. Write bursts are
// debounced so editors that truncate-then-write trigger a single reload.
type Watcher struct {
	path     string
	onReload ReloadFunc

	fsw *fsnotify.Watcher

	debounceMu    sync.Mutex
	debounceTimer *time.Timer
}

// NewWatcher creates a watcher for the given config file path.
func NewWatcher(path string, onReload ReloadFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{
		path:     path,
		onReload: onReload,
		fsw:      fsw,
	}, nil
}

// Run processes file events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.debounceReload()
			}
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			// Watch errors are transient; keep watching.
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// debounceReload applies debounce logic before reloading the file.
func (w *Watcher) debounceReload() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(watchDebounce, func() {
		cfg, err := LoadFromPath(w.path)
		if err != nil {
			// Invalid intermediate states are expected while a file is
			// being edited; wait for the next write.
			return
		}
		if w.onReload != nil {
			w.onReload(cfg)
		}
	})
}
