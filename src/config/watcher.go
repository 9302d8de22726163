package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"market-relay/src/logger"

	"github.com/fsnotify/fsnotify"
)

// -----------------------------------------------------------------------------

// Watcher reloads the config file when it changes on disk and hands the new
// value to a callback. Invalid files are logged and ignored.
type Watcher struct {
	path     string
	cooldown time.Duration
	onChange func(*Config)
	logger   *logger.Logger

	watcher    *fsnotify.Watcher
	mu         sync.Mutex
	lastReload time.Time
	done       chan struct{}
}

// -----------------------------------------------------------------------------

func NewWatcher(path string, onChange func(*Config), log *logger.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		path:     filepath.Clean(path),
		cooldown: time.Second,
		onChange: onChange,
		logger:   log,
		watcher:  fw,
		done:     make(chan struct{}),
	}, nil
}

// -----------------------------------------------------------------------------

// Start watches the directory holding the file, so editors that replace the
// file by rename are still seen.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch config file: %w", err)
	}
	go w.loop(ctx)
	return nil
}

// -----------------------------------------------------------------------------

func (w *Watcher) Stop() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

// -----------------------------------------------------------------------------

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warning("Config watcher error: %v", err)
		}
	}
}

// -----------------------------------------------------------------------------

func (w *Watcher) reload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if time.Since(w.lastReload) < w.cooldown {
		return
	}

	cfg, err := NewConfig(w.path)
	if err != nil {
		w.logger.Warning("Ignoring config change: %v", err)
		return
	}

	w.lastReload = time.Now()
	w.logger.Info("Config reloaded from %s", w.path)
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
