package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ReloadedEvent reports one reload attempt.
type ReloadedEvent struct {
	Timestamp time.Time
	Config    *Config
	Error     error
}

// Watcher monitors the config file and re-reads it on change, with
// debouncing so editors that write in several steps trigger one reload.
// Consumers receive validated configs on EventChan; an invalid file is
// reported as an error event and the previous config stays in effect.
type Watcher struct {
	watcher         *fsnotify.Watcher
	path            string
	logger          *zap.Logger
	debounceTimeout time.Duration
	debounceTimer   *time.Timer
	eventChan       chan ReloadedEvent
	stopChan        chan struct{}
	mu              sync.RWMutex
	isWatching      bool
	stopped         bool
}

// NewWatcher creates a watcher for one config file.
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		watcher:         fsw,
		path:            path,
		logger:          logger,
		debounceTimeout: 500 * time.Millisecond,
		eventChan:       make(chan ReloadedEvent, 10),
		stopChan:        make(chan struct{}),
	}, nil
}

// Watch starts watching the config file's directory. Watching the directory
// rather than the file survives rename-based atomic writes.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.isWatching {
		w.mu.Unlock()
		return fmt.Errorf("watcher is already running")
	}
	w.isWatching = true
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		w.mu.Lock()
		w.isWatching = false
		w.mu.Unlock()
		return fmt.Errorf("failed to add path to watcher: %w", err)
	}

	w.logger.Info("Starting config file watcher",
		zap.String("path", w.path),
		zap.Duration("debounce", w.debounceTimeout),
	)

	go w.watchLoop(ctx)
	return nil
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		w.isWatching = false
		w.mu.Unlock()
		w.logger.Info("Config file watcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.shouldProcessEvent(event) {
				w.handleEvent(event)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) shouldProcessEvent(event fsnotify.Event) bool {
	return filepath.Clean(event.Name) == filepath.Clean(w.path)
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.logger.Debug("Config file change detected",
		zap.String("file", event.Name),
		zap.String("op", event.Op.String()),
	)

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceTimeout, func() {
		w.performReload()
	})
}

func (w *Watcher) performReload() {
	w.logger.Info("Reloading configuration", zap.String("path", w.path))

	var ev ReloadedEvent
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("Failed to reload configuration, keeping previous",
			zap.String("path", w.path),
			zap.Error(err),
		)
		ev = ReloadedEvent{Timestamp: time.Now(), Error: err}
	} else {
		w.logger.Info("Configuration reloaded successfully")
		ev = ReloadedEvent{Timestamp: time.Now(), Config: cfg}
	}

	// The debounce timer can fire while Stop is running; delivery holds the
	// same lock Stop closes the channel under, so a stopped watcher drops the
	// event instead of sending on a closed channel.
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	select {
	case w.eventChan <- ev:
	default:
		w.logger.Warn("Dropping reload event, consumer is not keeping up")
	}
}

// EventChan returns a channel for receiving reload events.
func (w *Watcher) EventChan() <-chan ReloadedEvent {
	return w.eventChan
}

// SetDebounceTimeout sets the debounce timeout for file changes.
func (w *Watcher) SetDebounceTimeout(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounceTimeout = d
}

// IsWatching returns true if the watcher is currently active.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.isWatching
}

// Stop stops watching for file changes.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isWatching || w.stopped {
		return nil
	}
	w.stopped = true

	close(w.stopChan)

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	if err := w.watcher.Close(); err != nil {
		w.logger.Error("Error closing watcher", zap.Error(err))
		return err
	}

	close(w.eventChan)
	return nil
}
