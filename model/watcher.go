package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultReloadDebounce is how long a burst of writes is collected before
// the registry file is re-read.
const defaultReloadDebounce = 500 * time.Millisecond

// Watcher reloads a registry file into a live Registry when it changes.
// It watches the parent directory so editors that replace the file on save
// are picked up.
type Watcher struct {
	path     string
	registry *Registry
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration

	mu       sync.Mutex
	pending  bool
	lastHash string

	// OnReload, if set, is called after every successful reload.
	OnReload func(*Registry)
}

// NewWatcher creates a watcher for path that updates registry.
func NewWatcher(path string, registry *Registry, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     abs,
		registry: registry,
		watcher:  fsw,
		logger:   logger,
		debounce: defaultReloadDebounce,
	}
	if data, err := os.ReadFile(abs); err == nil {
		w.lastHash = contentHash(data)
	}
	return w, nil
}

// Start watches until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	go w.loop(ctx)

	w.logger.Info("Model registry watcher started", "path", w.path)
	return nil
}

// Stop closes the underlying watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

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
				w.mu.Lock()
				w.pending = true
				w.mu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Model registry watcher error", "error", err)

		case <-ticker.C:
			w.mu.Lock()
			pending := w.pending
			w.pending = false
			w.mu.Unlock()
			if pending {
				w.reload()
			}
		}
	}
}

// reload re-reads the file. A file that fails to parse or validate leaves
// the live registry untouched.
func (w *Watcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.Warn("Failed to read model registry", "path", w.path, "error", err)
		return
	}

	hash := contentHash(data)
	w.mu.Lock()
	unchanged := hash == w.lastHash
	w.mu.Unlock()
	if unchanged {
		return
	}

	next, err := LoadFromFile(w.path)
	if err != nil {
		w.logger.Warn("Ignoring invalid model registry", "path", w.path, "error", err)
		return
	}

	w.registry.Replace(next)

	w.mu.Lock()
	w.lastHash = hash
	w.mu.Unlock()

	w.logger.Info("Model registry reloaded",
		"path", w.path,
		"endpoints", len(w.registry.ListEndpoints()))

	if w.OnReload != nil {
		w.OnReload(w.registry)
	}
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
