package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/NikolaosSamperis/PlaqueMS-project/application/ports"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads clustering parameters when CONFIG_FILE changes. An invalid
// file is logged and the previous parameters stay in effect.
type Watcher struct {
	path     string
	store    *ParamsStore
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	onChange []func(ports.ClusteringParams)

	stopCh chan struct{}
	done   chan struct{}
}

// NewWatcher watches path and publishes reloads into store.
func NewWatcher(path string, store *ParamsStore, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watch the directory so that atomic saves (write to temp, rename) are seen.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	return &Watcher{
		path:     path,
		store:    store,
		watcher:  fw,
		debounce: debounce,
		logger:   logger,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// OnChange registers a callback invoked after each successful reload.
func (w *Watcher) OnChange(fn func(ports.ClusteringParams)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Start begins watching for configuration changes
func (w *Watcher) Start() {
	go w.watchLoop()
	w.logger.Info("Configuration watcher started", zap.String("path", w.path))
}

// Stop stops watching and waits for the loop to exit.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
	<-w.done
	w.logger.Info("Configuration watcher stopped")
}

func (w *Watcher) watchLoop() {
	defer close(w.done)

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	target := filepath.Clean(w.path)
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	params, err := LoadClusteringParams(w.path)
	if err != nil {
		w.logger.Error("Invalid clustering parameters, keeping current",
			zap.String("path", w.path),
			zap.Error(err),
		)
		return
	}

	old := w.store.Current()
	w.store.Store(params)
	w.logger.Info("Clustering parameters reloaded",
		zap.String("algorithm", params.Algorithm),
		zap.Float64("inflation", params.Inflation),
		zap.Bool("changed", old != params),
	)

	w.mu.Lock()
	handlers := append([]func(ports.ClusteringParams){}, w.onChange...)
	w.mu.Unlock()
	for _, fn := range handlers {
		fn(params)
	}
}
