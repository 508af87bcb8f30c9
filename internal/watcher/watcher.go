// Package watcher reloads the client configuration when its file changes.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nghyane/stitch-sdk/internal/config"
	log "github.com/nghyane/stitch-sdk/internal/logging"
)

const configReloadDebounce = 150 * time.Millisecond

// Watcher watches a single config file. Editors that save by rename are
// handled by watching the parent directory and filtering on the file name.
type Watcher struct {
	configPath     string
	reloadCallback func(*config.Config)
	lookup         config.LookupFunc
	debounce       time.Duration

	watcher *fsnotify.Watcher

	configReloadMu    sync.Mutex
	configReloadTimer *time.Timer
	lastConfigHash    string

	stopOnce sync.Once
	started  bool
	done     chan struct{}
}

// Option customizes a Watcher.
type Option func(*Watcher)

// WithEnvLookup sets the lookup used to re-apply environment overrides after
// each reload.
func WithEnvLookup(lookup config.LookupFunc) Option {
	return func(w *Watcher) { w.lookup = lookup }
}

// WithDebounce overrides the delay between the last write and the reload.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher that calls reloadCallback with every changed
// configuration that loads cleanly.
func NewWatcher(configPath string, reloadCallback func(*config.Config), opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(configPath)
	if err != nil {
		_ = fw.Close()
		return nil, err
	}
	w := &Watcher{
		configPath:     abs,
		reloadCallback: reloadCallback,
		debounce:       configReloadDebounce,
		watcher:        fw,
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start records the current file hash and begins processing events until
// ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if hash, err := fileHash(w.configPath); err == nil {
		w.lastConfigHash = hash
	} else {
		log.Infof("config file %s not found, waiting for it to appear", w.configPath)
	}
	dir := filepath.Dir(w.configPath)
	if err := w.watcher.Add(dir); err != nil {
		log.Errorf("failed to watch config directory %s: %v", dir, err)
		return err
	}
	log.Debugf("watching config file: %s", w.configPath)
	w.started = true
	go w.processEvents(ctx)
	return nil
}

// Stop ends event processing and cancels a pending reload.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		w.stopConfigReloadTimer()
		err = w.watcher.Close()
		if w.started {
			<-w.done
		}
	})
	return err
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case errWatch, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("file watcher error: %v", errWatch)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	configOps := fsnotify.Write | fsnotify.Create | fsnotify.Rename
	if filepath.Clean(event.Name) != w.configPath || event.Op&configOps == 0 {
		return
	}
	log.Debugf("file system event detected: %s %s", event.Op.String(), event.Name)
	w.scheduleConfigReload()
}
