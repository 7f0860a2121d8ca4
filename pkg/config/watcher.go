package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultReloadDelay debounces bursts of file events into one reload.
const DefaultReloadDelay = 250 * time.Millisecond

// Watcher reloads a settings file when it changes. The parent directory is watched so
// editors that replace the file are seen too.
type Watcher struct {
	loader   *Loader
	path     string
	delay    time.Duration
	onChange func(*Settings, error)
	logger   zerolog.Logger

	mu      sync.Mutex
	current *Settings
	fsw     *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher creates a watcher for path. onChange receives every reload: the new
// settings, or the error that kept the previous ones in place.
func NewWatcher(loader *Loader, path string, onChange func(*Settings, error)) *Watcher {
	return &Watcher{
		loader:   loader,
		path:     filepath.Clean(path),
		delay:    DefaultReloadDelay,
		onChange: onChange,
		logger:   loader.logger.With().Str("path", path).Logger(),
	}
}

// SetDelay overrides the debounce delay. Call before Start.
func (w *Watcher) SetDelay(d time.Duration) {
	w.delay = d
}

// Start loads the file once and begins watching. It stops when ctx is done or Close
// is called.
func (w *Watcher) Start(ctx context.Context) (*Settings, error) {
	s, err := w.loader.Load(ctx, w.path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	w.mu.Lock()
	w.current = s
	w.fsw = fsw
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.processEvents(ctx, fsw, w.done)
	w.logger.Info().Msg("Watching settings")
	return s, nil
}

// Current returns the last successfully loaded settings.
func (w *Watcher) Current() *Settings {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.mu.Lock()
	fsw, done := w.fsw, w.done
	w.fsw = nil
	w.mu.Unlock()
	if fsw == nil {
		return nil
	}
	err := fsw.Close()
	<-done
	return err
}

func (w *Watcher) processEvents(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.fsw == fsw {
				w.fsw = nil
			}
			w.mu.Unlock()
			_ = fsw.Close()
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path ||
				event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug().Str("op", event.Op.String()).Msg("Settings file changed")
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.delay, func() { w.reload(ctx) })

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	s, err := w.loader.Load(ctx, w.path)
	if err != nil {
		w.logger.Warn().Err(err).Msg("Settings reload failed, keeping previous settings")
	} else {
		w.mu.Lock()
		w.current = s
		w.mu.Unlock()
		w.logger.Info().Msg("Settings reloaded")
	}
	if w.onChange != nil {
		w.onChange(s, err)
	}
}
