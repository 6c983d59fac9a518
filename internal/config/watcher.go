package config

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/parley-ai/parley/internal/event"
	"github.com/parley-ai/parley/internal/logging"
)

// debounceDelay coalesces editor write bursts into one reload.
const debounceDelay = 200 * time.Millisecond

// Watcher reloads the config file on change and republishes the result on
// the event bus: a coarse config.updated plus fine-grained per-field events
// for the model and log level.
type Watcher struct {
	path    string
	bus     *event.Bus
	fs      *fsnotify.Watcher
	current *typesConfigSnapshot

	stop chan struct{}
}

// typesConfigSnapshot keeps the fields the watcher diffs for fine-grained
// events.
type typesConfigSnapshot struct {
	model    string
	logLevel string
}

// NewWatcher starts watching path. The containing directory is watched so
// atomic rename-based saves are seen.
func NewWatcher(path string, bus *event.Bus) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fs.Add(filepath.Dir(path)); err != nil {
		fs.Close()
		return nil, err
	}

	w := &Watcher{
		path: path,
		bus:  bus,
		fs:   fs,
		stop: make(chan struct{}),
	}
	if cfg, err := Load(path); err == nil {
		w.current = &typesConfigSnapshot{model: cfg.Model, logLevel: cfg.LogLevel}
	}

	go w.loop()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.stop)
	return w.fs.Close()
}

func (w *Watcher) loop() {
	var debounce *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.stop:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(debounceDelay)
			} else {
				debounce.Reset(debounceDelay)
			}
			fire = debounce.C
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logging.Warn().Err(err).Msg("config watcher error")
		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		logging.Warn().Err(err).Str("path", w.path).Msg("config reload failed")
		return
	}

	logging.Info().Str("path", w.path).Msg("config reloaded")
	w.bus.Publish(event.Event{
		Type: event.ConfigUpdated,
		Data: event.ConfigUpdatedData{Config: cfg},
	})

	prev := w.current
	w.current = &typesConfigSnapshot{model: cfg.Model, logLevel: cfg.LogLevel}
	if prev == nil {
		return
	}

	if cfg.Model != prev.model && cfg.Model != "" {
		w.bus.Publish(event.Event{
			Type: event.ConfigModelUpdated,
			Data: event.ConfigModelUpdatedData{Model: cfg.Model},
		})
	}
	if cfg.LogLevel != prev.logLevel && cfg.LogLevel != "" {
		w.bus.Publish(event.Event{
			Type: event.ConfigLogLevelUpdated,
			Data: event.ConfigLogLevelUpdatedData{Level: cfg.LogLevel},
		})
	}
}
