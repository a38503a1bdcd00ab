package config

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/asheshgoplani/promptbuffer/internal/logging"
)

var configLog = logging.ForComponent(logging.CompConfig)

// DefaultDebounce lets editors finish writing before the file is reread.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads config.toml when it changes.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(*Config, error)
	debounce time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	mu       sync.Mutex
	timer    *time.Timer
}

// NewWatcher watches the config file at path. onChange gets the freshly
// loaded config, or the load error with the defaults.
func NewWatcher(path string, onChange func(*Config, error)) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path:     filepath.Clean(path),
		watcher:  fsWatcher,
		onChange: onChange,
		debounce: DefaultDebounce,
		stopCh:   make(chan struct{}),
	}, nil
}

// SetDebounce sets the debounce duration. Call before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Start watches the directory holding the file, since editors replace the
// file by renaming over it.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	go w.watchLoop()
	return nil
}

// Stop stops the watcher. Safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			configLog.Warn("config_watch_error", slog.String("error", err.Error()))
		}
	}
}

// schedule restarts the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	select {
	case <-w.stopCh:
		return
	default:
	}

	cfg, err := LoadFile(w.path)
	if err != nil {
		configLog.Warn("config_reload_failed", slog.String("path", w.path), slog.String("error", err.Error()))
		if cfg == nil {
			cfg = &Config{}
		}
	} else {
		configLog.Info("config_reloaded", slog.String("path", w.path))
	}
	ClearCache()
	w.onChange(cfg, err)
}
