package config

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultWatchDebounce coalesces the burst of Write/Create events most
// editors emit for a single save into one reload.
const defaultWatchDebounce = 250 * time.Millisecond

// Watcher reloads a Config from disk whenever the underlying file
// changes, without restarting the process. The kernel's onChange
// applies tool enable/disable, the system prompt and the tool-iteration
// cap, which take effect on the next turn. Bridge settings, Store.Path
// and Server.Addr are picked up in the reloaded Config but take effect
// only after a restart.
type Watcher struct {
	path     string
	onChange func(*Config)
	logger   *slog.Logger

	watcher *fsnotify.Watcher
	cancel  func()
	wg      sync.WaitGroup
}

// Watch starts watching path for changes and calls onChange with the
// freshly loaded Config each time the file is written. The returned
// Watcher must be closed to stop the background goroutine.
func Watch(path string, onChange func(*Config), logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		_ = fw.Close()
		return nil, err
	}

	done := make(chan struct{})
	w := &Watcher{
		path: path, onChange: onChange, logger: logger,
		watcher: fw, cancel: sync.OnceFunc(func() { close(done) }),
	}

	w.wg.Add(1)
	go w.loop(done)
	return w, nil
}

func (w *Watcher) loop(done <-chan struct{}) {
	defer w.wg.Done()

	var mu sync.Mutex
	var timer *time.Timer
	scheduleReload := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(defaultWatchDebounce, func() {
			cfg, err := Load(w.path)
			if err != nil {
				w.logger.Warn("config reload failed", "path", w.path, "error", err)
				return
			}
			w.onChange(cfg)
		})
	}

	for {
		select {
		case <-done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				scheduleReload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watch error", "path", w.path, "error", err)
		}
	}
}

// Close stops the watcher's background goroutine.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
