package confloader

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yndnr/rewind-go/internal/telemetry/logger"
)

// DefaultDebounce coalesces the burst of events an editor produces on save.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reports changes to one configuration file.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	log      logger.Logger

	mu        sync.RWMutex
	callbacks []func(string)

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger.
func WithWatcherLogger(l logger.Logger) WatcherOption {
	return func(w *Watcher) { w.log = l }
}

// WithDebounce sets the debounce window.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher watches path. The parent directory is watched so that
// editors which replace the file by rename are seen.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		watcher:  fw,
		path:     filepath.Clean(path),
		debounce: DefaultDebounce,
		log:      logger.Default(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return nil, err
	}
	w.log.Debug("watching configuration file", "path", w.path)
	return w, nil
}

// OnChange registers a callback that receives the file path.
func (w *Watcher) OnChange(fn func(string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Start runs the event loop until Stop.
func (w *Watcher) Start() {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.log.Info("configuration file changed", "path", w.path)
			w.notify()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("configuration watcher error", "error", err)
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// StartAsync runs Start in a goroutine.
func (w *Watcher) StartAsync() {
	go w.Start()
}

// Stop ends the event loop and releases the watch. It is safe to call more
// than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) notify() {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, cb := range w.callbacks {
		cb(w.path)
	}
}
