package predictor

import (
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher polls a linear model's weights file and reloads the model when the
// file's modification time changes.
type Watcher struct {
	model         *LinearModel
	path          string
	checkInterval time.Duration
	logger        *slog.Logger

	mu       sync.Mutex
	baseline time.Time
	stopCh   chan struct{}
	onReload func(Status)
}

// NewWatcher creates a watcher for model's weights at path. The current
// modification time (zero if the file is missing) is the baseline.
func NewWatcher(model *LinearModel, path string, checkInterval time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{
		model:         model,
		path:          path,
		checkInterval: checkInterval,
		logger:        logger,
	}
	w.baseline, _ = w.modTime()
	return w
}

// OnReload sets a callback run after every reload attempt with the model's
// new status. It runs on the watcher goroutine.
func (w *Watcher) OnReload(callback func(Status)) {
	w.mu.Lock()
	w.onReload = callback
	w.mu.Unlock()
}

// Start begins polling in a background goroutine.
func (w *Watcher) Start() {
	w.mu.Lock()
	w.stopCh = make(chan struct{})
	stop := w.stopCh
	w.mu.Unlock()
	go w.watchLoop(stop)
}

// Stop stops polling.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopCh != nil {
		close(w.stopCh)
		w.stopCh = nil
	}
}

func (w *Watcher) watchLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if w.checkForUpdate() {
				w.reload()
			}
		}
	}
}

// checkForUpdate reports whether the file changed since the baseline and
// moves the baseline forward.
func (w *Watcher) checkForUpdate() bool {
	mod, err := w.modTime()
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if mod.Equal(w.baseline) {
		return false
	}
	w.baseline = mod
	return true
}

func (w *Watcher) reload() {
	w.logger.Info("predictor model changed, reloading", "path", w.path)
	_ = w.model.Load(w.path)

	w.mu.Lock()
	cb := w.onReload
	w.mu.Unlock()
	if cb != nil {
		cb(w.model.Status())
	}
}

func (w *Watcher) modTime() (time.Time, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
