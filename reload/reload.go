// Package reload watches shader source directories and invokes a callback
// when sources change, debouncing editor write bursts.
//
// Typical use pairs a Watcher with the cache's bulk eviction: on change,
// clear the pipeline stores and let the next frame's requests rebuild them
// from the edited sources.
package reload

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last event before
// firing the callback. Editors often emit several writes per save.
const DefaultDebounce = 200 * time.Millisecond

// ErrClosed is returned when adding paths to a closed watcher.
var ErrClosed = errors.New("reload: watcher is closed")

// Watcher invokes a callback when watched shader sources change.
type Watcher struct {
	fsw      *fsnotify.Watcher
	callback func(paths []string)
	debounce time.Duration
	exts     map[string]bool

	mu      sync.Mutex
	closed  bool
	pending map[string]bool
	timer   *time.Timer

	done chan struct{}
}

// NewWatcher creates a watcher that calls callback with the changed paths
// after events settle for the debounce interval. exts filters by file
// extension (".wgsl"); empty means every file counts. A zero debounce
// selects DefaultDebounce.
func NewWatcher(callback func(paths []string), debounce time.Duration, exts ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	extSet := make(map[string]bool, len(exts))
	for _, e := range exts {
		extSet[strings.ToLower(e)] = true
	}

	w := &Watcher{
		fsw:      fsw,
		callback: callback,
		debounce: debounce,
		exts:     extSet,
		pending:  make(map[string]bool),
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Add starts watching the named directory and all its subdirectories.
// Directories created under it later are picked up as they appear.
func (w *Watcher) Add(dir string) error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return ErrClosed
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

// Close stops the watcher. The callback is not invoked after Close returns.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	err := w.fsw.Close()
	<-w.done
	return err
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slogger().Warn("shader watcher error", "err", err)
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}

	// New directories join the watch so nested shader trees keep working.
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.fsw.Add(ev.Name); err != nil {
				slogger().Warn("failed to watch new directory", "path", ev.Name, "err", err)
			}
			return
		}
	}

	if len(w.exts) > 0 && !w.exts[strings.ToLower(filepath.Ext(ev.Name))] {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.pending[ev.Name] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

// fire drains the pending set and invokes the callback once for the batch.
func (w *Watcher) fire() {
	w.mu.Lock()
	if w.closed || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	clear(w.pending)
	w.mu.Unlock()

	slogger().Debug("shader sources changed", "count", len(paths))
	w.callback(paths)
}
