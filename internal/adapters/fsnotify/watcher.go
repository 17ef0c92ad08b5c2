// Package fsnotify implements ports.Watcher using github.com/fsnotify/fsnotify.
// It recursively watches a scan root, passes on only the files the collector
// would pick up, and debounces bursts of events per path (editors often
// write a file several times per save).
package fsnotify

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/corey/threadscan/internal/adapters/collector"
	"github.com/corey/threadscan/internal/ports"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last event on a path before
// onChange fires.
const DefaultDebounce = 100 * time.Millisecond

// vcsDirs are never watched, whatever the collector options say.
var vcsDirs = map[string]bool{
	".git": true,
	".hg":  true,
	".svn": true,
}

var _ ports.Watcher = (*Watcher)(nil)

// Options configures a Watcher.
type Options struct {
	// Filter selects the files that trigger onChange.
	Filter collector.Options
	// Debounce is the per-path quiet period. Zero means DefaultDebounce.
	Debounce time.Duration
	// OnError receives watcher errors. Nil drops them.
	OnError func(error)
}

// Watcher implements ports.Watcher using fsnotify.
type Watcher struct {
	fw   *fsnotify.Watcher
	opts Options
	root string

	done    chan struct{}
	stopped bool
	mu      sync.Mutex

	// pending holds one debounce timer per path.
	pending map[string]*time.Timer
	pmu     sync.Mutex
	wg      sync.WaitGroup
}

// NewWatcher creates a new file system watcher.
func NewWatcher(opts Options) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Watcher{
		fw:      fw,
		opts:    opts,
		done:    make(chan struct{}),
		pending: make(map[string]*time.Timer),
	}, nil
}

// Watch starts monitoring root recursively. onChange receives the absolute
// path of each written, created, removed or renamed source file once its
// events have settled. A directory moved into the tree reports each source
// file inside it; a directory removed or moved out is reported by its own
// path, and the receiver drops everything beneath it.
func (w *Watcher) Watch(root string, onChange func(filePath string)) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &os.PathError{Op: "watch", Path: absRoot, Err: os.ErrInvalid}
	}
	w.root = absRoot

	if err := w.addTree(absRoot, nil); err != nil {
		return err
	}

	go w.loop(onChange)
	return nil
}

// addTree registers dir and every non-excluded subdirectory. With a non-nil
// onChange, source files already inside dir are scheduled too; files moved in
// with their directory produce no events of their own.
func (w *Watcher) addTree(dir string, onChange func(string)) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible paths
		}
		if !d.IsDir() {
			if onChange != nil && w.relevant(path) {
				w.schedule(path, onChange)
			}
			return nil
		}
		if path != w.root && w.skipDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fw.Add(path)
	})
}

func (w *Watcher) skipDir(name string) bool {
	return vcsDirs[name] || w.opts.Filter.SkipDir(name)
}

func (w *Watcher) loop(onChange func(string)) {
	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			path := event.Name

			// New directories join the watch list.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(path); err == nil && info.IsDir() {
					if !w.skipDir(info.Name()) {
						w.addTree(path, onChange)
					}
					continue
				}
			}

			gone := event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
			switch {
			case w.relevant(path):
				if gone || event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					w.schedule(path, onChange)
				}
			case gone && w.watched(path) && !w.skipDir(filepath.Base(path)):
				// Possibly a directory; its path is all that is left to report.
				w.schedule(path, onChange)
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			if w.opts.OnError != nil {
				w.opts.OnError(err)
			}

		case <-w.done:
			return
		}
	}
}

// relevant reports whether path is a file the collector would return.
func (w *Watcher) relevant(path string) bool {
	return w.opts.Filter.Accepts(path) && w.watched(path)
}

// watched reports whether path lies under the root outside VCS and excluded
// directories.
func (w *Watcher) watched(path string) bool {
	if path == w.root || !strings.HasPrefix(path, w.root+string(filepath.Separator)) {
		return false
	}
	if rel, err := filepath.Rel(w.root, filepath.Dir(path)); err == nil && rel != "." {
		for _, part := range strings.Split(rel, string(filepath.Separator)) {
			if vcsDirs[part] {
				return false
			}
		}
	}
	return !w.opts.Filter.InExcludedDir(w.root, path)
}

// schedule (re)starts the debounce timer for path.
func (w *Watcher) schedule(path string, onChange func(string)) {
	w.pmu.Lock()
	defer w.pmu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.opts.Debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.opts.Debounce, func() {
		w.pmu.Lock()
		delete(w.pending, path)
		w.pmu.Unlock()

		w.mu.Lock()
		if w.stopped {
			w.mu.Unlock()
			return
		}
		w.wg.Add(1)
		w.mu.Unlock()
		defer w.wg.Done()
		onChange(path)
	})
}

// Stop ends monitoring and releases all resources. Pending debounced
// callbacks are cancelled. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.done)

	w.pmu.Lock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.pmu.Unlock()

	err := w.fw.Close()
	w.wg.Wait()
	return err
}
