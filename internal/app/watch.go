package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	fsw "github.com/corey/threadscan/internal/adapters/fsnotify"
	"github.com/corey/threadscan/internal/ports"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// WatchConfig controls App.Watch.
type WatchConfig struct {
	// Debounce is the per-file quiet period before a rescan.
	Debounce time.Duration
	// Every is an optional cron spec for periodic full rescans.
	Every string
	// Watcher overrides the fsnotify watcher. Nil builds one from the
	// collector options.
	Watcher ports.Watcher
}

// watchState is the live outcome maintained between events.
type watchState struct {
	mu      sync.Mutex
	run     *ports.RunSummary
	outcome *ports.FileScanOutcome
}

// Watch scans the root, then keeps the report current until ctx is done.
// Changed files are rescanned individually; removed files drop out of the
// report. A root with no source files yet is not an error here: the report
// appears once the first file does.
func (a *App) Watch(ctx context.Context, wc WatchConfig) error {
	st := &watchState{}
	if err := a.fullRescan(ctx, st); err != nil && !errors.Is(err, ErrNoSourceFiles) {
		return err
	}

	w := wc.Watcher
	if w == nil {
		fw, err := fsw.NewWatcher(fsw.Options{
			Filter:   a.collect,
			Debounce: wc.Debounce,
			OnError:  func(err error) { a.log.Warnf("watcher: %v", err) },
		})
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		w = fw
	}
	if err := w.Watch(a.paths.Root, func(path string) { a.onFileChanged(st, path) }); err != nil {
		w.Stop()
		return fmt.Errorf("watch %s: %w", a.paths.Root, err)
	}
	defer w.Stop()

	if wc.Every != "" {
		c := cron.New()
		_, err := c.AddFunc(wc.Every, func() {
			a.log.Infof("Scheduled rescan of %s", a.paths.Root)
			if err := a.fullRescan(ctx, st); err != nil && !errors.Is(err, ErrNoSourceFiles) && ctx.Err() == nil {
				a.log.Errorf("rescan: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("schedule %q: %w", wc.Every, err)
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
	}

	a.log.Infof("Watching %s for changes (Ctrl-C to stop)", a.paths.Root)
	<-ctx.Done()
	a.log.Infof("Stopped watching %s", a.paths.Root)
	return nil
}

// fullRescan replaces the watch state with a fresh Run.
func (a *App) fullRescan(ctx context.Context, st *watchState) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	run, outcome, err := a.Run(ctx)
	if err != nil {
		if st.outcome == nil {
			st.outcome = ports.NewFileScanOutcome()
		}
		return err
	}
	st.run, st.outcome = run, outcome
	return nil
}

// onFileChanged rescans one file, or drops it when gone, and rewrites the
// report. A path that no longer exists may have been a directory: every
// entry beneath it is dropped as well.
func (a *App) onFileChanged(st *watchState, path string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.outcome == nil {
		st.outcome = ports.NewFileScanOutcome()
	}

	info, statErr := os.Stat(path)
	switch {
	case statErr == nil && info.IsDir():
		return
	case statErr != nil:
		removed := a.dropTree(st.outcome, path)
		if len(removed) == 0 && !a.collect.Accepts(path) {
			return
		}
		if len(removed) == 0 {
			a.forget(path)
			a.log.Infof("Removed %s", path)
		}
		for _, p := range removed {
			a.forget(p)
			a.log.Infof("Removed %s", p)
		}
	default:
		res, _, err := a.ScanFile(path)
		if err != nil {
			a.log.Warnf("Error reading %s: %v", path, err)
			st.outcome.Remove(path)
			break
		}
		st.outcome.Set(path, res.Matches)
		if res.HasMatch {
			a.log.Infof("Rescanned %s: %d matched strings", path, res.Matches.Len())
		} else {
			a.log.Infof("No threading patterns found in %s", path)
		}
	}

	run := a.incrementalRun(st)
	if err := a.writeReport(run, st.outcome); err != nil {
		a.log.Errorf("%v", err)
		return
	}
	st.run = run
}

// dropTree removes path and every entry under it from outcome and returns the
// removed paths.
func (a *App) dropTree(outcome *ports.FileScanOutcome, path string) []string {
	prefix := path + string(filepath.Separator)
	var removed []string
	for _, f := range outcome.Files() {
		if f.Path == path || strings.HasPrefix(f.Path, prefix) {
			outcome.Remove(f.Path)
			removed = append(removed, f.Path)
		}
	}
	return removed
}

// forget drops path from the cache, if there is one.
func (a *App) forget(path string) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Forget(path); err != nil {
		a.log.Debugf("cache forget %s: %v", path, err)
	}
}

// incrementalRun derives a summary for a report rewritten after one file
// changed. Counters other than FilesMatched carry over from the last full scan.
func (a *App) incrementalRun(st *watchState) *ports.RunSummary {
	now := a.now()
	run := &ports.RunSummary{
		ID:         uuid.NewString(),
		Root:       a.paths.Root,
		StartedAt:  now,
		FinishedAt: now,
		ReportPath: a.paths.Report,
	}
	if st.run != nil {
		run.FilesScanned = st.run.FilesScanned
		run.FilesFailed = st.run.FilesFailed
	}
	run.FilesMatched = st.outcome.Len()
	return run
}
