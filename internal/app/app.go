// Package app wires the collector, matcher, cache and report writer into the
// scan pipeline: collect → read → match → aggregate → write. It also runs the
// watch loop that keeps a report current while files change.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/corey/threadscan/internal/adapters/collector"
	"github.com/corey/threadscan/internal/adapters/recon"
	"github.com/corey/threadscan/internal/adapters/report"
	"github.com/corey/threadscan/internal/domain/ruleset"
	"github.com/corey/threadscan/internal/logger"
	"github.com/corey/threadscan/internal/ports"
	"github.com/google/uuid"
	"github.com/spaolacci/murmur3"
)

// ErrNoSourceFiles is returned when the walk finds nothing to scan. No report
// is written in that case.
var ErrNoSourceFiles = errors.New("no source files found")

// ErrInvalidUTF8 marks a file that is not valid UTF-8 text.
var ErrInvalidUTF8 = errors.New("invalid UTF-8")

// Logger is the console output the pipeline reports progress to.
type Logger interface {
	Tracef(format string, args ...any)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	LogScanComplete(run *ports.RunSummary)
}

// Config holds initialization parameters for the App.
type Config struct {
	Paths     *Paths
	Rules     *ruleset.RuleSet // nil = built-in rules
	Collector collector.Options
	Workers   int           // <= 1 scans sequentially
	Format    report.Format // empty = text
	Cache     ports.Cache   // optional; nil disables caching and history
	Logger    Logger        // nil discards output
}

// App runs scans for one root directory. The rules and matcher are fixed at
// construction and shared read-only by every worker.
type App struct {
	paths     *Paths
	rules     *ruleset.RuleSet
	matcher   *recon.Matcher
	rulesHash uint64
	collect   collector.Options
	workers   int
	format    report.Format
	cache     ports.Cache
	log       Logger

	now func() time.Time
}

// New validates cfg and builds the matcher.
func New(cfg Config) (*App, error) {
	if cfg.Paths == nil || cfg.Paths.Root == "" {
		return nil, fmt.Errorf("scan root required")
	}
	rules := cfg.Rules
	if rules == nil {
		rules = ruleset.Default()
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	format := cfg.Format
	if format == "" {
		format = report.FormatText
	}
	var log Logger = cfg.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &App{
		paths:     cfg.Paths,
		rules:     rules,
		matcher:   recon.NewMatcher(rules),
		rulesHash: rules.Fingerprint(),
		collect:   cfg.Collector,
		workers:   workers,
		format:    format,
		cache:     cfg.Cache,
		log:       log,
		now:       time.Now,
	}, nil
}

// Paths returns the resolved paths for this scan.
func (a *App) Paths() *Paths { return a.paths }

// fileResult is the outcome of scanning one file.
type fileResult struct {
	path   string
	res    ports.ScanResult
	cached bool
	err    error
}

// Run scans the root once and writes the report. It returns ErrNoSourceFiles
// when nothing matched the extension filter, and ctx.Err() if cancelled
// before the report was written.
func (a *App) Run(ctx context.Context) (*ports.RunSummary, *ports.FileScanOutcome, error) {
	run := &ports.RunSummary{
		ID:        uuid.NewString(),
		Root:      a.paths.Root,
		StartedAt: a.now(),
	}

	a.log.Infof("Scanning directory for source files...")
	files, err := a.collectFiles()
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		a.log.Warnf("No source files found in the given directory.")
		return nil, nil, ErrNoSourceFiles
	}
	a.log.Infof("Found %d source files. Analyzing for threading-related patterns...", len(files))

	results, err := a.scanAll(ctx, files)
	if err != nil {
		return nil, nil, err
	}
	outcome := a.aggregate(run, results)

	run.FinishedAt = a.now()
	run.ReportPath = a.paths.Report
	if err := a.writeReport(run, outcome); err != nil {
		return nil, nil, err
	}
	a.saveRun(run)
	a.log.LogScanComplete(run)
	return run, outcome, nil
}

// collectFiles walks the root, logging unreadable directories.
func (a *App) collectFiles() ([]string, error) {
	res, err := collector.Collect(a.paths.Root, a.collect)
	if err != nil {
		return nil, err
	}
	for _, werr := range res.Errors {
		a.log.Warnf("%v", werr)
	}
	return res.Files, nil
}

// aggregate folds per-file results into an outcome in collection order and
// fills the run counters.
func (a *App) aggregate(run *ports.RunSummary, results []fileResult) *ports.FileScanOutcome {
	outcome := ports.NewFileScanOutcome()
	for _, r := range results {
		run.FilesScanned++
		switch {
		case r.err != nil:
			run.FilesFailed++
			a.log.Warnf("Error reading %s: %v", r.path, r.err)
		case !r.res.HasMatch:
			a.log.Infof("No threading patterns found in %s", r.path)
		default:
			outcome.Set(r.path, r.res.Matches)
			a.log.Debugf("%s: %d matched strings", r.path, r.res.Matches.Len())
		}
		if r.cached {
			run.CacheHits++
		}
	}
	run.FilesMatched = outcome.Len()
	return outcome
}

// scanAll scans files with up to a.workers goroutines. Results come back in
// the order of files regardless of completion order.
func (a *App) scanAll(ctx context.Context, files []string) ([]fileResult, error) {
	results := make([]fileResult, len(files))
	if a.workers == 1 || len(files) == 1 {
		for i, path := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i] = a.scanOne(path)
		}
		return results, nil
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := min(a.workers, len(files))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = a.scanOne(files[i])
			}
		}()
	}

	var err error
feed:
	for i := range files {
		if err = ctx.Err(); err != nil {
			break
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (a *App) scanOne(path string) fileResult {
	res, cached, err := a.ScanFile(path)
	return fileResult{path: path, res: res, cached: cached, err: err}
}

// ScanFile reads path as strict UTF-8 and returns the matcher's verdict,
// consulting the cache when one is configured. cached reports a cache hit.
// Errors do not repeat the path; callers prefix it.
func (a *App) ScanFile(path string) (res ports.ScanResult, cached bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ports.ScanResult{}, false, err
	}
	if !utf8.Valid(data) {
		return ports.ScanResult{}, false, ErrInvalidUTF8
	}

	var contentHash uint64
	if a.cache != nil {
		contentHash = murmur3.Sum64(data)
		hit, ok, err := a.cache.Lookup(path, contentHash, a.rulesHash)
		if err != nil {
			a.log.Debugf("cache lookup %s: %v", path, err)
		} else if ok {
			a.log.Tracef("cache hit %s", path)
			return ports.ScanResult{HasMatch: !hit.Empty(), Matches: hit}, true, nil
		}
	}

	res = a.matcher.Result(string(data))

	if a.cache != nil {
		if err := a.cache.Store(path, contentHash, a.rulesHash, res.Matches); err != nil {
			a.log.Debugf("cache store %s: %v", path, err)
		}
	}
	return res, false, nil
}

func (a *App) writeReport(run *ports.RunSummary, outcome *ports.FileScanOutcome) error {
	if err := report.Write(a.paths.Report, a.format, report.Report{Run: run, Outcome: outcome}); err != nil {
		return err
	}
	a.log.Debugf("wrote %s report to %s", a.format, a.paths.Report)
	return nil
}

// saveRun records run in history. History is best effort.
func (a *App) saveRun(run *ports.RunSummary) {
	if a.cache == nil {
		return
	}
	if err := a.cache.SaveRun(run); err != nil {
		a.log.Warnf("save run history: %v", err)
	}
}
