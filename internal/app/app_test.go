package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/corey/threadscan/internal/adapters/bbolt"
	"github.com/corey/threadscan/internal/adapters/report"
	"github.com/corey/threadscan/internal/domain/ruleset"
	"github.com/corey/threadscan/internal/logger"
	"github.com/corey/threadscan/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Scan pipeline: collect → read → match → aggregate → write
// Expectation: the report lists only matching files in collection order; the
// console names the files without matches; unreadable files are skipped.
// =============================================================================

// syncBuffer is a bytes.Buffer safe for a logger writing from several goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type testEnv struct {
	app    *App
	log    *syncBuffer
	outDir string
}

func newTestApp(t *testing.T, root string, mutate func(*Config)) *testEnv {
	t.Helper()
	outDir := t.TempDir()
	cfg := Config{Format: report.FormatText}
	if mutate != nil {
		mutate(&cfg)
	}
	paths, err := NewPaths(root, outDir, cfg.Format, "")
	require.NoError(t, err)
	cfg.Paths = paths

	buf := &syncBuffer{}
	cfg.Logger = logger.NewConsoleLogger(buf, "debug")
	a, err := New(cfg)
	require.NoError(t, err)
	return &testEnv{app: a, log: buf, outDir: outDir}
}

func readReport(t *testing.T, a *App) string {
	t.Helper()
	data, err := os.ReadFile(a.Paths().Report)
	require.NoError(t, err)
	return string(data)
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func fixtureRoot(t *testing.T) string {
	t.Helper()
	root, err := filepath.Abs(filepath.Join("testdata", "project"))
	require.NoError(t, err)
	return root
}

func TestNew_RequiresRoot(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
	_, err = New(Config{Paths: &Paths{}})
	assert.Error(t, err)
}

func TestRun_EndToEnd(t *testing.T) {
	root := fixtureRoot(t)
	env := newTestApp(t, root, nil)

	run, outcome, err := env.app.Run(context.Background())
	require.NoError(t, err)

	java := filepath.Join(root, "ParallelExample.java")
	loop := filepath.Join(root, "nested", "loop.c")
	plain := filepath.Join(root, "plain.py")

	want := java + ":\n" +
		"  - import java.util.concurrent: Found on line(s) 1\n" +
		"  - concurrent: Found on line(s) 1\n" +
		"  - Pool(: Found on line(s) 5\n" +
		"  - ThreadPool(4): Found on line(s) 5\n" +
		"  - parallel: Found on line(s) 6\n" +
		"\n" +
		loop + ":\n" +
		"  - #pragma omp parallel: Found on line(s) 5\n" +
		"  - #pragma omp parallel for: Found on line(s) 5\n" +
		"  - parallel: Found on line(s) 5\n" +
		"\n"
	assert.Equal(t, want, readReport(t, env.app))
	assert.Equal(t, filepath.Join(env.outDir, "search_results_project.txt"), env.app.Paths().Report)

	assert.Equal(t, 3, run.FilesScanned, "README.md is not collected")
	assert.Equal(t, 2, run.FilesMatched)
	assert.Equal(t, 0, run.FilesFailed)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, root, run.Root)
	assert.Equal(t, 2, outcome.Len())
	_, ok := outcome.Get(plain)
	assert.False(t, ok)

	console := env.log.String()
	assert.Contains(t, console, "Found 3 source files")
	assert.Contains(t, console, "No threading patterns found in "+plain)
	assert.NotContains(t, console, "No threading patterns found in "+java)
	assert.Contains(t, console, "Search completed!")
}

func TestRun_NoSourceFiles(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"README.md": "import threading"})
	env := newTestApp(t, root, nil)

	_, _, err := env.app.Run(context.Background())
	require.ErrorIs(t, err, ErrNoSourceFiles)
	assert.Contains(t, env.log.String(), "No source files found in the given directory.")

	_, statErr := os.Stat(env.app.Paths().Report)
	assert.True(t, os.IsNotExist(statErr), "no report is written")
}

func TestRun_MissingRoot(t *testing.T) {
	env := newTestApp(t, filepath.Join(t.TempDir(), "missing"), nil)
	_, _, err := env.app.Run(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSourceFiles)
}

func TestRun_NoMatches(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.py": "x = 1\n", "b.c": "int x;\n"})
	env := newTestApp(t, root, nil)

	run, _, err := env.app.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, run.FilesMatched)
	assert.Equal(t, report.NoMatchesSentence+"\n", readReport(t, env.app))
}

func TestRun_ReadErrorsAreSkipped(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"bad.py":  "import threading\n\xff\xfe\n",
		"good.py": "import threading\n",
	})
	env := newTestApp(t, root, nil)

	run, outcome, err := env.app.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, run.FilesScanned)
	assert.Equal(t, 1, run.FilesFailed)
	assert.Equal(t, 1, run.FilesMatched)

	bad := filepath.Join(root, "bad.py")
	_, ok := outcome.Get(bad)
	assert.False(t, ok, "file with invalid UTF-8 is excluded")
	assert.Contains(t, env.log.String(), "Error reading "+bad+": invalid UTF-8\n")
	assert.Equal(t, 1, strings.Count(env.log.String(), bad), "path printed once")
	assert.NotContains(t, readReport(t, env.app), "bad.py")
}

func TestScanFile_InvalidUTF8(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"bad.js": "\xc3\x28"})
	env := newTestApp(t, root, nil)

	_, _, err := env.app.ScanFile(filepath.Join(root, "bad.js"))
	assert.ErrorIs(t, err, ErrInvalidUTF8)
	assert.Equal(t, ErrInvalidUTF8.Error(), err.Error())

	_, _, err = env.app.ScanFile(filepath.Join(root, "missing.js"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestScanFile_Result(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"hit.py":  "import os\nimport threading\n",
		"miss.py": "x = 1\n",
	})
	env := newTestApp(t, root, nil)

	res, cached, err := env.app.ScanFile(filepath.Join(root, "hit.py"))
	require.NoError(t, err)
	assert.False(t, cached)
	assert.True(t, res.HasMatch)
	assert.Equal(t, []int{2}, res.Matches.Lines("import threading"))

	res, _, err = env.app.ScanFile(filepath.Join(root, "miss.py"))
	require.NoError(t, err)
	assert.False(t, res.HasMatch)
	assert.True(t, res.Matches.Empty())
}

func TestRun_WorkersMatchSequential(t *testing.T) {
	root := t.TempDir()
	files := make(map[string]string)
	for i := 0; i < 40; i++ {
		var content string
		switch i % 4 {
		case 0:
			content = fmt.Sprintf("import threading\nx = %d\n", i)
		case 1:
			content = fmt.Sprintf("// nothing\n// run make -j%d\n", i)
		case 2:
			content = "plain text\n"
		default:
			content = strings.Repeat("ThreadPoolExecutor(max_workers=2)\n", i%7+1)
		}
		files[fmt.Sprintf("dir%d/file%02d.py", i%3, i)] = content
	}
	writeFiles(t, root, files)

	seq := newTestApp(t, root, nil)
	_, _, err := seq.app.Run(context.Background())
	require.NoError(t, err)

	par := newTestApp(t, root, func(c *Config) { c.Workers = 8 })
	_, _, err = par.app.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, readReport(t, seq.app), readReport(t, par.app))
}

func TestRun_Cancelled(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			env := newTestApp(t, fixtureRoot(t), func(c *Config) { c.Workers = workers })
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, _, err := env.app.Run(ctx)
			assert.ErrorIs(t, err, context.Canceled)
			_, statErr := os.Stat(env.app.Paths().Report)
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestRun_CustomRules(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.py": "spawn_worker()\nimport threading\n"})
	rules, err := ruleset.New([]string{"spawn_worker"}, nil, nil)
	require.NoError(t, err)
	env := newTestApp(t, root, func(c *Config) { c.Rules = rules })

	_, outcome, err := env.app.Run(context.Background())
	require.NoError(t, err)
	rec, ok := outcome.Get(filepath.Join(root, "a.py"))
	require.True(t, ok)
	assert.Equal(t, []string{"spawn_worker"}, rec.Keys(), "only the supplied rules apply")
}

func TestRun_JSONReport(t *testing.T) {
	env := newTestApp(t, fixtureRoot(t), func(c *Config) { c.Format = report.FormatJSON })
	run, _, err := env.app.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(run.ReportPath, "search_results_project.json"))

	var got struct {
		Run   ports.RunSummary  `json:"run"`
		Files []json.RawMessage `json:"files"`
	}
	require.NoError(t, json.Unmarshal([]byte(readReport(t, env.app)), &got))
	assert.Equal(t, run.ID, got.Run.ID)
	assert.Len(t, got.Files, 2)
}

func TestScanFile_CacheHitIsTraced(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.py": "import threading\n"})
	store, err := bbolt.NewStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	env := newTestApp(t, root, func(c *Config) { c.Cache = store })
	trace := &syncBuffer{}
	env.app.log = logger.NewConsoleLogger(trace, "trace")

	path := filepath.Join(root, "a.py")
	_, cached, err := env.app.ScanFile(path)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.NotContains(t, trace.String(), "cache hit")

	res, cached, err := env.app.ScanFile(path)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.True(t, res.HasMatch)
	assert.Contains(t, trace.String(), "[TRACE] cache hit "+path)
}

func TestRun_CacheAndHistory(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a.py": "import threading\n",
		"b.py": "x = 1\n",
	})
	store, err := bbolt.NewStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	env := newTestApp(t, root, func(c *Config) { c.Cache = store })

	first, _, err := env.app.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, first.CacheHits)
	firstReport := readReport(t, env.app)

	second, _, err := env.app.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, second.CacheHits, "unchanged files come from the cache")
	assert.Equal(t, firstReport, readReport(t, env.app))

	// Changing content invalidates only that file.
	writeFiles(t, root, map[string]string{"b.py": "go func() {}()\n"})
	third, outcome, err := env.app.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, third.CacheHits)
	_, ok := outcome.Get(filepath.Join(root, "b.py"))
	assert.True(t, ok)

	runs, err := store.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, third.ID, runs[0].ID)
}
