package fsnotify

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/corey/threadscan/internal/adapters/collector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// fsnotify Watcher Adapter: detect source changes for rescans
// Expectation: only files the collector would return trigger onChange, once
// per burst of events, and nothing fires after Stop.
// =============================================================================

const testDebounce = 30 * time.Millisecond

// waitForCallback waits up to timeout for the callback channel to receive a value.
func waitForCallback(ch <-chan string, timeout time.Duration) (string, bool) {
	select {
	case v := <-ch:
		return v, true
	case <-time.After(timeout):
		return "", false
	}
}

func startWatcher(t *testing.T, dir string, filter collector.Options) <-chan string {
	t.Helper()
	w, err := NewWatcher(Options{Filter: filter, Debounce: testDebounce})
	require.NoError(t, err)
	t.Cleanup(func() { w.Stop() })

	changed := make(chan string, 32)
	require.NoError(t, w.Watch(dir, func(path string) { changed <- path }))
	// Give watcher time to start
	time.Sleep(50 * time.Millisecond)
	return changed
}

func TestWatcher_DetectsFileChange(t *testing.T) {
	dir := t.TempDir()
	testFile := filepath.Join(dir, "worker.py")
	require.NoError(t, os.WriteFile(testFile, []byte("# original"), 0o644))

	changed := startWatcher(t, dir, collector.Options{})
	require.NoError(t, os.WriteFile(testFile, []byte("import threading"), 0o644))

	path, ok := waitForCallback(changed, 2*time.Second)
	assert.True(t, ok, "expected callback for file change")
	assert.Equal(t, testFile, path)
}

func TestWatcher_DetectsNewFileInNewDir(t *testing.T) {
	dir := t.TempDir()
	changed := startWatcher(t, dir, collector.Options{})

	sub := filepath.Join(dir, "pkg")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(50 * time.Millisecond)

	newFile := filepath.Join(sub, "pool.c")
	require.NoError(t, os.WriteFile(newFile, []byte("#include <pthread.h>"), 0o644))

	path, ok := waitForCallback(changed, 2*time.Second)
	assert.True(t, ok, "expected callback for new file")
	assert.Equal(t, newFile, path)
}

func TestWatcher_DetectsDeletedFile(t *testing.T) {
	dir := t.TempDir()
	testFile := filepath.Join(dir, "gone.java")
	require.NoError(t, os.WriteFile(testFile, []byte("// x"), 0o644))

	changed := startWatcher(t, dir, collector.Options{})
	require.NoError(t, os.Remove(testFile))

	path, ok := waitForCallback(changed, 2*time.Second)
	assert.True(t, ok, "expected callback for deleted file")
	assert.Equal(t, testFile, path)
}

func TestWatcher_FiltersLikeCollector(t *testing.T) {
	dir := t.TempDir()
	gitDir := filepath.Join(dir, ".git")
	require.NoError(t, os.MkdirAll(gitDir, 0o755))
	genDir := filepath.Join(dir, "generated")
	require.NoError(t, os.MkdirAll(genDir, 0o755))

	changed := startWatcher(t, dir, collector.Options{ExcludeDirs: []string{"gen*"}})

	os.WriteFile(filepath.Join(gitDir, "hook.py"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(genDir, "stub.py"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(dir, "main.go"), []byte("x"), 0o644)

	_, ok := waitForCallback(changed, 300*time.Millisecond)
	assert.False(t, ok, "should not have received callback for filtered files")

	codeFile := filepath.Join(dir, "main.py")
	require.NoError(t, os.WriteFile(codeFile, []byte("# code"), 0o644))

	path, ok := waitForCallback(changed, 2*time.Second)
	assert.True(t, ok, "expected callback for source file")
	assert.Equal(t, codeFile, path)
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	testFile := filepath.Join(dir, "burst.js")
	require.NoError(t, os.WriteFile(testFile, []byte("0"), 0o644))

	changed := startWatcher(t, dir, collector.Options{})
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(testFile, []byte{byte('0' + i)}, 0o644))
		time.Sleep(2 * time.Millisecond)
	}

	_, ok := waitForCallback(changed, 2*time.Second)
	require.True(t, ok)
	_, ok = waitForCallback(changed, 200*time.Millisecond)
	assert.False(t, ok, "burst should collapse into one callback")
}

func TestWatcher_WatchErrors(t *testing.T) {
	w, err := NewWatcher(Options{})
	require.NoError(t, err)
	defer w.Stop()

	assert.Error(t, w.Watch(filepath.Join(t.TempDir(), "missing"), func(string) {}))

	file := filepath.Join(t.TempDir(), "a.py")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	assert.Error(t, w.Watch(file, func(string) {}))
}

func TestWatcher_StopCleanup(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWatcher(Options{Debounce: testDebounce})
	require.NoError(t, err)

	callCount := 0
	var mu sync.Mutex
	err = w.Watch(dir, func(path string) {
		mu.Lock()
		callCount++
		mu.Unlock()
	})
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, w.Stop())

	os.WriteFile(filepath.Join(dir, "after_stop.py"), []byte("# nope"), 0o644)
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	assert.Equal(t, 0, callCount, "callbacks fired after Stop()")
	mu.Unlock()

	// Double-stop should be safe
	assert.NoError(t, w.Stop())
}

func TestWatcher_ReportsFilesInMovedInDir(t *testing.T) {
	dir := t.TempDir()
	elsewhere := t.TempDir()
	src := filepath.Join(elsewhere, "sub")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.py"), []byte("import threading"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "notes.txt"), []byte("x"), 0o644))

	changed := startWatcher(t, dir, collector.Options{})
	require.NoError(t, os.Rename(src, filepath.Join(dir, "sub")))

	path, ok := waitForCallback(changed, 2*time.Second)
	require.True(t, ok, "expected callback for file moved in with its directory")
	assert.Equal(t, filepath.Join(dir, "sub", "a.py"), path)

	_, ok = waitForCallback(changed, 200*time.Millisecond)
	assert.False(t, ok, "non-source files stay quiet")
}

func TestWatcher_ReportsMovedOutDir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "a.py"), []byte("import threading"), 0o644))

	changed := startWatcher(t, dir, collector.Options{})
	require.NoError(t, os.Rename(sub, filepath.Join(t.TempDir(), "sub")))

	path, ok := waitForCallback(changed, 2*time.Second)
	require.True(t, ok, "expected callback for directory moved out")
	assert.Equal(t, sub, path)
}

func TestWatcher_IgnoresRemovedExcludedDir(t *testing.T) {
	dir := t.TempDir()
	gen := filepath.Join(dir, "generated")
	require.NoError(t, os.MkdirAll(gen, 0o755))

	changed := startWatcher(t, dir, collector.Options{ExcludeDirs: []string{"gen*"}})
	require.NoError(t, os.Remove(gen))

	_, ok := waitForCallback(changed, 300*time.Millisecond)
	assert.False(t, ok, "excluded directory removal is not reported")
}
