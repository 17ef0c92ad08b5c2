package filelock

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLock_LockUnlock(t *testing.T) {
	l := ForDir(t.TempDir())
	assert.Equal(t, LockName, filepath.Base(l.Path()))
	require.NoError(t, l.Lock())
	require.NoError(t, l.Unlock())
}

func TestLock_TryLockContended(t *testing.T) {
	dir := t.TempDir()
	a := ForDir(dir)
	b := ForDir(dir)

	require.NoError(t, a.Lock())
	ok, err := b.TryLock()
	require.NoError(t, err)
	assert.False(t, ok, "second handle must not acquire a held lock")

	require.NoError(t, a.Unlock())
	ok, err = b.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, b.Unlock())
}

func TestAtomicWrite_CreatesParentsAndReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "report.txt")
	require.NoError(t, AtomicWrite(path, []byte("first")))
	require.NoError(t, AtomicWrite(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestAtomicWrite_FailureKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.txt")
	require.NoError(t, AtomicWrite(path, []byte("keep")))

	// A directory at the target makes the rename fail.
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.MkdirAll(filepath.Join(blocked, "child"), 0o755))
	assert.Error(t, AtomicWrite(blocked, []byte("x")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))
}

func TestWriteLocked_Concurrent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "search_results_x.txt")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, WriteLocked(path, []byte("writer "+strconv.Itoa(i))))
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Regexp(t, `^writer \d$`, string(data))
	_, err = os.Stat(filepath.Join(dir, LockName))
	assert.NoError(t, err)
}
