package cmd

import (
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// scanExit is returned by scan to signal a specific exit code.
// 0=report written, 2=no source files found.
type scanExit struct{ code int }

func (e scanExit) Error() string {
	switch e.code {
	case 0:
		return ""
	case 2:
		return "no source files found"
	default:
		return fmt.Sprintf("scan error (exit %d)", e.code)
	}
}

// ExitCode extracts the exit code from a scanExit error.
// Returns -1 if the error is not a scanExit.
func ExitCode(err error) int {
	var se scanExit
	if errors.As(err, &se) {
		return se.code
	}
	return -1
}

// isDBLockError reports whether the error chain holds bbolt's lock timeout,
// returned when the file lock is not acquired within Options.Timeout.
func isDBLockError(err error) bool {
	return errors.Is(err, bolt.ErrTimeout)
}

// diagnoseDBLock explains a cache lock timeout.
func diagnoseDBLock(path string) string {
	return fmt.Sprintf("cache %s is locked by another threadscan process\n"+
		"  → a watch session may be running against it\n"+
		"  → stop it, or retry with --cache=false", path)
}
