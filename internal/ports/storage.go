// Package ports defines the interfaces (contracts) that adapters must implement,
// plus the match types shared between the matcher, the app pipeline and the
// report writers. Domain logic depends only on these, never on concrete adapters.
package ports

import "time"

// Cache persists MatchRecords between runs and keeps a history of runs.
// It is opt-in: a default scan persists nothing but its report.
//
// A cached record is only valid for the exact file content and rule tables it
// was produced from, so lookups are keyed by both fingerprints. Concurrent
// reads are safe; writes are serialized by the adapter.
type Cache interface {
	// Lookup returns the record stored for path when both fingerprints match.
	// A miss returns nil, false, nil.
	Lookup(path string, contentHash, rulesHash uint64) (*MatchRecord, bool, error)

	// Store saves rec for path, replacing any previous entry.
	Store(path string, contentHash, rulesHash uint64, rec *MatchRecord) error

	// Forget drops the entry for path. Idempotent.
	Forget(path string) error

	// SaveRun records a finished run.
	SaveRun(run *RunSummary) error

	// Runs returns up to limit runs, newest first. limit <= 0 returns all.
	Runs(limit int) ([]*RunSummary, error)

	// Clear removes all cached records and run history.
	Clear() error

	// Close releases the backing store.
	Close() error
}

// RunSummary describes one completed scan.
type RunSummary struct {
	ID           string    `json:"id"`
	Root         string    `json:"root"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	FilesScanned int       `json:"files_scanned"`
	FilesMatched int       `json:"files_matched"`
	FilesFailed  int       `json:"files_failed"`
	CacheHits    int       `json:"cache_hits"`
	ReportPath   string    `json:"report_path"`
}

// Duration returns how long the run took.
func (r *RunSummary) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
