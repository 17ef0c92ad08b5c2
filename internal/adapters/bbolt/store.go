// Package bbolt implements ports.Cache on bbolt (embedded B+ tree). The "cache"
// bucket maps absolute file paths to binary-encoded MatchRecords; the "runs"
// bucket holds JSON RunSummaries keyed by start time so a cursor walks them
// chronologically. Writes are transactional, so a crash mid-write cannot
// corrupt previously committed data.
package bbolt

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/corey/threadscan/internal/ports"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketCache = []byte("cache")
	bucketRuns  = []byte("runs")
)

var _ ports.Cache = (*Store)(nil)

// Store implements ports.Cache backed by bbolt.
type Store struct {
	db *bolt.DB
}

// NewStore opens (or creates) a bbolt database at path, creating parent
// directories as needed.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("bbolt dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketCache, bucketRuns} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bbolt init: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Lookup returns the cached record for path if it was produced from the same
// content and rules.
func (s *Store) Lookup(path string, contentHash, rulesHash uint64) (*ports.MatchRecord, bool, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		// Copy bytes out of the transaction (bbolt slices are only valid within tx)
		if v := tx.Bucket(bucketCache).Get([]byte(path)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if data == nil {
		return nil, false, nil
	}

	e, err := decodeEntry(data)
	if err != nil {
		return nil, false, fmt.Errorf("decode cache entry for %s: %w", path, err)
	}
	if e.contentHash != contentHash || e.rulesHash != rulesHash {
		return nil, false, nil
	}
	return e.record, true, nil
}

// Store saves rec for path. A nil record is stored as empty, so files without
// matches are cached too.
func (s *Store) Store(path string, contentHash, rulesHash uint64, rec *ports.MatchRecord) error {
	if rec == nil {
		rec = ports.NewMatchRecord()
	}
	data, err := encodeEntry(cacheEntry{contentHash: contentHash, rulesHash: rulesHash, record: rec})
	if err != nil {
		return fmt.Errorf("encode cache entry for %s: %w", path, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCache).Put([]byte(path), data)
	})
}

// Forget drops the cache entry for path. Idempotent.
func (s *Store) Forget(path string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCache).Delete([]byte(path))
	})
}

// runKey orders runs by start time, then ID.
func runKey(run *ports.RunSummary) []byte {
	key := make([]byte, 8, 8+len(run.ID))
	binary.BigEndian.PutUint64(key, uint64(run.StartedAt.UnixNano()))
	return append(key, run.ID...)
}

// SaveRun records a finished run.
func (s *Store) SaveRun(run *ports.RunSummary) error {
	if run == nil {
		return errors.New("nil run summary")
	}
	if run.ID == "" {
		return errors.New("run summary has no id")
	}
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRuns).Put(runKey(run), data)
	})
}

// Runs returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) Runs(limit int) ([]*ports.RunSummary, error) {
	var runs []*ports.RunSummary
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRuns).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(runs) >= limit {
				break
			}
			var run ports.RunSummary
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("unmarshal run: %w", err)
			}
			runs = append(runs, &run)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// Clear removes all cached records and run history.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketCache, bucketRuns} {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}

// Entries returns the number of cached files.
func (s *Store) Entries() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketCache).Stats().KeyN
		return nil
	})
	return n, err
}
