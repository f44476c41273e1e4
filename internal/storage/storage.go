// Package storage keeps a history of pipeline runs using BoltDB. Only run
// summaries are stored: source name, timing, row and violation counts and
// the failure reason. Feature tables, predictions and valuations are never
// persisted.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	runsBucket = "runs" // Bucket name for run summaries
	dbFileName = "fcc-runs.db"
)

// RunStatus is the outcome of one run.
type RunStatus string

const (
	StatusSucceeded RunStatus = "succeeded"
	StatusFailed    RunStatus = "failed"
)

// RunRecord summarises one pipeline run.
type RunRecord struct {
	ID         string        `json:"id"`
	Source     string        `json:"source"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
	Rows       int           `json:"rows"`
	Violations int           `json:"violations"`
	Status     RunStatus     `json:"status"`
	Reason     string        `json:"reason,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Store provides persistent run history using BoltDB.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

// New opens (or creates) the run database under dataPath.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, dbFileName)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return fmt.Errorf("create runs bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// runKey orders records by start time; the ID keeps keys unique.
func runKey(r RunRecord) []byte {
	return []byte(fmt.Sprintf("%020d_%s", r.StartedAt.UnixNano(), r.ID))
}

// SaveRun stores a run summary.
func (s *Store) SaveRun(record RunRecord) error {
	if record.ID == "" {
		return fmt.Errorf("run record has no id")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal run: %w", err)
		}
		return b.Put(runKey(record), data)
	})
}

// RecentRuns returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) RecentRuns(limit int) ([]RunRecord, error) {
	var runs []RunRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var r RunRecord
			if err := json.Unmarshal(v, &r); err != nil {
				continue // Skip malformed records
			}
			runs = append(runs, r)
			if limit > 0 && len(runs) >= limit {
				break
			}
		}
		return nil
	})

	return runs, err
}

// GetRun looks a run up by ID.
func (s *Store) GetRun(id string) (*RunRecord, error) {
	var found *RunRecord
	suffix := []byte("_" + id)

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if !bytes.HasSuffix(k, suffix) {
				continue
			}
			var r RunRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshal run %s: %w", id, err)
			}
			found = &r
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrRunNotFound
	}
	return found, nil
}

// RunsBetween returns runs started within [start, end], oldest first.
func (s *Store) RunsBetween(start, end time.Time) ([]RunRecord, error) {
	var runs []RunRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()

		startKey := []byte(fmt.Sprintf("%020d", start.UnixNano()))
		endKey := []byte(fmt.Sprintf("%020d~", end.UnixNano()))

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			var r RunRecord
			if err := json.Unmarshal(v, &r); err != nil {
				continue
			}
			runs = append(runs, r)
		}
		return nil
	})

	return runs, err
}
