package failures

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"pixbatch/kvstore"
	"pixbatch/models"
)

// Record represents a conversion job that ended in an error.
type Record struct {
	JobID     string         `json:"job_id"`
	Timestamp time.Time      `json:"timestamp"`
	Kind      string         `json:"kind"`
	Filename  string         `json:"filename,omitempty"`
	Error     string         `json:"error"`
	Job       models.Summary `json:"job"`
}

var (
	mu    sync.RWMutex
	store *kvstore.Store
)

var errNotInitialized = errors.New("failure store not initialized")

// Init initializes the failure store.
func Init(dbPath string) error {
	s, err := kvstore.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open failure store: %w", err)
	}
	mu.Lock()
	store = s
	mu.Unlock()
	return nil
}

// Close closes the failure store.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if store == nil {
		return nil
	}
	err := store.Close()
	store = nil
	return err
}

func current() (*kvstore.Store, error) {
	mu.RLock()
	defer mu.RUnlock()
	if store == nil {
		return nil, errNotInitialized
	}
	return store, nil
}

// StoreFailure stores a failed job under its id.
func StoreFailure(rec Record) error {
	s, err := current()
	if err != nil {
		return err
	}
	if rec.JobID == "" {
		return errors.New("failure record without job id")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal failure record: %w", err)
	}
	return s.Put(rec.JobID, data)
}

// GetFailure retrieves a failure record by job id. No record is (nil, nil).
func GetFailure(jobID string) (*Record, error) {
	s, err := current()
	if err != nil {
		return nil, err
	}

	data, err := s.Get(jobID)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get failure: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal failure record: %w", err)
	}
	return &rec, nil
}

// DeleteFailure removes a failure record.
func DeleteFailure(jobID string) error {
	s, err := current()
	if err != nil {
		return err
	}
	return s.Delete(jobID)
}

// ListFailures returns all failure records (for admin purposes).
func ListFailures() ([]Record, error) {
	s, err := current()
	if err != nil {
		return nil, err
	}

	out := []Record{}
	err = s.Each(func(_, value []byte) error {
		var rec Record
		if err := json.Unmarshal(value, &rec); err != nil {
			return nil // skip invalid records
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

// CleanupOldRecords removes failure records older than maxAge.
func CleanupOldRecords(maxAge time.Duration) (int, error) {
	s, err := current()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	return s.DeleteWhere(func(_, value []byte) bool {
		var rec Record
		if err := json.Unmarshal(value, &rec); err != nil {
			return false
		}
		return rec.Timestamp.Before(cutoff)
	})
}

// CheckHealth verifies the failure database is readable.
func CheckHealth() error {
	s, err := current()
	if err != nil {
		return err
	}
	return s.Ping()
}
