package success

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"pixbatch/kvstore"
	"pixbatch/models"
)

// Record describes a finished conversion job.
type Record struct {
	JobID        string         `json:"job_id"`
	Timestamp    time.Time      `json:"timestamp"`
	FileCount    int            `json:"file_count"`
	ArchiveBytes int64          `json:"archive_bytes"`
	Archive      string         `json:"archive"`
	DurationMS   int64          `json:"duration_ms"`
	PublishedTo  string         `json:"published_to,omitempty"`
	Job          models.Summary `json:"job"`
}

var (
	mu    sync.RWMutex
	store *kvstore.Store
)

var errNotInitialized = errors.New("success store not initialized")

// Init opens the success store.
func Init(dbPath string) error {
	s, err := kvstore.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open success store: %w", err)
	}
	mu.Lock()
	store = s
	mu.Unlock()
	return nil
}

// Close closes the success store.
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

// StoreSuccess stores a successful job under its id.
func StoreSuccess(rec Record) error {
	s, err := current()
	if err != nil {
		return err
	}
	if rec.JobID == "" {
		return errors.New("success record without job id")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal success record: %w", err)
	}
	return s.Put(rec.JobID, data)
}

// GetSuccess retrieves a record by job id. A missing record is (nil, nil).
func GetSuccess(jobID string) (*Record, error) {
	s, err := current()
	if err != nil {
		return nil, err
	}

	data, err := s.Get(jobID)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal success record: %w", err)
	}
	return &rec, nil
}

// DeleteSuccess removes a record.
func DeleteSuccess(jobID string) error {
	s, err := current()
	if err != nil {
		return err
	}
	return s.Delete(jobID)
}

// ListSuccessRecords returns every record (for admin/debugging).
func ListSuccessRecords() ([]Record, error) {
	s, err := current()
	if err != nil {
		return nil, err
	}

	records := []Record{}
	err = s.Each(func(_, value []byte) error {
		var rec Record
		if err := json.Unmarshal(value, &rec); err != nil {
			return nil // skip invalid records
		}
		records = append(records, rec)
		return nil
	})
	return records, err
}

// CleanupOldRecords removes records older than maxAge and returns how many.
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

// CheckHealth performs a basic health check on the success database.
func CheckHealth() error {
	s, err := current()
	if err != nil {
		return err
	}
	return s.Ping()
}
