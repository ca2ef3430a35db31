// Package kvstore is a small wrapper around a Pebble DB used by the record stores.
package kvstore

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = pebble.ErrNotFound

// Store holds one Pebble instance.
type Store struct {
	db   *pebble.DB
	path string
}

// Open opens (or creates) a pebble DB at path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Path() string {
	return s.path
}

// Put stores value under key.
func (s *Store) Put(key string, value []byte) error {
	return s.db.Set([]byte(key), value, pebble.Sync)
}

// Get returns a copy of the value for key.
func (s *Store) Get(key string) ([]byte, error) {
	value, closer, err := s.db.Get([]byte(key))
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	return s.db.Delete([]byte(key), pebble.Sync)
}

// Each calls fn for every key in order. Key and value are only valid during
// the call. Returning a non-nil error stops the walk and is returned.
func (s *Store) Each(fn func(key, value []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("iteration error: %w", err)
	}
	return nil
}

// DeleteWhere removes every key for which match returns true and reports how
// many were removed.
func (s *Store) DeleteWhere(match func(key, value []byte) bool) (int, error) {
	var doomed [][]byte
	err := s.Each(func(key, value []byte) error {
		if match(key, value) {
			k := make([]byte, len(key))
			copy(k, key)
			doomed = append(doomed, k)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if len(doomed) == 0 {
		return 0, nil
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	for _, k := range doomed {
		if err := batch.Delete(k, nil); err != nil {
			return 0, err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, fmt.Errorf("failed to commit deletes: %w", err)
	}
	return len(doomed), nil
}

// Ping performs a read to verify the DB is accessible.
func (s *Store) Ping() error {
	_, closer, err := s.db.Get([]byte("__health_check__"))
	if err != nil && !errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("database health check failed: %w", err)
	}
	if closer != nil {
		closer.Close()
	}
	return nil
}

// Close closes the underlying DB.
func (s *Store) Close() error {
	return s.db.Close()
}
