package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"pixbatch/kvstore"
	"pixbatch/logger"
	"pixbatch/utils"
)

// ErrNotFound is returned when no credentials exist under a key.
var ErrNotFound = errors.New("credentials not found")

var (
	mu    sync.RWMutex
	store *kvstore.Store
)

// OpenDB opens the credentials store at the specified path.
func OpenDB(dbPath string) error {
	s, err := kvstore.Open(dbPath)
	if err != nil {
		logger.Errorf("Failed to open credentials store: %v", err)
		return err
	}
	mu.Lock()
	store = s
	mu.Unlock()
	return nil
}

// CloseDB closes the DB.
func CloseDB() error {
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
		return nil, errors.New("credentials store not initialized")
	}
	return store, nil
}

// GetCredentials returns the map stored under key.
func GetCredentials(key string) (map[string]string, error) {
	s, err := current()
	if err != nil {
		return nil, err
	}
	value, err := s.Get(key)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	creds := make(map[string]string)
	if err := json.Unmarshal(value, &creds); err != nil {
		return nil, fmt.Errorf("failed to decode credentials: %w", err)
	}
	return creds, nil
}

// StoreCredentials stores the credentials map under the given key.
func StoreCredentials(key string, creds map[string]string) error {
	s, err := current()
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	return s.Put(key, encoded)
}

// Register stores creds under a freshly generated key and returns the key.
func Register(creds map[string]string) (string, error) {
	key, err := utils.GenerateRandomHex(16)
	if err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	if err := StoreCredentials(key, creds); err != nil {
		return "", err
	}
	return key, nil
}

// DeleteCredentials deletes the credentials for the given key.
func DeleteCredentials(key string) error {
	s, err := current()
	if err != nil {
		return err
	}
	return s.Delete(key)
}
