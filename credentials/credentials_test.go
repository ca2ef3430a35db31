package credentials

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestCredentialsRoundTrip(t *testing.T) {
	if err := OpenDB(filepath.Join(t.TempDir(), "creds.db")); err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer CloseDB()

	creds := map[string]string{"type": "s3", "bucket": "images", "region": "eu-west-1"}
	key, err := Register(creds)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if len(key) != 32 {
		t.Errorf("Expected 32 hex chars, got %q", key)
	}

	got, err := GetCredentials(key)
	if err != nil {
		t.Fatalf("GetCredentials failed: %v", err)
	}
	if got["bucket"] != "images" || got["type"] != "s3" {
		t.Errorf("Unexpected credentials: %v", got)
	}

	if err := DeleteCredentials(key); err != nil {
		t.Fatalf("DeleteCredentials failed: %v", err)
	}
	if _, err := GetCredentials(key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestCredentialsNotOpen(t *testing.T) {
	CloseDB()
	if _, err := GetCredentials("x"); err == nil {
		t.Error("Expected error when store is closed")
	}
}
