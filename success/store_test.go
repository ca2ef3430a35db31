package success

import (
	"path/filepath"
	"testing"
	"time"

	"pixbatch/models"
)

func initTestStore(t *testing.T) {
	t.Helper()
	if err := Init(filepath.Join(t.TempDir(), "success.db")); err != nil {
		t.Fatalf("Failed to initialize success store: %v", err)
	}
	t.Cleanup(func() { Close() })
}

func TestSuccessStore(t *testing.T) {
	initTestStore(t)

	rec := Record{
		JobID:        "job-123",
		FileCount:    3,
		ArchiveBytes: 2048,
		Archive:      "zip",
		Job:          models.Summary{JobID: "job-123", Format: models.FormatPNG, Files: []string{"a.jpg", "b.jpg", "c.jpg"}},
	}
	if err := StoreSuccess(rec); err != nil {
		t.Fatalf("Failed to store success: %v", err)
	}

	got, err := GetSuccess("job-123")
	if err != nil {
		t.Fatalf("Failed to get success: %v", err)
	}
	if got == nil {
		t.Fatal("Expected success record, got nil")
	}
	if got.FileCount != 3 {
		t.Errorf("Expected file count 3, got %d", got.FileCount)
	}
	if got.Job.Format != models.FormatPNG || len(got.Job.Files) != 3 {
		t.Errorf("Job summary not preserved: %+v", got.Job)
	}
	if time.Since(got.Timestamp) > time.Minute {
		t.Errorf("Timestamp seems too old: %v", got.Timestamp)
	}

	missing, err := GetSuccess("non-existent")
	if err != nil {
		t.Fatalf("Failed to get non-existent success: %v", err)
	}
	if missing != nil {
		t.Error("Expected nil for non-existent success record")
	}
}

func TestSuccessStoreListAndDelete(t *testing.T) {
	initTestStore(t)

	for _, id := range []string{"job-1", "job-2"} {
		if err := StoreSuccess(Record{JobID: id, FileCount: 1}); err != nil {
			t.Fatalf("Failed to store %s: %v", id, err)
		}
	}

	records, err := ListSuccessRecords()
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}

	if err := DeleteSuccess("job-1"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	records, _ = ListSuccessRecords()
	if len(records) != 1 || records[0].JobID != "job-2" {
		t.Errorf("Unexpected records after delete: %+v", records)
	}
}

func TestSuccessCleanup(t *testing.T) {
	initTestStore(t)

	StoreSuccess(Record{JobID: "old", Timestamp: time.Now().Add(-48 * time.Hour)})
	StoreSuccess(Record{JobID: "recent", Timestamp: time.Now().Add(-time.Hour)})

	removed, err := CleanupOldRecords(24 * time.Hour)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 removed, got %d", removed)
	}
	if rec, _ := GetSuccess("recent"); rec == nil {
		t.Error("Recent record should remain")
	}
	if rec, _ := GetSuccess("old"); rec != nil {
		t.Error("Old record should be removed")
	}
}

func TestSuccessStoreNotInitialized(t *testing.T) {
	Close()
	if err := StoreSuccess(Record{JobID: "x"}); err == nil {
		t.Error("Expected error from uninitialized store")
	}
	if err := CheckHealth(); err == nil {
		t.Error("Expected health check to fail when uninitialized")
	}
}
