package job

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixbatch/archive"
	"pixbatch/failures"
	"pixbatch/governor"
	"pixbatch/models"
	"pixbatch/success"
)

func TestStatesLifecycle(t *testing.T) {
	s := NewStates()
	s.Begin("j1", "sess")

	st, ok := s.Get("j1")
	require.True(t, ok)
	assert.Equal(t, StatePending, st.Current())
	assert.Equal(t, "pending", st.State)

	s.Set("j1", StateProcessing)
	s.Set("j1", StateFailed)
	s.Set("j1", StateCompleted)

	st, _ = s.Get("j1")
	assert.Equal(t, StateFailed, st.Current(), "finished states are final")

	_, ok = s.Get("unknown")
	assert.False(t, ok)
}

func TestStatesPrune(t *testing.T) {
	s := NewStates()
	s.Begin("running", "")
	s.Set("running", StateProcessing)
	s.Begin("done", "")
	s.Set("done", StateCompleted)

	assert.Equal(t, 0, s.Prune(time.Now().Add(-time.Hour)))
	assert.Equal(t, 1, s.Prune(time.Now().Add(time.Second)))

	_, ok := s.Get("done")
	assert.False(t, ok)
	_, ok = s.Get("running")
	assert.True(t, ok)
}

func TestNilStatesIgnored(t *testing.T) {
	var s *States
	s.Begin("x", "")
	s.Set("x", StateCompleted)
	_, ok := s.Get("x")
	assert.False(t, ok)
	assert.Zero(t, s.Prune(time.Now()))
}

func TestKindOf(t *testing.T) {
	item := models.Item{Index: 2, Filename: "b.png"}
	err := fmt.Errorf("wrapped: %w", itemError(KindResource, item, governor.ErrItemTooLarge))

	assert.Equal(t, KindResource, KindOf(err))
	assert.Equal(t, "b.png", FilenameOf(err))
	assert.ErrorIs(t, err, ErrResource)
	assert.ErrorIs(t, err, governor.ErrItemTooLarge)

	assert.Equal(t, KindCancelled, KindOf(fmt.Errorf("x: %w", ErrCancelled)))
	assert.Equal(t, KindInternal, KindOf(fmt.Errorf("boom")))
	assert.Equal(t, "", FilenameOf(ErrEmptyJob))
}

func TestStoreRecorder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, success.Init(filepath.Join(dir, "success.db")))
	t.Cleanup(func() { success.Close() })
	require.NoError(t, failures.Init(filepath.Join(dir, "failures.db")))
	t.Cleanup(func() { failures.Close() })

	var rec StoreRecorder
	rec.RecordSuccess(models.Summary{JobID: "ok-job"}, &Output{
		JobID:   "ok-job",
		Format:  archive.Zip,
		Archive: []byte("zipdata"),
		Files:   []string{"a.png", "b.png"},
	})

	got, err := success.GetSuccess("ok-job")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.FileCount)
	assert.Equal(t, int64(7), got.ArchiveBytes)
	assert.Equal(t, "zip", got.Archive)

	rec.RecordFailure(models.Summary{JobID: "bad-job"}, itemError(KindDecode, models.Item{Filename: "c.png"}, fmt.Errorf("bad header")))
	f, err := failures.GetFailure("bad-job")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "decode", f.Kind)
	assert.Equal(t, "c.png", f.Filename)
}
