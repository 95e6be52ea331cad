package jobstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recapd/recapd/internal/models"
	"github.com/recapd/recapd/internal/shutdown"
	"github.com/recapd/recapd/internal/storage"
)

func testLayout(t *testing.T) *storage.Layout {
	t.Helper()
	layout, err := storage.NewLayout(t.TempDir())
	require.NoError(t, err)
	return layout
}

func TestHistorySaveAndGet(t *testing.T) {
	store := NewHistoryStore(testLayout(t), nil)

	rec := &models.JobRecord{JobID: "job-1", JobType: "workflow", Status: models.JobStarted, InputFile: "in.mp4"}
	require.NoError(t, store.Save(rec))
	assert.False(t, rec.StartedAt.IsZero())

	got, err := store.Get("job-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "workflow", got.JobType)
	assert.Equal(t, models.JobStarted, got.Status)
}

func TestHistorySaveRequiresID(t *testing.T) {
	store := NewHistoryStore(testLayout(t), nil)
	assert.Error(t, store.Save(&models.JobRecord{}))
}

func TestHistoryGetAbsentAndMalformed(t *testing.T) {
	layout := testLayout(t)
	store := NewHistoryStore(layout, nil)

	got, err := store.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, os.WriteFile(filepath.Join(layout.JobsDir(), "bad.json"), []byte("{oops"), 0o644))
	got, err = store.Get("bad")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHistoryUpdate(t *testing.T) {
	store := NewHistoryStore(testLayout(t), nil)

	require.NoError(t, store.Save(&models.JobRecord{JobID: "job-1", Status: models.JobStarted}))

	ok, err := store.Update("job-1", map[string]any{"status": "completed", "outputs": map[string]string{"summary": "s.md"}})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, got.Status)
	assert.Equal(t, "s.md", got.Outputs["summary"])

	ok, err = store.Update("missing", map[string]any{"status": "completed"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHistoryDeleteIdempotent(t *testing.T) {
	store := NewHistoryStore(testLayout(t), nil)

	require.NoError(t, store.Save(&models.JobRecord{JobID: "job-1"}))
	assert.NoError(t, store.Delete("job-1"))
	assert.NoError(t, store.Delete("job-1"))
}

func TestHistoryList(t *testing.T) {
	layout := testLayout(t)
	store := NewHistoryStore(layout, nil)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Save(&models.JobRecord{JobID: id, Status: models.JobCompleted}))
		// Distinct mtimes so ordering is deterministic.
		mtime := time.Now().Add(time.Duration(i-3) * time.Hour)
		require.NoError(t, os.Chtimes(filepath.Join(layout.JobsDir(), id+".json"), mtime, mtime))
	}
	require.NoError(t, store.Save(&models.JobRecord{JobID: "failed", Status: models.JobFailed}))

	t.Run("mtime descending", func(t *testing.T) {
		records, err := store.List(ListOptions{})
		require.NoError(t, err)
		require.Len(t, records, 4)
		assert.Equal(t, "failed", records[0].JobID)
		assert.Equal(t, "c", records[1].JobID)
		assert.Equal(t, "a", records[3].JobID)
	})

	t.Run("limit", func(t *testing.T) {
		records, err := store.List(ListOptions{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("status filter", func(t *testing.T) {
		records, err := store.List(ListOptions{Status: models.JobFailed})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "failed", records[0].JobID)
	})

	t.Run("state files excluded", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(layout.JobsDir(), "x.state.json"), []byte("{}"), 0o644))
		records, err := store.List(ListOptions{})
		require.NoError(t, err)
		assert.Len(t, records, 4)
	})
}

func TestHistoryCleanupOlderThan(t *testing.T) {
	layout := testLayout(t)
	store := NewHistoryStore(layout, nil)

	require.NoError(t, store.Save(&models.JobRecord{JobID: "old"}))
	require.NoError(t, store.Save(&models.JobRecord{JobID: "fresh"}))

	stale := time.Now().Add(-40 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(layout.JobsDir(), "old.json"), stale, stale))

	removed, err := store.CleanupOlderThan(30 * 24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	got, err := store.Get("old")
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = store.Get("fresh")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestHistoryStats(t *testing.T) {
	store := NewHistoryStore(testLayout(t), nil)

	require.NoError(t, store.Save(&models.JobRecord{JobID: "a", Status: models.JobCompleted}))
	require.NoError(t, store.Save(&models.JobRecord{JobID: "b", Status: models.JobCompleted}))
	require.NoError(t, store.Save(&models.JobRecord{JobID: "c", Status: models.JobFailed}))

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByStatus[models.JobCompleted])
	assert.Equal(t, 1, stats.ByStatus[models.JobFailed])
	assert.False(t, stats.Newest.IsZero())
}

func TestStateManagerLifecycle(t *testing.T) {
	layout := testLayout(t)
	sm := shutdown.NewManager(nil)
	mgr := NewStateManager(layout, sm, nil)

	require.NoError(t, mgr.StartJob("job-1", map[string]any{"input": "in.mp4"}))

	data, err := os.ReadFile(filepath.Join(layout.JobsDir(), "job-1.state.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"running"`)
	assert.Contains(t, string(data), "in.mp4")

	require.NoError(t, mgr.UpdateState(map[string]any{"stage": "transcribe"}))
	require.NoError(t, mgr.CompleteJob(map[string]any{"summary": "s.md"}))

	data, err = os.ReadFile(filepath.Join(layout.JobsDir(), "job-1.state.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"completed"`)
	assert.Contains(t, string(data), `"transcribe"`)

	// Completed jobs are not marked interrupted by the shutdown chain.
	sm.RunCleanup()
	data, err = os.ReadFile(filepath.Join(layout.JobsDir(), "job-1.state.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"completed"`)
}

func TestStateManagerFail(t *testing.T) {
	layout := testLayout(t)
	mgr := NewStateManager(layout, shutdown.NewManager(nil), nil)

	require.NoError(t, mgr.StartJob("job-2", nil))
	require.NoError(t, mgr.FailJob(assert.AnError))

	data, err := os.ReadFile(filepath.Join(layout.JobsDir(), "job-2.state.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"failed"`)
	assert.Contains(t, string(data), assert.AnError.Error())
}

func TestStateManagerInterrupted(t *testing.T) {
	layout := testLayout(t)
	sm := shutdown.NewManager(nil)
	mgr := NewStateManager(layout, sm, nil)

	require.NoError(t, mgr.StartJob("job-3", nil))
	sm.RunCleanup()

	interrupted, err := InterruptedJobs(layout, nil)
	require.NoError(t, err)
	require.Len(t, interrupted, 1)
	assert.Equal(t, "job-3", interrupted[0].JobID)
	assert.Equal(t, models.StateInterrupted, interrupted[0].Status)
}

func TestInterruptedJobsSkipsOthers(t *testing.T) {
	layout := testLayout(t)
	mgr := NewStateManager(layout, shutdown.NewManager(nil), nil)

	require.NoError(t, mgr.StartJob("job-4", nil))
	require.NoError(t, mgr.CompleteJob(nil))

	interrupted, err := InterruptedJobs(layout, nil)
	require.NoError(t, err)
	assert.Empty(t, interrupted)
}
