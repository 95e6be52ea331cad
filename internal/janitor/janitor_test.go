package janitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recapd/recapd/internal/jobstore"
	"github.com/recapd/recapd/internal/models"
	"github.com/recapd/recapd/internal/storage"
)

func testLayout(t *testing.T) *storage.Layout {
	t.Helper()
	layout, err := storage.NewLayout(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	return layout
}

func TestSweepTempRemovesOnlyStaleEntries(t *testing.T) {
	layout := testLayout(t)
	j := New(nil, layout, 0, time.Hour, nil)

	stale := filepath.Join(layout.TempDir(), "stale.wav")
	fresh := filepath.Join(layout.TempDir(), "fresh.wav")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o640))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o640))

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	removed, err := j.SweepTemp()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
}

func TestSweepTempRemovesStaleDirectories(t *testing.T) {
	layout := testLayout(t)
	j := New(nil, layout, 0, time.Hour, nil)

	staleDir := filepath.Join(layout.TempDir(), "job-scratch")
	require.NoError(t, os.MkdirAll(staleDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(staleDir, "part.wav"), []byte("x"), 0o640))
	old := time.Now().Add(-3 * time.Hour)
	require.NoError(t, os.Chtimes(staleDir, old, old))

	removed, err := j.SweepTemp()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoDirExists(t, staleDir)
}

func TestRunOnceAppliesHistoryRetention(t *testing.T) {
	layout := testLayout(t)
	history := jobstore.NewHistoryStore(layout, nil)

	require.NoError(t, history.Save(&models.JobRecord{JobID: "old-job", Status: models.JobCompleted}))
	require.NoError(t, history.Save(&models.JobRecord{JobID: "new-job", Status: models.JobCompleted}))

	oldPath := filepath.Join(layout.JobsDir(), "old-job.json")
	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, stale, stale))

	j := New(history, layout, 24*time.Hour, 0, nil)
	j.RunOnce()

	gone, err := history.Get("old-job")
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := history.Get("new-job")
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestStartStop(t *testing.T) {
	layout := testLayout(t)
	j := New(nil, layout, 0, time.Hour, nil, WithSchedule("@every 1h"))
	require.NoError(t, j.Start())
	j.Stop()
}

func TestStartRejectsBadSchedule(t *testing.T) {
	layout := testLayout(t)
	j := New(nil, layout, 0, time.Hour, nil, WithSchedule("not a schedule"))
	assert.Error(t, j.Start())
}
