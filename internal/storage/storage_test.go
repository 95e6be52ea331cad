package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandboxResolvePath(t *testing.T) {
	sb, err := NewSandbox(t.TempDir())
	require.NoError(t, err)

	t.Run("inside", func(t *testing.T) {
		path, err := sb.ResolvePath("audio/meeting/meeting.m4a")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(path, sb.BaseDir()))
	})

	t.Run("escape via dotdot", func(t *testing.T) {
		_, err := sb.ResolvePath("../outside.txt")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "escapes sandbox")
	})

	t.Run("absolute rejected", func(t *testing.T) {
		_, err := sb.ResolvePath("/etc/passwd")
		require.Error(t, err)
	})

	t.Run("base itself", func(t *testing.T) {
		path, err := sb.ResolvePath(".")
		require.NoError(t, err)
		assert.Equal(t, sb.BaseDir(), path)
	})
}

func TestSandboxAtomicWrite(t *testing.T) {
	sb, err := NewSandbox(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, sb.AtomicWrite("jobs/abc.json", []byte(`{"job_id":"abc"}`)))

	data, err := sb.ReadFile("jobs/abc.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"job_id":"abc"}`, string(data))

	// No temp files left behind.
	entries, err := sb.List("jobs")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "abc.json", entries[0].Name())
}

func TestSandboxAtomicWriteReader(t *testing.T) {
	sb, err := NewSandbox(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, sb.AtomicWriteReader("transcript/a/a.json", strings.NewReader("[]")))
	data, err := sb.ReadFile("transcript/a/a.json")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestSandboxRemoveAllGuardsBase(t *testing.T) {
	sb, err := NewSandbox(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, sb.MkdirAll("temp/scratch"))
	assert.NoError(t, sb.RemoveAll("temp/scratch"))
	assert.Error(t, sb.RemoveAll("."))
}

func TestLayoutTree(t *testing.T) {
	base := t.TempDir()
	layout, err := NewLayout(base)
	require.NoError(t, err)
	assert.Equal(t, base, layout.BaseDir())

	for _, dir := range []string{"video", "audio", "transcript", "summary", "temp", "jobs"} {
		info, err := os.Stat(filepath.Join(base, dir))
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir())
	}
}

func TestLayoutPaths(t *testing.T) {
	layout, err := NewLayout(t.TempDir())
	require.NoError(t, err)
	base := layout.BaseDir()

	assert.Equal(t, filepath.Join(base, "audio", "standup"), layout.AudioDir("standup"))
	assert.Equal(t, filepath.Join(base, "audio", "standup", "standup.m4a"), layout.AudioPath("standup", "m4a"))
	assert.Equal(t, filepath.Join(base, "transcript", "standup", "standup.json"), layout.TranscriptPath("standup"))
	assert.Equal(t, filepath.Join(base, "summary", "standup", "decision", "standup.summary.md"),
		layout.SummaryPath("standup", "decision", "md"))
	assert.Equal(t, filepath.Join(base, "temp"), layout.TempDir())
	assert.Equal(t, filepath.Join(base, "jobs"), layout.JobsDir())
}

func TestStem(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/data/video/standup.mp4", "standup"},
		{"/data/audio/standup/standup_extracted.m4a", "standup"},
		{"/data/audio/standup/standup_extracted_volume.m4a", "standup"},
		{"/data/audio/standup/standup_extracted_volume_normalized.wav", "standup"},
		{"weekly_sync.m4a", "weekly_sync"},
		{"noext", "noext"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Stem(tt.path))
		})
	}
}
