package shutdown

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recapd/recapd/internal/recaperr"
)

func TestLatch(t *testing.T) {
	m := NewManager(nil)

	assert.False(t, m.IsRequested())
	assert.NoError(t, m.Check())

	m.Request()
	assert.True(t, m.IsRequested())
	assert.ErrorIs(t, m.Check(), recaperr.ErrInterrupted)

	m.Reset()
	assert.False(t, m.IsRequested())
}

func TestRunCleanup_ReverseOrderOnce(t *testing.T) {
	m := NewManager(nil)

	var order []string
	m.RegisterHandler(func() { order = append(order, "first") })
	m.RegisterHandler(func() { order = append(order, "second") })
	m.RegisterHandler(func() { order = append(order, "third") })

	m.RunCleanup()
	assert.Equal(t, []string{"third", "second", "first"}, order)

	m.RunCleanup()
	assert.Len(t, order, 3, "cleanup must run exactly once")
}

func TestRunCleanup_HandlerPanicContained(t *testing.T) {
	m := NewManager(nil)

	ran := false
	m.RegisterHandler(func() { ran = true })
	m.RegisterHandler(func() { panic("boom") })

	assert.NotPanics(t, m.RunCleanup)
	assert.True(t, ran, "handlers after a panicking one still run")
}

func TestUnregisterHandler(t *testing.T) {
	m := NewManager(nil)

	var order []string
	m.RegisterHandler(func() { order = append(order, "keep") })
	unregister := m.RegisterHandler(func() { order = append(order, "drop") })
	unregister()
	unregister() // idempotent

	m.RunCleanup()
	assert.Equal(t, []string{"keep"}, order)
}

func TestRunCleanup_RemovesTempPaths(t *testing.T) {
	m := NewManager(nil)
	dir := t.TempDir()

	file := filepath.Join(dir, "scratch.wav")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	sub := filepath.Join(dir, "chunks")
	require.NoError(t, os.MkdirAll(filepath.Join(sub, "deep"), 0o755))

	kept := filepath.Join(dir, "kept.json")
	require.NoError(t, os.WriteFile(kept, []byte("x"), 0o644))

	m.RegisterTempPath(file)
	m.RegisterTempPath(sub)
	m.RegisterTempPath(kept)
	m.UnregisterTempPath(kept)
	m.RegisterTempPath(filepath.Join(dir, "already-gone"))

	m.RunCleanup()

	assert.NoFileExists(t, file)
	assert.NoDirExists(t, sub)
	assert.FileExists(t, kept)
}

func TestListen_StopReleasesSignals(t *testing.T) {
	m := NewManager(nil)

	ctx, stop := m.Listen(context.Background())
	assert.NoError(t, ctx.Err())
	stop()

	<-ctx.Done()
	assert.False(t, m.IsRequested(), "stop without a signal must not latch")
}

func TestGracefulOperation(t *testing.T) {
	m := NewManager(nil)
	done := m.GracefulOperation("state write")
	assert.NotPanics(t, done)
}
