package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
pdp:
  endpoint: http://pdp-one:8081
`)

	w, err := NewWatcher(path, zap.NewNop())
	require.NoError(t, err)
	w.SetDebounceTimeout(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Watch(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte(`
pdp:
  endpoint: http://pdp-two:8081
`), 0o644))

	select {
	case ev := <-w.EventChan():
		require.NoError(t, ev.Error)
		require.NotNil(t, ev.Config)
		assert.Equal(t, "http://pdp-two:8081", ev.Config.PDP.Endpoint)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload event received")
	}
}

func TestWatcherInvalidFileReportsError(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
pdp:
  endpoint: http://pdp:8081
`)

	w, err := NewWatcher(path, zap.NewNop())
	require.NoError(t, err)
	w.SetDebounceTimeout(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Watch(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte(`
pdp:
  transport: carrier-pigeon
  endpoint: http://pdp:8081
`), 0o644))

	select {
	case ev := <-w.EventChan():
		assert.Error(t, ev.Error)
		assert.Nil(t, ev.Config)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload event received")
	}
}

func TestWatcherStopDuringPendingReload(t *testing.T) {
	// A debounce timer that fires around Stop must not send on the closed
	// event channel. Forcing a reload after Stop exercises the same path the
	// timer callback takes.
	dir := t.TempDir()
	path := writeConfig(t, dir, "pdp:\n  endpoint: http://pdp:8081\n")

	w, err := NewWatcher(path, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Watch(ctx))
	require.NoError(t, w.Stop())

	assert.NotPanics(t, func() { w.performReload() })
}

func TestWatcherDoubleStartRejected(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "pdp:\n  endpoint: http://pdp:8081\n")

	w, err := NewWatcher(path, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Watch(ctx))
	defer w.Stop()

	assert.Error(t, w.Watch(ctx))
	assert.True(t, w.IsWatching())
}
