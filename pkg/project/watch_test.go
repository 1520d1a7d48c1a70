package project

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsOnBuildFileChange(t *testing.T) {
	dir := writeShop(t)

	w, err := NewWatcher(dir, zerolog.Nop())
	require.NoError(t, err)
	w.SetDelay(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloads atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(ctx context.Context) error {
			reloads.Add(1)
			return nil
		})
	}()

	// Give the watcher a moment to start reading events.
	time.Sleep(50 * time.Millisecond)
	writeFile(t, filepath.Join(dir, "web", BuildFileName), "description: Storefront v2\n")
	writeFile(t, filepath.Join(dir, "web", "README.md"), "ignored\n")

	assert.Eventually(t, func() bool {
		return reloads.Load() >= 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing"), zerolog.Nop())
	assert.Error(t, err)
}

func TestRelevant(t *testing.T) {
	tests := []struct {
		event fsnotify.Event
		want  bool
	}{
		{fsnotify.Event{Name: "/b/" + BuildFileName, Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: "/b/" + SettingsFileName, Op: fsnotify.Remove}, true},
		{fsnotify.Event{Name: "/b/" + BuildFileName, Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: "/b/main.go", Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, relevant(tt.event), tt.event.String())
	}
}
