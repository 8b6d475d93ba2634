package audio

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestIsAudioFile(t *testing.T) {
	assert.True(t, IsAudioFile("aud.mkv"))
	assert.True(t, IsAudioFile("/data/in/Take 1.OPUS"))
	assert.True(t, IsAudioFile("call.ul"))
	assert.False(t, IsAudioFile("notes.txt"))
	assert.False(t, IsAudioFile("playlist.m3u8"))
}

func TestDirWatcherHandlesSettledAudio(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	handled := make(chan string, 4)
	w := NewDirWatcher(dir, 50*time.Millisecond, func(ctx context.Context, path string) {
		handled <- path
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// 等待监听器就绪
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0644))
	audioPath := filepath.Join(dir, "aud.mkv")
	require.NoError(t, os.WriteFile(audioPath, []byte("opus"), 0644))

	select {
	case got := <-handled:
		assert.Equal(t, audioPath, got)
	case <-time.After(3 * time.Second):
		t.Fatal("audio file was not handled")
	}

	select {
	case extra := <-handled:
		t.Fatalf("unexpected extra file handled: %s", extra)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	require.NoError(t, <-done)
}

func TestDirWatcherMissingDir(t *testing.T) {
	w := NewDirWatcher(filepath.Join(t.TempDir(), "missing"), 0, func(context.Context, string) {})
	assert.Error(t, w.Run(context.Background()))
}
