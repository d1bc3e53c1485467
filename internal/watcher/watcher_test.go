package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizzeria-rag-go/internal/model"
	"pizzeria-rag-go/internal/pipeline"
	"pizzeria-rag-go/internal/registry"
)

type recordingSubmitter struct {
	mu      sync.Mutex
	uploads []pipeline.Upload
}

func (r *recordingSubmitter) Submit(_ context.Context, up pipeline.Upload) (model.DocumentInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploads = append(r.uploads, up)
	return registry.InfoFromFile(up.FileName), nil
}

func (r *recordingSubmitter) snapshot() []pipeline.Upload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]pipeline.Upload(nil), r.uploads...)
}

func TestHandleFiltersEvents(t *testing.T) {
	dir := t.TempDir()
	sub := &recordingSubmitter{}
	w := New(dir, sub, time.Hour)
	ctx := context.Background()
	defer w.stop()

	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"create pdf", fsnotify.Event{Name: filepath.Join(dir, "menu.pdf"), Op: fsnotify.Create}, true},
		{"write pdf uppercase", fsnotify.Event{Name: filepath.Join(dir, "CARTE.PDF"), Op: fsnotify.Write}, true},
		{"remove pdf", fsnotify.Event{Name: filepath.Join(dir, "menu.pdf"), Op: fsnotify.Remove}, false},
		{"chmod pdf", fsnotify.Event{Name: filepath.Join(dir, "menu.pdf"), Op: fsnotify.Chmod}, false},
		{"not a pdf", fsnotify.Event{Name: filepath.Join(dir, "notes.txt"), Op: fsnotify.Create}, false},
		{"hidden file", fsnotify.Event{Name: filepath.Join(dir, ".menu.pdf"), Op: fsnotify.Create}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.handle(ctx, tt.ev))
		})
	}

	w.mu.Lock()
	assert.Len(t, w.timers, 2)
	w.mu.Unlock()
}

func TestDebounceSubmitsOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Chez Luigi.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))
	sub := &recordingSubmitter{}
	w := New(dir, sub, 20*time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		w.handle(ctx, fsnotify.Event{Name: path, Op: fsnotify.Write})
	}
	require.Eventually(t, func() bool { return len(sub.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	w.stop()

	up := sub.snapshot()[0]
	assert.Equal(t, "Chez Luigi.pdf", up.FileName)
	assert.Equal(t, "%PDF-1.4", string(up.Data))
	assert.Equal(t, "watcher", up.RequestedBy)
	assert.Len(t, sub.snapshot(), 1)
}

func TestRunPicksUpNewFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "raw")
	sub := &recordingSubmitter{}
	w := New(dir, sub, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	require.Eventually(t, func() bool {
		_, err := os.Stat(dir)
		return err == nil
	}, time.Second, 10*time.Millisecond)
	// 等待 fsnotify 注册完成
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bella_napoli.pdf"), []byte("%PDF-1.7"), 0o644))
	require.Eventually(t, func() bool { return len(sub.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "bella_napoli.pdf", sub.snapshot()[0].FileName)

	cancel()
	require.NoError(t, <-done)
}
