package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizzeria-rag-go/internal/config"
	"pizzeria-rag-go/pkg/storage"
	"pizzeria-rag-go/pkg/tasks"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.VectorStore.Backend = "memory"
	cfg.Storage.LocalDir = filepath.Join(dir, "data")
	cfg.Paths.RawPDFs = filepath.Join(dir, "raw_pdfs")
	cfg.Documents = []config.DocumentConfig{{ID: "chez_luigi", Description: "Chez Luigi - Pizzeria du port", PDFFile: "chez_luigi.pdf"}}
	require.NoError(t, os.MkdirAll(cfg.Paths.RawPDFs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Paths.RawPDFs, "chez_luigi.pdf"), []byte("%PDF-1.4"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Paths.RawPDFs, "Marco Fuso.pdf"), []byte("%PDF-1.4"), 0o644))
	return cfg
}

func TestNewWithoutExternalServices(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.DB)
	assert.Nil(t, a.Redis)
	assert.Nil(t, a.Conversations)
	assert.Equal(t, []string{"chez_luigi", "marco_fuso"}, a.Registry.AllDocumentIDs())
	assert.Equal(t, "memory", a.Store.BackendName())
	assert.Equal(t, 5, a.Aggregator.DefaultMaxChunks())
}

func TestSyncRawFiles(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	n, err := a.SyncRawFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	ok, err := a.Objects.Exists(ctx, storage.RawKey("Marco Fuso.pdf"))
	require.NoError(t, err)
	assert.True(t, ok)

	n, err = a.SyncRawFiles(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStartQueueInline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, err := New(ctx, testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	q := a.StartQueue(ctx)
	_, isInline := q.(*tasks.InlineQueue)
	assert.True(t, isInline)
	require.NoError(t, q.Close())
	assert.ErrorIs(t, q.Enqueue(ctx, tasks.IngestTask{DocumentID: "chez_luigi"}), tasks.ErrQueueClosed)
}
