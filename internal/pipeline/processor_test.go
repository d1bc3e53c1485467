package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizzeria-rag-go/internal/chunker"
	"pizzeria-rag-go/internal/config"
	"pizzeria-rag-go/internal/extractor"
	"pizzeria-rag-go/internal/model"
	"pizzeria-rag-go/internal/registry"
	"pizzeria-rag-go/internal/vectorstore"
	"pizzeria-rag-go/pkg/embedding/embeddingtest"
	"pizzeria-rag-go/pkg/storage"
	"pizzeria-rag-go/pkg/tasks"
)

type fakeExtractor struct {
	pages map[string][]model.PageText
}

func (f fakeExtractor) Extract(_ context.Context, fileName string, _ []byte) (*model.Extraction, error) {
	pages, ok := f.pages[fileName]
	if !ok {
		return nil, extractor.ErrExtractionFailed
	}
	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.Text
	}
	return &model.Extraction{Text: strings.Join(texts, "\n"), Pages: pages, Confidence: 1, Method: "fake"}, nil
}

type memChunkRepo struct {
	mu   sync.Mutex
	rows map[string][]*model.DocumentChunk
}

func (m *memChunkRepo) ReplaceForDocument(id string, chunks []*model.DocumentChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[id] = chunks
	return nil
}

func (m *memChunkRepo) FindByDocumentID(id string) ([]*model.DocumentChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id], nil
}

func (m *memChunkRepo) DeleteByDocumentID(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

const menuPage = "Nos pizzas\nPizza Margherita: tomate, mozzarella, basilic. 9€\nPIZZA REGINA 11,50 €\nCalzone - jambon, oeuf 12€"

type fixture struct {
	proc      *Processor
	objects   storage.ObjectStore
	processed *storage.Processed
	store     *vectorstore.Store
	chunks    *memChunkRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	reg := registry.NewStatic(
		model.DocumentInfo{DocumentID: "chez_luigi", Description: "Chez Luigi - Pizzeria du port", Language: "fr", ContentType: "menu", PDFFile: "chez_luigi.pdf"},
		model.DocumentInfo{DocumentID: "marco_fuso", Description: "Marco Fuso - Pizzeria napolitaine", Language: "fr", ContentType: "menu"},
	)
	objects, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, objects.Put(ctx, storage.RawKey("chez_luigi.pdf"), []byte("%PDF-1.4"), "application/pdf"))
	require.NoError(t, objects.Put(ctx, storage.RawKey("marco_fuso.pdf"), []byte("%PDF-1.4"), "application/pdf"))
	processed := storage.NewProcessed(objects)

	const dims = 128
	store := vectorstore.NewStore(config.VectorStoreConfig{ChunkSize: 500, ChunkOverlap: 50}, dims,
		vectorstore.NewMemoryBackend(), embeddingtest.New(dims), reg, processed)
	chunks := &memChunkRepo{rows: map[string][]*model.DocumentChunk{}}

	ext := fakeExtractor{pages: map[string][]model.PageText{
		"chez_luigi.pdf": {{Number: 1, Text: menuPage}, {Number: 2, Text: "Allergènes: Gluten, Lait"}, {Number: 3, Text: "  "}},
	}}
	proc := NewProcessor(Deps{
		Registry:  reg,
		Objects:   objects,
		Processed: processed,
		Extractor: ext,
		Chunker:   chunker.New(config.ChunkerConfig{ChunkSize: 1000, ChunkOverlap: 200}),
		Chunks:    chunks,
		Indexer:   store,
	}, 0.4)
	return &fixture{proc: proc, objects: objects, processed: processed, store: store, chunks: chunks}
}

func TestProcessMenuDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.proc.Process(ctx, tasks.IngestTask{DocumentID: "chez_luigi"}))

	doc, err := f.processed.Load(ctx, "chez_luigi")
	require.NoError(t, err)
	assert.Equal(t, model.DocTypeMenu, doc.DocType)
	assert.Equal(t, "chez_luigi.pdf", doc.Source)
	assert.Equal(t, "fake", doc.ExtractionMethod)
	require.Len(t, doc.Sections, 2)
	assert.Equal(t, 2, doc.Sections[1].Page)

	var names []string
	for _, p := range doc.Pizzas {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Margherita", "Regina", "Calzone"}, names)
	assert.Equal(t, []string{"Gluten", "Œufs", "Lait"}, doc.Allergens)
	require.Len(t, doc.Chunks, 3)
	assert.Equal(t, model.ChunkTypePizza, doc.Chunks[0].Metadata.ChunkType)

	rows, _ := f.chunks.FindByDocumentID("chez_luigi")
	require.Len(t, rows, 3)
	assert.Equal(t, "Margherita", rows[0].Subject)

	stats := f.store.Stats(ctx)
	assert.Equal(t, 2, stats.Collections["chez_luigi"].DocumentCount)

	// reprocessing replaces the collection instead of appending to it
	require.NoError(t, f.proc.Process(ctx, tasks.IngestTask{DocumentID: "chez_luigi"}))
	assert.Equal(t, 2, f.store.Stats(ctx).Collections["chez_luigi"].DocumentCount)
}

func TestProcessErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.proc.Process(ctx, tasks.IngestTask{DocumentID: "inconnu"})
	assert.ErrorIs(t, err, registry.ErrDocumentNotFound)

	err = f.proc.Process(ctx, tasks.IngestTask{DocumentID: "marco_fuso"})
	assert.ErrorIs(t, err, extractor.ErrExtractionFailed)

	err = f.proc.Process(ctx, tasks.IngestTask{DocumentID: "chez_luigi", FileName: "absent.pdf"})
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestProcessAllSkipsFailures(t *testing.T) {
	f := newFixture(t)
	results := f.proc.ProcessAll(context.Background())

	require.Len(t, results, 2)
	assert.NoError(t, results["chez_luigi"])
	assert.ErrorIs(t, results["marco_fuso"], extractor.ErrExtractionFailed)
	assert.Equal(t, []string{"marco_fuso"}, Failed(results))

	ok, err := f.processed.Exists(context.Background(), "chez_luigi")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBuildFlagsPoorQuality(t *testing.T) {
	f := newFixture(t)
	doc := f.proc.Build(model.DocumentInfo{DocumentID: "d"}, "d.pdf", &model.Extraction{Text: "x y", Method: "fake"})
	assert.Equal(t, model.DocTypeGeneric, doc.DocType)
	require.Len(t, doc.Sections, 1)
	assert.False(t, doc.Quality.Acceptable)
	assert.NotEmpty(t, doc.Quality.Issues)
}

func TestProcessSerializesPerDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.proc.Process(ctx, tasks.IngestTask{DocumentID: "chez_luigi"})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 2, f.store.Stats(ctx).Collections["chez_luigi"].DocumentCount)
	assert.True(t, errors.Is(f.proc.Process(ctx, tasks.IngestTask{DocumentID: "x"}), registry.ErrDocumentNotFound))
}
