package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizzeria-rag-go/internal/config"
	"pizzeria-rag-go/internal/model"
	"pizzeria-rag-go/internal/registry"
	"pizzeria-rag-go/pkg/embedding/embeddingtest"
	"pizzeria-rag-go/pkg/storage"
)

const testDims = 256

type mapSource map[string]*model.ProcessedDocument

func (m mapSource) Load(_ context.Context, id string) (*model.ProcessedDocument, error) {
	doc, ok := m[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, storage.ErrObjectNotFound)
	}
	return doc, nil
}

func twoPageDoc(id string) *model.ProcessedDocument {
	return &model.ProcessedDocument{
		DocumentID:  id,
		Language:    "fr",
		ContentType: "menu",
		Sections: []model.Section{
			{Page: 1, Content: "Pizza Margherita: tomate, mozzarella, basilic. 9€"},
			{Page: 2, Content: "Allergènes: Gluten, Lait"},
		},
	}
}

type fixture struct {
	store    *Store
	embedder *embeddingtest.Fake
	source   mapSource
	reg      *registry.Static
}

func newFixture(t *testing.T, backend Backend) *fixture {
	t.Helper()
	reg := registry.NewStatic(
		model.DocumentInfo{DocumentID: "chez_luigi", Description: "Chez Luigi - Pizzeria du port", Language: "fr", ContentType: "menu"},
		model.DocumentInfo{DocumentID: "marco_fuso", Description: "Marco Fuso - Pizzeria napolitaine", Language: "fr", ContentType: "menu"},
	)
	src := mapSource{"chez_luigi": twoPageDoc("chez_luigi")}
	emb := embeddingtest.New(testDims)
	cfg := config.VectorStoreConfig{CollectionPrefix: "pizzeria", ChunkSize: 500, ChunkOverlap: 50, BatchSize: 1}
	return &fixture{store: NewStore(cfg, testDims, backend, emb, reg, src), embedder: emb, source: src, reg: reg}
}

func backends(t *testing.T) map[string]func() Backend {
	return map[string]func() Backend{
		"memory": NewMemoryBackend,
		"sqlite": func() Backend {
			b, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "vectors.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = b.Close() })
			return b
		},
	}
}

func TestGetOrCreateCollectionIsIdempotent(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, mk())
			ctx := context.Background()

			c1, err := f.store.GetOrCreateCollection(ctx, "chez_luigi")
			require.NoError(t, err)
			before := f.store.Stats(ctx)
			c2, err := f.store.GetOrCreateCollection(ctx, "chez_luigi")
			require.NoError(t, err)

			assert.Same(t, c1, c2)
			assert.Equal(t, before, f.store.Stats(ctx))
			assert.Equal(t, "pizzeria_chez_luigi", c1.Name())
			assert.Equal(t, "Chez Luigi - Pizzeria du port", c1.Metadata().Description)
			assert.Equal(t, "fr", c1.Metadata().Language)

			_, err = f.store.GetOrCreateCollection(ctx, "inconnu")
			assert.ErrorIs(t, err, registry.ErrDocumentNotFound)
		})
	}
}

func TestAddDocumentAndSearch(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, mk())
			ctx := context.Background()

			report, err := f.store.AddDocument(ctx, "chez_luigi")
			require.NoError(t, err)
			assert.Equal(t, 2, report.Chunks)
			assert.Zero(t, report.EmbeddingFailures)

			// 重复写入不产生重复分块
			_, err = f.store.AddDocument(ctx, "chez_luigi")
			require.NoError(t, err)
			stats := f.store.Stats(ctx)
			assert.Equal(t, 2, stats.Collections["chez_luigi"].DocumentCount)
			assert.Equal(t, "not indexed", stats.Collections["marco_fuso"].Error)
			assert.Equal(t, 2, stats.TotalDocuments)

			resp, err := f.store.Search(ctx, "prix de la margherita", []string{"chez_luigi"}, 5)
			require.NoError(t, err)
			require.Len(t, resp.Results, 2)
			top := resp.Results[0]
			assert.Equal(t, "chez_luigi_page_1_chunk_0", top.ID)
			assert.Equal(t, "Chez Luigi", top.DocumentName)
			assert.Equal(t, 1, top.Metadata.PageOrSection)
			assert.Less(t, top.Distance, resp.Results[1].Distance)
			assert.False(t, resp.Degraded)
		})
	}
}

func TestAddDocumentErrors(t *testing.T) {
	f := newFixture(t, NewMemoryBackend())
	ctx := context.Background()

	_, err := f.store.AddDocument(ctx, "marco_fuso")
	assert.ErrorIs(t, err, ErrNothingToIndex)

	_, err = f.store.AddDocument(ctx, "inconnu")
	assert.ErrorIs(t, err, registry.ErrDocumentNotFound)

	f.source["marco_fuso"] = &model.ProcessedDocument{DocumentID: "marco_fuso", Sections: []model.Section{{Page: 1, Content: "  "}}}
	_, err = f.store.AddDocument(ctx, "marco_fuso")
	assert.ErrorIs(t, err, ErrNothingToIndex)

	results := f.store.AddAllDocuments(ctx)
	assert.NoError(t, results["chez_luigi"])
	assert.ErrorIs(t, results["marco_fuso"], ErrNothingToIndex)
}

func TestEmbeddingFailureDegradesToZeroVector(t *testing.T) {
	f := newFixture(t, NewMemoryBackend())
	ctx := context.Background()
	f.embedder.FailTexts["Allergènes: Gluten, Lait"] = true

	report, err := f.store.AddDocument(ctx, "chez_luigi")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Chunks)
	assert.Equal(t, 1, report.EmbeddingFailures)

	f.embedder.SetFailing(true)
	resp, err := f.store.Search(ctx, "margherita", nil, 5)
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.Len(t, resp.Results, 2, "zero query vector still returns hits at distance 1")
	for _, r := range resp.Results {
		assert.InDelta(t, 1.0, r.Distance, 1e-9)
	}
}

func TestSearchMergesAndTruncates(t *testing.T) {
	f := newFixture(t, NewMemoryBackend())
	ctx := context.Background()
	f.source["marco_fuso"] = &model.ProcessedDocument{
		DocumentID: "marco_fuso",
		Sections: []model.Section{
			{Page: 1, Content: "Pizza Margherita napolitaine 11€"},
			{Page: 2, Content: "Tiramisu maison"},
		},
	}
	for _, id := range []string{"chez_luigi", "marco_fuso"} {
		_, err := f.store.AddDocument(ctx, id)
		require.NoError(t, err)
	}

	resp, err := f.store.Search(ctx, "pizza margherita", nil, 3)
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, []string{"chez_luigi", "marco_fuso"}, resp.SearchedDocuments)
	docs := map[string]bool{}
	for i, r := range resp.Results {
		docs[r.Metadata.SourceDocument] = true
		if i > 0 {
			assert.LessOrEqual(t, resp.Results[i-1].Distance, r.Distance)
		}
	}
	assert.Len(t, docs, 2)

	empty, err := f.store.Search(ctx, "pizza", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, empty.Results)

	_, err = f.store.Search(ctx, "pizza", []string{"inconnu"}, 3)
	assert.ErrorIs(t, err, registry.ErrDocumentNotFound)
}

// failingBackend 让指定集合的查询失败。
type failingBackend struct {
	Backend
	failing string
}

type failingCollection struct {
	Collection
}

func (failingCollection) Query(context.Context, []float32, int) ([]Hit, error) {
	return nil, errors.New("disk on fire")
}

func (b failingBackend) Open(ctx context.Context, name string, meta CollectionMeta) (Collection, error) {
	c, err := b.Backend.Open(ctx, name, meta)
	if err == nil && name == b.failing {
		return failingCollection{c}, nil
	}
	return c, err
}

func TestSearchSkipsFailingCollection(t *testing.T) {
	mem := NewMemoryBackend()
	ctx := context.Background()
	_, err := mem.Create(ctx, "pizzeria_marco_fuso", CollectionMeta{})
	require.NoError(t, err)

	f := newFixture(t, failingBackend{Backend: mem, failing: "pizzeria_marco_fuso"})
	_, err = f.store.AddDocument(ctx, "chez_luigi")
	require.NoError(t, err)

	resp, err := f.store.Search(ctx, "margherita", nil, 5)
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
	assert.Contains(t, resp.Failures, "marco_fuso")
}

func TestResetDropsCollection(t *testing.T) {
	f := newFixture(t, NewMemoryBackend())
	ctx := context.Background()
	_, err := f.store.AddDocument(ctx, "chez_luigi")
	require.NoError(t, err)

	require.NoError(t, f.store.Reset(ctx, "chez_luigi"))
	assert.Equal(t, "not indexed", f.store.Stats(ctx).Collections["chez_luigi"].Error)
}

func TestSQLiteCollectionsPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.db")
	ctx := context.Background()

	b1, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	f := newFixture(t, b1)
	_, err = f.store.AddDocument(ctx, "chez_luigi")
	require.NoError(t, err)
	require.NoError(t, b1.Close())

	b2, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	defer b2.Close()
	col, err := b2.Open(ctx, "pizzeria_chez_luigi", CollectionMeta{})
	require.NoError(t, err)
	n, err := col.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "Chez Luigi", col.Metadata().DocumentName)

	_, err = b2.Open(ctx, "pizzeria_absent", CollectionMeta{})
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0, cosineDistance([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 1, cosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 2, cosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.InDelta(t, 1, cosineDistance([]float32{0, 0}, []float32{1, 0}), 1e-9)
}
