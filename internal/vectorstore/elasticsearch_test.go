package vectorstore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeES 在内存中模拟索引、mapping、bulk、kNN 检索与计数。
type fakeES struct {
	mu            sync.Mutex
	mappings      map[string]json.RawMessage
	docs          map[string]map[string]map[string]any
	numCandidates []int
}

func newFakeES(t *testing.T) (*fakeES, *elasticsearch.Client) {
	t.Helper()
	f := &fakeES{mappings: map[string]json.RawMessage{}, docs: map[string]map[string]map[string]any{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return f, client
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	body, _ := io.ReadAll(r.Body)
	switch {
	case parts[0] == "":
		_, _ = w.Write([]byte(`{"version":{"number":"8.19.0"},"tagline":"You Know, for Search"}`))
	case parts[0] == "_bulk":
		f.bulk(body)
		_, _ = w.Write([]byte(`{"errors":false,"items":[]}`))
	case len(parts) == 1 && r.Method == http.MethodPut:
		if _, ok := f.mappings[parts[0]]; ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"type":"resource_already_exists_exception","reason":"index already exists"},"status":400}`))
			return
		}
		var req struct {
			Mappings json.RawMessage `json:"mappings"`
		}
		_ = json.Unmarshal(body, &req)
		f.mappings[parts[0]] = req.Mappings
		f.docs[parts[0]] = map[string]map[string]any{}
		_, _ = w.Write([]byte(`{"acknowledged":true}`))
	case len(parts) == 1 && r.Method == http.MethodDelete:
		delete(f.mappings, parts[0])
		delete(f.docs, parts[0])
		_, _ = w.Write([]byte(`{"acknowledged":true}`))
	default:
		index, op := parts[0], parts[len(parts)-1]
		mapping, ok := f.mappings[index]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"type":"index_not_found_exception"},"status":404}`))
			return
		}
		switch op {
		case "_mapping":
			out, _ := json.Marshal(map[string]any{index: map[string]any{"mappings": mapping}})
			_, _ = w.Write(out)
		case "_count":
			out, _ := json.Marshal(map[string]int{"count": len(f.docs[index])})
			_, _ = w.Write(out)
		case "_search":
			out, _ := json.Marshal(f.search(index, body))
			_, _ = w.Write(out)
		default:
			http.NotFound(w, r)
		}
	}
}

func (f *fakeES) bulk(body []byte) {
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var action struct {
			Index struct {
				Index string `json:"_index"`
				ID    string `json:"_id"`
			} `json:"index"`
		}
		if err := json.Unmarshal(sc.Bytes(), &action); err != nil || !sc.Scan() {
			return
		}
		var doc map[string]any
		_ = json.Unmarshal(sc.Bytes(), &doc)
		f.docs[action.Index.Index][action.Index.ID] = doc
	}
}

// search 得分规则与 Elasticsearch 一致：cosine kNN 得分 (1+cos)/2，constant_score 取 boost。
func (f *fakeES) search(index string, body []byte) map[string]any {
	var req struct {
		Size int `json:"size"`
		KNN  *struct {
			QueryVector   []float32 `json:"query_vector"`
			NumCandidates int       `json:"num_candidates"`
		} `json:"knn"`
		Query json.RawMessage `json:"query"`
	}
	_ = json.Unmarshal(body, &req)
	matchAll := strings.Contains(string(req.Query), "match_all")
	if req.KNN != nil {
		f.numCandidates = append(f.numCandidates, req.KNN.NumCandidates)
	}

	type scored struct {
		score float64
		doc   map[string]any
	}
	var hits []scored
	for _, doc := range f.docs[index] {
		raw, hasVector := doc["embedding"].([]any)
		switch {
		case req.KNN != nil && hasVector:
			vec := make([]float32, len(raw))
			for i, x := range raw {
				vec[i] = float32(x.(float64))
			}
			hits = append(hits, scored{score: 1 - cosineDistance(req.KNN.QueryVector, vec)/2, doc: doc})
		case matchAll || (len(req.Query) > 0 && !hasVector):
			hits = append(hits, scored{score: vectorlessScore, doc: doc})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > req.Size {
		hits = hits[:req.Size]
	}
	out := make([]map[string]any, len(hits))
	for i, h := range hits {
		out[i] = map[string]any{"_score": h.score, "_source": h.doc}
	}
	return map[string]any{"hits": map[string]any{"hits": out}}
}

func TestElasticsearchSearchMatchesMemoryDistances(t *testing.T) {
	ctx := context.Background()
	_, client := newFakeES(t)
	es := newFixture(t, NewElasticsearchBackend(client, testDims))
	mem := newFixture(t, NewMemoryBackend())

	for _, f := range []*fixture{es, mem} {
		_, err := f.store.AddDocument(ctx, "chez_luigi")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, es.store.Stats(ctx).Collections["chez_luigi"].DocumentCount)

	got, err := es.store.Search(ctx, "prix de la margherita", nil, 5)
	require.NoError(t, err)
	want, err := mem.store.Search(ctx, "prix de la margherita", nil, 5)
	require.NoError(t, err)

	require.Len(t, got.Results, 2)
	assert.Equal(t, "chez_luigi_page_1_chunk_0", got.Results[0].ID)
	assert.Less(t, got.Results[0].Distance, got.Results[1].Distance)
	for i := range want.Results {
		assert.Equal(t, want.Results[i].ID, got.Results[i].ID)
		assert.InDelta(t, want.Results[i].Distance, got.Results[i].Distance, 1e-6)
	}
	assert.Equal(t, 1, got.Results[0].Metadata.PageOrSection)
}

func TestElasticsearchMetadataPersistsInMapping(t *testing.T) {
	ctx := context.Background()
	_, client := newFakeES(t)
	f := newFixture(t, NewElasticsearchBackend(client, testDims))
	_, err := f.store.GetOrCreateCollection(ctx, "chez_luigi")
	require.NoError(t, err)

	fresh := NewElasticsearchBackend(client, testDims)
	col, err := fresh.Open(ctx, "pizzeria_chez_luigi", CollectionMeta{})
	require.NoError(t, err)
	assert.Equal(t, "Chez Luigi", col.Metadata().DocumentName)
	assert.Equal(t, "Chez Luigi - Pizzeria du port", col.Metadata().Description)
	assert.Equal(t, "fr", col.Metadata().Language)

	// 并发创建时已存在的索引按打开处理
	again, err := fresh.Create(ctx, "pizzeria_chez_luigi", CollectionMeta{DocumentName: "autre"})
	require.NoError(t, err)
	assert.Equal(t, "Chez Luigi", again.Metadata().DocumentName)

	_, err = fresh.Open(ctx, "pizzeria_absent", CollectionMeta{})
	assert.ErrorIs(t, err, ErrCollectionNotFound)

	require.NoError(t, fresh.Drop(ctx, "pizzeria_chez_luigi"))
	_, err = fresh.Open(ctx, "pizzeria_chez_luigi", CollectionMeta{})
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestElasticsearchKeepsChunksWithoutVector(t *testing.T) {
	ctx := context.Background()
	fake, client := newFakeES(t)
	f := newFixture(t, NewElasticsearchBackend(client, testDims))
	f.embedder.FailTexts["Allergènes: Gluten, Lait"] = true

	report, err := f.store.AddDocument(ctx, "chez_luigi")
	require.NoError(t, err)
	assert.Equal(t, 1, report.EmbeddingFailures)
	stored := fake.docs["pizzeria_chez_luigi"]["chez_luigi_page_2_chunk_0"]
	require.NotNil(t, stored)
	assert.NotContains(t, stored, "embedding")

	resp, err := f.store.Search(ctx, "margherita", nil, 5)
	require.NoError(t, err)
	require.Len(t, resp.Results, 2, "chunk without vector is still retrievable")
	assert.Equal(t, "chez_luigi_page_2_chunk_0", resp.Results[1].ID)
	assert.InDelta(t, 1.0, resp.Results[1].Distance, 1e-9)

	f.embedder.SetFailing(true)
	degraded, err := f.store.Search(ctx, "margherita", nil, 5)
	require.NoError(t, err)
	assert.True(t, degraded.Degraded)
	require.Len(t, degraded.Results, 2)
	for _, r := range degraded.Results {
		assert.InDelta(t, 1.0, r.Distance, 1e-9)
	}
}

func TestElasticsearchCandidatesStayWithinLimit(t *testing.T) {
	ctx := context.Background()
	fake, client := newFakeES(t)
	b := NewElasticsearchBackend(client, testDims)
	col, err := b.Create(ctx, "pizzeria_chez_luigi", CollectionMeta{})
	require.NoError(t, err)

	vec := []float32{1, 0, 0}
	_, err = col.Query(ctx, vec, 5)
	require.NoError(t, err)
	_, err = col.Query(ctx, vec, 5000)
	require.NoError(t, err)
	assert.Equal(t, []int{100, esMaxCandidates}, fake.numCandidates)

	q := esQuery(vec, 20000)
	assert.Equal(t, esMaxCandidates, q["size"])
	assert.Equal(t, esMaxCandidates, q["knn"].(map[string]any)["k"])
}
