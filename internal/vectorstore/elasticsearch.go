package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"pizzeria-rag-go/internal/model"
	"pizzeria-rag-go/pkg/log"
)

// esBackend 每个集合一个索引，集合元数据保存在 mapping 的 _meta 中。
type esBackend struct {
	client *elasticsearch.Client
	dims   int
}

// NewElasticsearchBackend dims 为 dense_vector 的维度。
func NewElasticsearchBackend(client *elasticsearch.Client, dims int) Backend {
	return &esBackend{client: client, dims: dims}
}

func (b *esBackend) Name() string { return "elasticsearch" }

type esChunk struct {
	ChunkID   string              `json:"chunk_id"`
	Content   string              `json:"content"`
	Metadata  model.ChunkMetadata `json:"metadata"`
	Embedding []float32           `json:"embedding,omitempty"`
}

func (b *esBackend) Open(ctx context.Context, name string, _ CollectionMeta) (Collection, error) {
	res, err := b.client.Indices.GetMapping(
		b.client.Indices.GetMapping.WithIndex(name),
		b.client.Indices.GetMapping.WithContext(ctx),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, ErrCollectionNotFound
	}
	if res.IsError() {
		return nil, fmt.Errorf("get mapping %s: %s", name, res.String())
	}

	var body map[string]struct {
		Mappings struct {
			Meta CollectionMeta `json:"_meta"`
		} `json:"mappings"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode mapping %s: %w", name, err)
	}
	return &esCollection{client: b.client, name: name, meta: body[name].Mappings.Meta}, nil
}

func (b *esBackend) Create(ctx context.Context, name string, meta CollectionMeta) (Collection, error) {
	mapping := map[string]any{
		"mappings": map[string]any{
			"_meta": meta,
			"properties": map[string]any{
				"chunk_id": map[string]any{"type": "keyword"},
				"content":  map[string]any{"type": "text"},
				"metadata": map[string]any{"type": "object", "enabled": false},
				"embedding": map[string]any{
					"type":       "dense_vector",
					"dims":       b.dims,
					"index":      true,
					"similarity": "cosine",
				},
			},
		},
	}
	body, err := json.Marshal(mapping)
	if err != nil {
		return nil, err
	}
	res, err := b.client.Indices.Create(name,
		b.client.Indices.Create.WithBody(bytes.NewReader(body)),
		b.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		// 并发创建时索引可能已存在
		if strings.Contains(res.String(), "resource_already_exists_exception") {
			return b.Open(ctx, name, meta)
		}
		return nil, fmt.Errorf("create index %s: %s", name, res.String())
	}
	log.Infof("[VectorStore] 索引 '%s' 创建成功", name)
	return &esCollection{client: b.client, name: name, meta: meta}, nil
}

func (b *esBackend) Drop(ctx context.Context, name string) error {
	res, err := b.client.Indices.Delete([]string{name}, b.client.Indices.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete index %s: %s", name, res.String())
	}
	return nil
}

func (b *esBackend) Close() error { return nil }

type esCollection struct {
	client *elasticsearch.Client
	name   string
	meta   CollectionMeta
}

func (c *esCollection) Name() string             { return c.name }
func (c *esCollection) Metadata() CollectionMeta { return c.meta }

// Upsert 通过 bulk 写入并立即刷新。cosine 索引不接受零向量，这类分块不带向量写入，
// 检索时由 esQuery 的 constant_score 部分召回。
func (c *esCollection) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		action := map[string]any{"index": map[string]any{"_index": c.name, "_id": r.ID}}
		doc := esChunk{ChunkID: r.ID, Content: r.Content, Metadata: r.Metadata}
		if !isZero(r.Embedding) {
			doc.Embedding = r.Embedding
		}
		if err := enc.Encode(action); err != nil {
			return err
		}
		if err := enc.Encode(doc); err != nil {
			return err
		}
	}

	res, err := c.client.Bulk(bytes.NewReader(buf.Bytes()),
		c.client.Bulk.WithRefresh("true"),
		c.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk index %s: %s", c.name, res.String())
	}
	var out struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if out.Errors {
		return fmt.Errorf("bulk index %s: some documents failed", c.name)
	}
	return nil
}

// esMaxCandidates Elasticsearch 对 knn.num_candidates 的上限。
const esMaxCandidates = 10000

// vectorlessScore 未参与 kNN 的分块的得分，换算后距离为 1，与零向量的 cosine 距离一致。
const vectorlessScore = 0.5

// esQuery 构造检索请求。零查询向量时按固定得分返回任意分块；
// 否则 kNN 之外再召回没有向量的分块（嵌入失败时写入的）。
func esQuery(vector []float32, n int) map[string]any {
	k := min(n, esMaxCandidates)
	query := map[string]any{
		"_source": []string{"chunk_id", "content", "metadata"},
		"size":    k,
	}
	if isZero(vector) {
		query["query"] = map[string]any{
			"constant_score": map[string]any{
				"filter": map[string]any{"match_all": map[string]any{}},
				"boost":  vectorlessScore,
			},
		}
		return query
	}
	query["knn"] = map[string]any{
		"field":          "embedding",
		"query_vector":   vector,
		"k":              k,
		"num_candidates": min(max(k*10, 100), esMaxCandidates),
	}
	query["query"] = map[string]any{
		"constant_score": map[string]any{
			"filter": map[string]any{
				"bool": map[string]any{
					"must_not": map[string]any{"exists": map[string]any{"field": "embedding"}},
				},
			},
			"boost": vectorlessScore,
		},
	}
	return query
}

func (c *esCollection) Query(ctx context.Context, vector []float32, n int) ([]Hit, error) {
	if n <= 0 {
		return nil, nil
	}
	query := esQuery(vector, n)
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	res, err := c.client.Search(
		c.client.Search.WithIndex(c.name),
		c.client.Search.WithBody(bytes.NewReader(body)),
		c.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("knn search %s: %s", c.name, res.String())
	}

	var out struct {
		Hits struct {
			Hits []struct {
				Score  float64 `json:"_score"`
				Source esChunk `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	hits := make([]Hit, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		hits = append(hits, Hit{
			ID:       h.Source.ChunkID,
			Content:  h.Source.Content,
			Metadata: h.Source.Metadata,
			// cosine 得分为 (1+cos)/2
			Distance: 2 * (1 - h.Score),
		})
	}
	return topN(hits, n), nil
}

func (c *esCollection) Count(ctx context.Context) (int, error) {
	res, err := c.client.Count(c.client.Count.WithIndex(c.name), c.client.Count.WithContext(ctx))
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, fmt.Errorf("count %s: %s", c.name, res.String())
	}
	var out struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
