package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"pizzeria-rag-go/internal/chunker"
	"pizzeria-rag-go/internal/config"
	"pizzeria-rag-go/internal/model"
	"pizzeria-rag-go/internal/registry"
	"pizzeria-rag-go/pkg/embedding"
	"pizzeria-rag-go/pkg/log"
	"pizzeria-rag-go/pkg/storage"
)

// ProcessedSource 提供入库流程写出的处理结果。
type ProcessedSource interface {
	Load(ctx context.Context, documentID string) (*model.ProcessedDocument, error)
}

// AddReport 一次 AddDocument 的统计。
type AddReport struct {
	DocumentID        string        `json:"documentId"`
	Collection        string        `json:"collection"`
	Chunks            int           `json:"chunks"`
	EmbeddingFailures int           `json:"embeddingFailures"`
	Duration          time.Duration `json:"duration"`
}

// Store 管理每份文档的集合：按需打开或创建、写入、跨集合检索。
// 同一文档的并发写入需由调用方串行化。
type Store struct {
	cfg       config.VectorStoreConfig
	dims      int
	backend   Backend
	embedder  embedding.Client
	registry  registry.Registry
	processed ProcessedSource

	mu          sync.Mutex
	collections map[string]Collection
}

// NewStore dims 为嵌入失败时零向量的长度。
func NewStore(cfg config.VectorStoreConfig, dims int, backend Backend, embedder embedding.Client, reg registry.Registry, processed ProcessedSource) *Store {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.CollectionPrefix == "" {
		cfg.CollectionPrefix = "pizzeria"
	}
	return &Store{
		cfg:         cfg,
		dims:        dims,
		backend:     backend,
		embedder:    embedder,
		registry:    reg,
		processed:   processed,
		collections: make(map[string]Collection),
	}
}

// BackendName 当前后端名称。
func (s *Store) BackendName() string {
	return s.backend.Name()
}

// CollectionName 由前缀与文档 ID 确定，全小写。
func (s *Store) CollectionName(documentID string) string {
	return strings.ToLower(s.cfg.CollectionPrefix + "_" + documentID)
}

func (s *Store) collectionMeta(info model.DocumentInfo) CollectionMeta {
	return CollectionMeta{
		DocumentID:   info.DocumentID,
		Description:  info.Description,
		DocumentName: info.DisplayName(),
		Language:     info.Language,
		ContentType:  info.ContentType,
	}
}

// GetOrCreateCollection 幂等：本进程已打开的直接返回；否则先打开已持久化的集合，
// 不存在时才创建。创建失败返回包裹 ErrCollectionUnavailable 的错误。
func (s *Store) GetOrCreateCollection(ctx context.Context, documentID string) (Collection, error) {
	info, err := s.registry.Get(documentID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[documentID]; ok {
		return c, nil
	}

	name := s.CollectionName(documentID)
	meta := s.collectionMeta(info)
	c, err := s.backend.Open(ctx, name, meta)
	if errors.Is(err, ErrCollectionNotFound) {
		log.Infof("[VectorStore] 集合 %s 不存在，正在创建", name)
		c, err = s.backend.Create(ctx, name, meta)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", name, ErrCollectionUnavailable, err)
	}
	s.collections[documentID] = c
	return c, nil
}

// openExisting 只打开不创建，集合不存在时返回 (nil, nil)。
func (s *Store) openExisting(ctx context.Context, documentID string) (Collection, error) {
	info, err := s.registry.Get(documentID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[documentID]; ok {
		return c, nil
	}
	c, err := s.backend.Open(ctx, s.CollectionName(documentID), s.collectionMeta(info))
	if errors.Is(err, ErrCollectionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.collections[documentID] = c
	return c, nil
}

// AddDocument 加载处理结果，按页切分、嵌入并分批写入文档的集合。
// 单个分块嵌入失败时写入零向量并计入报告，不中断整个文档。
func (s *Store) AddDocument(ctx context.Context, documentID string) (AddReport, error) {
	start := time.Now()
	report := AddReport{DocumentID: documentID, Collection: s.CollectionName(documentID)}

	info, err := s.registry.Get(documentID)
	if err != nil {
		return report, err
	}
	doc, err := s.processed.Load(ctx, documentID)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return report, fmt.Errorf("%s: no processed record: %w", documentID, ErrNothingToIndex)
	}
	if err != nil {
		return report, fmt.Errorf("load processed record %s: %w", documentID, err)
	}

	meta := chunker.PageMeta{
		DocumentID:  documentID,
		ContentType: firstNonEmpty(doc.ContentType, info.ContentType),
		Language:    firstNonEmpty(doc.Language, info.Language),
	}
	chunks := chunker.PageChunks(meta, doc.Sections, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if s.cfg.IndexStructuredChunks {
		chunks = append(chunks, doc.Chunks...)
	}
	if len(chunks) == 0 {
		return report, fmt.Errorf("%s: empty sections: %w", documentID, ErrNothingToIndex)
	}

	col, err := s.GetOrCreateCollection(ctx, documentID)
	if err != nil {
		return report, err
	}

	batch := make([]Record, 0, s.cfg.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := col.Upsert(ctx, batch); err != nil {
			return fmt.Errorf("write %d chunks to %s: %w", len(batch), col.Name(), err)
		}
		batch = batch[:0]
		return nil
	}
	for _, ch := range chunks {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		vec, err := s.embedder.CreateEmbedding(ctx, ch.Content)
		if err != nil {
			log.Warnf("[VectorStore] 分块 %s 嵌入失败，使用零向量: %v", ch.ID, err)
			vec = make([]float32, s.dims)
			report.EmbeddingFailures++
		}
		batch = append(batch, Record{ID: ch.ID, Content: ch.Content, Metadata: ch.Metadata, Embedding: vec})
		if len(batch) >= s.cfg.BatchSize {
			if err := flush(); err != nil {
				return report, err
			}
		}
	}
	if err := flush(); err != nil {
		return report, err
	}

	report.Chunks = len(chunks)
	report.Duration = time.Since(start)
	log.Infof("[VectorStore] 文档 %s 写入 %d 个分块 (嵌入失败 %d), 耗时 %s", documentID, report.Chunks, report.EmbeddingFailures, report.Duration)
	return report, nil
}

// AddAllDocuments 依次写入所有已注册文档，单个文档失败不影响其他文档。
func (s *Store) AddAllDocuments(ctx context.Context) map[string]error {
	results := make(map[string]error)
	for _, id := range s.registry.AllDocumentIDs() {
		_, err := s.AddDocument(ctx, id)
		if err != nil {
			log.Errorf("[VectorStore] 文档 %s 写入失败: %v", id, err)
		}
		results[id] = err
	}
	return results
}

// Search 查询只嵌入一次，然后并发检索各集合（每个集合最多 n 条），
// 按距离合并（距离相同时按注册顺序），截断为 n 条。
// 单个集合失败只记录在 Failures 中；显式指定了未注册的文档时返回错误。
func (s *Store) Search(ctx context.Context, query string, documentIDs []string, n int) (*model.SearchResponse, error) {
	targets := documentIDs
	if len(targets) == 0 {
		targets = s.registry.AllDocumentIDs()
	} else {
		for _, id := range targets {
			if _, err := s.registry.Get(id); err != nil {
				return nil, err
			}
		}
	}
	resp := &model.SearchResponse{Query: query, SearchedDocuments: targets, Results: []model.SearchResult{}}
	if n <= 0 || len(targets) == 0 {
		return resp, nil
	}

	vec, err := s.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		log.Warnf("[VectorStore] 查询嵌入失败，使用零向量: %v", err)
		vec = make([]float32, s.dims)
		resp.Degraded = true
	}

	perDoc := make([][]Hit, len(targets))
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, id := range targets {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			col, err := s.GetOrCreateCollection(ctx, id)
			if err != nil {
				errs[i] = err
				return
			}
			perDoc[i], errs[i] = col.Query(ctx, vec, n)
		}(i, id)
	}
	wg.Wait()

	for i, id := range targets {
		if errs[i] != nil {
			log.Warnf("[VectorStore] 检索集合 %s 失败，已跳过: %v", id, errs[i])
			if resp.Failures == nil {
				resp.Failures = make(map[string]string)
			}
			resp.Failures[id] = errs[i].Error()
			continue
		}
		name := s.registry.DisplayName(id)
		for _, h := range perDoc[i] {
			h.Metadata.SourceDocument = id
			resp.Results = append(resp.Results, model.SearchResult{
				ID:           h.ID,
				Content:      h.Content,
				Metadata:     h.Metadata,
				Distance:     h.Distance,
				DocumentName: name,
			})
		}
	}

	sort.SliceStable(resp.Results, func(i, j int) bool { return resp.Results[i].Distance < resp.Results[j].Distance })
	if len(resp.Results) > n {
		resp.Results = resp.Results[:n]
	}
	return resp, nil
}

// Stats 各集合分块数与总计；不返回错误，单个集合的问题记录在对应条目中。
func (s *Store) Stats(ctx context.Context) model.StoreStats {
	stats := model.StoreStats{Backend: s.backend.Name(), Collections: make(map[string]model.CollectionStats)}
	for _, id := range s.registry.AllDocumentIDs() {
		entry := model.CollectionStats{CollectionName: s.CollectionName(id)}
		col, err := s.openExisting(ctx, id)
		switch {
		case err != nil:
			entry.Error = err.Error()
		case col == nil:
			entry.Error = "not indexed"
		default:
			count, err := col.Count(ctx)
			if err != nil {
				entry.Error = err.Error()
			} else {
				entry.DocumentCount = count
				stats.TotalCollections++
				stats.TotalDocuments += count
			}
		}
		stats.Collections[id] = entry
	}
	return stats
}

// Reset 删除文档的集合，供重建索引使用。
func (s *Store) Reset(ctx context.Context, documentID string) error {
	if _, err := s.registry.Get(documentID); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.collections, documentID)
	s.mu.Unlock()
	if err := s.backend.Drop(ctx, s.CollectionName(documentID)); err != nil {
		return fmt.Errorf("drop collection %s: %w", s.CollectionName(documentID), err)
	}
	return nil
}

// Close 关闭后端连接。
func (s *Store) Close() error {
	return s.backend.Close()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
