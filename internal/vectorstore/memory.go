package vectorstore

import (
	"context"
	"sort"
	"sync"
)

// memoryBackend 进程内实现，用于测试与临时运行。
type memoryBackend struct {
	mu          sync.Mutex
	collections map[string]*memoryCollection
}

// NewMemoryBackend 创建内存后端。
func NewMemoryBackend() Backend {
	return &memoryBackend{collections: make(map[string]*memoryCollection)}
}

func (b *memoryBackend) Name() string { return "memory" }

func (b *memoryBackend) Open(_ context.Context, name string, _ CollectionMeta) (Collection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.collections[name]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	return c, nil
}

func (b *memoryBackend) Create(_ context.Context, name string, meta CollectionMeta) (Collection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.collections[name]; ok {
		return c, nil
	}
	c := &memoryCollection{name: name, meta: meta, index: make(map[string]int)}
	b.collections[name] = c
	return c, nil
}

func (b *memoryBackend) Drop(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.collections, name)
	return nil
}

func (b *memoryBackend) Close() error { return nil }

type memoryCollection struct {
	name    string
	meta    CollectionMeta
	mu      sync.RWMutex
	records []Record
	index   map[string]int
}

func (c *memoryCollection) Name() string             { return c.name }
func (c *memoryCollection) Metadata() CollectionMeta { return c.meta }

func (c *memoryCollection) Upsert(_ context.Context, records []Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range records {
		if i, ok := c.index[r.ID]; ok {
			c.records[i] = r
			continue
		}
		c.index[r.ID] = len(c.records)
		c.records = append(c.records, r)
	}
	return nil
}

func (c *memoryCollection) Query(_ context.Context, vector []float32, n int) ([]Hit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	hits := make([]Hit, 0, len(c.records))
	for _, r := range c.records {
		hits = append(hits, Hit{ID: r.ID, Content: r.Content, Metadata: r.Metadata, Distance: cosineDistance(vector, r.Embedding)})
	}
	return topN(hits, n), nil
}

func (c *memoryCollection) Count(context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records), nil
}

// topN 按距离稳定排序后截断。
func topN(hits []Hit, n int) []Hit {
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if n >= 0 && len(hits) > n {
		hits = hits[:n]
	}
	return hits
}
