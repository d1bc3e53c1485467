// Package vectorstore 为每份文档维护一个独立的向量集合，并在集合之间做合并检索。
package vectorstore

import (
	"context"
	"errors"
	"math"

	"pizzeria-rag-go/internal/model"
)

var (
	// ErrCollectionNotFound 后端中不存在该集合（Open 使用）。
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrCollectionUnavailable 集合无法打开或创建，针对该文档的操作失败。
	ErrCollectionUnavailable = errors.New("collection unavailable")
	// ErrNothingToIndex 处理结果缺失或没有可切分的文本。
	ErrNothingToIndex = errors.New("nothing to index")
)

// CollectionMeta 随集合持久化的文档信息。
type CollectionMeta struct {
	DocumentID   string `json:"document_id"`
	Description  string `json:"description"`
	DocumentName string `json:"document_name"`
	Language     string `json:"language"`
	ContentType  string `json:"content_type"`
}

// Record 一条待写入的分块及其向量。
type Record struct {
	ID        string
	Content   string
	Metadata  model.ChunkMetadata
	Embedding []float32
}

// Hit 集合内的一条检索结果，Distance 越小越相似。
type Hit struct {
	ID       string
	Content  string
	Metadata model.ChunkMetadata
	Distance float64
}

// Collection 单个文档的向量集合。Upsert 以 ID 去重，重复写入覆盖旧值。
type Collection interface {
	Name() string
	Metadata() CollectionMeta
	Upsert(ctx context.Context, records []Record) error
	Query(ctx context.Context, vector []float32, n int) ([]Hit, error)
	Count(ctx context.Context) (int, error)
}

// Backend 集合的持久化实现。
type Backend interface {
	Name() string
	// Open 打开已存在的集合，不存在时返回 ErrCollectionNotFound。
	// 不支持持久化集合元数据的后端使用 meta 作为元数据。
	Open(ctx context.Context, name string, meta CollectionMeta) (Collection, error)
	Create(ctx context.Context, name string, meta CollectionMeta) (Collection, error)
	Drop(ctx context.Context, name string) error
	Close() error
}

// cosineDistance 1 − cos；任一向量为零时返回 1。
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
