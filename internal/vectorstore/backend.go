package vectorstore

import (
	"fmt"
	"strings"

	"pizzeria-rag-go/internal/config"
	"pizzeria-rag-go/pkg/es"
)

// NewBackend 根据 vector_store.backend 创建后端。
func NewBackend(cfg *config.Config) (Backend, error) {
	dims := cfg.Embedding.Dimensions
	switch strings.ToLower(cfg.VectorStore.Backend) {
	case "memory":
		return NewMemoryBackend(), nil
	case "sqlite", "":
		return NewSQLiteBackend(cfg.SQLite.Path)
	case "elasticsearch", "es":
		client, err := es.NewClient(cfg.Elasticsearch)
		if err != nil {
			return nil, err
		}
		return NewElasticsearchBackend(client, dims), nil
	case "qdrant":
		return NewQdrantBackend(cfg.Qdrant, dims)
	default:
		return nil, fmt.Errorf("unsupported vector store backend %q", cfg.VectorStore.Backend)
	}
}
