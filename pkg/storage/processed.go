package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"pizzeria-rag-go/internal/model"
)

// Processed 读写 processed/{id}_processed.json。
type Processed struct {
	store ObjectStore
}

// NewProcessed 基于任意对象存储。
func NewProcessed(store ObjectStore) *Processed {
	return &Processed{store: store}
}

func (p *Processed) Save(ctx context.Context, doc *model.ProcessedDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal processed document: %w", err)
	}
	return p.store.Put(ctx, ProcessedKey(doc.DocumentID), data, "application/json")
}

// Load 不存在时返回包裹 ErrObjectNotFound 的错误。
func (p *Processed) Load(ctx context.Context, documentID string) (*model.ProcessedDocument, error) {
	data, err := p.store.Get(ctx, ProcessedKey(documentID))
	if err != nil {
		return nil, err
	}
	var doc model.ProcessedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode processed document %s: %w", documentID, err)
	}
	return &doc, nil
}

func (p *Processed) Exists(ctx context.Context, documentID string) (bool, error) {
	return p.store.Exists(ctx, ProcessedKey(documentID))
}
