package repository

import (
	"gorm.io/gorm"

	"pizzeria-rag-go/internal/model"
)

// DocumentChunkRepository 定义了对 document_chunks 表的数据操作接口。
type DocumentChunkRepository interface {
	// ReplaceForDocument 在一个事务中删除旧分块并写入新分块。
	ReplaceForDocument(documentID string, chunks []*model.DocumentChunk) error
	FindByDocumentID(documentID string) ([]*model.DocumentChunk, error)
	DeleteByDocumentID(documentID string) error
}

type documentChunkRepository struct {
	db *gorm.DB
}

// NewDocumentChunkRepository 创建一个新的 DocumentChunkRepository 实例。
func NewDocumentChunkRepository(db *gorm.DB) DocumentChunkRepository {
	return &documentChunkRepository{db: db}
}

func (r *documentChunkRepository) ReplaceForDocument(documentID string, chunks []*model.DocumentChunk) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&model.DocumentChunk{}).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		return tx.CreateInBatches(chunks, 100).Error // 每100条记录一批
	})
}

// FindByDocumentID 按分块序号返回文档的全部分块。
func (r *documentChunkRepository) FindByDocumentID(documentID string) ([]*model.DocumentChunk, error) {
	var chunks []*model.DocumentChunk
	err := r.db.Where("document_id = ?", documentID).Order("chunk_index").Find(&chunks).Error
	return chunks, err
}

func (r *documentChunkRepository) DeleteByDocumentID(documentID string) error {
	return r.db.Where("document_id = ?", documentID).Delete(&model.DocumentChunk{}).Error
}
