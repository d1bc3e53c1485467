package repository

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pizzeria-rag-go/internal/model"
)

// DocumentRepository 定义了对 documents 表的数据操作接口。
type DocumentRepository interface {
	Upsert(doc *model.DocumentInfo) error
	FindAll() ([]model.DocumentInfo, error)
	// FindByDocumentID 不存在时返回 (nil, nil)。
	FindByDocumentID(documentID string) (*model.DocumentInfo, error)
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建一个新的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// Upsert 以 document_id 为唯一键插入或更新。
func (r *documentRepository) Upsert(doc *model.DocumentInfo) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "document_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"description", "language", "content_type", "pdf_file", "updated_at"}),
	}).Create(doc).Error
}

// FindAll 按创建顺序返回。
func (r *documentRepository) FindAll() ([]model.DocumentInfo, error) {
	var docs []model.DocumentInfo
	err := r.db.Order("id").Find(&docs).Error
	return docs, err
}

func (r *documentRepository) FindByDocumentID(documentID string) (*model.DocumentInfo, error) {
	var doc model.DocumentInfo
	err := r.db.Where("document_id = ?", documentID).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
