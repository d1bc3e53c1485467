package model

// DocumentChunk 对应 document_chunks 表，保存结构化切分结果，便于排查与重建索引。
type DocumentChunk struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	DocumentID string    `gorm:"type:varchar(128);not null;index;column:document_id"`
	ChunkIndex int       `gorm:"not null;column:chunk_index"`
	ChunkType  ChunkType `gorm:"type:varchar(32);column:chunk_type"`
	Page       int       `gorm:"column:page"`
	Subject    string    `gorm:"type:varchar(128);column:subject"`
	Content    string    `gorm:"type:text;column:content"`
	WordCount  int       `gorm:"column:word_count"`
}

func (DocumentChunk) TableName() string {
	return "document_chunks"
}
