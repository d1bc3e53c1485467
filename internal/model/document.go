package model

import (
	"strings"
	"time"
	"unicode"
)

// DocumentInfo 对应 documents 表，一份菜单文档即一家餐厅。
type DocumentInfo struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	DocumentID  string    `gorm:"type:varchar(128);uniqueIndex;not null;column:document_id" json:"documentId"`
	Description string    `gorm:"type:varchar(255);column:description" json:"description"`
	Language    string    `gorm:"type:varchar(8);column:language" json:"language"`
	ContentType string    `gorm:"type:varchar(32);column:content_type" json:"contentType"`
	PDFFile     string    `gorm:"type:varchar(255);column:pdf_file" json:"pdfFile"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"-"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"-"`
}

func (DocumentInfo) TableName() string {
	return "documents"
}

// DisplayName 取描述中 " - " 之前的部分，没有描述时把 ID 转成标题形式。
func (d DocumentInfo) DisplayName() string {
	if d.Description != "" {
		name, _, _ := strings.Cut(d.Description, " - ")
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}
	return TitleCase(d.DocumentID)
}

// TitleCase 将 marco_fuso 转成 Marco Fuso。
func TitleCase(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool { return r == '_' || r == '-' || unicode.IsSpace(r) })
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// Section 处理结果中的一页文本。
type Section struct {
	Page      int    `json:"page"`
	Content   string `json:"content"`
	WordCount int    `json:"word_count"`
}

// Pizza 菜单中识别出的一款披萨。
type Pizza struct {
	Name  string  `json:"name"`
	Price float64 `json:"price,omitempty"`
}

// Recipe 菜谱类文档的结构化字段。
type Recipe struct {
	Title        string `json:"title"`
	Ingredients  string `json:"ingredients"`
	Instructions string `json:"instructions"`
}

// Nutrition 营养信息，单位为每份。
type Nutrition struct {
	Calories      float64 `json:"calories,omitempty"`
	Proteins      float64 `json:"proteins,omitempty"`
	Carbohydrates float64 `json:"carbohydrates,omitempty"`
	Fats          float64 `json:"fats,omitempty"`
	Fibers        float64 `json:"fibers,omitempty"`
}

// Quality 提取质量评估。
type Quality struct {
	Score      float64  `json:"score"`
	Acceptable bool     `json:"acceptable"`
	Issues     []string `json:"issues,omitempty"`
}

// ProcessedDocument 是入库流程写出的处理结果（processed/{id}_processed.json）。
type ProcessedDocument struct {
	DocumentID           string     `json:"document_id"`
	Source               string     `json:"source"`
	Language             string     `json:"language"`
	ContentType          string     `json:"content_type"`
	DocType              DocType    `json:"doc_type"`
	ClassifierConfidence float64    `json:"classifier_confidence"`
	ExtractionMethod     string     `json:"extraction_method"`
	Sections             []Section  `json:"sections"`
	Pizzas               []Pizza    `json:"pizzas,omitempty"`
	Allergens            []string   `json:"allergens,omitempty"`
	Recipe               *Recipe    `json:"recipe,omitempty"`
	Nutrition            *Nutrition `json:"nutrition,omitempty"`
	Quality              Quality    `json:"quality"`
	Chunks               []Chunk    `json:"chunks,omitempty"`
	ProcessedAt          LocalTime  `json:"processed_at"`
}

// FullText 拼接所有页面文本。
func (p *ProcessedDocument) FullText() string {
	parts := make([]string, 0, len(p.Sections))
	for _, s := range p.Sections {
		if strings.TrimSpace(s.Content) != "" {
			parts = append(parts, s.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// PageText 提取器返回的单页文本，页码从 1 开始。
type PageText struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Extraction 提取器的输出。
type Extraction struct {
	Text       string     `json:"text"`
	Pages      []PageText `json:"pages"`
	Tables     [][]string `json:"tables,omitempty"`
	Confidence float64    `json:"confidence"`
	Method     string     `json:"method"`
}
