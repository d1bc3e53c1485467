package model

// AskRequest 问答请求。DocumentIDs 为空时检索全部文档；UserAllergens 为 nil 时从问题中提取。
type AskRequest struct {
	Question      string   `json:"question" binding:"required"`
	DocumentIDs   []string `json:"documentIds"`
	UserAllergens []string `json:"userAllergens"`
	SessionID     string   `json:"sessionId"`
}

// AnswerResult 问答结果。Degraded 表示语言模型不可用，回答来自离线模板。
type AnswerResult struct {
	Status               string         `json:"status"`
	Question             string         `json:"question"`
	Answer               string         `json:"answer"`
	Degraded             bool           `json:"degraded"`
	ContextUsed          []ContextGroup `json:"contextUsed"`
	HasContext           bool           `json:"hasContext"`
	SearchedDocuments    []string       `json:"searchedDocuments"`
	DetectedDocument     string         `json:"detectedDocument,omitempty"`
	HasMultipleCompanies bool           `json:"hasMultipleCompanies"`
	CompaniesFound       []string       `json:"companiesFound"`
	AllergenInfo         AllergenInfo   `json:"allergenInfo"`
	UserAllergens        []string       `json:"userAllergens"`
	SessionID            string         `json:"sessionId,omitempty"`
}

// CollectionStats 单个集合的统计，出错时 Error 非空且计数为 0。
type CollectionStats struct {
	CollectionName string `json:"collectionName"`
	DocumentCount  int    `json:"documentCount"`
	Error          string `json:"error,omitempty"`
}

// StoreStats 向量库整体统计。
type StoreStats struct {
	Backend          string                     `json:"backend"`
	TotalCollections int                        `json:"totalCollections"`
	TotalDocuments   int                        `json:"totalDocuments"`
	Collections      map[string]CollectionStats `json:"collections"`
}

// DocumentPresence 文档的原始 PDF 与处理结果是否存在。
type DocumentPresence struct {
	PDFExists       bool   `json:"pdfExists"`
	ProcessedExists bool   `json:"processedExists"`
	Description     string `json:"description"`
}

// SystemStatus 系统状态。
type SystemStatus struct {
	ModelReachable      bool                        `json:"modelReachable"`
	EmbeddingsReachable bool                        `json:"embeddingsReachable"`
	CollectionStats     StoreStats                  `json:"collectionStats"`
	Documents           map[string]DocumentPresence `json:"documents"`
}
