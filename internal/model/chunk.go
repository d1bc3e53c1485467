package model

// DocType 文档分类结果，决定结构化切分策略。
type DocType string

const (
	DocTypeMenu      DocType = "menu"
	DocTypeAllergen  DocType = "allergen"
	DocTypeRecipe    DocType = "recipe"
	DocTypeNutrition DocType = "nutrition"
	DocTypeGeneric   DocType = "generic"
)

// ChunkType 标记分块的来源策略。
type ChunkType string

const (
	ChunkTypePage         ChunkType = "page"
	ChunkTypeGeneric      ChunkType = "generic"
	ChunkTypeAllergen     ChunkType = "allergen"
	ChunkTypeAllergenText ChunkType = "allergen_general"
	ChunkTypeIngredients  ChunkType = "ingredients"
	ChunkTypeInstructions ChunkType = "instructions"
	ChunkTypeRecipe       ChunkType = "full_recipe"
	ChunkTypePizza        ChunkType = "pizza"
)

// ChunkMetadata 随分块一起写入向量库。
type ChunkMetadata struct {
	SourceDocument string    `json:"source_document"`
	PageOrSection  int       `json:"page_or_section"`
	ChunkIndex     int       `json:"chunk_index"`
	WordCount      int       `json:"word_count"`
	ContentType    string    `json:"content_type"`
	ChunkType      ChunkType `json:"chunk_type"`
	Language       string    `json:"language,omitempty"`
	Subject        string    `json:"subject,omitempty"`
}

// Chunk 是检索的最小单元，创建后不可修改。
type Chunk struct {
	ID       string        `json:"id,omitempty"`
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
}
