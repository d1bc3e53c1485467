package chunker

import (
	"strings"

	"pizzeria-rag-go/internal/config"
	"pizzeria-rag-go/internal/model"
)

const (
	allergenExcerptRunes  = 500
	allergenFullTextRunes = 1000
	recipeFullTextRunes   = 1000
	defaultRecipeTitle    = "Recette"
)

// Input 一份已解析文档的结构化内容。
type Input struct {
	DocumentID  string
	ContentType string
	Language    string
	Text        string
	Pizzas      []model.Pizza
	Allergens   []string
	Recipe      *model.Recipe
}

// piece 策略产出的原始分块，元数据由 Chunker 统一补齐。
type piece struct {
	content string
	kind    model.ChunkType
	subject string
}

type strategy interface {
	split(in Input) []piece
}

// Chunker 按文档类型选择切分策略。
type Chunker struct {
	cfg        config.ChunkerConfig
	strategies map[model.DocType]strategy
	generic    strategy
}

// New 创建 Chunker。
func New(cfg config.ChunkerConfig) *Chunker {
	if cfg.MenuContextRunes <= 0 {
		cfg.MenuContextRunes = 200
	}
	generic := genericStrategy{size: cfg.ChunkSize, overlap: cfg.ChunkOverlap}
	return &Chunker{
		cfg:     cfg,
		generic: generic,
		strategies: map[model.DocType]strategy{
			model.DocTypeAllergen: allergenStrategy{},
			model.DocTypeRecipe:   recipeStrategy{},
			model.DocTypeMenu:     menuStrategy{contextRunes: cfg.MenuContextRunes, fallback: generic},
		},
	}
}

// CreateChunks 空文本返回空列表。
func (c *Chunker) CreateChunks(in Input, docType model.DocType) []model.Chunk {
	if strings.TrimSpace(in.Text) == "" {
		return nil
	}
	s, ok := c.strategies[docType]
	if !ok {
		s = c.generic
	}

	pieces := s.split(in)
	chunks := make([]model.Chunk, 0, len(pieces))
	for _, p := range pieces {
		if strings.TrimSpace(p.content) == "" {
			continue
		}
		idx := len(chunks)
		chunks = append(chunks, model.Chunk{
			ID:      StructuredChunkID(in.DocumentID, idx),
			Content: p.content,
			Metadata: model.ChunkMetadata{
				SourceDocument: in.DocumentID,
				ChunkIndex:     idx,
				WordCount:      len(strings.Fields(p.content)),
				ContentType:    in.ContentType,
				ChunkType:      p.kind,
				Language:       in.Language,
				Subject:        p.subject,
			},
		})
	}
	return chunks
}

type genericStrategy struct {
	size, overlap int
}

func (g genericStrategy) split(in Input) []piece {
	windows := WordWindow(in.Text, g.size, g.overlap)
	pieces := make([]piece, len(windows))
	for i, w := range windows {
		pieces[i] = piece{content: w, kind: model.ChunkTypeGeneric}
	}
	return pieces
}

// allergenStrategy 每个过敏原一块：名称 + 文档开头摘录。
// 未识别出过敏原时只保留开头 1000 字符作为一块。
type allergenStrategy struct{}

func (allergenStrategy) split(in Input) []piece {
	if len(in.Allergens) == 0 {
		return []piece{{content: truncateRunes(in.Text, allergenFullTextRunes), kind: model.ChunkTypeAllergenText}}
	}
	excerpt := truncateRunes(in.Text, allergenExcerptRunes)
	pieces := make([]piece, 0, len(in.Allergens))
	for _, name := range in.Allergens {
		pieces = append(pieces, piece{
			content: "Allergène: " + name + ". " + excerpt,
			kind:    model.ChunkTypeAllergen,
			subject: name,
		})
	}
	return pieces
}

// recipeStrategy 配料、步骤、全文各一块，空的部分跳过。
type recipeStrategy struct{}

func (recipeStrategy) split(in Input) []piece {
	var pieces []piece
	title := defaultRecipeTitle
	if in.Recipe != nil {
		if t := strings.TrimSpace(in.Recipe.Title); t != "" {
			title = t
		}
		if ing := strings.TrimSpace(in.Recipe.Ingredients); ing != "" {
			pieces = append(pieces, piece{content: "Ingrédients: " + ing, kind: model.ChunkTypeIngredients, subject: title})
		}
		if ins := strings.TrimSpace(in.Recipe.Instructions); ins != "" {
			pieces = append(pieces, piece{content: "Instructions: " + ins, kind: model.ChunkTypeInstructions, subject: title})
		}
	}
	pieces = append(pieces, piece{content: truncateRunes(title+". "+in.Text, recipeFullTextRunes), kind: model.ChunkTypeRecipe, subject: title})
	return pieces
}

// menuStrategy 每款披萨一块：名称 + 首次出现位置前后的原文。
type menuStrategy struct {
	contextRunes int
	fallback     strategy
}

func (m menuStrategy) split(in Input) []piece {
	if len(in.Pizzas) == 0 {
		return m.fallback.split(in)
	}
	runes := []rune(in.Text)
	lower := []rune(strings.ToLower(in.Text))
	if len(lower) != len(runes) {
		runes = lower
	}

	pieces := make([]piece, 0, len(in.Pizzas))
	for _, p := range in.Pizzas {
		content := "Pizza: " + p.Name + ". "
		if i := indexRunes(lower, []rune(strings.ToLower(p.Name))); i >= 0 {
			start := max(0, i-m.contextRunes)
			end := min(len(runes), i+len([]rune(p.Name))+m.contextRunes)
			content += strings.TrimSpace(string(runes[start:end]))
		}
		pieces = append(pieces, piece{content: content, kind: model.ChunkTypePizza, subject: p.Name})
	}
	return pieces
}

func indexRunes(haystack, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j := range needle {
			if haystack[i+j] != needle[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
