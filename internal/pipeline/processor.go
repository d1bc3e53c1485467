// Package pipeline 定义了文档入库的核心流程。
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"pizzeria-rag-go/internal/allergen"
	"pizzeria-rag-go/internal/chunker"
	"pizzeria-rag-go/internal/model"
	"pizzeria-rag-go/internal/parser"
	"pizzeria-rag-go/internal/registry"
	"pizzeria-rag-go/internal/repository"
	"pizzeria-rag-go/internal/vectorstore"
	"pizzeria-rag-go/pkg/log"
	"pizzeria-rag-go/pkg/storage"
	"pizzeria-rag-go/pkg/tasks"
)

// Extractor 文本提取，由 extractor.Chain 实现。
type Extractor interface {
	Extract(ctx context.Context, fileName string, data []byte) (*model.Extraction, error)
}

// Indexer 向量索引，由 vectorstore.Store 实现。
type Indexer interface {
	Reset(ctx context.Context, documentID string) error
	AddDocument(ctx context.Context, documentID string) (vectorstore.AddReport, error)
}

// Deps Processor 的依赖。Chunks 为空时不写 MySQL。
type Deps struct {
	Registry   registry.Registry
	Objects    storage.ObjectStore
	Processed  *storage.Processed
	Extractor  Extractor
	Classifier *parser.Classifier
	Chunker    *chunker.Chunker
	Analyzer   *allergen.Analyzer
	Chunks     repository.DocumentChunkRepository
	Indexer    Indexer
}

// Processor 封装了文档处理的所有依赖和逻辑。
type Processor struct {
	Deps
	minQuality float64

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(deps Deps, minQuality float64) *Processor {
	if deps.Classifier == nil {
		deps.Classifier = parser.NewClassifier(nil)
	}
	if deps.Analyzer == nil {
		deps.Analyzer = allergen.NewAnalyzer(nil)
	}
	return &Processor{Deps: deps, minQuality: minQuality, locks: make(map[string]*sync.Mutex)}
}

func (p *Processor) lock(documentID string) func() {
	p.mu.Lock()
	l, ok := p.locks[documentID]
	if !ok {
		l = &sync.Mutex{}
		p.locks[documentID] = l
	}
	p.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Process 下载原始 PDF → 提取 → 分类 → 解析 → 质量评估 → 切分 → 保存处理结果 →
// 写入分块表 → 重建向量集合。同一文档的处理串行执行。
func (p *Processor) Process(ctx context.Context, task tasks.IngestTask) error {
	start := time.Now()
	info, err := p.Registry.Get(task.DocumentID)
	if err != nil {
		return err
	}
	unlock := p.lock(info.DocumentID)
	defer unlock()

	fileName := task.FileName
	if fileName == "" {
		fileName = info.PDFFile
	}
	if fileName == "" {
		fileName = info.DocumentID + ".pdf"
	}
	log.Infof("[Processor] 开始处理文档 %s, 文件: %s", info.DocumentID, fileName)

	// 1. 读取原始文件
	data, err := p.Objects.Get(ctx, storage.RawKey(fileName))
	if err != nil {
		return fmt.Errorf("读取原始文件 %s 失败: %w", fileName, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("文件 %s 内容为空", fileName)
	}
	log.Infof("[Processor] 步骤1: 文件读取成功, 大小 %d 字节", len(data))

	// 2. 提取文本
	extraction, err := p.Extractor.Extract(ctx, fileName, data)
	if err != nil {
		return fmt.Errorf("提取文档 %s 文本失败: %w", info.DocumentID, err)
	}
	log.Infof("[Processor] 步骤2: 文本提取成功 (%s), %d 页, %d 字符, 置信度 %.2f",
		extraction.Method, len(extraction.Pages), utf8.RuneCountInString(extraction.Text), extraction.Confidence)

	// 3. 分类、解析与切分
	doc := p.Build(info, fileName, extraction)
	if !doc.Quality.Acceptable {
		log.Warnf("[Processor] 文档 %s 质量偏低 (%.2f): %s", info.DocumentID, doc.Quality.Score, strings.Join(doc.Quality.Issues, "; "))
	}
	log.Infof("[Processor] 步骤3: 类型 %s (%.2f), %d 款披萨, %d 个结构化分块",
		doc.DocType, doc.ClassifierConfidence, len(doc.Pizzas), len(doc.Chunks))

	// 4. 保存处理结果
	if err := p.Processed.Save(ctx, doc); err != nil {
		return fmt.Errorf("保存处理结果失败: %w", err)
	}

	// 5. 分块写入数据库（先删后插）
	if p.Chunks != nil {
		if err := p.Chunks.ReplaceForDocument(info.DocumentID, chunkRows(doc)); err != nil {
			return fmt.Errorf("保存文档 %s 分块失败: %w", info.DocumentID, err)
		}
	}

	// 6. 重建向量集合
	if err := p.Indexer.Reset(ctx, info.DocumentID); err != nil {
		return fmt.Errorf("重置文档 %s 的集合失败: %w", info.DocumentID, err)
	}
	report, err := p.Indexer.AddDocument(ctx, info.DocumentID)
	if err != nil {
		return fmt.Errorf("索引文档 %s 失败: %w", info.DocumentID, err)
	}
	log.Infof("[Processor] 文档 %s 处理完成: 集合 %s, %d 个分块, %d 个嵌入失败, 耗时 %v",
		info.DocumentID, report.Collection, report.Chunks, report.EmbeddingFailures, time.Since(start))
	return nil
}

// Build 由提取结果生成处理记录，不做任何 I/O。
func (p *Processor) Build(info model.DocumentInfo, fileName string, extraction *model.Extraction) *model.ProcessedDocument {
	doc := &model.ProcessedDocument{
		DocumentID:       info.DocumentID,
		Source:           fileName,
		Language:         info.Language,
		ContentType:      info.ContentType,
		ExtractionMethod: extraction.Method,
		ProcessedAt:      model.LocalTime(time.Now()),
	}
	for _, page := range extraction.Pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		doc.Sections = append(doc.Sections, model.Section{
			Page:      page.Number,
			Content:   page.Text,
			WordCount: len(strings.Fields(page.Text)),
		})
	}
	if len(doc.Sections) == 0 && strings.TrimSpace(extraction.Text) != "" {
		doc.Sections = []model.Section{{Page: 1, Content: extraction.Text, WordCount: len(strings.Fields(extraction.Text))}}
	}

	text := doc.FullText()
	doc.DocType, doc.ClassifierConfidence = p.Classifier.Classify(text)
	doc.Allergens = parser.ParseAllergenMentions(p.Analyzer, text)
	doc.Nutrition = parser.ParseNutrition(text)

	structured := false
	switch doc.DocType {
	case model.DocTypeMenu:
		doc.Pizzas = parser.ParsePizzas(text)
		structured = len(doc.Pizzas) > 0
	case model.DocTypeRecipe:
		recipe := parser.ParseRecipe(text)
		doc.Recipe = &recipe
		structured = recipe.Ingredients != "" || recipe.Instructions != ""
	case model.DocTypeAllergen:
		structured = len(doc.Allergens) > 0
	case model.DocTypeNutrition:
		structured = doc.Nutrition != nil
	}
	doc.Quality = parser.Assess(text, doc.DocType, structured, p.minQuality)

	if p.Chunker != nil {
		doc.Chunks = p.Chunker.CreateChunks(chunker.Input{
			DocumentID:  info.DocumentID,
			ContentType: info.ContentType,
			Language:    info.Language,
			Text:        text,
			Pizzas:      doc.Pizzas,
			Allergens:   doc.Allergens,
			Recipe:      doc.Recipe,
		}, doc.DocType)
	}
	return doc
}

func chunkRows(doc *model.ProcessedDocument) []*model.DocumentChunk {
	rows := make([]*model.DocumentChunk, 0, len(doc.Chunks))
	for _, c := range doc.Chunks {
		rows = append(rows, &model.DocumentChunk{
			DocumentID: doc.DocumentID,
			ChunkIndex: c.Metadata.ChunkIndex,
			ChunkType:  c.Metadata.ChunkType,
			Page:       c.Metadata.PageOrSection,
			Subject:    c.Metadata.Subject,
			Content:    c.Content,
			WordCount:  c.Metadata.WordCount,
		})
	}
	return rows
}

// ProcessAll 按注册顺序处理全部文档，单个文档失败不影响其余文档。
func (p *Processor) ProcessAll(ctx context.Context) map[string]error {
	results := make(map[string]error)
	for _, id := range p.Registry.AllDocumentIDs() {
		if err := ctx.Err(); err != nil {
			results[id] = err
			continue
		}
		err := p.Process(ctx, tasks.IngestTask{DocumentID: id})
		if err != nil {
			log.Errorf("[Processor] 文档 %s 处理失败，已跳过: %v", id, err)
		}
		results[id] = err
	}
	return results
}

// Failed 返回失败的文档 ID（字母序）。
func Failed(results map[string]error) []string {
	var ids []string
	for id, err := range results {
		if err != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

var _ tasks.TaskProcessor = (*Processor)(nil)
