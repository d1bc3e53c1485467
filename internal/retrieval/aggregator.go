// Package retrieval 把跨文档的检索结果按公司分组，并保证多家公司都有机会出现。
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"pizzeria-rag-go/internal/config"
	"pizzeria-rag-go/internal/model"
	"pizzeria-rag-go/internal/registry"
	"pizzeria-rag-go/pkg/log"
)

// Searcher 向量检索接口，由 vectorstore.Store 实现。
type Searcher interface {
	Search(ctx context.Context, query string, documentIDs []string, n int) (*model.SearchResponse, error)
}

// DiversityPolicy 未指定文档时每家公司最多 max(MinPerCompany, maxChunks/Divisor) 条，
// 并向向量库多取 OverFetch 倍的结果。
type DiversityPolicy struct {
	MinPerCompany int
	Divisor       int
	OverFetch     int
}

// Aggregator 检索聚合器。
type Aggregator struct {
	searcher  Searcher
	registry  registry.Registry
	policy    DiversityPolicy
	maxChunks int
}

// New 零值参数取默认值 5 / 2 / 2 / 2。
func New(searcher Searcher, reg registry.Registry, cfg config.RetrievalConfig) *Aggregator {
	p := DiversityPolicy{MinPerCompany: cfg.MinPerCompany, Divisor: cfg.CapDivisor, OverFetch: cfg.OverFetchFactor}
	if p.MinPerCompany <= 0 {
		p.MinPerCompany = 2
	}
	if p.Divisor <= 0 {
		p.Divisor = 2
	}
	if p.OverFetch <= 0 {
		p.OverFetch = 2
	}
	maxChunks := cfg.MaxChunks
	if maxChunks <= 0 {
		maxChunks = 5
	}
	return &Aggregator{searcher: searcher, registry: reg, policy: p, maxChunks: maxChunks}
}

// DefaultMaxChunks 未显式传入时使用的片段上限。
func (a *Aggregator) DefaultMaxChunks() int {
	return a.maxChunks
}

// PerCompanyCap 指定了文档时只可能出现一家公司，给满额度。
func (a *Aggregator) PerCompanyCap(maxChunks int, targeted bool) int {
	if targeted {
		return maxChunks
	}
	return max(a.policy.MinPerCompany, maxChunks/a.policy.Divisor)
}

// GetContext 检索并按公司分组。结果已按距离排好序，先到先得：
// 超出单公司上限的结果直接丢弃（不补位），总数达到 maxChunks 即停止。
func (a *Aggregator) GetContext(ctx context.Context, query string, documentIDs []string, maxChunks int) (*model.ContextResult, error) {
	if maxChunks <= 0 {
		maxChunks = a.maxChunks
	}
	targeted := len(documentIDs) > 0
	limit := maxChunks
	if !targeted {
		limit = maxChunks * a.policy.OverFetch
	}

	resp, err := a.searcher.Search(ctx, query, documentIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("search context: %w", err)
	}

	perCompanyCap := a.PerCompanyCap(maxChunks, targeted)
	result := &model.ContextResult{
		Groups:            []model.ContextGroup{},
		DocumentsUsed:     []string{},
		SearchedDocuments: resp.SearchedDocuments,
		Failures:          resp.Failures,
		Degraded:          resp.Degraded,
	}
	groupIndex := make(map[string]int)
	seenDocs := make(map[string]bool)
	total := 0

	for _, hit := range resp.Results {
		docID := hit.Metadata.SourceDocument
		if !seenDocs[docID] {
			seenDocs[docID] = true
			result.DocumentsUsed = append(result.DocumentsUsed, docID)
		}

		company := hit.DocumentName
		if company == "" {
			company = a.registry.DisplayName(docID)
		}
		idx, ok := groupIndex[company]
		if !ok {
			idx = len(result.Groups)
			groupIndex[company] = idx
			result.Groups = append(result.Groups, model.ContextGroup{Company: company})
		}
		if len(result.Groups[idx].Snippets) >= perCompanyCap {
			continue
		}
		result.Groups[idx].Snippets = append(result.Groups[idx].Snippets, fmt.Sprintf("[Page %d] %s", hit.Metadata.PageOrSection, hit.Content))
		total++
		if total >= maxChunks {
			break
		}
	}

	result.HasMultipleCompanies = len(result.Companies()) > 1
	log.Debugf("[Retrieval] 查询 %q: %d 个片段, 公司 %v", query, total, result.Companies())
	return result, nil
}

// DetectCompany 只在出现明确搭配时识别公司（如 "chez X"、"pizzeria X"、"X propose"），
// 或名称中超过 4 个字符的词紧挨着餐厅类指示词。按注册顺序返回第一个匹配的文档 ID。
func (a *Aggregator) DetectCompany(query string) string {
	q := strings.ToLower(query)
	for _, doc := range a.registry.List() {
		company := strings.ToLower(doc.DisplayName())
		if company == "" {
			continue
		}
		explicit := []string{
			"chez " + company,
			"à " + company,
			company + " a-t-il",
			company + " avez-vous",
			company + " propose",
			"restaurant " + company,
			"pizzeria " + company,
		}
		for _, p := range explicit {
			if strings.Contains(q, p) {
				return doc.DocumentID
			}
		}
		for _, part := range strings.Fields(company) {
			if len([]rune(part)) <= 4 {
				continue
			}
			indicators := []string{part + " pizza", part + " restaurant", "chez " + part, "pizzeria " + part}
			for _, p := range indicators {
				if strings.Contains(q, p) {
					return doc.DocumentID
				}
			}
		}
	}
	return ""
}
