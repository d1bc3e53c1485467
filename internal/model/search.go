package model

// SearchResult 单次检索命中，仅在请求内存在。
type SearchResult struct {
	ID           string        `json:"id"`
	Content      string        `json:"content"`
	Metadata     ChunkMetadata `json:"metadata"`
	Distance     float64       `json:"distance"`
	DocumentName string        `json:"documentName"`
}

// SearchResponse 汇总后的检索结果。Failures 记录被跳过的集合及原因。
type SearchResponse struct {
	Query             string            `json:"query"`
	SearchedDocuments []string          `json:"searchedDocuments"`
	Results           []SearchResult    `json:"results"`
	Failures          map[string]string `json:"failures,omitempty"`
	Degraded          bool              `json:"degraded"`
}

// ContextGroup 一家公司的上下文片段，按距离顺序排列。
type ContextGroup struct {
	Company  string   `json:"company"`
	Snippets []string `json:"snippets"`
}

// ContextResult 检索聚合器的输出，分组保持首次出现的顺序。
type ContextResult struct {
	Groups               []ContextGroup    `json:"groups"`
	DocumentsUsed        []string          `json:"documentsUsed"`
	SearchedDocuments    []string          `json:"searchedDocuments"`
	HasMultipleCompanies bool              `json:"hasMultipleCompanies"`
	Failures             map[string]string `json:"failures,omitempty"`
	Degraded             bool              `json:"degraded"`
}

// TotalSnippets 所有分组的片段总数。
func (r *ContextResult) TotalSnippets() int {
	total := 0
	for _, g := range r.Groups {
		total += len(g.Snippets)
	}
	return total
}

// Companies 返回非空分组的公司名。
func (r *ContextResult) Companies() []string {
	names := make([]string, 0, len(r.Groups))
	for _, g := range r.Groups {
		if len(g.Snippets) > 0 {
			names = append(names, g.Company)
		}
	}
	return names
}

// HasContext 是否检索到任何片段。
func (r *ContextResult) HasContext() bool {
	return r.TotalSnippets() > 0
}

// AllergenInfo 公司名 → 检测到的过敏原（字母序）。
type AllergenInfo map[string][]string
