// Package tools 提供一组固定的检索能力，每种能力对应一类菜单问题。
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pizzeria-rag-go/internal/allergen"
	"pizzeria-rag-go/internal/config"
	"pizzeria-rag-go/internal/model"
	"pizzeria-rag-go/pkg/log"
)

// ErrUnknownTool 能力名称不在固定集合内。
var ErrUnknownTool = errors.New("unknown tool")

const (
	PizzaSearch      = "pizza_search"
	AllergenCheck    = "allergen_check"
	IngredientLookup = "ingredient_lookup"
	NutritionInfo    = "nutrition_info"
)

const safetyFallback = "⚠️ IMPORTANT: Je ne peux pas confirmer ces informations allergéniques " +
	"avec une certitude suffisante. Pour votre sécurité, veuillez contacter " +
	"directement le restaurant pour confirmer les allergènes. " +
	"La sécurité alimentaire est notre priorité absolue."

const safetyDisclaimer = "⚠️ IMPORTANT: Ces informations proviennent de notre base documentaire. " +
	"En cas d'allergie sévère ou de doute, contactez directement le restaurant " +
	"pour confirmation. Votre sécurité est notre priorité."

// Names 固定的能力集合，按展示顺序。
func Names() []string {
	return []string{PizzaSearch, AllergenCheck, IngredientLookup, NutritionInfo}
}

// Searcher 向量检索接口，由 vectorstore.Store 实现。
type Searcher interface {
	Search(ctx context.Context, query string, documentIDs []string, n int) (*model.SearchResponse, error)
}

// Result 一次能力调用的结果。Text 为面向用户的法语回复。
type Result struct {
	Tool      string               `json:"tool"`
	Query     string               `json:"query"`
	Text      string               `json:"text"`
	Hits      []model.SearchResult `json:"hits"`
	Allergens []string             `json:"allergens,omitempty"`
	Degraded  bool                 `json:"degraded"`
}

// Capability 单个检索能力。
type Capability interface {
	Name() string
	Description() string
	Search(ctx context.Context, query string) (*Result, error)
}

// Toolset 按名称分派到固定的能力实现。
type Toolset struct {
	searcher Searcher
	analyzer *allergen.Analyzer
	cfg      config.ToolsConfig
}

// NewToolset k 为 0 时取 5 / 3 / 4 / 3。
func NewToolset(searcher Searcher, analyzer *allergen.Analyzer, cfg config.ToolsConfig) *Toolset {
	if analyzer == nil {
		analyzer = allergen.NewAnalyzer(nil)
	}
	cfg.PizzaSearchK = orDefault(cfg.PizzaSearchK, 5)
	cfg.AllergenCheckK = orDefault(cfg.AllergenCheckK, 3)
	cfg.IngredientLookupK = orDefault(cfg.IngredientLookupK, 4)
	cfg.NutritionInfoK = orDefault(cfg.NutritionInfoK, 3)
	return &Toolset{searcher: searcher, analyzer: analyzer, cfg: cfg}
}

// Get 未知名称返回 ErrUnknownTool。
func (t *Toolset) Get(name string) (Capability, error) {
	switch name {
	case PizzaSearch:
		return &pizzaSearch{searcher: t.searcher, k: t.cfg.PizzaSearchK}, nil
	case AllergenCheck:
		return &allergenCheck{searcher: t.searcher, analyzer: t.analyzer, k: t.cfg.AllergenCheckK}, nil
	case IngredientLookup:
		return &ingredientLookup{searcher: t.searcher, k: t.cfg.IngredientLookupK}, nil
	case NutritionInfo:
		return &nutritionInfo{searcher: t.searcher, k: t.cfg.NutritionInfoK}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
}

// All 按 Names 顺序返回全部能力。
func (t *Toolset) All() []Capability {
	out := make([]Capability, 0, len(Names()))
	for _, name := range Names() {
		c, _ := t.Get(name)
		out = append(out, c)
	}
	return out
}

// Run 按名称执行一次检索。
func (t *Toolset) Run(ctx context.Context, name, query string) (*Result, error) {
	c, err := t.Get(name)
	if err != nil {
		return nil, err
	}
	return c.Search(ctx, query)
}

func search(ctx context.Context, s Searcher, tool, query string, k int) (*Result, error) {
	resp, err := s.Search(ctx, query, nil, k)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tool, err)
	}
	return &Result{Tool: tool, Query: query, Hits: resp.Results, Degraded: resp.Degraded}, nil
}

// formatHits 每条内容后附来源，条目间空一行。
func formatHits(hits []model.SearchResult) string {
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		content := h.Content
		if h.DocumentName != "" {
			content += "\n(Source: " + h.DocumentName + ")"
		}
		parts = append(parts, content)
	}
	return strings.Join(parts, "\n\n")
}

type pizzaSearch struct {
	searcher Searcher
	k        int
}

func (*pizzaSearch) Name() string { return PizzaSearch }

func (*pizzaSearch) Description() string {
	return "Recherche des pizzas: noms, descriptions, prix et informations générales du menu."
}

func (p *pizzaSearch) Search(ctx context.Context, query string) (*Result, error) {
	res, err := search(ctx, p.searcher, PizzaSearch, query, p.k)
	if err != nil {
		return nil, err
	}
	if len(res.Hits) == 0 {
		res.Text = "Je n'ai pas trouvé d'information sur cette pizza. Pouvez-vous préciser votre demande?"
		return res, nil
	}
	var b strings.Builder
	b.WriteString("🍕 Voici les informations sur nos pizzas:\n\n")
	for i, h := range res.Hits {
		fmt.Fprintf(&b, "%d. %s\n", i+1, h.Content)
		if h.DocumentName != "" {
			fmt.Fprintf(&b, "   (Source: %s)\n", h.DocumentName)
		}
		b.WriteString("\n")
	}
	res.Text = b.String()
	return res, nil
}

// allergenCheck 检索失败或无结果时返回安全提示而不是错误。
type allergenCheck struct {
	searcher Searcher
	analyzer *allergen.Analyzer
	k        int
}

func (*allergenCheck) Name() string { return AllergenCheck }

func (*allergenCheck) Description() string {
	return "Vérification de sécurité des allergènes d'une pizza. À utiliser pour toute question d'allergie ou de restriction alimentaire."
}

func (a *allergenCheck) Search(ctx context.Context, query string) (*Result, error) {
	res, err := search(ctx, a.searcher, AllergenCheck, query, a.k)
	if err != nil {
		log.Errorf("[Tools] allergen_check 检索失败: %v", err)
		return &Result{Tool: AllergenCheck, Query: query, Text: safetyFallback, Hits: []model.SearchResult{}, Degraded: true}, nil
	}
	if len(res.Hits) == 0 {
		res.Text = safetyFallback
		return res, nil
	}

	texts := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		texts[i] = h.Content
	}
	res.Allergens = a.analyzer.DetectInText(strings.Join(texts, "\n"))

	var b strings.Builder
	fmt.Fprintf(&b, "✅ Information allergénique trouvée:\n\n%s\n\n", formatHits(res.Hits))
	if len(res.Allergens) > 0 {
		fmt.Fprintf(&b, "⚠️ Allergènes détectés: %s\n\n", strings.Join(res.Allergens, ", "))
	} else {
		b.WriteString("✅ Aucun allergène majeur détecté\n\n")
	}
	b.WriteString(safetyDisclaimer)
	res.Text = b.String()
	return res, nil
}

type ingredientLookup struct {
	searcher Searcher
	k        int
}

func (*ingredientLookup) Name() string { return IngredientLookup }

func (*ingredientLookup) Description() string {
	return "Liste des ingrédients et détails de préparation des pizzas."
}

func (l *ingredientLookup) Search(ctx context.Context, query string) (*Result, error) {
	res, err := search(ctx, l.searcher, IngredientLookup, query, l.k)
	if err != nil {
		return nil, err
	}
	if len(res.Hits) == 0 {
		res.Text = "Je n'ai pas trouvé d'informations sur les ingrédients pour cette recherche."
	} else {
		res.Text = "📋 Informations sur les ingrédients:\n\n" + formatHits(res.Hits)
	}
	return res, nil
}

type nutritionInfo struct {
	searcher Searcher
	k        int
}

func (*nutritionInfo) Name() string { return NutritionInfo }

func (*nutritionInfo) Description() string {
	return "Valeurs nutritionnelles et calories des pizzas."
}

func (n *nutritionInfo) Search(ctx context.Context, query string) (*Result, error) {
	res, err := search(ctx, n.searcher, NutritionInfo, query, n.k)
	if err != nil {
		return nil, err
	}
	if len(res.Hits) == 0 {
		res.Text = "Je n'ai pas trouvé d'informations nutritionnelles pour cette recherche."
	} else {
		res.Text = "📊 Informations nutritionnelles:\n\n" + formatHits(res.Hits)
	}
	return res, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
