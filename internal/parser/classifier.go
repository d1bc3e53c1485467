// Package parser 对提取出的文本做分类与结构化解析。
package parser

import (
	"regexp"
	"strings"

	"pizzeria-rag-go/internal/model"
)

const (
	keywordWeight = 0.1
	patternWeight = 0.2
	minTypeScore  = 0.3
	maxTypeScore  = 1.0
)

// Rule 一个文档类型的判定规则。
type Rule struct {
	Type     model.DocType
	Keywords []string
	Patterns []*regexp.Regexp
}

// DefaultRules 按优先级排列，得分相同时靠前者胜出。
var DefaultRules = []Rule{
	{
		Type:     model.DocTypeMenu,
		Keywords: []string{"pizza", "menu", "carte", "prix", "€", "margherita", "calzone", "regina"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`\d+(?:[.,]\d{1,2})?\s*(?:€|euros?)`),
			regexp.MustCompile(`(?i)pizza\s+\p{L}+`),
		},
	},
	{
		Type:     model.DocTypeAllergen,
		Keywords: []string{"allergène", "allergie", "gluten", "lactose", "traces", "contient"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)allerg[eè]nes?\s*:`),
			regexp.MustCompile(`(?i)peut contenir`),
		},
	},
	{
		Type:     model.DocTypeRecipe,
		Keywords: []string{"ingrédients", "préparation", "recette", "cuisson", "four", "pâte"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)ingr[ée]dients?\s*:`),
			regexp.MustCompile(`(?i)(?:préparation|étapes)\s*:`),
		},
	},
	{
		Type:     model.DocTypeNutrition,
		Keywords: []string{"kcal", "calories", "protéines", "glucides", "lipides", "nutrition"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\d+\s*kcal`),
			regexp.MustCompile(`(?i)(?:protéines|glucides|lipides)\s*:?\s*\d`),
		},
	},
}

// Classifier 关键词每命中一个加 0.1，正则每命中一个加 0.2，上限 1。
type Classifier struct {
	rules []Rule
}

// NewClassifier rules 为空时使用 DefaultRules。
func NewClassifier(rules []Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Classifier{rules: rules}
}

// Classify 返回得分最高的类型；最高分不超过 0.3 时归为 generic。
func (c *Classifier) Classify(text string) (model.DocType, float64) {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return model.DocTypeGeneric, 0
	}

	best, bestScore := model.DocTypeGeneric, 0.0
	for _, r := range c.rules {
		score := 0.0
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				score += keywordWeight
			}
		}
		for _, p := range r.Patterns {
			if p.MatchString(lower) {
				score += patternWeight
			}
		}
		score = min(score, maxTypeScore)
		if score > bestScore {
			best, bestScore = r.Type, score
		}
	}
	if bestScore <= minTypeScore {
		return model.DocTypeGeneric, bestScore
	}
	return best, bestScore
}
