package allergen

import (
	"fmt"
	"sort"
	"strings"

	"pizzeria-rag-go/internal/model"
)

// contextIndicators 表明提问者在谈论自身饮食限制的词。
var contextIndicators = []string{
	"allergique", "allergie", "allergies", "allergène", "allergènes",
	"intolerance", "intolérant", "sans", "éviter", "peut pas manger",
	"ne peux pas manger", "ne mange pas",
}

// liberalIndicators 出现任一词时，问题中提到的过敏原关键词都视为用户限制。
var liberalIndicators = []string{"allergique", "allergie", "sans", "éviter"}

// negativePatterns 以 %s 代替关键词的明确否定短语。
var negativePatterns = []string{
	"allergique au %s", "allergique à %s", "allergique aux %s",
	"allergie au %s", "allergie à %s", "allergie aux %s",
	"pas de %s", "sans %s", "éviter %s", "éviter les %s",
	"ne peut pas manger %s", "ne peux pas manger %s", "ne mange pas %s",
	"peut pas manger de %s", "ne peux pas manger de %s",
	"intolérant au %s", "intolérant à %s",
	"intolerance au %s", "intolerance à %s",
}

var relatedIndicators = []string{
	"allergique", "allergie", "allergies", "allergène", "allergènes",
	"intolerance", "intolérant", "sans", "éviter", "peut pas manger",
	"gluten", "lactose", "végétalien", "vegan", "végétarien",
}

// Analyzer 基于关键词表做子串匹配，无状态，可并发使用。
type Analyzer struct {
	table []Category
}

// NewAnalyzer 创建分析器；table 为空时使用内置表。
func NewAnalyzer(table []Category) *Analyzer {
	if len(table) == 0 {
		table = Table
	}
	return &Analyzer{table: table}
}

// ReferenceList 提示词中附带的完整过敏原列表。
func (a *Analyzer) ReferenceList() []string {
	names := make([]string, len(a.table))
	for i, c := range a.table {
		names[i] = c.Name
	}
	return names
}

// DetectInText 返回文本中出现的过敏原类别（表顺序）。
// 纯子串匹配，不处理否定："sans gluten" 同样会命中 Gluten。
func (a *Analyzer) DetectInText(text string) []string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	var detected []string
	for _, c := range a.table {
		for _, kw := range c.Keywords {
			if strings.Contains(lower, kw) {
				detected = append(detected, c.Name)
				break
			}
		}
	}
	return detected
}

// ExtractUserAllergens 从问题中提取提问者声明的过敏原。
// 没有任何过敏语境词时返回空，避免把普通的食材提及当成限制。
func (a *Analyzer) ExtractUserAllergens(question string) []string {
	lower := strings.ToLower(question)
	if !containsAny(lower, contextIndicators) {
		return nil
	}
	liberal := containsAny(lower, liberalIndicators)

	var found []string
	for _, c := range a.table {
		if a.userRestricted(lower, c, liberal) {
			found = append(found, c.Name)
		}
	}
	return found
}

func (a *Analyzer) userRestricted(question string, c Category, liberal bool) bool {
	for _, kw := range c.Keywords {
		if !strings.Contains(question, kw) {
			continue
		}
		for _, p := range negativePatterns {
			if strings.Contains(question, fmt.Sprintf(p, kw)) {
				return true
			}
		}
		if liberal {
			return true
		}
	}
	return false
}

// IsAllergenRelatedQuestion 问题是否涉及过敏或饮食限制。
func (a *Analyzer) IsAllergenRelatedQuestion(question string) bool {
	return containsAny(strings.ToLower(question), relatedIndicators)
}

// InfoForContext 按公司汇总上下文片段中检测到的过敏原，结果按字母序。
// 只能看到被检索到的片段：未进入上下文的过敏原说明不会出现。
func (a *Analyzer) InfoForContext(groups []model.ContextGroup) model.AllergenInfo {
	info := make(model.AllergenInfo, len(groups))
	for _, g := range groups {
		set := make(map[string]struct{})
		for _, snippet := range g.Snippets {
			for _, name := range a.DetectInText(snippet) {
				set[name] = struct{}{}
			}
		}
		names := make([]string, 0, len(set))
		for name := range set {
			names = append(names, name)
		}
		sort.Strings(names)
		info[g.Company] = names
	}
	return info
}

// SuggestAlternatives 逐公司对比用户限制与检测结果。
func (a *Analyzer) SuggestAlternatives(userAllergens []string, groups []model.ContextGroup) string {
	if len(userAllergens) == 0 || len(groups) == 0 {
		return ""
	}
	info := a.InfoForContext(groups)
	lines := make([]string, 0, len(groups))
	for _, g := range groups {
		present := make(map[string]bool, len(info[g.Company]))
		for _, name := range info[g.Company] {
			present[name] = true
		}
		var conflicting []string
		for _, ua := range userAllergens {
			if present[ua] {
				conflicting = append(conflicting, ua)
			}
		}
		if len(conflicting) == 0 {
			lines = append(lines, fmt.Sprintf("✅ %s: Semble compatible avec vos restrictions", g.Company))
		} else {
			lines = append(lines, fmt.Sprintf("⚠️ %s: Contient %s", g.Company, strings.Join(conflicting, ", ")))
		}
	}
	return "\n\n🔍 **Analyse allergènes:**\n" + strings.Join(lines, "\n")
}

// Summary 生成附加在回答末尾的过敏原汇总，由代码产生而非模型。
func (a *Analyzer) Summary(info model.AllergenInfo, groups []model.ContextGroup) string {
	if len(groups) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n🧾 **Résumé allergènes détectés:**\n")
	for _, g := range groups {
		if names := info[g.Company]; len(names) > 0 {
			fmt.Fprintf(&b, "• %s: %s\n", g.Company, strings.Join(names, ", "))
		} else {
			fmt.Fprintf(&b, "• %s: Aucun allergène majeur détecté\n", g.Company)
		}
	}
	return b.String()
}

// Normalize 规范用户显式传入的类别名，未知名称原样保留，去重。
func Normalize(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		canonical, ok := Canonical(n)
		if !ok {
			canonical = strings.TrimSpace(n)
		}
		if canonical == "" || seen[canonical] {
			continue
		}
		seen[canonical] = true
		out = append(out, canonical)
	}
	return out
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
