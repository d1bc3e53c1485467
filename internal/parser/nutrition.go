package parser

import (
	"regexp"
	"strconv"
	"strings"

	"pizzeria-rag-go/internal/model"
)

var (
	kcalPattern    = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)[ \t]*(?:kcal|calories?)`)
	proteinPattern = regexp.MustCompile(`(?i)protéines?[\s:]*(\d+(?:[.,]\d+)?)[ \t]*g`)
	carbPattern    = regexp.MustCompile(`(?i)glucides?[\s:]*(\d+(?:[.,]\d+)?)[ \t]*g`)
	fatPattern     = regexp.MustCompile(`(?i)lipides?[\s:]*(\d+(?:[.,]\d+)?)[ \t]*g`)
	fiberPattern   = regexp.MustCompile(`(?i)fibres?[\s:]*(\d+(?:[.,]\d+)?)[ \t]*g`)
)

// ParseNutrition 每项取第一次出现的数值；一项都没有时返回 nil。
func ParseNutrition(text string) *model.Nutrition {
	n := model.Nutrition{
		Calories:      firstNumber(kcalPattern, text),
		Proteins:      firstNumber(proteinPattern, text),
		Carbohydrates: firstNumber(carbPattern, text),
		Fats:          firstNumber(fatPattern, text),
		Fibers:        firstNumber(fiberPattern, text),
	}
	if n == (model.Nutrition{}) {
		return nil
	}
	return &n
}

func firstNumber(p *regexp.Regexp, text string) float64 {
	m := p.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0
	}
	return v
}
