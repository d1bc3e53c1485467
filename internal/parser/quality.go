package parser

import (
	"math"
	"strings"
	"unicode"

	"pizzeria-rag-go/internal/model"
)

const (
	lengthWeight    = 0.2
	coherenceWeight = 0.3
	domainWeight    = 0.4
	structureWeight = 0.1
)

var domainTerms = []string{
	"pizza", "pâte", "tomate", "mozzarella", "fromage", "four",
	"ingrédient", "menu", "prix", "allergène", "basilic", "jambon",
}

// Assess 对提取结果打分；低于 minScore 时 Acceptable 为 false，但文档仍会入库。
func Assess(text string, docType model.DocType, structured bool, minScore float64) model.Quality {
	var issues []string

	length := lengthScore(text)
	if length < 0.5 {
		issues = append(issues, "texte trop court")
	}
	coherence := coherenceScore(text)
	if coherence < 0.5 {
		issues = append(issues, "texte peu lisible")
	}
	domain := domainScore(text)
	if domain == 0 {
		issues = append(issues, "aucun terme lié à la pizzeria")
	}
	structure := 0.5
	if docType != model.DocTypeGeneric && structured {
		structure = 1.0
	} else if docType != model.DocTypeGeneric {
		issues = append(issues, "structure attendue non trouvée")
	}

	score := length*lengthWeight + coherence*coherenceWeight + domain*domainWeight + structure*structureWeight
	score = math.Round(score*1000) / 1000
	return model.Quality{Score: score, Acceptable: score >= minScore, Issues: issues}
}

func lengthScore(text string) float64 {
	n := len([]rune(strings.TrimSpace(text)))
	switch {
	case n < 10:
		return 0.1
	case n < 50:
		return 0.5
	case n < 200:
		return 0.8
	default:
		return 1.0
	}
}

// coherenceScore 字母、数字、空白与常用标点在全部字符中的占比。
func coherenceScore(text string) float64 {
	total, ok := 0, 0
	for _, r := range text {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || strings.ContainsRune(".,;:!?'\"()-€%/", r) {
			ok++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(ok) / float64(total)
}

func domainScore(text string) float64 {
	lower := strings.ToLower(text)
	hits := 0
	for _, t := range domainTerms {
		if strings.Contains(lower, t) {
			hits++
		}
	}
	return min(float64(hits)/5, 1.0)
}
