package parser

import (
	"regexp"
	"strings"

	"pizzeria-rag-go/internal/model"
)

const (
	defaultRecipeTitle = "Recette"
	maxTitleRunes      = 100
	titleScanLines     = 5
)

var (
	ingredientsHeader  = regexp.MustCompile(`(?i)ingr[ée]dients?[ \t]*:?`)
	instructionsHeader = regexp.MustCompile(`(?i)(?:préparation|preparation|instructions|étapes)[ \t]*:?`)
)

// ParseRecipe 标题取前五行中第一个非空且不超过 100 字符的行；
// 配料段从"Ingrédients"到下一个步骤标题，步骤段从步骤标题到文末。
func ParseRecipe(text string) model.Recipe {
	r := model.Recipe{Title: recipeTitle(text)}

	from := 0
	if loc := ingredientsHeader.FindStringIndex(text); loc != nil {
		from = loc[1]
		end := len(text)
		if next := instructionsHeader.FindStringIndex(text[from:]); next != nil {
			end = from + next[0]
		}
		r.Ingredients = strings.TrimSpace(text[from:end])
	}
	if loc := instructionsHeader.FindStringIndex(text[from:]); loc != nil {
		r.Instructions = strings.TrimSpace(text[from+loc[1]:])
	}
	return r
}

func recipeTitle(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if i >= titleScanLines {
			break
		}
		line = strings.TrimSpace(line)
		if line != "" && len([]rune(line)) < maxTitleRunes {
			return line
		}
	}
	return defaultRecipeTitle
}
