package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizzeria-rag-go/internal/allergen"
	"pizzeria-rag-go/internal/model"
)

func TestClassify(t *testing.T) {
	c := NewClassifier(nil)

	docType, conf := c.Classify("Pizza Margherita: tomate, mozzarella, basilic. 9€\nAllergènes: Gluten, Lait")
	assert.Equal(t, model.DocTypeMenu, docType)
	assert.InDelta(t, 0.7, conf, 1e-9)

	docType, conf = c.Classify("Valeurs nutritionnelles: 250 kcal, protéines: 12 g, glucides 30 g, lipides 8 g")
	assert.Equal(t, model.DocTypeNutrition, docType)
	assert.InDelta(t, 0.9, conf, 1e-9)

	docType, _ = c.Classify("gluten")
	assert.Equal(t, model.DocTypeGeneric, docType, "score 0.1 stays below the threshold")

	docType, conf = c.Classify("   ")
	assert.Equal(t, model.DocTypeGeneric, docType)
	assert.Zero(t, conf)
}

func TestParsePizzas(t *testing.T) {
	text := strings.Join([]string{
		"Nos pizzas",
		"Pizza Margherita: tomate, mozzarella, basilic. 9€",
		"PIZZA REGINA 11,50 €",
		"Calzone - jambon, oeuf 12€",
		"Pizza margherita 10€",
	}, "\n")

	assert.Equal(t, []model.Pizza{
		{Name: "Margherita", Price: 9},
		{Name: "Regina", Price: 11.5},
		{Name: "Calzone", Price: 12},
	}, ParsePizzas(text))
	assert.Empty(t, ParsePizzas(""))
}

func TestParseAllergenMentions(t *testing.T) {
	got := ParseAllergenMentions(allergen.NewAnalyzer(nil), "Allergènes: Gluten, Lait")
	assert.Equal(t, []string{"Gluten", "Lait"}, got)
}

func TestParseRecipe(t *testing.T) {
	text := "Pâte à pizza napolitaine\nIngrédients: 500 g farine, 300 ml eau, sel\nPréparation: Mélanger la farine et l'eau. Pétrir 10 minutes."
	r := ParseRecipe(text)
	assert.Equal(t, "Pâte à pizza napolitaine", r.Title)
	assert.Equal(t, "500 g farine, 300 ml eau, sel", r.Ingredients)
	assert.Equal(t, "Mélanger la farine et l'eau. Pétrir 10 minutes.", r.Instructions)

	empty := ParseRecipe("\n\n")
	assert.Equal(t, model.Recipe{Title: "Recette"}, empty)

	long := ParseRecipe(strings.Repeat("a", 150) + "\nTitre court")
	assert.Equal(t, "Titre court", long.Title)
}

func TestParseNutrition(t *testing.T) {
	n := ParseNutrition("Pour 100 g: 250 kcal, Protéines: 12,5 g, Glucides 30 g, Lipides: 8 g, Fibres 2 g")
	require.NotNil(t, n)
	assert.Equal(t, model.Nutrition{Calories: 250, Proteins: 12.5, Carbohydrates: 30, Fats: 8, Fibers: 2}, *n)

	assert.Nil(t, ParseNutrition("aucune valeur"))
}

func TestAssess(t *testing.T) {
	poor := Assess("", model.DocTypeGeneric, false, 0.4)
	assert.InDelta(t, 0.07, poor.Score, 1e-9)
	assert.False(t, poor.Acceptable)
	assert.NotEmpty(t, poor.Issues)

	text := strings.Repeat("Pizza Margherita tomate mozzarella basilic 9€. ", 6)
	good := Assess(text, model.DocTypeMenu, true, 0.4)
	assert.InDelta(t, 0.92, good.Score, 1e-9)
	assert.True(t, good.Acceptable)
	assert.Empty(t, good.Issues)
}
