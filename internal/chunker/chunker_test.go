package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizzeria-rag-go/internal/config"
	"pizzeria-rag-go/internal/model"
)

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(w, " ")
}

// rebuild 去掉相邻窗口的重叠部分后拼回词序列。
func rebuild(windows []string, overlap int) []string {
	var out []string
	for i, w := range windows {
		ws := strings.Fields(w)
		if i > 0 {
			ws = ws[min(overlap, len(ws)):]
		}
		out = append(out, ws...)
	}
	return out
}

func TestWordWindowReconstructsText(t *testing.T) {
	tests := []struct {
		n, size, overlap int
	}{
		{1, 500, 50},
		{499, 500, 50},
		{500, 500, 50},
		{1001, 500, 50},
		{2500, 1000, 200},
		{37, 10, 3},
		{10, 10, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d size=%d overlap=%d", tt.n, tt.size, tt.overlap), func(t *testing.T) {
			text := words(tt.n)
			windows := WordWindow(text, tt.size, tt.overlap)
			require.NotEmpty(t, windows)
			for _, w := range windows {
				assert.LessOrEqual(t, len(strings.Fields(w)), tt.size)
			}
			assert.Equal(t, strings.Fields(text), rebuild(windows, tt.overlap))
		})
	}
}

func TestWordWindowTrailingPartial(t *testing.T) {
	windows := WordWindow(words(12), 5, 1)
	require.Len(t, windows, 3)
	assert.Equal(t, "w8 w9 w10 w11", windows[2])
}

func TestWordWindowEdgeCases(t *testing.T) {
	assert.Empty(t, WordWindow("", 500, 50))
	assert.Empty(t, WordWindow("   \n\t ", 500, 50))
	// overlap >= size 时退化为不重叠切分
	assert.Equal(t, []string{"a b", "c"}, WordWindow("a b c", 2, 5))
}

func TestPageChunksIDsAndMetadata(t *testing.T) {
	sections := []model.Section{
		{Page: 1, Content: "Pizza Margherita: tomate, mozzarella, basilic. 9€"},
		{Page: 2, Content: "Allergènes: Gluten, Lait"},
		{Page: 3, Content: "   "},
	}
	chunks := PageChunks(PageMeta{DocumentID: "chez_luigi", ContentType: "menu", Language: "fr"}, sections, 500, 50)
	require.Len(t, chunks, 2)

	assert.Equal(t, "chez_luigi_page_1_chunk_0", chunks[0].ID)
	assert.Equal(t, "chez_luigi_page_2_chunk_0", chunks[1].ID)
	assert.Equal(t, model.ChunkMetadata{
		SourceDocument: "chez_luigi",
		PageOrSection:  1,
		ChunkIndex:     0,
		WordCount:      6,
		ContentType:    "menu",
		ChunkType:      model.ChunkTypePage,
		Language:       "fr",
	}, chunks[0].Metadata)
}

func TestPageChunksUniqueIDs(t *testing.T) {
	sections := []model.Section{{Page: 1, Content: words(1200)}, {Page: 2, Content: words(700)}}
	chunks := PageChunks(PageMeta{DocumentID: "doc"}, sections, 500, 50)
	seen := map[string]bool{}
	for _, c := range chunks {
		assert.False(t, seen[c.ID], "duplicate id %s", c.ID)
		seen[c.ID] = true
	}
	assert.Len(t, chunks, 5)
}

func newTestChunker() *Chunker {
	return New(config.ChunkerConfig{ChunkSize: 1000, ChunkOverlap: 200, MenuContextRunes: 200})
}

func TestCreateChunksEmptyText(t *testing.T) {
	assert.Empty(t, newTestChunker().CreateChunks(Input{DocumentID: "d", Text: "  "}, model.DocTypeMenu))
}

func TestCreateChunksGeneric(t *testing.T) {
	c := newTestChunker()
	chunks := c.CreateChunks(Input{DocumentID: "d", Text: words(2500), ContentType: "menu"}, model.DocTypeGeneric)
	require.Len(t, chunks, 3)
	for i, ch := range chunks {
		assert.Equal(t, model.ChunkTypeGeneric, ch.Metadata.ChunkType)
		assert.Equal(t, i, ch.Metadata.ChunkIndex)
		assert.Equal(t, StructuredChunkID("d", i), ch.ID)
	}
	assert.Equal(t, 1000, chunks[0].Metadata.WordCount)
}

func TestCreateChunksAllergen(t *testing.T) {
	c := newTestChunker()
	text := "Tableau des allergènes. " + strings.Repeat("x", 600)
	chunks := c.CreateChunks(Input{DocumentID: "d", Text: text, Allergens: []string{"Gluten", "Lait"}}, model.DocTypeAllergen)
	require.Len(t, chunks, 2)
	assert.True(t, strings.HasPrefix(chunks[0].Content, "Allergène: Gluten. Tableau des allergènes."))
	assert.Equal(t, "Lait", chunks[1].Metadata.Subject)
	assert.Equal(t, len([]rune("Allergène: Lait. "))+500, len([]rune(chunks[1].Content)))

	fallback := c.CreateChunks(Input{DocumentID: "d", Text: "rien de particulier"}, model.DocTypeAllergen)
	require.Len(t, fallback, 1)
	assert.Equal(t, model.ChunkTypeAllergenText, fallback[0].Metadata.ChunkType)
	assert.Equal(t, "rien de particulier", fallback[0].Content)
}

func TestCreateChunksAllergenWithoutMentionsKeepsOneChunk(t *testing.T) {
	c := newTestChunker()
	text := words(2500)
	chunks := c.CreateChunks(Input{DocumentID: "d", Text: text}, model.DocTypeAllergen)
	require.Len(t, chunks, 1)
	assert.Equal(t, model.ChunkTypeAllergenText, chunks[0].Metadata.ChunkType)
	assert.Equal(t, string([]rune(text)[:1000]), chunks[0].Content)
}

func TestCreateChunksRecipe(t *testing.T) {
	c := newTestChunker()
	in := Input{
		DocumentID: "d",
		Text:       "Pâte à pizza maison",
		Recipe:     &model.Recipe{Title: "Pâte à pizza", Ingredients: "farine, eau, levure", Instructions: ""},
	}
	chunks := c.CreateChunks(in, model.DocTypeRecipe)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Ingrédients: farine, eau, levure", chunks[0].Content)
	assert.Equal(t, model.ChunkTypeIngredients, chunks[0].Metadata.ChunkType)
	assert.Equal(t, "Pâte à pizza. Pâte à pizza maison", chunks[1].Content)
	assert.Equal(t, model.ChunkTypeRecipe, chunks[1].Metadata.ChunkType)

	untitled := c.CreateChunks(Input{DocumentID: "d", Text: "Mélanger farine et eau"}, model.DocTypeRecipe)
	require.Len(t, untitled, 1)
	assert.Equal(t, "Recette. Mélanger farine et eau", untitled[0].Content)
	assert.Equal(t, "Recette", untitled[0].Metadata.Subject)
}

func TestCreateChunksMenu(t *testing.T) {
	c := New(config.ChunkerConfig{ChunkSize: 1000, ChunkOverlap: 200, MenuContextRunes: 10})
	text := "Nos pizzas. PIZZA MARGHERITA tomate mozzarella 9€. Pizza Regina jambon 11€."
	in := Input{DocumentID: "d", Text: text, Pizzas: []model.Pizza{{Name: "Margherita"}, {Name: "Calzone"}}}

	chunks := c.CreateChunks(in, model.DocTypeMenu)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Pizza: Margherita. as. PIZZA MARGHERITA tomate mo", chunks[0].Content)
	assert.Equal(t, "Margherita", chunks[0].Metadata.Subject)
	assert.Equal(t, "Pizza: Calzone. ", chunks[1].Content)

	noPizza := c.CreateChunks(Input{DocumentID: "d", Text: text}, model.DocTypeMenu)
	require.Len(t, noPizza, 1)
	assert.Equal(t, model.ChunkTypeGeneric, noPizza[0].Metadata.ChunkType)
}
