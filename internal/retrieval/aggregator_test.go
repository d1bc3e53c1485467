package retrieval

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizzeria-rag-go/internal/allergen"
	"pizzeria-rag-go/internal/config"
	"pizzeria-rag-go/internal/model"
	"pizzeria-rag-go/internal/registry"
	"pizzeria-rag-go/internal/vectorstore"
	"pizzeria-rag-go/pkg/embedding/embeddingtest"
)

type fakeSearcher struct {
	results  []model.SearchResult
	failures map[string]string
	gotN     int
	gotDocs  []string
	err      error
}

func (f *fakeSearcher) Search(_ context.Context, query string, docs []string, n int) (*model.SearchResponse, error) {
	f.gotN, f.gotDocs = n, docs
	if f.err != nil {
		return nil, f.err
	}
	res := f.results
	if len(res) > n {
		res = res[:n]
	}
	return &model.SearchResponse{Query: query, Results: res, Failures: f.failures, Degraded: len(f.failures) > 0}, nil
}

func hit(doc, name string, page int) model.SearchResult {
	return model.SearchResult{
		ID:           fmt.Sprintf("%s_%d", doc, page),
		Content:      fmt.Sprintf("%s contenu %d", doc, page),
		Metadata:     model.ChunkMetadata{SourceDocument: doc, PageOrSection: page},
		DocumentName: name,
	}
}

func testRegistry() *registry.Static {
	return registry.NewStatic(
		model.DocumentInfo{DocumentID: "chez_luigi", Description: "Chez Luigi - Pizzeria du port"},
		model.DocumentInfo{DocumentID: "marco_fuso", Description: "Marco Fuso - Pizzeria napolitaine"},
		model.DocumentInfo{DocumentID: "bella_napoli", Description: "Bella Napoli - Pizzas au feu de bois"},
	)
}

func TestPerCompanyCap(t *testing.T) {
	a := New(&fakeSearcher{}, testRegistry(), config.RetrievalConfig{})
	assert.Equal(t, 2, a.PerCompanyCap(1, false))
	assert.Equal(t, 2, a.PerCompanyCap(5, false))
	assert.Equal(t, 5, a.PerCompanyCap(10, false))
	assert.Equal(t, 5, a.PerCompanyCap(5, true))

	custom := New(&fakeSearcher{}, testRegistry(), config.RetrievalConfig{MinPerCompany: 1, CapDivisor: 3})
	assert.Equal(t, 1, custom.PerCompanyCap(2, false))
	assert.Equal(t, 4, custom.PerCompanyCap(12, false))
}

func TestGetContextAppliesDiversityCap(t *testing.T) {
	s := &fakeSearcher{results: []model.SearchResult{
		hit("chez_luigi", "Chez Luigi", 1),
		hit("chez_luigi", "Chez Luigi", 2),
		hit("chez_luigi", "Chez Luigi", 3),
		hit("marco_fuso", "Marco Fuso", 1),
		hit("chez_luigi", "Chez Luigi", 4),
		hit("bella_napoli", "Bella Napoli", 1),
		hit("marco_fuso", "Marco Fuso", 2),
		hit("bella_napoli", "Bella Napoli", 2),
		hit("marco_fuso", "Marco Fuso", 3),
	}}
	a := New(s, testRegistry(), config.RetrievalConfig{})

	res, err := a.GetContext(context.Background(), "pizza", nil, 5)
	require.NoError(t, err)

	assert.Equal(t, 10, s.gotN)
	assert.Equal(t, 5, res.TotalSnippets())
	require.Len(t, res.Groups, 3)
	assert.Equal(t, "Chez Luigi", res.Groups[0].Company)
	assert.Equal(t, []string{"[Page 1] chez_luigi contenu 1", "[Page 2] chez_luigi contenu 2"}, res.Groups[0].Snippets)
	assert.Equal(t, "Marco Fuso", res.Groups[1].Company)
	assert.Len(t, res.Groups[1].Snippets, 2)
	assert.Equal(t, []string{"[Page 1] bella_napoli contenu 1"}, res.Groups[2].Snippets)
	assert.Equal(t, []string{"chez_luigi", "marco_fuso", "bella_napoli"}, res.DocumentsUsed)
	assert.True(t, res.HasMultipleCompanies)
}

func TestGetContextCapNeverExceeded(t *testing.T) {
	docs := []string{"chez_luigi", "marco_fuso", "bella_napoli"}
	var results []model.SearchResult
	for i := 0; i < 40; i++ {
		d := docs[(i*i+i/3)%len(docs)]
		results = append(results, hit(d, model.TitleCase(d), i))
	}
	for _, maxChunks := range []int{1, 2, 3, 5, 8, 13} {
		a := New(&fakeSearcher{results: results}, testRegistry(), config.RetrievalConfig{})
		res, err := a.GetContext(context.Background(), "q", nil, maxChunks)
		require.NoError(t, err)
		assert.LessOrEqual(t, res.TotalSnippets(), maxChunks)
		for _, g := range res.Groups {
			assert.LessOrEqual(t, len(g.Snippets), a.PerCompanyCap(maxChunks, false), "max=%d company=%s", maxChunks, g.Company)
		}
	}
}

func TestGetContextTargetedUsesFullBudget(t *testing.T) {
	s := &fakeSearcher{}
	for i := 1; i <= 6; i++ {
		s.results = append(s.results, hit("marco_fuso", "Marco Fuso", i))
	}
	a := New(s, testRegistry(), config.RetrievalConfig{})

	res, err := a.GetContext(context.Background(), "q", []string{"marco_fuso"}, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, s.gotN)
	assert.Equal(t, []string{"marco_fuso"}, s.gotDocs)
	require.Len(t, res.Groups, 1)
	assert.Len(t, res.Groups[0].Snippets, 4)
	assert.False(t, res.HasMultipleCompanies)
}

func TestGetContextDefaultsAndFailures(t *testing.T) {
	s := &fakeSearcher{failures: map[string]string{"bella_napoli": "timeout"}}
	a := New(s, testRegistry(), config.RetrievalConfig{MaxChunks: 3})

	res, err := a.GetContext(context.Background(), "q", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 6, s.gotN)
	assert.False(t, res.HasContext())
	assert.True(t, res.Degraded)
	assert.Equal(t, "timeout", res.Failures["bella_napoli"])

	s.err = fmt.Errorf("boom")
	_, err = a.GetContext(context.Background(), "q", nil, 0)
	assert.Error(t, err)
}

func TestGetContextFallsBackToRegistryName(t *testing.T) {
	s := &fakeSearcher{results: []model.SearchResult{hit("marco_fuso", "", 1)}}
	res, err := New(s, testRegistry(), config.RetrievalConfig{}).GetContext(context.Background(), "q", nil, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Marco Fuso"}, res.Companies())
}

type mapSource map[string]*model.ProcessedDocument

func (m mapSource) Load(_ context.Context, id string) (*model.ProcessedDocument, error) {
	doc, ok := m[id]
	if !ok {
		return nil, fmt.Errorf("no processed document %s", id)
	}
	return doc, nil
}

func newStore(t *testing.T, src mapSource) *vectorstore.Store {
	t.Helper()
	const dims = 256
	cfg := config.VectorStoreConfig{CollectionPrefix: "pizzeria", ChunkSize: 500, ChunkOverlap: 50}
	store := vectorstore.NewStore(cfg, dims, vectorstore.NewMemoryBackend(), embeddingtest.New(dims), testRegistry(), src)
	ctx := context.Background()
	for id := range src {
		_, err := store.AddDocument(ctx, id)
		require.NoError(t, err)
	}
	return store
}

func TestTwoPageMenuAllergensFollowRetrieval(t *testing.T) {
	store := newStore(t, mapSource{"chez_luigi": {
		DocumentID: "chez_luigi",
		Sections: []model.Section{
			{Page: 1, Content: "Pizza Margherita: tomate, mozzarella, basilic. 9€"},
			{Page: 2, Content: "Allergènes: Gluten, Lait"},
		},
	}})
	a := New(store, testRegistry(), config.RetrievalConfig{})
	analyzer := allergen.NewAnalyzer(nil)
	ctx := context.Background()

	res, err := a.GetContext(ctx, "prix de la margherita", []string{"chez_luigi"}, 1)
	require.NoError(t, err)
	require.Len(t, res.Groups, 1)
	assert.Equal(t, "Chez Luigi", res.Groups[0].Company)
	assert.Equal(t, []string{"[Page 1] Pizza Margherita: tomate, mozzarella, basilic. 9€"}, res.Groups[0].Snippets)
	assert.Equal(t, []string{"Lait"}, analyzer.InfoForContext(res.Groups)["Chez Luigi"])

	res, err = a.GetContext(ctx, "prix de la margherita", []string{"chez_luigi"}, 5)
	require.NoError(t, err)
	require.Len(t, res.Groups, 1)
	assert.Len(t, res.Groups[0].Snippets, 2)
	assert.Equal(t, []string{"Gluten", "Lait"}, analyzer.InfoForContext(res.Groups)["Chez Luigi"])
}

func TestMultiDocumentQuery(t *testing.T) {
	store := newStore(t, mapSource{
		"chez_luigi": {DocumentID: "chez_luigi", Sections: []model.Section{{Page: 1, Content: "Pizza Margherita tomate mozzarella 9€"}}},
		"marco_fuso": {DocumentID: "marco_fuso", Sections: []model.Section{{Page: 1, Content: "Pizza Margherita napolitaine bufala 12€"}}},
	})
	a := New(store, testRegistry(), config.RetrievalConfig{})
	ctx := context.Background()

	res, err := a.GetContext(ctx, "pizza margherita", nil, 5)
	require.NoError(t, err)
	assert.True(t, res.HasMultipleCompanies)
	assert.ElementsMatch(t, []string{"Chez Luigi", "Marco Fuso"}, res.Companies())

	q := "Quelles pizzas chez Marco Fuso ?"
	detected := a.DetectCompany(q)
	require.Equal(t, "marco_fuso", detected)
	res, err = a.GetContext(ctx, q, []string{detected}, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Marco Fuso"}, res.Companies())
	assert.False(t, res.HasMultipleCompanies)
}

func TestDetectCompany(t *testing.T) {
	a := New(&fakeSearcher{}, testRegistry(), config.RetrievalConfig{})
	tests := []struct {
		query string
		want  string
	}{
		{"Quelles pizzas chez Marco Fuso ?", "marco_fuso"},
		{"Marco Fuso propose-t-il des pizzas végétariennes ?", "marco_fuso"},
		{"Je suis à bella napoli ce soir", "bella_napoli"},
		{"La pizzeria Chez Luigi est ouverte ?", "chez_luigi"},
		{"Bella Napoli avez-vous du gluten ?", "bella_napoli"},
		{"une marco pizza s'il vous plaît", "marco_fuso"},
		{"chez luigi, c'est bon ?", "chez_luigi"},
		{"Quelles pizzas avez-vous ?", ""},
		{"Je voudrais une margherita", ""},
		{"fuso pizza", ""},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, a.DetectCompany(tt.query))
		})
	}
}
