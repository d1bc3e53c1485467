package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizzeria-rag-go/internal/model"
)

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	ok, err := s.Exists(ctx, RawKey("menu.pdf"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Get(ctx, RawKey("menu.pdf"))
	assert.ErrorIs(t, err, ErrObjectNotFound)

	require.NoError(t, s.Put(ctx, RawKey("menu.pdf"), []byte("%PDF"), "application/pdf"))
	data, err := s.Get(ctx, "raw/menu.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data))

	require.NoError(t, s.Delete(ctx, RawKey("menu.pdf")))
	require.NoError(t, s.Delete(ctx, RawKey("menu.pdf")))
}

func TestKeysStayInsideRoot(t *testing.T) {
	assert.Equal(t, "raw/menu.pdf", RawKey("../../etc/menu.pdf"))
	k, err := cleanKey("../../secret")
	require.NoError(t, err)
	assert.Equal(t, "secret", k)
	_, err = cleanKey("")
	assert.Error(t, err)
}

func TestProcessedRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	p := NewProcessed(s)

	_, err = p.Load(ctx, "chez_luigi")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	doc := &model.ProcessedDocument{
		DocumentID: "chez_luigi",
		DocType:    model.DocTypeMenu,
		Sections:   []model.Section{{Page: 1, Content: "Pizza Margherita 9€", WordCount: 3}},
	}
	require.NoError(t, p.Save(ctx, doc))
	ok, err := p.Exists(ctx, "chez_luigi")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := p.Load(ctx, "chez_luigi")
	require.NoError(t, err)
	assert.Equal(t, doc.Sections, got.Sections)
	assert.Equal(t, model.DocTypeMenu, got.DocType)
}
