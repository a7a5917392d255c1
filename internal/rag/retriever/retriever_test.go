package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/futig/doctalk-backend/internal/entity"
	"github.com/futig/doctalk-backend/internal/rag/guardrail"
	"github.com/futig/doctalk-backend/internal/rag/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedEmbed(vectors map[string][]float32) EmbedFunc {
	return func(_ context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, 0, len(texts))
		for _, t := range texts {
			out = append(out, vectors[t])
		}
		return out, nil
	}
}

func seed(t *testing.T) *index.Store {
	t.Helper()
	store := index.New(index.MetricCosine, 2)

	public := entity.DocumentRef{ID: "pub", Filename: "pub.md", Seq: 0, Sensitivity: entity.SensitivityPublic}
	secret := entity.DocumentRef{ID: "sec", Filename: "sec.md", Seq: 1, Sensitivity: entity.SensitivityConfidential}

	require.NoError(t, store.Insert("s1", public, []entity.Chunk{
		{ID: "pub-0", DocumentID: "pub", Ordinal: 0, Text: "roadmap", Vector: []float32{1, 0}},
		{ID: "pub-1", DocumentID: "pub", Ordinal: 1, Text: "team", Vector: []float32{0, 1}},
	}))
	require.NoError(t, store.Insert("s1", secret, []entity.Chunk{
		{ID: "sec-0", DocumentID: "sec", Ordinal: 0, Text: "merger", Vector: []float32{1, 1}},
	}))
	return store
}

func TestRetriever_Retrieve(t *testing.T) {
	embed := fixedEmbed(map[string][]float32{"roadmap?": {1, 0}})
	r := New(embed, seed(t), guardrail.New(nil), 2)

	result, err := r.Retrieve(context.Background(), "s1", "  roadmap?  ")
	require.NoError(t, err)
	require.Equal(t, 2, result.Len())

	assert.Equal(t, "pub-0", result.Passages[0].Chunk.ID)
	assert.False(t, result.Passages[0].Chunk.Sensitive)
	assert.Equal(t, "sec-0", result.Passages[1].Chunk.ID)
	assert.True(t, result.Passages[1].Chunk.Sensitive)
}

func TestRetriever_Deterministic(t *testing.T) {
	embed := fixedEmbed(map[string][]float32{"q": {1, 1}})
	r := New(embed, seed(t), guardrail.New(nil), 3)

	first, err := r.Retrieve(context.Background(), "s1", "q")
	require.NoError(t, err)
	second, err := r.Retrieve(context.Background(), "s1", "q")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRetriever_UnknownSession(t *testing.T) {
	embed := fixedEmbed(map[string][]float32{"q": {1, 0}})
	r := New(embed, seed(t), guardrail.New(nil), 3)

	result, err := r.Retrieve(context.Background(), "other", "q")
	require.NoError(t, err)
	assert.Zero(t, result.Len())
}

func TestRetriever_Errors(t *testing.T) {
	store := seed(t)

	_, err := New(fixedEmbed(nil), store, guardrail.New(nil), 3).Retrieve(context.Background(), "s1", "   ")
	assert.ErrorIs(t, err, entity.ErrEmptyQuery)
	assert.ErrorIs(t, err, entity.ErrInvalidParameter)

	failing := func(context.Context, []string) ([][]float32, error) {
		return nil, entity.ErrEmbeddingProvider
	}
	_, err = New(failing, store, guardrail.New(nil), 3).Retrieve(context.Background(), "s1", "q")
	assert.ErrorIs(t, err, entity.ErrEmbeddingProvider)

	empty := func(context.Context, []string) ([][]float32, error) {
		return [][]float32{}, nil
	}
	_, err = New(empty, store, guardrail.New(nil), 3).Retrieve(context.Background(), "s1", "q")
	assert.ErrorIs(t, err, entity.ErrEmbeddingProvider)

	wrongDim := fixedEmbed(map[string][]float32{"q": {1, 0, 0}})
	_, err = New(wrongDim, store, guardrail.New(nil), 3).Retrieve(context.Background(), "s1", "q")
	assert.True(t, errors.Is(err, entity.ErrDimensionMismatch))
}
