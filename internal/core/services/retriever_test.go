package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdesk/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

// newTestRetriever returns a retriever whose queries all embed to (1, 0, 0)
// over a store holding records ranked first, second, third, far. Empty
// texts leave their slot out.
func newTestRetriever(t *testing.T, floor float64, texts ...string) *RetrievalService {
	t.Helper()

	svc := newStubEmbedding(3)
	svc.embedFn = func(_ int, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = []float32{1, 0, 0}
		}
		return out, nil
	}

	embeddings := []domain.Embedding{{1, 0, 0}, {1, 1, 0}, {1, 1, 1}, {0, 0, 1}}
	names := []string{"first", "second", "third", "far"}
	store := memory.NewVectorStore()
	for i, text := range texts {
		if text == "" {
			continue
		}
		require.NoError(t, store.Upsert(context.Background(), testCollection, []domain.VectorRecord{{
			DocumentID:   names[i],
			DocumentType: domain.DocumentTypeText,
			Text:         text,
			Embedding:    embeddings[i],
		}}))
	}
	return NewRetrievalService(NewEmbedder(svc, testEmbeddingConfig()), store, floor)
}

// tokens returns a text estimated at exactly n tokens.
func tokens(n int) string {
	return strings.Repeat("abcd", n)
}

func TestRetrieve_EmptyCollectionIsNoContext(t *testing.T) {
	r := newTestRetriever(t, 0)

	got, err := r.Retrieve(context.Background(), testCollection, "anything", 3, 100)
	require.NoError(t, err)
	assert.False(t, got.Found)
	assert.Equal(t, domain.NoContext, got.Text)
	assert.Empty(t, got.Results)
}

func TestRetrieve_BudgetSmallerThanFirstResult(t *testing.T) {
	r := newTestRetriever(t, 0, tokens(50), tokens(1))

	got, err := r.Retrieve(context.Background(), testCollection, "question", 3, 49)
	require.NoError(t, err)
	assert.False(t, got.Found)
	assert.Equal(t, domain.NoContext, got.Text)
}

func TestRetrieve_GreedyWholeRecords(t *testing.T) {
	first, second, third := tokens(10), tokens(10), tokens(10)
	r := newTestRetriever(t, 0, first, second, third)
	sep := domain.EstimateTokens(ContextSeparator)

	got, err := r.Retrieve(context.Background(), testCollection, "question", 3, 20+sep)
	require.NoError(t, err)
	assert.True(t, got.Found)
	assert.Equal(t, first+ContextSeparator+second, got.Text)
	assert.Equal(t, 20+sep, got.Tokens)
	require.Len(t, got.Results, 2)
	assert.Equal(t, "first", got.Results[0].Record.DocumentID)
	assert.Equal(t, "second", got.Results[1].Record.DocumentID)
}

func TestRetrieve_StopsAtFirstRecordThatDoesNotFit(t *testing.T) {
	r := newTestRetriever(t, 0, tokens(5), tokens(500), tokens(1))

	got, err := r.Retrieve(context.Background(), testCollection, "question", 3, 100)
	require.NoError(t, err)
	require.Len(t, got.Results, 1)
	assert.Equal(t, tokens(5), got.Text)
}

func TestRetrieve_SimilarityFloor(t *testing.T) {
	r := newTestRetriever(t, 0.6, "first", "second", "third", "far")

	got, err := r.Retrieve(context.Background(), testCollection, "question", 4, 1000)
	require.NoError(t, err)
	require.Len(t, got.Results, 2)
	assert.Equal(t, "first"+ContextSeparator+"second", got.Text)

	r = newTestRetriever(t, 0.5, "", "", "", "far")
	got, err = r.Retrieve(context.Background(), testCollection, "question", 4, 1000)
	require.NoError(t, err)
	assert.False(t, got.Found)
}

func TestRetrieve_InvalidArguments(t *testing.T) {
	r := newTestRetriever(t, 0, "first")

	_, err := r.Retrieve(context.Background(), testCollection, "  ", 3, 100)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = r.Retrieve(context.Background(), testCollection, "q", 0, 100)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = r.Retrieve(context.Background(), testCollection, "q", 3, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSearch_RanksAndSurfacesEmptyCollection(t *testing.T) {
	r := newTestRetriever(t, 0, "first", "second", "third", "far")

	results, err := r.Search(context.Background(), testCollection, "question", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)

	_, err = r.Search(context.Background(), "other", "question", 2)
	assert.ErrorIs(t, err, domain.ErrEmptyCollection)
}

func TestSearch_QueryDimensionMismatch(t *testing.T) {
	r := newTestRetriever(t, 0, "first")
	r.embedder = NewEmbedder(newStubEmbedding(8), testEmbeddingConfig())

	_, err := r.Search(context.Background(), testCollection, "question", 1)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	_, err = r.Retrieve(context.Background(), testCollection, "question", 1, 100)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}
