// Package vectortest holds the behaviour every driven.VectorStore must show.
// Backend packages run it from their own tests.
package vectortest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) driven.VectorStore

// Vector returns a dims-long embedding with 1 at position hot.
func Vector(dims, hot int) domain.Embedding {
	v := make(domain.Embedding, dims)
	v[hot%dims] = 1
	return v
}

// Records builds n chunk records of a document with one-hot embeddings.
func Records(docID string, n, dims int) []domain.VectorRecord {
	records := make([]domain.VectorRecord, n)
	for i := range n {
		records[i] = domain.VectorRecord{
			DocumentID:   docID,
			ChunkIndex:   i,
			DocumentType: domain.DocumentTypeText,
			Text:         docID + " chunk",
			Embedding:    Vector(dims, i),
		}
	}
	return records
}

// Run executes the suite against stores created by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s driven.VectorStore)
	}{
		{"SearchEmptyCollection", testSearchEmptyCollection},
		{"SelfSimilarity", testSelfSimilarity},
		{"IdempotentUpsert", testIdempotentUpsert},
		{"StaleTailRemoved", testStaleTailRemoved},
		{"DimensionMismatchLeavesCollectionUnchanged", testDimensionMismatch},
		{"QueryDimensionMismatch", testQueryDimensionMismatch},
		{"RankingAndTies", testRankingAndTies},
		{"DeleteReleasesDimension", testDeleteReleasesDimension},
		{"CollectionsAndDrop", testCollectionsAndDrop},
		{"CollectionsAreIsolated", testCollectionsAreIsolated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func testSearchEmptyCollection(t *testing.T, s driven.VectorStore) {
	ctx := context.Background()

	_, err := s.Search(ctx, "missing", Vector(4, 0), 3)
	assert.ErrorIs(t, err, domain.ErrEmptyCollection)

	require.NoError(t, s.Upsert(ctx, "docs", Records("a.txt", 1, 4)))
	_, err = s.Delete(ctx, "docs", "a.txt")
	require.NoError(t, err)

	_, err = s.Search(ctx, "docs", Vector(4, 0), 3)
	assert.ErrorIs(t, err, domain.ErrEmptyCollection)
}

func testSelfSimilarity(t *testing.T, s driven.VectorStore) {
	ctx := context.Background()
	record := domain.VectorRecord{
		DocumentID:   "notes.md",
		ChunkIndex:   0,
		DocumentType: domain.DocumentTypeMarkdown,
		Text:         "the only record",
		Embedding:    domain.Embedding{0.3, -0.2, 0.9, 0.1},
	}
	require.NoError(t, s.Upsert(ctx, "docs", []domain.VectorRecord{record}))

	results, err := s.Search(ctx, "docs", record.Embedding, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-5)
	assert.Equal(t, "notes.md", results[0].Record.DocumentID)
	assert.Equal(t, 0, results[0].Record.ChunkIndex)
	assert.Equal(t, domain.DocumentTypeMarkdown, results[0].Record.DocumentType)
	assert.Equal(t, "the only record", results[0].Record.Text)
	assert.InDeltaSlice(t, []float32(record.Embedding), []float32(results[0].Record.Embedding), 1e-6)
}

func testIdempotentUpsert(t *testing.T, s driven.VectorStore) {
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "docs", Records("a.txt", 3, 4)))

	first, err := s.Search(ctx, "docs", Vector(4, 1), 1)
	require.NoError(t, err)

	updated := Records("a.txt", 3, 4)
	updated[1].Text = "rewritten"
	require.NoError(t, s.Upsert(ctx, "docs", updated))

	count, err := s.Count(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	results, err := s.Search(ctx, "docs", Vector(4, 1), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "rewritten", results[0].Record.Text)
	assert.Equal(t, first[0].Record.Seq, results[0].Record.Seq)
}

func testStaleTailRemoved(t *testing.T, s driven.VectorStore) {
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "docs", Records("a.txt", 4, 4)))
	require.NoError(t, s.Upsert(ctx, "docs", Records("b.txt", 1, 4)))

	require.NoError(t, s.Upsert(ctx, "docs", Records("a.txt", 2, 4)))

	count, err := s.Count(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	removed, err := s.Delete(ctx, "docs", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
}

func testDimensionMismatch(t *testing.T, s driven.VectorStore) {
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "docs", Records("seed.txt", 2, 384)))

	err := s.Upsert(ctx, "docs", Records("new.txt", 3, 768))
	require.ErrorIs(t, err, domain.ErrDimensionMismatch)

	count, err := s.Count(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	infos, err := s.Collections(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, 384, infos[0].Dimensions)

	mixed := append(Records("mixed.txt", 1, 384), Records("other.txt", 1, 768)...)
	require.ErrorIs(t, s.Upsert(ctx, "docs", mixed), domain.ErrDimensionMismatch)

	count, err = s.Count(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func testQueryDimensionMismatch(t *testing.T, s driven.VectorStore) {
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "docs", Records("a.txt", 1, 4)))

	_, err := s.Search(ctx, "docs", Vector(8, 0), 1)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func testRankingAndTies(t *testing.T, s driven.VectorStore) {
	ctx := context.Background()
	same := Vector(4, 0)
	for _, id := range []string{"first.txt", "second.txt", "third.txt"} {
		require.NoError(t, s.Upsert(ctx, "docs", []domain.VectorRecord{
			{DocumentID: id, Text: id, DocumentType: domain.DocumentTypeText, Embedding: same},
		}))
	}
	require.NoError(t, s.Upsert(ctx, "docs", []domain.VectorRecord{
		{DocumentID: "far.txt", Text: "far", DocumentType: domain.DocumentTypeText, Embedding: Vector(4, 2)},
	}))

	results, err := s.Search(ctx, "docs", same, 10)
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal(t, "first.txt", results[0].Record.DocumentID)
	assert.Equal(t, "second.txt", results[1].Record.DocumentID)
	assert.Equal(t, "third.txt", results[2].Record.DocumentID)
	assert.Equal(t, "far.txt", results[3].Record.DocumentID)
	assert.Less(t, results[3].Similarity, results[2].Similarity)

	top, err := s.Search(ctx, "docs", same, 2)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

func testDeleteReleasesDimension(t *testing.T, s driven.VectorStore) {
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "docs", Records("a.txt", 2, 384)))

	removed, err := s.Delete(ctx, "docs", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	removed, err = s.Delete(ctx, "docs", "a.txt")
	require.NoError(t, err)
	assert.Zero(t, removed)

	require.NoError(t, s.Upsert(ctx, "docs", Records("b.txt", 1, 768)))
	count, err := s.Count(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func testCollectionsAndDrop(t *testing.T, s driven.VectorStore) {
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "alpha", Records("a.txt", 2, 4)))
	require.NoError(t, s.Upsert(ctx, "beta", Records("b.txt", 1, 8)))

	infos, err := s.Collections(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, domain.CollectionInfo{Name: "alpha", Dimensions: 4, Count: 2}, infos[0])
	assert.Equal(t, domain.CollectionInfo{Name: "beta", Dimensions: 8, Count: 1}, infos[1])

	require.NoError(t, s.Drop(ctx, "alpha"))
	require.NoError(t, s.Drop(ctx, "never-existed"))

	infos, err = s.Collections(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "beta", infos[0].Name)

	_, err = s.Search(ctx, "alpha", Vector(4, 0), 1)
	assert.ErrorIs(t, err, domain.ErrEmptyCollection)
}

func testCollectionsAreIsolated(t *testing.T, s driven.VectorStore) {
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "alpha", Records("a.txt", 1, 4)))
	require.NoError(t, s.Upsert(ctx, "beta", Records("a.txt", 1, 16)))

	results, err := s.Search(ctx, "beta", Vector(16, 0), 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 16, results[0].Record.Embedding.Dimensions())

	count, err := s.Count(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
