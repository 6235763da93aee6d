package driven

import (
	"context"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

// VectorStore persists VectorRecords per collection and searches them by
// cosine similarity.
//
// Implementations must guarantee:
//   - Upsert is idempotent by (DocumentID, ChunkIndex) and atomic: a
//     concurrent Search sees all of a call's records or none of them.
//   - The first Upsert into an empty collection fixes its dimension; later
//     vectors of another length fail with domain.ErrDimensionMismatch and
//     nothing is written.
//   - Search ranks by descending similarity with ties in ingestion order.
type VectorStore interface {
	// Upsert inserts or replaces records. For every document in the batch,
	// stored chunks whose index is not in the batch and is greater than the
	// highest index in the batch are removed.
	Upsert(ctx context.Context, collection string, records []domain.VectorRecord) error

	// Search returns the k records nearest to query.
	// Returns domain.ErrEmptyCollection if the collection has no records.
	Search(ctx context.Context, collection string, query domain.Embedding, k int) (domain.RetrievalResult, error)

	// Delete removes all records of a document and returns how many were removed.
	Delete(ctx context.Context, collection, documentID string) (int, error)

	// Count returns the number of records in a collection.
	Count(ctx context.Context, collection string) (int, error)

	// Collections lists all collections.
	Collections(ctx context.Context) ([]domain.CollectionInfo, error)

	// Drop purges a collection and all its records.
	Drop(ctx context.Context, collection string) error

	// Close releases resources.
	Close() error
}
