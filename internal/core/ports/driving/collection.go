package driving

import (
	"context"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

// CollectionService manages vector store collections.
type CollectionService interface {
	// List returns all collections with their dimension and record count.
	List(ctx context.Context) ([]domain.CollectionInfo, error)

	// DeleteDocument removes all records of a document.
	// Returns domain.ErrNotFound if the document has no records.
	DeleteDocument(ctx context.Context, collection, documentID string) (int, error)

	// Purge drops a collection and all its records.
	Purge(ctx context.Context, collection string) error
}
