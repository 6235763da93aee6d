package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driving"
	"github.com/custodia-labs/ragdesk/internal/logger"
)

// Ensure CollectionService implements the interface.
var _ driving.CollectionService = (*CollectionService)(nil)

// CollectionService manages collections and their documents.
type CollectionService struct {
	store driven.VectorStore
}

// NewCollectionService creates a new collection service.
func NewCollectionService(store driven.VectorStore) *CollectionService {
	return &CollectionService{store: store}
}

// List returns all collections.
func (s *CollectionService) List(ctx context.Context) ([]domain.CollectionInfo, error) {
	infos, err := s.store.Collections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return infos, nil
}

// DeleteDocument removes every record of a document.
func (s *CollectionService) DeleteDocument(ctx context.Context, collection, documentID string) (int, error) {
	if documentID == "" {
		return 0, fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}

	n, err := s.store.Delete(ctx, collection, documentID)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", documentID, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("document %s in %q: %w", documentID, collection, domain.ErrNotFound)
	}

	logger.Info("Deleted %d record(s) of %s from %q", n, documentID, collection)
	return n, nil
}

// Purge drops a collection.
func (s *CollectionService) Purge(ctx context.Context, collection string) error {
	if collection == "" {
		return fmt.Errorf("%w: collection is required", domain.ErrInvalidInput)
	}
	if err := s.store.Drop(ctx, collection); err != nil {
		return fmt.Errorf("purge %q: %w", collection, err)
	}
	logger.Info("Purged collection %q", collection)
	return nil
}
