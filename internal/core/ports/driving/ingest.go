package driving

import (
	"context"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

// IngestService runs the ingestion path: load, chunk, embed, store.
type IngestService interface {
	// Ingest processes a single document into the collection.
	// Nothing is stored if any stage fails or ctx is cancelled.
	Ingest(ctx context.Context, collection string, doc domain.Document) (domain.IngestReport, error)

	// IngestAll processes independent documents concurrently. Reports are
	// returned in input order; the error joins every per-document failure.
	IngestAll(ctx context.Context, collection string, docs []domain.Document) ([]domain.IngestReport, error)
}
