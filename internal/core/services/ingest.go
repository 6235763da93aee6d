package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driving"
	"github.com/custodia-labs/ragdesk/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// IngestService runs documents through load, chunk, embed and store.
type IngestService struct {
	loader        *Loader
	chunker       driven.Chunker
	embedder      *Embedder
	store         driven.VectorStore
	maxConcurrent int
}

// NewIngestService creates a new ingest service. maxConcurrent bounds the
// documents IngestAll processes at once.
func NewIngestService(
	loader *Loader,
	chunker driven.Chunker,
	embedder *Embedder,
	store driven.VectorStore,
	maxConcurrent int,
) *IngestService {
	if maxConcurrent <= 0 {
		maxConcurrent = domain.DefaultMaxConcurrentDocuments
	}
	return &IngestService{
		loader:        loader,
		chunker:       chunker,
		embedder:      embedder,
		store:         store,
		maxConcurrent: maxConcurrent,
	}
}

// Ingest processes a single document. The stages run in order and nothing
// is written unless every chunk was embedded.
func (s *IngestService) Ingest(
	ctx context.Context, collection string, doc domain.Document,
) (domain.IngestReport, error) {
	start := time.Now()
	report := domain.IngestReport{DocumentID: doc.ID, Type: doc.Type}

	if doc.ID == "" {
		return report, fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}
	if collection == "" {
		return report, fmt.Errorf("%w: collection is required", domain.ErrInvalidInput)
	}

	logger.Section("Ingest " + doc.ID)

	text, err := s.loader.Load(ctx, doc.Content, doc.Type)
	if err != nil {
		return report, fmt.Errorf("ingest %s: %w", doc.ID, err)
	}
	if strings.TrimSpace(text) == "" {
		return report, fmt.Errorf("ingest %s: %w: document is empty", doc.ID, domain.ErrInvalidInput)
	}
	report.Characters = utf8.RuneCountInString(text)

	seq, err := s.chunker.Split(doc.ID, text)
	if err != nil {
		return report, fmt.Errorf("ingest %s: %w", doc.ID, err)
	}
	var chunks []domain.Chunk
	var texts []string
	for c := range seq {
		chunks = append(chunks, c)
		texts = append(texts, c.Content)
	}
	logger.Debug("Split %d characters into %d chunk(s)", report.Characters, len(chunks))

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return report, fmt.Errorf("ingest %s: %w", doc.ID, err)
	}

	// A cancelled request must not commit anything.
	if err := ctx.Err(); err != nil {
		return report, err
	}

	records := make([]domain.VectorRecord, len(chunks))
	for i, c := range chunks {
		records[i] = domain.VectorRecord{
			DocumentID:   doc.ID,
			ChunkIndex:   c.Index,
			DocumentType: doc.Type,
			Text:         c.Content,
			Embedding:    vectors[i],
		}
	}
	if err := s.store.Upsert(ctx, collection, records); err != nil {
		return report, fmt.Errorf("ingest %s: store: %w", doc.ID, err)
	}

	report.Chunks = len(records)
	report.Dimensions = vectors[0].Dimensions()
	report.Duration = time.Since(start)
	logger.Info("Ingested %s: %d chunk(s) into %q", doc.ID, report.Chunks, collection)
	return report, nil
}

// IngestAll ingests independent documents concurrently. One document's
// failure does not stop the others.
func (s *IngestService) IngestAll(
	ctx context.Context, collection string, docs []domain.Document,
) ([]domain.IngestReport, error) {
	reports := make([]domain.IngestReport, len(docs))
	errs := make([]error, len(docs))

	var g errgroup.Group
	g.SetLimit(s.maxConcurrent)
	for i, doc := range docs {
		g.Go(func() error {
			reports[i], errs[i] = s.Ingest(ctx, collection, doc)
			return nil
		})
	}
	_ = g.Wait()

	return reports, errors.Join(errs...)
}
