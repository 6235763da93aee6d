package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driving"
	"github.com/custodia-labs/ragdesk/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.Retriever = (*RetrievalService)(nil)

// ContextSeparator joins record texts in an assembled context.
const ContextSeparator = "\n\n---\n\n"

// RetrievalService embeds queries, searches the vector store and assembles
// token-bounded contexts.
type RetrievalService struct {
	embedder *Embedder
	store    driven.VectorStore
	floor    float64
}

// NewRetrievalService creates a retriever. Results scoring below
// similarityFloor never enter a context.
func NewRetrievalService(embedder *Embedder, store driven.VectorStore, similarityFloor float64) *RetrievalService {
	return &RetrievalService{
		embedder: embedder,
		store:    store,
		floor:    similarityFloor,
	}
}

// Search returns the k records nearest to the query.
// An empty collection fails with domain.ErrEmptyCollection.
func (s *RetrievalService) Search(
	ctx context.Context, collection, query string, k int,
) (domain.RetrievalResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrInvalidInput)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidInput, k)
	}

	vector, err := s.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.store.Search(ctx, collection, vector, k)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", collection, err)
	}
	logger.Debug("Search %q returned %d result(s)", collection, len(results))
	return results, nil
}

// Retrieve assembles the context for a query. Results below the similarity
// floor are dropped and whole records are added in rank order until the
// next one would exceed maxContextTokens. When nothing qualifies the text
// is domain.NoContext.
func (s *RetrievalService) Retrieve(
	ctx context.Context, collection, query string, k, maxContextTokens int,
) (domain.RetrievedContext, error) {
	logger.Section("Retrieve")

	if maxContextTokens <= 0 {
		return domain.RetrievedContext{}, fmt.Errorf("%w: max context tokens must be positive, got %d",
			domain.ErrInvalidInput, maxContextTokens)
	}

	results, err := s.Search(ctx, collection, query, k)
	if errors.Is(err, domain.ErrEmptyCollection) {
		logger.Debug("Collection %q is empty", collection)
		return noContext(), nil
	}
	if err != nil {
		return domain.RetrievedContext{}, err
	}

	assembled := assemble(results, s.floor, maxContextTokens)
	logger.Debug("Context: %d of %d result(s), ~%d tokens", len(assembled.Results), len(results), assembled.Tokens)
	return assembled, nil
}

// assemble greedily packs whole records into the token budget.
// results must be ranked best first.
func assemble(results domain.RetrievalResult, floor float64, budget int) domain.RetrievedContext {
	sepTokens := domain.EstimateTokens(ContextSeparator)

	var parts []string
	var kept domain.RetrievalResult
	tokens := 0
	for _, r := range results {
		if r.Similarity < floor {
			break
		}
		cost := domain.EstimateTokens(r.Record.Text)
		if len(parts) > 0 {
			cost += sepTokens
		}
		if tokens+cost > budget {
			break
		}
		parts = append(parts, r.Record.Text)
		kept = append(kept, r)
		tokens += cost
	}

	if len(parts) == 0 {
		return noContext()
	}
	return domain.RetrievedContext{
		Text:    strings.Join(parts, ContextSeparator),
		Found:   true,
		Results: kept,
		Tokens:  tokens,
	}
}

func noContext() domain.RetrievedContext {
	return domain.RetrievedContext{
		Text:   domain.NoContext,
		Tokens: domain.EstimateTokens(domain.NoContext),
	}
}
