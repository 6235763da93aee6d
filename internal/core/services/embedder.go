package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
	"github.com/custodia-labs/ragdesk/internal/logger"
)

// errVectorCount reports a response with the wrong number of vectors.
var errVectorCount = errors.New("embedding service returned wrong number of vectors")

// Embedder turns texts into embeddings through an EmbeddingService.
// It batches texts, bounds concurrent calls, retries transient failures and
// checks that a model's dimension never changes within the process.
type Embedder struct {
	service     driven.EmbeddingService
	batchSize   int
	maxInFlight int
	retry       retrier

	mu   sync.Mutex
	dims map[string]int
}

// NewEmbedder creates an embedding client. Zero values in cfg fall back to
// the defaults.
func NewEmbedder(service driven.EmbeddingService, cfg domain.EmbeddingConfig) *Embedder {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = domain.DefaultEmbedBatchSize
	}
	maxInFlight := cfg.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = domain.DefaultEmbedMaxInFlight
	}

	return &Embedder{
		service:     service,
		batchSize:   batchSize,
		maxInFlight: maxInFlight,
		retry: retrier{
			name:    "embed " + service.ModelName(),
			policy:  cfg.Retry,
			limiter: NewRateLimiter(cfg.RatePerSecond, 0),
		},
		dims: make(map[string]int),
	}
}

// ModelName returns the embedding model in use.
func (e *Embedder) ModelName() string {
	return e.service.ModelName()
}

// Dimensions returns the dimension observed for the current model, or 0
// before the first call.
func (e *Embedder) Dimensions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dims[e.service.ModelName()]
}

// Embed returns one embedding per text, in input order.
// If any batch fails the whole call fails with a *domain.EmbeddingFailure
// naming the failed texts; no partial result is returned.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	done := logger.Timed("embed %d text(s) with %s", len(texts), e.service.ModelName())
	out := make([]domain.Embedding, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxInFlight)
	for offset := 0; offset < len(texts); offset += e.batchSize {
		if gctx.Err() != nil {
			break
		}
		end := min(offset+e.batchSize, len(texts))
		g.Go(func() error {
			return e.embedBatch(gctx, texts[offset:end], offset, out[offset:end])
		})
	}

	err := g.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	done()
	return out, nil
}

// EmbedOne embeds a single text.
func (e *Embedder) EmbedOne(ctx context.Context, text string) (domain.Embedding, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// embedBatch embeds texts into dst. offset locates the batch in the
// caller's input for error reporting.
func (e *Embedder) embedBatch(ctx context.Context, texts []string, offset int, dst []domain.Embedding) error {
	var vectors [][]float32
	attempts, err := e.retry.do(ctx, func(ctx context.Context) error {
		v, err := e.service.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		if len(v) != len(texts) {
			return fmt.Errorf("%w: got %d for %d texts", errVectorCount, len(v), len(texts))
		}
		vectors = v
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &domain.EmbeddingFailure{Offset: offset, Count: len(texts), Attempts: attempts, Err: err}
	}

	for i, v := range vectors {
		if len(v) == 0 {
			return &domain.EmbeddingFailure{
				Offset:   offset,
				Count:    len(texts),
				Attempts: attempts,
				Err:      fmt.Errorf("empty vector for text %d", offset+i),
			}
		}
		if err := e.checkDimensions(len(v)); err != nil {
			return err
		}
		dst[i] = domain.Embedding(v)
	}
	logger.Debug("Embedded texts [%d, %d) in %d attempt(s)", offset, offset+len(texts), attempts)
	return nil
}

// checkDimensions fixes the model's dimension on first use and rejects drift.
func (e *Embedder) checkDimensions(n int) error {
	model := e.service.ModelName()

	e.mu.Lock()
	defer e.mu.Unlock()

	expected, ok := e.dims[model]
	if !ok {
		e.dims[model] = n
		logger.Debug("Model %s produces %d-dimensional vectors", model, n)
		return nil
	}
	if expected != n {
		return &domain.DimensionMismatchError{Scope: "model " + model, Expected: expected, Got: n}
	}
	return nil
}
