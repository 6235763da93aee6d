// Package app assembles the ragdesk pipeline from the effective configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/ragdesk/internal/adapters/driven/ai"
	"github.com/custodia-labs/ragdesk/internal/adapters/driven/storage/chromem"
	"github.com/custodia-labs/ragdesk/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragdesk/internal/adapters/driven/storage/qdrant"
	"github.com/custodia-labs/ragdesk/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/cli"
	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driving"
	"github.com/custodia-labs/ragdesk/internal/core/services"
	"github.com/custodia-labs/ragdesk/internal/logger"
	"github.com/custodia-labs/ragdesk/internal/normalisers/docx"
	"github.com/custodia-labs/ragdesk/internal/normalisers/markdown"
	"github.com/custodia-labs/ragdesk/internal/normalisers/pdf"
	"github.com/custodia-labs/ragdesk/internal/normalisers/plaintext"
	"github.com/custodia-labs/ragdesk/internal/postprocessors/chunker"
)

// chromemDir is the chromem database directory inside the data directory.
const chromemDir = "chromem"

// EmbeddingFactory creates the embedding transport for the configured provider.
type EmbeddingFactory func(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error)

// LLMFactory creates the generation transport for the configured provider.
type LLMFactory func(ctx context.Context, settings *domain.LLMSettings) (driven.LLMService, error)

// Builder creates pipelines. Providers come from the ai package unless
// replaced with an Option.
type Builder struct {
	settings driving.SettingsService
	prompts  driven.PromptStore

	newEmbedding EmbeddingFactory
	newLLM       LLMFactory
}

// Option configures a Builder.
type Option func(*Builder)

// WithEmbeddingFactory replaces the embedding provider factory.
func WithEmbeddingFactory(f EmbeddingFactory) Option {
	return func(b *Builder) {
		b.newEmbedding = f
	}
}

// WithLLMFactory replaces the LLM provider factory.
func WithLLMFactory(f LLMFactory) Option {
	return func(b *Builder) {
		b.newLLM = f
	}
}

// NewBuilder creates a Builder. prompts may be nil to use the built-in templates.
func NewBuilder(settings driving.SettingsService, prompts driven.PromptStore, opts ...Option) *Builder {
	b := &Builder{
		settings:     settings,
		prompts:      prompts,
		newEmbedding: ai.CreateEmbeddingService,
		newLLM:       ai.CreateLLMService,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build assembles the pipeline. It satisfies cli.PipelineFactory.
// Everything opened before a failure is closed again.
func (b *Builder) Build(ctx context.Context, opts cli.PipelineOptions) (p *cli.Pipeline, err error) {
	defer logger.Timed("Build pipeline")()

	cfg, err := b.settings.Config()
	if err != nil {
		return nil, err
	}
	if opts.Backend != "" {
		cfg.Vector.Backend = opts.Backend
	}
	if opts.Ephemeral {
		cfg.Vector.Backend = domain.VectorBackendMemory
	}

	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	defer func() {
		if err != nil {
			_ = closeAll()
		}
	}()

	store, err := OpenVectorStore(cfg.Vector)
	if err != nil {
		return nil, err
	}
	closers = append(closers, store.Close)

	embedding, err := b.newEmbedding(ctx, &cfg.Embedding.EmbeddingSettings)
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	closers = append(closers, embedding.Close)

	llm, err := b.newLLM(ctx, &cfg.LLM.LLMSettings)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	closers = append(closers, llm.Close)

	chunks, err := chunker.New(
		chunker.WithChunkSize(cfg.Chunk.MaxSize),
		chunker.WithOverlap(cfg.Chunk.Overlap),
	)
	if err != nil {
		return nil, err
	}

	loader := services.NewLoader(plaintext.New(), markdown.New(), docx.New(), pdf.New())
	embedder := services.NewEmbedder(embedding, cfg.Embedding)
	retriever := services.NewRetrievalService(embedder, store, cfg.Retrieval.SimilarityFloor)

	logger.Debug("Pipeline: %s store, embedding %s (%s), llm %s (%s)",
		cfg.Vector.Backend, embedding.ModelName(), cfg.Embedding.Provider, llm.ModelName(), cfg.LLM.Provider)

	return &cli.Pipeline{
		Ingest:      services.NewIngestService(loader, chunks, embedder, store, cfg.Ingest.MaxConcurrentDocuments),
		Retriever:   retriever,
		Answer:      services.NewOrchestrator(llm, retriever, b.prompts, cfg.LLM, cfg.Retrieval),
		Collections: services.NewCollectionService(store),
		Config:      cfg,
		Close:       closeAll,
	}, nil
}

// OpenVectorStore opens the store for the configured backend.
func OpenVectorStore(cfg domain.VectorConfig) (driven.VectorStore, error) {
	switch cfg.Backend {
	case domain.VectorBackendMemory:
		return memory.NewVectorStore(), nil
	case domain.VectorBackendSQLite, "":
		store, err := sqlite.NewStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return store.VectorStore(), nil
	case domain.VectorBackendChromem:
		dir := ""
		if cfg.DataDir != "" {
			dir = filepath.Join(cfg.DataDir, chromemDir)
		}
		store, err := chromem.NewStore(dir)
		if err != nil {
			return nil, fmt.Errorf("opening chromem store: %w", err)
		}
		return store, nil
	case domain.VectorBackendQdrant:
		store, err := qdrant.NewStore(qdrant.Config{Host: cfg.QdrantHost, Port: cfg.QdrantPort})
		if err != nil {
			return nil, fmt.Errorf("connecting to qdrant: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown vector backend %q", domain.ErrInvalidConfig, cfg.Backend)
	}
}
