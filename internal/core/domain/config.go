package domain

import (
	"fmt"
	"time"
)

// Pipeline defaults. Every externally supplied setting has one.
const (
	DefaultOllamaHost     = "http://localhost:11434"
	DefaultEmbeddingModel = "nomic-embed-text"
	DefaultLLMModel       = "llama3"

	DefaultEmbedBatchSize      = 16
	DefaultEmbedMaxInFlight    = 4
	DefaultEmbedMaxRetries     = 5
	DefaultEmbedInitialBackoff = 200 * time.Millisecond
	DefaultEmbedMaxBackoff     = 5 * time.Second
	DefaultEmbedTimeout        = 30 * time.Second
	DefaultEmbedRatePerSecond  = 10.0

	DefaultTemperature        = 0.2
	DefaultMaxTokens          = 1024
	DefaultGenerateMaxRetries = 2
	DefaultGenerateBackoff    = 500 * time.Millisecond
	DefaultGenerateMaxBackoff = 2 * time.Second
	DefaultGenerateTimeout    = 120 * time.Second

	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200

	DefaultRetrievalK       = 3
	DefaultMaxContextTokens = 2048
	DefaultSimilarityFloor  = 0.3

	DefaultCollection             = "default"
	DefaultQdrantHost             = "localhost"
	DefaultQdrantPort             = 6334
	DefaultMaxConcurrentDocuments = 4
)

// RetryPolicy bounds the retries of a network call.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between retries.
	MaxBackoff time.Duration

	// Timeout bounds each individual attempt.
	Timeout time.Duration
}

// EmbeddingConfig configures the embedding client.
type EmbeddingConfig struct {
	EmbeddingSettings

	// BatchSize is the maximum number of texts per service call.
	BatchSize int

	// MaxInFlight is the maximum number of concurrent batch calls.
	MaxInFlight int

	// RatePerSecond limits service calls; 0 disables the limiter.
	RatePerSecond float64

	// Retry bounds retries of a single batch.
	Retry RetryPolicy
}

// LLMConfig configures the generation client.
type LLMConfig struct {
	LLMSettings

	// Temperature controls randomness (0.0-1.0).
	Temperature float64

	// MaxTokens limits the response length.
	MaxTokens int

	// Retry bounds retries of a single generation. It is kept shorter than
	// the embedding budget because a user is waiting on the answer.
	Retry RetryPolicy
}

// ChunkConfig configures the chunker.
type ChunkConfig struct {
	// MaxSize is the maximum chunk length in characters.
	MaxSize int

	// Overlap is the number of characters shared by adjacent chunks.
	Overlap int
}

// Validate checks the chunker can make progress.
func (c ChunkConfig) Validate() error {
	if c.MaxSize <= 0 {
		return fmt.Errorf("%w: max chunk size must be positive, got %d", ErrInvalidChunkConfig, c.MaxSize)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidChunkConfig, c.Overlap)
	}
	if c.Overlap >= c.MaxSize {
		return fmt.Errorf("%w: overlap %d must be less than max chunk size %d",
			ErrInvalidChunkConfig, c.Overlap, c.MaxSize)
	}
	return nil
}

// RetrievalConfig configures the retriever.
type RetrievalConfig struct {
	// K is the number of nearest records to fetch.
	K int

	// MaxContextTokens bounds the assembled context.
	MaxContextTokens int

	// SimilarityFloor drops results scoring below it. 0 keeps everything
	// with non-negative similarity.
	SimilarityFloor float64
}

// VectorConfig configures the vector store.
type VectorConfig struct {
	// Backend selects the store implementation.
	Backend VectorBackend

	// Collection is the default collection name.
	Collection string

	// DataDir holds the on-disk stores.
	DataDir string

	// QdrantHost is the Qdrant gRPC host.
	QdrantHost string

	// QdrantPort is the Qdrant gRPC port.
	QdrantPort int
}

// IngestConfig configures document ingestion.
type IngestConfig struct {
	// MaxConcurrentDocuments bounds documents ingested in parallel.
	MaxConcurrentDocuments int
}

// Config is the immutable pipeline configuration threaded through
// construction. It is passed by value.
type Config struct {
	Embedding EmbeddingConfig
	LLM       LLMConfig
	Chunk     ChunkConfig
	Retrieval RetrievalConfig
	Vector    VectorConfig
	Ingest    IngestConfig
}

// DefaultConfig returns the documented defaults. DataDir is left empty and
// filled in by the caller.
func DefaultConfig() Config {
	return Config{
		Embedding: EmbeddingConfig{
			EmbeddingSettings: EmbeddingSettings{
				Provider: AIProviderOllama,
				Model:    DefaultEmbeddingModel,
				BaseURL:  DefaultOllamaHost,
			},
			BatchSize:     DefaultEmbedBatchSize,
			MaxInFlight:   DefaultEmbedMaxInFlight,
			RatePerSecond: DefaultEmbedRatePerSecond,
			Retry: RetryPolicy{
				MaxRetries:     DefaultEmbedMaxRetries,
				InitialBackoff: DefaultEmbedInitialBackoff,
				MaxBackoff:     DefaultEmbedMaxBackoff,
				Timeout:        DefaultEmbedTimeout,
			},
		},
		LLM: LLMConfig{
			LLMSettings: LLMSettings{
				Provider: AIProviderOllama,
				Model:    DefaultLLMModel,
				BaseURL:  DefaultOllamaHost,
			},
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
			Retry: RetryPolicy{
				MaxRetries:     DefaultGenerateMaxRetries,
				InitialBackoff: DefaultGenerateBackoff,
				MaxBackoff:     DefaultGenerateMaxBackoff,
				Timeout:        DefaultGenerateTimeout,
			},
		},
		Chunk: ChunkConfig{
			MaxSize: DefaultChunkSize,
			Overlap: DefaultChunkOverlap,
		},
		Retrieval: RetrievalConfig{
			K:                DefaultRetrievalK,
			MaxContextTokens: DefaultMaxContextTokens,
			SimilarityFloor:  DefaultSimilarityFloor,
		},
		Vector: VectorConfig{
			Backend:    VectorBackendSQLite,
			Collection: DefaultCollection,
			QdrantHost: DefaultQdrantHost,
			QdrantPort: DefaultQdrantPort,
		},
		Ingest: IngestConfig{
			MaxConcurrentDocuments: DefaultMaxConcurrentDocuments,
		},
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if err := c.Chunk.Validate(); err != nil {
		return err
	}
	if !c.Embedding.Provider.SupportsEmbedding() {
		return fmt.Errorf("%w: embedding provider %q", ErrInvalidConfig, c.Embedding.Provider)
	}
	if !c.LLM.Provider.IsValid() {
		return fmt.Errorf("%w: llm provider %q", ErrInvalidConfig, c.LLM.Provider)
	}
	if !c.Vector.Backend.IsValid() {
		return fmt.Errorf("%w: vector backend %q", ErrInvalidConfig, c.Vector.Backend)
	}
	if c.Vector.Collection == "" {
		return fmt.Errorf("%w: collection name is empty", ErrInvalidConfig)
	}

	positive := []struct {
		name  string
		value int
	}{
		{"embedding.batch_size", c.Embedding.BatchSize},
		{"embedding.max_in_flight", c.Embedding.MaxInFlight},
		{"llm.max_tokens", c.LLM.MaxTokens},
		{"retrieval.k", c.Retrieval.K},
		{"retrieval.max_context_tokens", c.Retrieval.MaxContextTokens},
		{"ingest.max_concurrent_documents", c.Ingest.MaxConcurrentDocuments},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, p.name, p.value)
		}
	}

	if c.Embedding.Retry.MaxRetries < 0 || c.LLM.Retry.MaxRetries < 0 {
		return fmt.Errorf("%w: retry counts must not be negative", ErrInvalidConfig)
	}
	if c.Retrieval.SimilarityFloor < -1 || c.Retrieval.SimilarityFloor > 1 {
		return fmt.Errorf("%w: similarity floor must be within [-1, 1], got %g",
			ErrInvalidConfig, c.Retrieval.SimilarityFloor)
	}
	return nil
}
