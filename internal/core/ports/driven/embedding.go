package driven

import "context"

// EmbeddingService generates vector embeddings from text.
// It is the transport to an embedding model. Batching limits, retries and
// dimension checks live in the core embedding client that wraps it.
//
// Implementations include:
//   - Ollama (nomic-embed-text, all-minilm)
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Gemini (text-embedding-004)
type EmbeddingService interface {
	// EmbedBatch returns one vector per text, in input order.
	// Failures worth retrying wrap domain.ErrServiceTransient.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
