package services

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
)

// testRetry keeps retry tests fast.
var testRetry = domain.RetryPolicy{
	MaxRetries:     2,
	InitialBackoff: time.Millisecond,
	MaxBackoff:     2 * time.Millisecond,
	Timeout:        time.Second,
}

func testEmbeddingConfig() domain.EmbeddingConfig {
	return domain.EmbeddingConfig{
		BatchSize:   4,
		MaxInFlight: 2,
		Retry:       testRetry,
	}
}

// stubEmbedding implements driven.EmbeddingService for testing.
// Without embedFn it returns bag-of-words vectors, so identical texts
// have similarity 1 and texts sharing no words have similarity 0.
type stubEmbedding struct {
	model   string
	dims    int
	embedFn func(call int, texts []string) ([][]float32, error)

	mu      sync.Mutex
	calls   int
	batches [][]string
}

var _ driven.EmbeddingService = (*stubEmbedding)(nil)

func newStubEmbedding(dims int) *stubEmbedding {
	return &stubEmbedding{model: "stub-embed", dims: dims}
}

func (s *stubEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.batches = append(s.batches, texts)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.embedFn != nil {
		return s.embedFn(call, texts)
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = bagOfWords(text, s.dims)
	}
	return out, nil
}

func (s *stubEmbedding) ModelName() string { return s.model }
func (s *stubEmbedding) Ping(_ context.Context) error { return nil }
func (s *stubEmbedding) Close() error { return nil }

func (s *stubEmbedding) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// bagOfWords hashes lower-cased words into dims buckets.
func bagOfWords(text string, dims int) []float32 {
	v := make([]float32, dims)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(w, ".,!?")))
		v[h.Sum32()%uint32(dims)]++
	}
	return v
}

// stubLLM implements driven.LLMService for testing.
// Call i returns errs[i] when set, otherwise the last reply.
type stubLLM struct {
	replies []string
	errs    []error

	mu      sync.Mutex
	prompts []string
	opts    []driven.GenerateOptions
}

var _ driven.LLMService = (*stubLLM)(nil)

func (s *stubLLM) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	s.mu.Lock()
	i := len(s.prompts)
	s.prompts = append(s.prompts, prompt)
	s.opts = append(s.opts, opts)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if len(s.replies) == 0 {
		return "", nil
	}
	return s.replies[min(i, len(s.replies)-1)], nil
}

func (s *stubLLM) ModelName() string { return "stub-llm" }
func (s *stubLLM) Ping(_ context.Context) error { return nil }
func (s *stubLLM) Close() error { return nil }

func (s *stubLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

// stubNormaliser implements driven.Normaliser for testing.
type stubNormaliser struct {
	types []domain.DocumentType
	fn    func(content []byte) (string, error)
}

var _ driven.Normaliser = (*stubNormaliser)(nil)

func (s *stubNormaliser) SupportedTypes() []domain.DocumentType { return s.types }

func (s *stubNormaliser) Normalise(_ context.Context, content []byte) (string, error) {
	if s.fn != nil {
		return s.fn(content)
	}
	return string(content), nil
}

// stubPrompts implements driven.PromptStore for testing.
type stubPrompts struct {
	prompts map[string]string
	err     error
}

var _ driven.PromptStore = (*stubPrompts)(nil)

func (s *stubPrompts) Load(name string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.prompts[name], nil
}

func (s *stubPrompts) Reload() {}
