package app

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdesk/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/cli"
	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
	"github.com/custodia-labs/ragdesk/internal/core/services"
)

// fakeEmbedding returns bag-of-words vectors.
type fakeEmbedding struct {
	closed bool
}

func (f *fakeEmbedding) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, 16)
		for _, w := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(w))
			v[h.Sum32()%16]++
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedding) ModelName() string           { return "fake-embed" }
func (f *fakeEmbedding) Ping(_ context.Context) error { return nil }
func (f *fakeEmbedding) Close() error                 { f.closed = true; return nil }

type fakeLLM struct {
	prompts []string
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return "The sky is blue.", nil
}

func (f *fakeLLM) ModelName() string           { return "fake-llm" }
func (f *fakeLLM) Ping(_ context.Context) error { return nil }
func (f *fakeLLM) Close() error                 { return nil }

func newTestSettings(t *testing.T, values map[string]string) *services.SettingsService {
	t.Helper()
	settings := services.NewSettingsService(memory.NewConfigStore(), nil, t.TempDir())
	settings.SetEnv(func(string) string { return "" })
	for k, v := range values {
		require.NoError(t, settings.Set(k, v))
	}
	return settings
}

func newTestBuilder(settings *services.SettingsService, embedding *fakeEmbedding, llm *fakeLLM) *Builder {
	return NewBuilder(settings, nil,
		WithEmbeddingFactory(func(context.Context, *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
			return embedding, nil
		}),
		WithLLMFactory(func(context.Context, *domain.LLMSettings) (driven.LLMService, error) {
			return llm, nil
		}),
	)
}

func TestBuilder_Build(t *testing.T) {
	ctx := context.Background()
	settings := newTestSettings(t, map[string]string{"vector.collection": "notes"})
	llm := &fakeLLM{}
	embedding := &fakeEmbedding{}

	p, err := newTestBuilder(settings, embedding, llm).Build(ctx, cli.PipelineOptions{Ephemeral: true})
	require.NoError(t, err)

	assert.Equal(t, domain.VectorBackendMemory, p.Config.Vector.Backend)
	assert.Equal(t, "notes", p.Config.Vector.Collection)

	report, err := p.Ingest.Ingest(ctx, "notes", domain.NewTextDocument("sky", "the sky is blue"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Chunks)

	result, err := p.Answer.Ask(ctx, "notes", "the sky is blue", nil)
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue.", result.Turn.Answer)
	assert.True(t, result.Context.Found)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "the sky is blue")

	infos, err := p.Collections.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, 16, infos[0].Dimensions)

	require.NoError(t, p.Close())
	assert.True(t, embedding.closed)
}

func TestBuilder_BuildBackendOverride(t *testing.T) {
	settings := newTestSettings(t, nil)

	p, err := newTestBuilder(settings, &fakeEmbedding{}, &fakeLLM{}).
		Build(context.Background(), cli.PipelineOptions{Backend: domain.VectorBackendSQLite})
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	assert.Equal(t, domain.VectorBackendSQLite, p.Config.Vector.Backend)
}

func TestBuilder_BuildClosesOnFailure(t *testing.T) {
	settings := newTestSettings(t, map[string]string{"vector.backend": "memory"})
	embedding := &fakeEmbedding{}

	b := NewBuilder(settings, nil,
		WithEmbeddingFactory(func(context.Context, *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
			return embedding, nil
		}),
		WithLLMFactory(func(context.Context, *domain.LLMSettings) (driven.LLMService, error) {
			return nil, errors.New("no llm")
		}),
	)

	p, err := b.Build(context.Background(), cli.PipelineOptions{})
	require.Error(t, err)
	assert.Nil(t, p)
	assert.Contains(t, err.Error(), "llm provider")
	assert.True(t, embedding.closed)
}

func TestOpenVectorStore(t *testing.T) {
	dir := t.TempDir()

	for _, backend := range []domain.VectorBackend{
		domain.VectorBackendMemory,
		domain.VectorBackendSQLite,
		domain.VectorBackendChromem,
	} {
		t.Run(string(backend), func(t *testing.T) {
			store, err := OpenVectorStore(domain.VectorConfig{Backend: backend, DataDir: dir})
			require.NoError(t, err)
			require.NotNil(t, store)
			assert.NoError(t, store.Close())
		})
	}

	_, err := OpenVectorStore(domain.VectorConfig{Backend: "redis", DataDir: dir})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}
