package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdesk/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

// stubValidator implements driven.AIConfigValidator for testing.
type stubValidator struct {
	embedding *domain.EmbeddingSettings
	llm       *domain.LLMSettings
	err       error
}

func (v *stubValidator) ValidateEmbedding(cfg *domain.EmbeddingSettings) error {
	v.embedding = cfg
	return v.err
}

func (v *stubValidator) ValidateLLM(cfg *domain.LLMSettings) error {
	v.llm = cfg
	return v.err
}

func newTestSettings(env map[string]string) (*SettingsService, *memory.ConfigStore) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil, "/data")
	service.SetEnv(func(key string) string { return env[key] })
	return service, store
}

func TestSettingsService_Config_Defaults(t *testing.T) {
	service, _ := newTestSettings(nil)

	cfg, err := service.Config()
	require.NoError(t, err)

	want := domain.DefaultConfig()
	want.Vector.DataDir = "/data"
	assert.Equal(t, want, cfg)
}

func TestSettingsService_Config_StoredValues(t *testing.T) {
	service, store := newTestSettings(nil)
	require.NoError(t, store.Set("chunk.max_size", int64(500)))
	require.NoError(t, store.Set("chunk.overlap", int64(50)))
	require.NoError(t, store.Set("retrieval.similarity_floor", 0.5))
	require.NoError(t, store.Set("embedding.initial_backoff_ms", int64(100)))
	require.NoError(t, store.Set("llm.timeout_seconds", int64(10)))
	require.NoError(t, store.Set("vector.backend", "chromem"))

	cfg, err := service.Config()
	require.NoError(t, err)

	assert.Equal(t, domain.ChunkConfig{MaxSize: 500, Overlap: 50}, cfg.Chunk)
	assert.InDelta(t, 0.5, cfg.Retrieval.SimilarityFloor, 1e-9)
	assert.Equal(t, 100*time.Millisecond, cfg.Embedding.Retry.InitialBackoff)
	assert.Equal(t, 10*time.Second, cfg.LLM.Retry.Timeout)
	assert.Equal(t, domain.VectorBackendChromem, cfg.Vector.Backend)
}

func TestSettingsService_Config_ProviderDefaults(t *testing.T) {
	service, store := newTestSettings(nil)
	require.NoError(t, store.Set("embedding.provider", "openai"))
	require.NoError(t, store.Set("llm.provider", "gemini"))

	cfg, err := service.Config()
	require.NoError(t, err)

	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Empty(t, cfg.Embedding.BaseURL)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	assert.Empty(t, cfg.LLM.BaseURL)
}

func TestSettingsService_Config_Environment(t *testing.T) {
	service, store := newTestSettings(map[string]string{
		"OLLAMA_HOST":                        "http://gpu-box:11434",
		"EMBEDDING_MODEL":                    "mxbai-embed-large",
		"LLM_MODEL":                          "mistral",
		"RAGDESK_RETRIEVAL_K":                "7",
		"RAGDESK_VECTOR_COLLECTION":          "papers",
		"RAGDESK_EMBEDDING_MAX_RETRIES":      "1",
		"RAGDESK_LLM_TIMEOUT_SECONDS":        "5",
		"RAGDESK_RETRIEVAL_SIMILARITY_FLOOR": "0.1",
	})
	require.NoError(t, store.Set("retrieval.k", int64(2)))

	cfg, err := service.Config()
	require.NoError(t, err)

	assert.Equal(t, "http://gpu-box:11434", cfg.Embedding.BaseURL)
	assert.Equal(t, "http://gpu-box:11434", cfg.LLM.BaseURL)
	assert.Equal(t, "mxbai-embed-large", cfg.Embedding.Model)
	assert.Equal(t, "mistral", cfg.LLM.Model)
	assert.Equal(t, 7, cfg.Retrieval.K)
	assert.Equal(t, "papers", cfg.Vector.Collection)
	assert.Equal(t, 1, cfg.Embedding.Retry.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.LLM.Retry.Timeout)
	assert.InDelta(t, 0.1, cfg.Retrieval.SimilarityFloor, 1e-9)
}

func TestSettingsService_Config_BadEnvironment(t *testing.T) {
	service, _ := newTestSettings(map[string]string{"RAGDESK_RETRIEVAL_K": "many"})

	_, err := service.Config()
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "RAGDESK_RETRIEVAL_K")
}

func TestSettingsService_Config_InvalidStoredValues(t *testing.T) {
	service, store := newTestSettings(nil)
	require.NoError(t, store.Set("chunk.overlap", int64(2000)))

	_, err := service.Config()
	assert.ErrorIs(t, err, domain.ErrInvalidChunkConfig)
}

func TestSettingsService_Set(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		stored  any
		wantErr error
	}{
		{"int", "retrieval.k", "5", 5, nil},
		{"float", "llm.temperature", "0.7", 0.7, nil},
		{"duration", "embedding.max_backoff_ms", "2500", 2500, nil},
		{"provider", "llm.provider", "Anthropic", "anthropic", nil},
		{"backend", "vector.backend", "qdrant", "qdrant", nil},
		{"string", "embedding.model", " all-minilm ", "all-minilm", nil},
		{"unknown key", "search.mode", "hybrid", nil, domain.ErrInvalidConfig},
		{"not an int", "retrieval.k", "three", nil, domain.ErrInvalidConfig},
		{"not a float", "llm.temperature", "warm", nil, domain.ErrInvalidConfig},
		{"negative duration", "embedding.timeout_seconds", "-1", nil, domain.ErrInvalidConfig},
		{"unknown provider", "llm.provider", "skynet", nil, domain.ErrInvalidConfig},
		{"embedding provider without embeddings", "embedding.provider", "anthropic", nil, domain.ErrInvalidConfig},
		{"unknown backend", "vector.backend", "faiss", nil, domain.ErrInvalidConfig},
		{"overlap too large", "chunk.overlap", "1000", nil, domain.ErrInvalidChunkConfig},
		{"zero k", "retrieval.k", "0", nil, domain.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, store := newTestSettings(nil)

			err := service.Set(tt.key, tt.value)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				_, ok := store.Get(tt.key)
				assert.False(t, ok, "rejected values are not persisted")
				return
			}
			require.NoError(t, err)
			val, ok := store.Get(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.stored, val)

			_, err = service.Config()
			assert.NoError(t, err)
		})
	}
}

func TestSettingsService_Entries(t *testing.T) {
	service, store := newTestSettings(nil)
	require.NoError(t, store.Set("llm.api_key", "sk-secret-1234"))
	require.NoError(t, store.Set("retrieval.k", int64(9)))

	entries, err := service.Entries()
	require.NoError(t, err)
	require.Len(t, entries, len(SettingKeys()))

	byKey := make(map[string]string)
	defaults := make(map[string]string)
	for _, e := range entries {
		byKey[e.Key] = e.Value
		defaults[e.Key] = e.Default
	}

	assert.Equal(t, "**********1234", byKey["llm.api_key"])
	assert.Equal(t, "", byKey["embedding.api_key"])
	assert.Equal(t, "9", byKey["retrieval.k"])
	assert.Equal(t, "3", defaults["retrieval.k"])
	assert.Equal(t, "0.3", defaults["retrieval.similarity_floor"])
	assert.Equal(t, "200", defaults["embedding.initial_backoff_ms"])
	assert.Equal(t, "30", defaults["embedding.timeout_seconds"])
	assert.Equal(t, "sqlite", defaults["vector.backend"])
}

func TestSettingsService_Validate(t *testing.T) {
	service, _ := newTestSettings(nil)
	assert.NoError(t, service.ValidateEmbeddingConfig(), "no validator configured")

	validator := &stubValidator{}
	service.aiValidator = validator

	require.NoError(t, service.ValidateEmbeddingConfig())
	require.NoError(t, service.ValidateLLMConfig())
	assert.Equal(t, domain.DefaultEmbeddingModel, validator.embedding.Model)
	assert.Equal(t, domain.DefaultLLMModel, validator.llm.Model)

	validator.err = errors.New("connection refused")
	assert.Error(t, service.ValidateLLMConfig())
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "***", maskSecret("abc"))
	assert.Equal(t, "****5678", maskSecret("12345678"))
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "RAGDESK_EMBEDDING_BATCH_SIZE", envName("embedding.batch_size"))
}
