package services

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider       = "embedding.provider"
	keyEmbedModel          = "embedding.model"
	keyEmbedBaseURL        = "embedding.base_url"
	keyEmbedAPIKey         = "embedding.api_key"
	keyEmbedBatchSize      = "embedding.batch_size"
	keyEmbedMaxInFlight    = "embedding.max_in_flight"
	keyEmbedMaxRetries     = "embedding.max_retries"
	keyEmbedInitialBackoff = "embedding.initial_backoff_ms"
	keyEmbedMaxBackoff     = "embedding.max_backoff_ms"
	keyEmbedTimeout        = "embedding.timeout_seconds"
	keyEmbedRate           = "embedding.rate_per_second"
	keyLLMProvider         = "llm.provider"
	keyLLMModel            = "llm.model"
	keyLLMBaseURL          = "llm.base_url"
	keyLLMAPIKey           = "llm.api_key"
	keyLLMTemperature      = "llm.temperature"
	keyLLMMaxTokens        = "llm.max_tokens"
	keyLLMMaxRetries       = "llm.max_retries"
	keyLLMTimeout          = "llm.timeout_seconds"
	keyChunkMaxSize        = "chunk.max_size"
	keyChunkOverlap        = "chunk.overlap"
	keyRetrievalK          = "retrieval.k"
	keyRetrievalMaxTokens  = "retrieval.max_context_tokens"
	keyRetrievalFloor      = "retrieval.similarity_floor"
	keyVectorBackend       = "vector.backend"
	keyVectorCollection    = "vector.collection"
	keyVectorQdrantHost    = "vector.qdrant_host"
	keyVectorQdrantPort    = "vector.qdrant_port"
	keyIngestConcurrency   = "ingest.max_concurrent_documents"
)

// Environment variables understood in addition to RAGDESK_<KEY>.
const (
	envOllamaHost     = "OLLAMA_HOST"
	envEmbeddingModel = "EMBEDDING_MODEL"
	envLLMModel       = "LLM_MODEL"
	envPrefix         = "RAGDESK_"
)

// setting binds a config key to a field of domain.Config.
type setting struct {
	key    string
	secret bool

	// unit converts a stored integer into a duration. Zero for non-durations.
	unit time.Duration

	// field returns a pointer to the bound field: *string, *int, *float64,
	// *time.Duration, *domain.AIProvider or *domain.VectorBackend.
	field func(c *domain.Config) any
}

var settingTable = []setting{
	{key: keyEmbedProvider, field: func(c *domain.Config) any { return &c.Embedding.Provider }},
	{key: keyEmbedModel, field: func(c *domain.Config) any { return &c.Embedding.Model }},
	{key: keyEmbedBaseURL, field: func(c *domain.Config) any { return &c.Embedding.BaseURL }},
	{key: keyEmbedAPIKey, secret: true, field: func(c *domain.Config) any { return &c.Embedding.APIKey }},
	{key: keyEmbedBatchSize, field: func(c *domain.Config) any { return &c.Embedding.BatchSize }},
	{key: keyEmbedMaxInFlight, field: func(c *domain.Config) any { return &c.Embedding.MaxInFlight }},
	{key: keyEmbedMaxRetries, field: func(c *domain.Config) any { return &c.Embedding.Retry.MaxRetries }},
	{key: keyEmbedInitialBackoff, unit: time.Millisecond,
		field: func(c *domain.Config) any { return &c.Embedding.Retry.InitialBackoff }},
	{key: keyEmbedMaxBackoff, unit: time.Millisecond,
		field: func(c *domain.Config) any { return &c.Embedding.Retry.MaxBackoff }},
	{key: keyEmbedTimeout, unit: time.Second,
		field: func(c *domain.Config) any { return &c.Embedding.Retry.Timeout }},
	{key: keyEmbedRate, field: func(c *domain.Config) any { return &c.Embedding.RatePerSecond }},
	{key: keyLLMProvider, field: func(c *domain.Config) any { return &c.LLM.Provider }},
	{key: keyLLMModel, field: func(c *domain.Config) any { return &c.LLM.Model }},
	{key: keyLLMBaseURL, field: func(c *domain.Config) any { return &c.LLM.BaseURL }},
	{key: keyLLMAPIKey, secret: true, field: func(c *domain.Config) any { return &c.LLM.APIKey }},
	{key: keyLLMTemperature, field: func(c *domain.Config) any { return &c.LLM.Temperature }},
	{key: keyLLMMaxTokens, field: func(c *domain.Config) any { return &c.LLM.MaxTokens }},
	{key: keyLLMMaxRetries, field: func(c *domain.Config) any { return &c.LLM.Retry.MaxRetries }},
	{key: keyLLMTimeout, unit: time.Second, field: func(c *domain.Config) any { return &c.LLM.Retry.Timeout }},
	{key: keyChunkMaxSize, field: func(c *domain.Config) any { return &c.Chunk.MaxSize }},
	{key: keyChunkOverlap, field: func(c *domain.Config) any { return &c.Chunk.Overlap }},
	{key: keyRetrievalK, field: func(c *domain.Config) any { return &c.Retrieval.K }},
	{key: keyRetrievalMaxTokens, field: func(c *domain.Config) any { return &c.Retrieval.MaxContextTokens }},
	{key: keyRetrievalFloor, field: func(c *domain.Config) any { return &c.Retrieval.SimilarityFloor }},
	{key: keyVectorBackend, field: func(c *domain.Config) any { return &c.Vector.Backend }},
	{key: keyVectorCollection, field: func(c *domain.Config) any { return &c.Vector.Collection }},
	{key: keyVectorQdrantHost, field: func(c *domain.Config) any { return &c.Vector.QdrantHost }},
	{key: keyVectorQdrantPort, field: func(c *domain.Config) any { return &c.Vector.QdrantPort }},
	{key: keyIngestConcurrency, field: func(c *domain.Config) any { return &c.Ingest.MaxConcurrentDocuments }},
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	dataDir     string
	getenv      func(string) string
}

// NewSettingsService creates a new settings service. dataDir is where the
// vector stores live. aiValidator may be nil.
func NewSettingsService(
	configStore driven.ConfigStore, aiValidator driven.AIConfigValidator, dataDir string,
) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		dataDir:     dataDir,
		getenv:      os.Getenv,
	}
}

// SetEnv replaces the environment lookup. Used by tests.
func (s *SettingsService) SetEnv(getenv func(string) string) {
	s.getenv = getenv
}

// Config builds the validated pipeline configuration.
// Priority: environment, then the config file, then defaults.
func (s *SettingsService) Config() (domain.Config, error) {
	cfg, err := s.load()
	if err != nil {
		return domain.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return domain.Config{}, err
	}
	return cfg, nil
}

// Entries lists every key with its effective value and default.
func (s *SettingsService) Entries() ([]driving.SettingEntry, error) {
	cfg, err := s.load()
	if err != nil {
		return nil, err
	}
	defaults := domain.DefaultConfig()

	entries := make([]driving.SettingEntry, 0, len(settingTable))
	for _, def := range settingTable {
		value := def.format(&cfg)
		if def.secret && value != "" {
			value = maskSecret(value)
		}
		entries = append(entries, driving.SettingEntry{
			Key:     def.key,
			Value:   value,
			Default: def.format(&defaults),
		})
	}
	return entries, nil
}

// Set parses and persists a single key. The value is rejected, and nothing
// is written, if the resulting configuration is invalid.
func (s *SettingsService) Set(key, value string) error {
	def, ok := lookupSetting(key)
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidConfig, key)
	}

	cfg, err := s.load()
	if err != nil {
		return err
	}
	stored, err := def.parse(&cfg, strings.TrimSpace(value))
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := s.configStore.Set(key, stored); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	cfg, err := s.Config()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&cfg.Embedding.EmbeddingSettings)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	cfg, err := s.Config()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&cfg.LLM.LLMSettings)
}

// load applies stored values and the environment over the defaults.
func (s *SettingsService) load() (domain.Config, error) {
	cfg := domain.DefaultConfig()
	cfg.Vector.DataDir = s.dataDir

	for _, def := range settingTable {
		if !s.stored(def.key) {
			continue
		}
		def.apply(&cfg, s.configStore)
	}
	s.applyProviderDefaults(&cfg)

	if err := s.applyEnv(&cfg); err != nil {
		return domain.Config{}, err
	}
	return cfg, nil
}

// applyProviderDefaults fills the model and endpoint of a non-default
// provider when they were not stored explicitly.
func (s *SettingsService) applyProviderDefaults(cfg *domain.Config) {
	if !s.stored(keyEmbedModel) {
		if model, ok := domain.DefaultEmbeddingModels()[cfg.Embedding.Provider]; ok {
			cfg.Embedding.Model = model
		}
	}
	if !s.stored(keyEmbedBaseURL) && !cfg.Embedding.Provider.IsLocal() {
		cfg.Embedding.BaseURL = ""
	}
	if !s.stored(keyLLMModel) {
		if model, ok := domain.DefaultLLMModels()[cfg.LLM.Provider]; ok {
			cfg.LLM.Model = model
		}
	}
	if !s.stored(keyLLMBaseURL) && !cfg.LLM.Provider.IsLocal() {
		cfg.LLM.BaseURL = ""
	}
}

func (s *SettingsService) stored(key string) bool {
	_, ok := s.configStore.Get(key)
	return ok
}

// applyEnv overlays environment variables on cfg.
func (s *SettingsService) applyEnv(cfg *domain.Config) error {
	if host := s.getenv(envOllamaHost); host != "" {
		if cfg.Embedding.Provider == domain.AIProviderOllama {
			cfg.Embedding.BaseURL = host
		}
		if cfg.LLM.Provider == domain.AIProviderOllama {
			cfg.LLM.BaseURL = host
		}
	}
	if model := s.getenv(envEmbeddingModel); model != "" {
		cfg.Embedding.Model = model
	}
	if model := s.getenv(envLLMModel); model != "" {
		cfg.LLM.Model = model
	}

	for _, def := range settingTable {
		name := envName(def.key)
		value := s.getenv(name)
		if value == "" {
			continue
		}
		if _, err := def.parse(cfg, value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// apply reads the stored value of the setting into cfg.
func (def setting) apply(cfg *domain.Config, store driven.ConfigStore) {
	switch p := def.field(cfg).(type) {
	case *string:
		*p = store.GetString(def.key)
	case *domain.AIProvider:
		*p = domain.AIProvider(store.GetString(def.key))
	case *domain.VectorBackend:
		*p = domain.VectorBackend(store.GetString(def.key))
	case *int:
		*p = store.GetInt(def.key)
	case *float64:
		*p = store.GetFloat(def.key)
	case *time.Duration:
		*p = time.Duration(store.GetInt(def.key)) * def.unit
	}
}

// parse converts text into the field's type, stores it in cfg and returns
// the value to persist.
func (def setting) parse(cfg *domain.Config, value string) (any, error) {
	switch p := def.field(cfg).(type) {
	case *string:
		*p = value
		return value, nil
	case *domain.AIProvider:
		provider := domain.AIProvider(strings.ToLower(value))
		if !provider.IsValid() {
			return nil, fmt.Errorf("%w: %s: unknown provider %q", domain.ErrInvalidConfig, def.key, value)
		}
		*p = provider
		return provider.String(), nil
	case *domain.VectorBackend:
		backend := domain.VectorBackend(strings.ToLower(value))
		if !backend.IsValid() {
			return nil, fmt.Errorf("%w: %s: unknown backend %q", domain.ErrInvalidConfig, def.key, value)
		}
		*p = backend
		return backend.String(), nil
	case *int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be an integer, got %q", domain.ErrInvalidConfig, def.key, value)
		}
		*p = n
		return n, nil
	case *float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be a number, got %q", domain.ErrInvalidConfig, def.key, value)
		}
		*p = f
		return f, nil
	case *time.Duration:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: %s must be a non-negative integer, got %q",
				domain.ErrInvalidConfig, def.key, value)
		}
		*p = time.Duration(n) * def.unit
		return n, nil
	default:
		return nil, fmt.Errorf("%w: %s has no parser", domain.ErrInvalidConfig, def.key)
	}
}

// format renders the field's value in cfg as text.
func (def setting) format(cfg *domain.Config) string {
	switch p := def.field(cfg).(type) {
	case *string:
		return *p
	case *domain.AIProvider:
		return p.String()
	case *domain.VectorBackend:
		return p.String()
	case *int:
		return strconv.Itoa(*p)
	case *float64:
		return strconv.FormatFloat(*p, 'g', -1, 64)
	case *time.Duration:
		return strconv.FormatInt(int64(*p/def.unit), 10)
	default:
		return ""
	}
}

// SettingKeys returns every known config key in display order.
func SettingKeys() []string {
	keys := make([]string, len(settingTable))
	for i, def := range settingTable {
		keys[i] = def.key
	}
	return keys
}

func lookupSetting(key string) (setting, bool) {
	i := slices.IndexFunc(settingTable, func(def setting) bool { return def.key == key })
	if i < 0 {
		return setting{}, false
	}
	return settingTable[i], true
}

// envName maps "embedding.batch_size" to "RAGDESK_EMBEDDING_BATCH_SIZE".
func envName(key string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// maskSecret keeps the last four characters of a secret.
func maskSecret(s string) string {
	const visible = 4
	if len(s) <= visible {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-visible) + s[len(s)-visible:]
}
