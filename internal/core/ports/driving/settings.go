package driving

import "github.com/custodia-labs/ragdesk/internal/core/domain"

// SettingEntry is one configuration key with its effective value.
type SettingEntry struct {
	// Key is the dot-notation config key.
	Key string

	// Value is the effective value rendered as text. Secrets are masked.
	Value string

	// Default is the documented default rendered as text.
	Default string
}

// SettingsService manages application settings.
type SettingsService interface {
	// Config builds the validated pipeline configuration from stored
	// settings, environment overrides and defaults.
	Config() (domain.Config, error)

	// Entries lists every known key with its effective value.
	Entries() ([]SettingEntry, error)

	// Set parses and persists a single key.
	Set(key, value string) error

	// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
	ValidateEmbeddingConfig() error

	// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
	ValidateLLMConfig() error
}
