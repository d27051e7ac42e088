package config

import "fmt"

// PlaceholderAPIKey is the sample key shipped in example configs. It never
// counts as a configured credential.
const PlaceholderAPIKey = "your-openai-api-key-here"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// DefaultModels is the catalog offered when the config lists none.
func DefaultModels() []ModelEntry {
	return []ModelEntry{
		{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", MaxTokens: 4096, Description: "Fast and inexpensive general model"},
		{ID: "gpt-4", Name: "GPT-4", MaxTokens: 8192, Description: "Most capable model for complex reasoning"},
		{ID: "gpt-4-turbo-preview", Name: "GPT-4 Turbo", MaxTokens: 128000, Description: "Large context GPT-4 variant"},
	}
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	temp := 0.7
	return Config{
		Gateway: GatewayConfig{
			Port:           18789,
			Bind:           "loopback",
			MaxUploadBytes: 10 << 20,
		},
		Store: StoreConfig{
			Driver: "sqlite",
		},
		Completion: CompletionConfig{
			Provider:           "openai",
			DefaultModel:       "gpt-3.5-turbo",
			DefaultTemperature: &temp,
			DefaultMaxTokens:   1000,
			TimeoutSeconds:     120,
			Models:             DefaultModels(),
		},
		Workflow: WorkflowConfig{
			LogIntervalMs:      800,
			BuiltinDelayMs:     1000,
			SessionIdleMinutes: 30,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}

// HasCredential reports whether the completion API key is usable.
func (c CompletionConfig) HasCredential() bool {
	return c.APIKey != "" && c.APIKey != PlaceholderAPIKey
}
