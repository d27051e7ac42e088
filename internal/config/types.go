package config

// Config is the root configuration for storyforge.
type Config struct {
	Gateway    GatewayConfig    `yaml:"gateway,omitempty"`
	Store      StoreConfig      `yaml:"store,omitempty"`
	Completion CompletionConfig `yaml:"completion,omitempty"`
	Workflow   WorkflowConfig   `yaml:"workflow,omitempty"`
	Logging    LoggingConfig    `yaml:"logging,omitempty"`
}

// GatewayConfig controls the HTTP/WebSocket API server.
type GatewayConfig struct {
	Port           int        `yaml:"port,omitempty"`
	Bind           string     `yaml:"bind,omitempty"` // "auto" | "lan" | "loopback" | "custom"
	CustomBindHost string     `yaml:"customBindHost,omitempty"`
	TLS            GatewayTLS `yaml:"tls,omitempty"`
	AllowedOrigins []string   `yaml:"allowedOrigins,omitempty"`
	MaxUploadBytes int64      `yaml:"maxUploadBytes,omitempty"`
	Metrics        *bool      `yaml:"metrics,omitempty"` // serve /metrics; defaults to true
}

// MetricsEnabled reports whether /metrics should be served.
func (g GatewayConfig) MetricsEnabled() bool {
	return g.Metrics == nil || *g.Metrics
}

// GatewayTLS configures TLS for the gateway.
type GatewayTLS struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// StoreConfig selects the relational backend.
type StoreConfig struct {
	Driver string `yaml:"driver,omitempty"` // "sqlite" | "postgres"
	DSN    string `yaml:"dsn,omitempty"`    // file path for sqlite, URL for postgres
}

// CompletionConfig configures the external chat-completion API.
type CompletionConfig struct {
	Provider           string       `yaml:"provider,omitempty"` // "openai" | "anthropic"
	APIKey             string       `yaml:"apiKey,omitempty"`
	BaseURL            string       `yaml:"baseUrl,omitempty"`
	DefaultModel       string       `yaml:"defaultModel,omitempty"`
	DefaultTemperature *float64     `yaml:"defaultTemperature,omitempty"`
	DefaultMaxTokens   int          `yaml:"defaultMaxTokens,omitempty"`
	TimeoutSeconds     int          `yaml:"timeoutSeconds,omitempty"`
	RequestsPerMinute  int          `yaml:"requestsPerMinute,omitempty"` // 0 disables pacing
	Models             []ModelEntry `yaml:"models,omitempty"`
}

// ModelEntry is one entry in the model catalog shown to clients.
type ModelEntry struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	MaxTokens   int    `yaml:"maxTokens,omitempty" json:"maxTokens"`
	Description string `yaml:"description,omitempty" json:"description"`
}

// WorkflowConfig tunes the in-memory workflow engine.
type WorkflowConfig struct {
	LogIntervalMs      int `yaml:"logIntervalMs,omitempty"`
	BuiltinDelayMs     int `yaml:"builtinDelayMs,omitempty"`
	SessionIdleMinutes int `yaml:"sessionIdleMinutes,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}
