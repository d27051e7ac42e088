package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	// Gateway
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		add("gateway.port", "port must be 0-65535, got %d", cfg.Gateway.Port)
	}

	validBinds := []string{"auto", "lan", "loopback", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		add("gateway.bind", "must be one of %v, got %q", validBinds, cfg.Gateway.Bind)
	}
	if cfg.Gateway.TLS.Enabled && (cfg.Gateway.TLS.CertPath == "" || cfg.Gateway.TLS.KeyPath == "") {
		add("gateway.tls", "certPath and keyPath are required when TLS is enabled")
	}
	if cfg.Gateway.MaxUploadBytes < 0 {
		add("gateway.maxUploadBytes", "must not be negative, got %d", cfg.Gateway.MaxUploadBytes)
	}

	// Store
	validDrivers := []string{"sqlite", "postgres"}
	if cfg.Store.Driver != "" && !slices.Contains(validDrivers, cfg.Store.Driver) {
		add("store.driver", "must be one of %v, got %q", validDrivers, cfg.Store.Driver)
	}
	if cfg.Store.Driver == "postgres" && cfg.Store.DSN == "" {
		add("store.dsn", "required when store.driver is postgres")
	}

	// Completion
	validProviders := []string{"openai", "anthropic"}
	if cfg.Completion.Provider != "" && !slices.Contains(validProviders, cfg.Completion.Provider) {
		add("completion.provider", "must be one of %v, got %q", validProviders, cfg.Completion.Provider)
	}
	if t := cfg.Completion.DefaultTemperature; t != nil && (*t < 0 || *t > 2) {
		add("completion.defaultTemperature", "must be between 0 and 2, got %v", *t)
	}
	if cfg.Completion.DefaultMaxTokens < 0 {
		add("completion.defaultMaxTokens", "must not be negative, got %d", cfg.Completion.DefaultMaxTokens)
	}
	if cfg.Completion.TimeoutSeconds < 0 {
		add("completion.timeoutSeconds", "must not be negative, got %d", cfg.Completion.TimeoutSeconds)
	}
	if cfg.Completion.RequestsPerMinute < 0 {
		add("completion.requestsPerMinute", "must not be negative, got %d", cfg.Completion.RequestsPerMinute)
	}
	seen := make(map[string]bool, len(cfg.Completion.Models))
	for i, m := range cfg.Completion.Models {
		if m.ID == "" {
			add(fmt.Sprintf("completion.models[%d].id", i), "id is required")
			continue
		}
		if seen[m.ID] {
			add(fmt.Sprintf("completion.models[%d].id", i), "duplicate model id %q", m.ID)
		}
		seen[m.ID] = true
	}

	// Workflow
	if cfg.Workflow.LogIntervalMs < 0 {
		add("workflow.logIntervalMs", "must not be negative, got %d", cfg.Workflow.LogIntervalMs)
	}
	if cfg.Workflow.BuiltinDelayMs < 0 {
		add("workflow.builtinDelayMs", "must not be negative, got %d", cfg.Workflow.BuiltinDelayMs)
	}
	if cfg.Workflow.SessionIdleMinutes < 0 {
		add("workflow.sessionIdleMinutes", "must not be negative, got %d", cfg.Workflow.SessionIdleMinutes)
	}

	// Logging
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}
	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		add("logging.consoleStyle", "must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle)
	}

	return issues
}
