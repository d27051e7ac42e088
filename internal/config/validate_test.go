package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issuePaths(issues []ValidationIssue) []string {
	paths := make([]string, len(issues))
	for i, is := range issues {
		paths[i] = is.Path
	}
	return paths
}

func TestValidate_ValidDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Nil(t, Validate(&cfg))
}

func TestValidate_Fields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"port too large", func(c *Config) { c.Gateway.Port = 70000 }, "gateway.port"},
		{"unknown bind", func(c *Config) { c.Gateway.Bind = "tailnet" }, "gateway.bind"},
		{"tls without cert", func(c *Config) { c.Gateway.TLS.Enabled = true }, "gateway.tls"},
		{"negative upload limit", func(c *Config) { c.Gateway.MaxUploadBytes = -1 }, "gateway.maxUploadBytes"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver"},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = "postgres" }, "store.dsn"},
		{"unknown provider", func(c *Config) { c.Completion.Provider = "gemini" }, "completion.provider"},
		{"temperature out of range", func(c *Config) { v := 2.5; c.Completion.DefaultTemperature = &v }, "completion.defaultTemperature"},
		{"negative timeout", func(c *Config) { c.Completion.TimeoutSeconds = -5 }, "completion.timeoutSeconds"},
		{"negative rpm", func(c *Config) { c.Completion.RequestsPerMinute = -1 }, "completion.requestsPerMinute"},
		{"model without id", func(c *Config) { c.Completion.Models = []ModelEntry{{Name: "x"}} }, "completion.models[0].id"},
		{"duplicate model", func(c *Config) {
			c.Completion.Models = []ModelEntry{{ID: "gpt-4"}, {ID: "gpt-4"}}
		}, "completion.models[1].id"},
		{"negative log interval", func(c *Config) { c.Workflow.LogIntervalMs = -1 }, "workflow.logIntervalMs"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad console style", func(c *Config) { c.Logging.ConsoleStyle = "compact" }, "logging.consoleStyle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			issues := Validate(&cfg)
			require.NotEmpty(t, issues)
			assert.Contains(t, issuePaths(issues), tt.path)
		})
	}
}

func TestValidate_MultipleIssues(t *testing.T) {
	cfg := Defaults()
	cfg.Gateway.Port = -1
	cfg.Logging.Level = "loud"
	cfg.Store.Driver = "oracle"

	issues := Validate(&cfg)
	assert.Len(t, issues, 3)
}

func TestValidate_PostgresWithDSN(t *testing.T) {
	cfg := Defaults()
	cfg.Store.Driver = "postgres"
	cfg.Store.DSN = "postgres://localhost/forge"
	assert.Empty(t, Validate(&cfg))
}

func TestValidationIssueString(t *testing.T) {
	issue := ValidationIssue{Path: "store.driver", Message: "unknown"}
	assert.Equal(t, "store.driver: unknown", issue.String())
}
