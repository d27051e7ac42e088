package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/soyeahso/storyforge/internal/config"
	"github.com/soyeahso/storyforge/internal/domain"
	"github.com/soyeahso/storyforge/internal/llm"
	"github.com/soyeahso/storyforge/internal/logging"
)

// ErrNotConfigured is returned when no usable completion credential is set.
var ErrNotConfigured = errors.New("completion API is not configured")

// emptyCompletion replaces a blank model answer.
const emptyCompletion = "No response generated"

// UpstreamError wraps a failed or timed-out completion call. The message of
// the underlying error is preserved.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string { return e.Err.Error() }

func (e *UpstreamError) Unwrap() error { return e.Err }

// Config is the sampling setup for one custom-agent call.
type Config struct {
	SystemPrompt string
	Model        string
	Temperature  float64
	MaxTokens    int
}

// ConfigFor builds the call config of a stored agent.
func ConfigFor(a domain.CustomAgent) Config {
	return Config{
		SystemPrompt: a.SystemPrompt,
		Model:        a.Model,
		Temperature:  a.Temperature,
		MaxTokens:    a.MaxTokens,
	}
}

// Result is the outcome of an agent run. Logs are display-only.
type Result struct {
	Output string   `json:"output"`
	Logs   []string `json:"logs"`
}

// RegistryFunc builds the provider registry for a set of completion settings.
type RegistryFunc func(config.CompletionConfig, *logging.Logger) *llm.Registry

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithRegistryFunc replaces how provider registries are built from settings.
func WithRegistryFunc(fn RegistryFunc) ExecutorOption {
	return func(e *Executor) { e.newRegistry = fn }
}

// Executor performs custom-agent completions against the configured provider.
// Settings can be replaced at runtime; in-flight calls keep the registry they
// started with.
type Executor struct {
	mu          sync.RWMutex
	settings    config.CompletionConfig
	registry    *llm.Registry
	newRegistry RegistryFunc
	log         *logging.Logger
}

// NewExecutor creates an executor for the given completion settings.
func NewExecutor(settings config.CompletionConfig, log *logging.Logger, opts ...ExecutorOption) *Executor {
	e := &Executor{
		newRegistry: llm.NewRegistryFromConfig,
		log:         log.Sub("agent.executor"),
	}
	for _, o := range opts {
		o(e)
	}
	e.settings = settings
	e.registry = e.newRegistry(settings, log)
	return e
}

// Settings returns a copy of the active completion settings.
func (e *Executor) Settings() config.CompletionConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings
}

// Configured reports whether a usable credential is present.
func (e *Executor) Configured() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings.HasCredential()
}

// UpdateSettings swaps the completion settings and rebuilds the providers.
func (e *Executor) UpdateSettings(settings config.CompletionConfig) {
	reg := e.newRegistry(settings, e.log)
	e.mu.Lock()
	e.settings = settings
	e.registry = reg
	e.mu.Unlock()
	e.log.Info().
		Str("provider", settings.Provider).
		Str("defaultModel", settings.DefaultModel).
		Bool("configured", settings.HasCredential()).
		Msg("completion settings updated")
}

// Execute sends input to the model described by cfg. Configuration is
// checked before anything else; exactly one upstream call is made.
func (e *Executor) Execute(ctx context.Context, cfg Config, input string) (Result, error) {
	e.mu.RLock()
	settings, reg := e.settings, e.registry
	e.mu.RUnlock()

	if !settings.HasCredential() {
		return Result{}, ErrNotConfigured
	}
	if strings.TrimSpace(input) == "" {
		return Result{}, domain.MissingField("input")
	}

	model := cfg.Model
	if model == "" {
		model = settings.DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = settings.DefaultMaxTokens
	}
	temp := cfg.Temperature

	client, err := reg.Resolve(model)
	if err != nil {
		return Result{}, &UpstreamError{Err: err}
	}

	e.log.Debug().Str("provider", client.Name()).Str("model", model).Int("inputLen", len(input)).Msg("invoking model")

	resp, err := client.Complete(ctx, llm.CompletionRequest{
		Model:       model,
		System:      cfg.SystemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: input}},
		MaxTokens:   maxTokens,
		Temperature: &temp,
	})
	if err != nil {
		e.log.Warn().Err(err).Str("model", model).Msg("completion failed")
		return Result{}, &UpstreamError{Err: err}
	}

	output := resp.Content
	if strings.TrimSpace(output) == "" {
		output = emptyCompletion
	}

	e.log.Info().
		Str("model", model).
		Int("inputTokens", resp.Usage.InputTokens).
		Int("outputTokens", resp.Usage.OutputTokens).
		Dur("duration", resp.Duration).
		Msg("completion finished")

	return Result{Output: output, Logs: executionLogs(model)}, nil
}

func executionLogs(model string) []string {
	return []string{
		"Initializing agent...",
		"Parsing input...",
		fmt.Sprintf("Invoking model %s...", model),
		"Formatting output...",
	}
}
