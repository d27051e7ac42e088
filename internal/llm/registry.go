package llm

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/storyforge/internal/config"
	"github.com/soyeahso/storyforge/internal/logging"
)

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ProviderError is returned when a completion provider fails.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP status code when the upstream answered (401, 429, 500, etc.)
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: API error (%d): %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Registry manages provider clients and resolves model ids to clients.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]Client // provider name → client
	aliases  map[string]string // model id → provider name
	prefixes map[string]string // model id prefix → provider name
	fallback string            // default provider name
	log      *logging.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		clients:  make(map[string]Client),
		aliases:  make(map[string]string),
		prefixes: make(map[string]string),
		log:      log.Sub("llm.registry"),
	}
}

// Register adds a client under the given provider name.
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	r.log.Debug().Str("provider", name).Msg("registered completion provider")
}

// Alias maps a model id to a provider.
func (r *Registry) Alias(model, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[model] = provider
}

// Prefix routes every model id starting with prefix to provider.
func (r *Registry) Prefix(prefix, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes[prefix] = provider
}

// SetFallback sets the default provider used when no model/provider match is found.
func (r *Registry) SetFallback(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = provider
}

// Resolve returns the Client for the given model id.
// Resolution order: exact provider name → alias → longest prefix → fallback.
func (r *Registry) Resolve(model string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.clients[model]; ok {
		return c, nil
	}

	if provider, ok := r.aliases[model]; ok {
		if c, ok := r.clients[provider]; ok {
			return c, nil
		}
	}

	best := ""
	for prefix := range r.prefixes {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best != "" {
		if c, ok := r.clients[r.prefixes[best]]; ok {
			return c, nil
		}
	}

	if r.fallback != "" {
		if c, ok := r.clients[r.fallback]; ok {
			return c, nil
		}
	}

	return nil, fmt.Errorf("no completion provider for model %q", model)
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewRegistryFromConfig registers the configured provider as the fallback.
// Nothing is registered when the config carries no usable credential.
// Model ids starting with "claude-" route to the anthropic client and "gpt-"
// to the openai client whenever those are registered.
func NewRegistryFromConfig(cfg config.CompletionConfig, log *logging.Logger) *Registry {
	reg := NewRegistry(log)
	reg.Prefix("claude-", ProviderAnthropic)
	reg.Prefix("gpt-", ProviderOpenAI)

	if !cfg.HasCredential() {
		return reg
	}

	opts := HTTPOptions{
		APIKey:            cfg.APIKey,
		BaseURL:           cfg.BaseURL,
		Timeout:           time.Duration(cfg.TimeoutSeconds) * time.Second,
		RequestsPerMinute: cfg.RequestsPerMinute,
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderAnthropic:
		reg.Register(ProviderAnthropic, NewClaudeAPIClient(opts))
		reg.SetFallback(ProviderAnthropic)
		for _, alias := range []string{"sonnet", "opus", "haiku"} {
			reg.Alias(alias, ProviderAnthropic)
		}
	default:
		reg.Register(ProviderOpenAI, NewOpenAIClient(opts))
		reg.SetFallback(ProviderOpenAI)
	}
	return reg
}
