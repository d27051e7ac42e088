package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/soyeahso/storyforge/internal/version"
)

// maxErrorBody caps how much of an upstream error body is surfaced.
const maxErrorBody = 512

// HTTPOptions configures the transport shared by the HTTP providers.
type HTTPOptions struct {
	APIKey            string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerMinute int // 0 disables pacing
	HTTPClient        *http.Client
}

// apiTransport sends JSON requests to a provider with optional client-side
// pacing. It never retries.
type apiTransport struct {
	provider string
	client   *http.Client
	limiter  *rate.Limiter
}

func newAPITransport(provider string, opts HTTPOptions) apiTransport {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		client = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	var limiter *rate.Limiter
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}
	return apiTransport{provider: provider, client: client, limiter: limiter}
}

// postJSON marshals body, POSTs it to url with headers, and decodes a 200
// response into out. Non-200 responses become a *ProviderError.
func (t apiTransport) postJSON(ctx context.Context, url string, headers map[string]string, body, out any) error {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", version.UserAgent())
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return &ProviderError{Provider: t.provider, Message: fmt.Sprintf("request failed: %v", err), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &ProviderError{
			Provider: t.provider,
			Code:     resp.StatusCode,
			Message:  upstreamMessage(respBody),
		}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &ProviderError{Provider: t.provider, Message: fmt.Sprintf("failed to parse response: %v", err), Err: err}
	}
	return nil
}

// upstreamMessage extracts error.message from a JSON error body, falling back
// to the truncated raw body.
func upstreamMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return truncate(envelope.Error.Message, maxErrorBody)
	}
	return truncate(string(bytes.TrimSpace(body)), maxErrorBody)
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
