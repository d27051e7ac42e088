package llm

import (
	"context"
	"strings"
	"time"
)

// DefaultAnthropicBaseURL is the messages API root used when none is configured.
const DefaultAnthropicBaseURL = "https://api.anthropic.com/v1"

// ClaudeAPIClient is a direct HTTP client for the Anthropic messages API.
type ClaudeAPIClient struct {
	apiKey  string
	baseURL string
	http    apiTransport
}

// NewClaudeAPIClient creates a new Anthropic messages API client.
func NewClaudeAPIClient(opts HTTPOptions) *ClaudeAPIClient {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultAnthropicBaseURL
	}
	return &ClaudeAPIClient{
		apiKey:  opts.APIKey,
		baseURL: base,
		http:    newAPITransport("anthropic", opts),
	}
}

// Complete sends a non-streaming completion request.
func (c *ClaudeAPIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": "2023-06-01",
	}

	var result claudeAPIResponse
	if err := c.http.postJSON(ctx, c.baseURL+"/messages", headers, c.buildRequestBody(req), &result); err != nil {
		return nil, err
	}
	return c.responseToCompletion(&result, time.Since(start)), nil
}

// Name returns the provider name.
func (c *ClaudeAPIClient) Name() string {
	return "anthropic"
}

func (c *ClaudeAPIClient) buildRequestBody(req CompletionRequest) map[string]any {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	body := map[string]any{
		"model":      req.Model,
		"messages":   c.messagesToClaude(req.Messages),
		"max_tokens": maxTokens,
	}
	if req.System != "" {
		body["system"] = req.System
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	return body
}

// messagesToClaude drops system turns; the system prompt travels separately.
func (c *ClaudeAPIClient) messagesToClaude(msgs []Message) []map[string]string {
	result := make([]map[string]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem {
			continue
		}
		result = append(result, map[string]string{
			"role":    m.Role,
			"content": m.Content,
		})
	}
	return result
}

func (c *ClaudeAPIClient) responseToCompletion(resp *claudeAPIResponse, duration time.Duration) *CompletionResponse {
	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &CompletionResponse{
		Content:    content.String(),
		StopReason: resp.StopReason,
		Usage: Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
		Model:    resp.Model,
		Duration: duration,
	}
}

type claudeAPIResponse struct {
	ID         string               `json:"id"`
	Type       string               `json:"type"`
	Role       string               `json:"role"`
	Content    []claudeContentBlock `json:"content"`
	Model      string               `json:"model"`
	StopReason string               `json:"stop_reason"`
	Usage      claudeUsage          `json:"usage"`
}

type claudeContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type claudeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
