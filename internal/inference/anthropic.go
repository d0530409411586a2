package inference

import (
	"context"
	"fmt"
	"strings"
)

// Anthropic serves the text tasks through the Messages API. It has no
// embeddings endpoint, so it must be paired with another embedding provider.
type Anthropic struct {
	ChatTasks
	endpoint Endpoint
	baseURL  string
}

// Anthropic API structures
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
}

// NewAnthropic creates an Anthropic backend
func NewAnthropic(endpoint Endpoint) (*Anthropic, error) {
	if endpoint.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}
	p := &Anthropic{
		endpoint: endpoint,
		baseURL:  endpoint.baseURL("https://api.anthropic.com"),
	}
	p.ChatTasks = ChatTasks{c: p}
	return p, nil
}

// Name returns the provider name
func (p *Anthropic) Name() string {
	return "anthropic"
}

func (p *Anthropic) complete(ctx context.Context, req completion) (string, error) {
	model := p.endpoint.Model
	if model == "" {
		model = "claude-3-5-haiku-20241022"
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}

	system := req.System
	if req.JSON {
		system += " Output a single JSON object and nothing else."
	}

	apiReq := anthropicRequest{
		Model:     model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  []anthropicMessage{{Role: "user", Content: req.Prompt}},
	}

	ctx, cancel := p.endpoint.withTimeout(ctx)
	defer cancel()

	var resp anthropicResponse
	headers := map[string]string{
		"x-api-key":         p.endpoint.APIKey,
		"anthropic-version": "2023-06-01",
	}
	if err := postJSON(ctx, p.endpoint.httpClient(), p.baseURL+"/v1/messages", headers, apiReq, &resp); err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var b strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: no text content in Anthropic response", ErrBadResponse)
	}
	return strings.TrimSpace(b.String()), nil
}
