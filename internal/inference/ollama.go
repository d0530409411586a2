package inference

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Ollama serves embeddings through /api/embed and the text tasks through
// /api/generate with JSON-constrained output
type Ollama struct {
	ChatTasks
	endpoint   Endpoint
	baseURL    string
	embedModel string
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	System  string        `json:"system,omitempty"`
	Format  string        `json:"format,omitempty"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// NewOllama creates an Ollama backend
func NewOllama(endpoint Endpoint, embedModel string) *Ollama {
	p := &Ollama{
		endpoint:   endpoint,
		baseURL:    endpoint.baseURL("http://localhost:11434"),
		embedModel: embedModel,
	}
	p.ChatTasks = ChatTasks{c: p}
	return p
}

// Name returns the provider name
func (p *Ollama) Name() string {
	return "ollama"
}

// IsAvailable checks that the Ollama daemon answers
func (p *Ollama) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := p.endpoint.httpClient().Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Embed implements Embedder
func (p *Ollama) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	model := p.embedModel
	if model == "" {
		model = "nomic-embed-text"
	}

	ctx, cancel := p.endpoint.withTimeout(ctx)
	defer cancel()

	var resp ollamaEmbedResponse
	if err := postJSON(ctx, p.endpoint.httpClient(), p.baseURL+"/api/embed", nil, ollamaEmbedRequest{Model: model, Input: texts}, &resp); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if err := checkVectors(resp.Embeddings, len(texts)); err != nil {
		return nil, err
	}
	for _, v := range resp.Embeddings {
		unitNormalize(v)
	}
	return resp.Embeddings, nil
}

func (p *Ollama) complete(ctx context.Context, req completion) (string, error) {
	if p.endpoint.Model == "" {
		return "", fmt.Errorf("ollama model must be specified (e.g., llama3.1:8b, qwen2.5)")
	}

	apiReq := ollamaGenerateRequest{
		Model:   p.endpoint.Model,
		Prompt:  req.Prompt,
		System:  req.System,
		Options: ollamaOptions{NumPredict: req.MaxTokens},
	}
	if req.JSON {
		apiReq.Format = "json"
	}

	ctx, cancel := p.endpoint.withTimeout(ctx)
	defer cancel()

	var resp ollamaGenerateResponse
	if err := postJSON(ctx, p.endpoint.httpClient(), p.baseURL+"/api/generate", nil, apiReq, &resp); err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return strings.TrimSpace(resp.Response), nil
}
