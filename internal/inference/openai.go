package inference

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAI serves embeddings through the embeddings API and the text tasks
// through chat completions
type OpenAI struct {
	ChatTasks
	client     *openai.Client
	endpoint   Endpoint
	embedModel string
}

// NewOpenAI creates an OpenAI backend. embedModel may be empty when the
// backend is only used for text tasks.
func NewOpenAI(endpoint Endpoint, embedModel string) (*OpenAI, error) {
	if endpoint.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(endpoint.APIKey)
	if endpoint.BaseURL != "" {
		clientConfig.BaseURL = endpoint.BaseURL
	}
	clientConfig.HTTPClient = endpoint.httpClient()

	p := &OpenAI{
		client:     openai.NewClientWithConfig(clientConfig),
		endpoint:   endpoint,
		embedModel: embedModel,
	}
	p.ChatTasks = ChatTasks{c: p}
	return p, nil
}

// Name returns the provider name
func (p *OpenAI) Name() string {
	return "openai"
}

// IsAvailable checks the API key with a lightweight model listing
func (p *OpenAI) IsAvailable(ctx context.Context) bool {
	_, err := p.client.ListModels(ctx)
	return err == nil
}

// Embed implements Embedder
func (p *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	model := p.embedModel
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}

	ctx, cancel := p.endpoint.withTimeout(ctx)
	defer cancel()

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai embeddings: %w", ErrUnavailable, err)
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vecs := make([][]float32, len(data))
	for i, d := range data {
		vecs[i] = unitNormalize(d.Embedding)
	}
	if err := checkVectors(vecs, len(texts)); err != nil {
		return nil, err
	}
	return vecs, nil
}

func (p *OpenAI) complete(ctx context.Context, req completion) (string, error) {
	model := p.endpoint.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	ctx, cancel := p.endpoint.withTimeout(ctx)
	defer cancel()

	chatReq := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: 0,
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("%w: openai chat: %w", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices from OpenAI", ErrBadResponse)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
