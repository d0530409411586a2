package inference

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/claimsynth/internal/cache"
	"github.com/ppiankov/claimsynth/internal/model"
	"github.com/ppiankov/claimsynth/internal/worker"
)

// Backend is a provider that can serve every text task
type Backend interface {
	Name() string
	TopicClassifier
	EntityRecognizer
	Summarizer
	PairClassifier
}

// Options carry the shared infrastructure the factory wires around backends
type Options struct {
	Cache   cache.Cache     // nil disables embedding caching
	Limiter *worker.Limiter // nil disables rate limiting
	Client  *http.Client    // nil uses per-backend defaults
	Workers int             // concurrent embedding batches
}

// NewServices builds the model services described by cfg: a text-task
// backend from inference.provider and an embedder from embedding.provider
// (falling back to the inference provider), wrapped as
// cache -> batching -> rate limit -> backend.
func NewServices(cfg *model.Config, opts Options) (Services, error) {
	textProvider := strings.ToLower(cfg.Inference.Provider)
	embedProvider := strings.ToLower(cfg.Embedding.Provider)
	if embedProvider == "" {
		embedProvider = textProvider
	}

	textEndpoint := Endpoint{
		Model:   cfg.Inference.Model,
		APIKey:  cfg.Inference.APIKey,
		BaseURL: cfg.Inference.BaseURL,
		Timeout: time.Duration(cfg.Inference.Timeout) * time.Second,
		Client:  opts.Client,
	}

	var mock *Mock
	if textProvider == "mock" || embedProvider == "mock" {
		mock = NewMock(cfg.Embedding.Dimension)
	}

	text, err := newBackend(textProvider, textEndpoint, cfg.Embedding.Model, mock)
	if err != nil {
		return Services{}, err
	}

	embedEndpoint := Endpoint{
		Model:   cfg.Embedding.Model,
		APIKey:  cfg.Embedding.APIKey,
		BaseURL: cfg.Embedding.BaseURL,
		Timeout: textEndpoint.Timeout,
		Client:  opts.Client,
	}
	if embedProvider == textProvider {
		if embedEndpoint.APIKey == "" {
			embedEndpoint.APIKey = textEndpoint.APIKey
		}
		if embedEndpoint.BaseURL == "" {
			embedEndpoint.BaseURL = textEndpoint.BaseURL
		}
	}

	embedder, err := newEmbedder(embedProvider, embedEndpoint, mock)
	if err != nil {
		return Services{}, err
	}

	services := Limit(Services{
		Embedder:   embedder,
		Classifier: text,
		Recognizer: text,
		Summarizer: text,
		NLI:        text,
	}, opts.Limiter)

	batched := NewBatchedEmbedder(services.Embedder, cfg.Embedding.BatchSize, opts.Workers)
	services.Embedder = NewCachedEmbedder(batched, opts.Cache, embedProvider+"/"+cfg.Embedding.Model, cfg.Cache.DiskTTL)
	return services, nil
}

func newBackend(provider string, endpoint Endpoint, embedModel string, mock *Mock) (Backend, error) {
	switch provider {
	case "http", "":
		return NewModelServer(endpoint), nil
	case "openai":
		return NewOpenAI(endpoint, embedModel)
	case "anthropic", "claude":
		return NewAnthropic(endpoint)
	case "ollama":
		return NewOllama(endpoint, embedModel), nil
	case "mock":
		return mock, nil
	default:
		return nil, fmt.Errorf("unknown inference provider: %s (supported: http, openai, anthropic, ollama, mock)", provider)
	}
}

func newEmbedder(provider string, endpoint Endpoint, mock *Mock) (Embedder, error) {
	switch provider {
	case "http", "":
		return NewModelServer(endpoint), nil
	case "openai":
		return NewOpenAI(endpoint, endpoint.Model)
	case "ollama":
		return NewOllama(endpoint, endpoint.Model), nil
	case "mock":
		return mock, nil
	case "anthropic", "claude":
		return nil, fmt.Errorf("%w: anthropic has no embeddings API, set embedding.provider", ErrUnsupported)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: http, openai, ollama, mock)", provider)
	}
}
