package inference

import (
	"context"

	"github.com/ppiankov/claimsynth/internal/model"
	"github.com/ppiankov/claimsynth/internal/worker"
)

// Limiter keys, one per model service
const (
	ServiceEmbed     = "embed"
	ServiceClassify  = "classify"
	ServiceNER       = "ner"
	ServiceSummarize = "summarize"
	ServiceNLI       = "nli"
)

// BatchedEmbedder splits large inputs into size-bounded requests and runs
// them on a small worker pool, preserving input order
type BatchedEmbedder struct {
	next    Embedder
	size    int
	workers int
}

// NewBatchedEmbedder wraps next. A non-positive size disables batching.
func NewBatchedEmbedder(next Embedder, size, workers int) *BatchedEmbedder {
	if workers <= 0 {
		workers = 1
	}
	return &BatchedEmbedder{next: next, size: size, workers: workers}
}

// Embed implements Embedder
func (e *BatchedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return worker.MapBatches(ctx, texts, e.size, e.workers, e.next.Embed)
}

// LimitedEmbedder waits on the shared limiter before every call
type LimitedEmbedder struct {
	next    Embedder
	limiter *worker.Limiter
}

// Embed implements Embedder
func (e *LimitedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx, ServiceEmbed); err != nil {
		return nil, err
	}
	return e.next.Embed(ctx, texts)
}

type limitedClassifier struct {
	next    TopicClassifier
	limiter *worker.Limiter
}

func (c *limitedClassifier) Classify(ctx context.Context, text string, labels []string) (Classification, error) {
	if err := c.limiter.Wait(ctx, ServiceClassify); err != nil {
		return Classification{}, err
	}
	return c.next.Classify(ctx, text, labels)
}

type limitedRecognizer struct {
	next    EntityRecognizer
	limiter *worker.Limiter
}

func (r *limitedRecognizer) Recognize(ctx context.Context, text string) ([]model.Entity, error) {
	if err := r.limiter.Wait(ctx, ServiceNER); err != nil {
		return nil, err
	}
	return r.next.Recognize(ctx, text)
}

type limitedSummarizer struct {
	next    Summarizer
	limiter *worker.Limiter
}

func (s *limitedSummarizer) Summarize(ctx context.Context, text string, opts SummaryOptions) (string, error) {
	if err := s.limiter.Wait(ctx, ServiceSummarize); err != nil {
		return "", err
	}
	return s.next.Summarize(ctx, text, opts)
}

type limitedPairClassifier struct {
	next    PairClassifier
	limiter *worker.Limiter
}

func (p *limitedPairClassifier) ClassifyPair(ctx context.Context, premise, hypothesis string) (NLIClass, error) {
	if err := p.limiter.Wait(ctx, ServiceNLI); err != nil {
		return Neutral, err
	}
	return p.next.ClassifyPair(ctx, premise, hypothesis)
}

// Limit wraps every non-nil service in s with limiter l
func Limit(s Services, l *worker.Limiter) Services {
	if l == nil {
		return s
	}
	out := Services{}
	if s.Embedder != nil {
		out.Embedder = &LimitedEmbedder{next: s.Embedder, limiter: l}
	}
	if s.Classifier != nil {
		out.Classifier = &limitedClassifier{next: s.Classifier, limiter: l}
	}
	if s.Recognizer != nil {
		out.Recognizer = &limitedRecognizer{next: s.Recognizer, limiter: l}
	}
	if s.Summarizer != nil {
		out.Summarizer = &limitedSummarizer{next: s.Summarizer, limiter: l}
	}
	if s.NLI != nil {
		out.NLI = &limitedPairClassifier{next: s.NLI, limiter: l}
	}
	return out
}
