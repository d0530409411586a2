// Package inference defines the narrow model-service contracts used by the
// enrichment and synthesis stages, plus the backends that fulfil them.
package inference

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppiankov/claimsynth/internal/model"
)

var (
	// ErrUnavailable reports that a model service could not be reached
	ErrUnavailable = errors.New("model service unavailable")
	// ErrBadResponse reports a response that violates the service contract
	ErrBadResponse = errors.New("malformed model service response")
	// ErrUnsupported reports a task the selected backend cannot perform
	ErrUnsupported = errors.New("task not supported by provider")
)

// Embedder turns texts into fixed-dimension, unit-normalized vectors.
// The result has one vector per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Classification is a ranked zero-shot classification result
type Classification struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

// Top returns the highest-scoring label. Scores need not be pre-sorted.
func (c Classification) Top() (string, float64, bool) {
	if len(c.Labels) == 0 || len(c.Labels) != len(c.Scores) {
		return "", 0, false
	}
	best := 0
	for i, s := range c.Scores {
		if s > c.Scores[best] {
			best = i
		}
	}
	return c.Labels[best], c.Scores[best], true
}

// TopicClassifier scores candidate labels for a text
type TopicClassifier interface {
	Classify(ctx context.Context, text string, labels []string) (Classification, error)
}

// EntityRecognizer finds named-entity spans in a text
type EntityRecognizer interface {
	Recognize(ctx context.Context, text string) ([]model.Entity, error)
}

// SummaryOptions bound the generated summary
type SummaryOptions struct {
	MaxLength         int  `json:"max_length"`
	MinLength         int  `json:"min_length"`
	NumBeams          int  `json:"num_beams"`
	NoRepeatNgramSize int  `json:"no_repeat_ngram_size"`
	EarlyStopping     bool `json:"early_stopping"`
}

// SummaryOptionsFromConfig maps configuration onto generation options
func SummaryOptionsFromConfig(cfg model.SummaryConfig) SummaryOptions {
	return SummaryOptions{
		MaxLength:         cfg.MaxLength,
		MinLength:         cfg.MinLength,
		NumBeams:          cfg.NumBeams,
		NoRepeatNgramSize: cfg.NoRepeatNgramSize,
		EarlyStopping:     cfg.EarlyStopping,
	}
}

// Summarizer generates a short summary of text
type Summarizer interface {
	Summarize(ctx context.Context, text string, opts SummaryOptions) (string, error)
}

// NLIClass is a three-way textual entailment label. The numeric values follow
// the common MNLI head layout where contradiction is index 0.
type NLIClass int

const (
	Contradiction NLIClass = 0
	Neutral       NLIClass = 1
	Entailment    NLIClass = 2
)

func (c NLIClass) String() string {
	switch c {
	case Contradiction:
		return "contradiction"
	case Neutral:
		return "neutral"
	case Entailment:
		return "entailment"
	default:
		return fmt.Sprintf("nli(%d)", int(c))
	}
}

// ParseNLIClass maps a label name onto its class
func ParseNLIClass(label string) (NLIClass, error) {
	switch normalizeLabel(label) {
	case "contradiction", "contradict", "contradictory":
		return Contradiction, nil
	case "neutral":
		return Neutral, nil
	case "entailment", "entail", "entails":
		return Entailment, nil
	default:
		return Neutral, fmt.Errorf("%w: unknown NLI label %q", ErrBadResponse, label)
	}
}

// PairClassifier runs natural-language inference on an ordered pair
type PairClassifier interface {
	ClassifyPair(ctx context.Context, premise, hypothesis string) (NLIClass, error)
}

// Services bundles every model service the pipeline consumes
type Services struct {
	Embedder   Embedder
	Classifier TopicClassifier
	Recognizer EntityRecognizer
	Summarizer Summarizer
	NLI        PairClassifier
}
