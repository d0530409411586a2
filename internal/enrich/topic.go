package enrich

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ppiankov/claimsynth/internal/inference"
	"github.com/ppiankov/claimsynth/internal/model"
)

// DefaultTopicLabels is the fixed topic taxonomy offered to the classifier
var DefaultTopicLabels = model.DefaultTopicLabels

// TopicAssigner picks the best topic label for a claim through a zero-shot
// classifier and rejects low-confidence assignments
type TopicAssigner struct {
	classifier    inference.TopicClassifier
	labels        []string
	prompt        string
	minConfidence float64
}

// NewTopicAssigner creates an assigner from the enrichment configuration
func NewTopicAssigner(classifier inference.TopicClassifier, cfg model.EnrichmentConfig) *TopicAssigner {
	labels := cfg.TopicLabels
	if len(labels) == 0 {
		labels = DefaultTopicLabels
	}
	prompt := cfg.TopicPrompt
	if !strings.Contains(prompt, "%s") {
		prompt = model.DefaultConfig().Enrichment.TopicPrompt
	}
	return &TopicAssigner{
		classifier:    classifier,
		labels:        labels,
		prompt:        prompt,
		minConfidence: cfg.MinTopicConfidence,
	}
}

// Prompt wraps the claim text in the classification prompt
func (a *TopicAssigner) Prompt(text string) string {
	return fmt.Sprintf(a.prompt, text)
}

// Assign returns the top label and its score rounded to 3 decimals. ok is
// false when the top score is below the minimum confidence.
func (a *TopicAssigner) Assign(ctx context.Context, text string) (topic string, confidence float64, ok bool, err error) {
	result, err := a.classifier.Classify(ctx, a.Prompt(text), a.labels)
	if err != nil {
		return "", 0, false, err
	}
	label, score, found := result.Top()
	if !found {
		return "", 0, false, fmt.Errorf("%w: empty classification", inference.ErrBadResponse)
	}
	if score < a.minConfidence {
		return label, round3(score), false, nil
	}
	return label, round3(score), true, nil
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
