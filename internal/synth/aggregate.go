package synth

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/claimsynth/internal/inference"
	"github.com/ppiankov/claimsynth/internal/model"
)

// Aggregator turns an accepted cluster into its persisted group record
type Aggregator struct {
	summarizer inference.Summarizer
	cfg        model.SynthesisConfig
	logger     *zap.Logger
}

// NewAggregator creates an aggregator
func NewAggregator(summarizer inference.Summarizer, cfg model.SynthesisConfig, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{summarizer: summarizer, cfg: cfg, logger: logger}
}

// Aggregate builds the group record for claims. Conflict is left false; the
// caller sets it from the contradiction verdict.
func (a *Aggregator) Aggregate(ctx context.Context, id int, claims []model.Claim) model.Group {
	texts := make([]string, len(claims))
	topics := make([]string, 0, len(claims))
	var keywords, entities, sources []string
	for i, c := range claims {
		texts[i] = c.Text
		if c.Topic != "" {
			topics = append(topics, c.Topic)
		}
		keywords = append(keywords, c.Keywords...)
		entities = append(entities, c.EntityTexts()...)
		sources = append(sources, c.URL)
	}

	topic := a.cfg.DefaultTopic
	if top := MostCommon(topics, 1); len(top) == 1 {
		topic = top[0]
	}

	return model.Group{
		GroupID:        id,
		Summary:        a.summarize(ctx, id, texts),
		Topic:          topic,
		Keywords:       MostCommon(keywords, a.cfg.MaxKeywords),
		Entities:       MostCommon(entities, a.cfg.MaxEntities),
		Claims:         texts,
		Sources:        dedupeSorted(sources),
		AvgReliability: meanReliability(claims),
	}
}

// summarize falls back to the joined claim texts when the service fails
func (a *Aggregator) summarize(ctx context.Context, id int, texts []string) string {
	joined := strings.Join(texts, " ")
	if a.summarizer == nil {
		return joined
	}
	opts := inference.SummaryOptionsFromConfig(a.cfg.Summary)
	summary, err := a.summarizer.Summarize(ctx, a.cfg.Summary.Prefix+joined, opts)
	if err != nil || strings.TrimSpace(summary) == "" {
		a.logger.Warn("summary unavailable, using claim texts", zap.Int("group_id", id), zap.Error(err))
		return joined
	}
	return strings.TrimSpace(summary)
}

// MostCommon ranks items by frequency, breaking ties by first appearance,
// and returns at most n of them. Empty strings are ignored.
func MostCommon(items []string, n int) []string {
	counts := map[string]int{}
	var order []string
	for _, it := range items {
		if it == "" {
			continue
		}
		if counts[it] == 0 {
			order = append(order, it)
		}
		counts[it]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if n >= 0 && len(order) > n {
		order = order[:n]
	}
	if order == nil {
		return []string{}
	}
	return order
}

func dedupeSorted(items []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, it := range items {
		if it != "" && !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	sort.Strings(out)
	return out
}

func meanReliability(claims []model.Claim) *float64 {
	var sum float64
	n := 0
	for _, c := range claims {
		if c.Reliability != nil {
			sum += *c.Reliability
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := round3(sum / float64(n))
	return &avg
}
