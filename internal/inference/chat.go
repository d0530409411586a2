package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/claimsynth/internal/model"
)

// completion is a single prompt/response exchange with a chat model
type completion struct {
	System    string
	Prompt    string
	MaxTokens int
	JSON      bool // ask the backend for a JSON object response
}

// completer is implemented by every chat-capable backend
type completer interface {
	complete(ctx context.Context, req completion) (string, error)
}

// ChatTasks implements the text tasks (classification, NER, summarization,
// NLI) on top of any chat model, using constrained JSON prompts
type ChatTasks struct {
	c completer
}

const classifySystem = "You are a zero-shot text classifier. Reply with JSON only."

// Classify scores every candidate label for text
func (t *ChatTasks) Classify(ctx context.Context, text string, labels []string) (Classification, error) {
	if len(labels) == 0 {
		return Classification{}, fmt.Errorf("%w: no candidate labels", ErrBadResponse)
	}

	var b strings.Builder
	b.WriteString("Score how well the text matches each label, independently, from 0 to 1.\n")
	b.WriteString("Labels:\n")
	for _, l := range labels {
		fmt.Fprintf(&b, "- %s\n", l)
	}
	fmt.Fprintf(&b, "\nText: %s\n\n", text)
	b.WriteString(`Respond as {"scores": {"<label>": <score>, ...}} using the labels exactly as written.`)

	raw, err := t.c.complete(ctx, completion{System: classifySystem, Prompt: b.String(), MaxTokens: 400, JSON: true})
	if err != nil {
		return Classification{}, err
	}

	var resp struct {
		Scores map[string]float64 `json:"scores"`
	}
	if err := decodeJSONObject(raw, &resp); err != nil {
		return Classification{}, err
	}

	out := Classification{}
	for _, l := range labels {
		out.Labels = append(out.Labels, l)
		out.Scores = append(out.Scores, clamp01(resp.Scores[l]))
	}
	sortClassification(&out)
	return out, nil
}

const nerSystem = "You are a named-entity recognizer for Vietnamese news. Reply with JSON only."

// Recognize extracts PER, ORG, LOC and MISC spans
func (t *ChatTasks) Recognize(ctx context.Context, text string) ([]model.Entity, error) {
	prompt := "Extract named entities (labels PER, ORG, LOC, MISC) that appear verbatim in the text.\n\n" +
		"Text: " + text + "\n\n" +
		`Respond as {"entities": [{"label": "...", "text": "...", "score": 0.0}]}.`

	raw, err := t.c.complete(ctx, completion{System: nerSystem, Prompt: prompt, MaxTokens: 600, JSON: true})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Entities []model.Entity `json:"entities"`
	}
	if err := decodeJSONObject(raw, &resp); err != nil {
		return nil, err
	}

	entities := make([]model.Entity, 0, len(resp.Entities))
	for _, e := range resp.Entities {
		e.Text = strings.TrimSpace(e.Text)
		if e.Text == "" || !strings.Contains(text, e.Text) {
			continue
		}
		e.Label = strings.ToUpper(strings.TrimSpace(e.Label))
		e.Start, e.End = nil, nil
		e.Score = clamp01(e.Score)
		entities = append(entities, e)
	}
	return entities, nil
}

const summarizeSystem = "Bạn là biên tập viên tin tức. Chỉ tóm tắt thông tin có trong văn bản, không suy diễn."

// Summarize produces a bounded, neutral summary. Generation options that only
// make sense for seq2seq decoders (beams, n-gram blocking) become prompt
// constraints.
func (t *ChatTasks) Summarize(ctx context.Context, text string, opts SummaryOptions) (string, error) {
	maxTokens := opts.MaxLength
	if maxTokens <= 0 {
		maxTokens = 80
	}

	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Giới hạn: tối đa khoảng %d từ", maxTokens)
	if opts.MinLength > 0 {
		fmt.Fprintf(&b, ", tối thiểu %d từ", opts.MinLength)
	}
	if opts.NoRepeatNgramSize > 0 {
		b.WriteString(", không lặp lại cụm từ")
	}
	b.WriteString(". Chỉ trả về đoạn tóm tắt.")

	out, err := t.c.complete(ctx, completion{System: summarizeSystem, Prompt: b.String(), MaxTokens: maxTokens * 3})
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%w: empty summary", ErrBadResponse)
	}
	return out, nil
}

const nliSystem = "You are a natural language inference classifier. Reply with JSON only."

// ClassifyPair labels the relation of hypothesis to premise
func (t *ChatTasks) ClassifyPair(ctx context.Context, premise, hypothesis string) (NLIClass, error) {
	prompt := "Premise: " + premise + "\nHypothesis: " + hypothesis + "\n\n" +
		`Does the premise entail, contradict, or neither? Respond as {"label": "entailment" | "neutral" | "contradiction"}.`

	raw, err := t.c.complete(ctx, completion{System: nliSystem, Prompt: prompt, MaxTokens: 20, JSON: true})
	if err != nil {
		return Neutral, err
	}

	var resp struct {
		Label string `json:"label"`
	}
	if err := decodeJSONObject(raw, &resp); err != nil {
		return Neutral, err
	}
	return ParseNLIClass(resp.Label)
}

// decodeJSONObject decodes the first JSON object in raw, tolerating code
// fences and prose around it
func decodeJSONObject(raw string, v any) error {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return fmt.Errorf("%w: no JSON object in %q", ErrBadResponse, truncate(raw, 80))
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return nil
}

func sortClassification(c *Classification) {
	idx := make([]int, len(c.Labels))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return c.Scores[idx[a]] > c.Scores[idx[b]] })

	labels := make([]string, len(idx))
	scores := make([]float64, len(idx))
	for i, j := range idx {
		labels[i], scores[i] = c.Labels[j], c.Scores[j]
	}
	c.Labels, c.Scores = labels, scores
}

func normalizeLabel(label string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(label)), ".,!\"'` ")
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
