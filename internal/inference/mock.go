package inference

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/ppiankov/claimsynth/internal/model"
)

// Mock is a deterministic, offline backend for dry runs and tests.
// Embeddings are hash-derived unless a fixed vector is registered for the
// exact text; NLI answers neutral unless NLIFunc says otherwise.
type Mock struct {
	Dim      int
	Vectors  map[string][]float32
	NLIFunc  func(premise, hypothesis string) NLIClass
	EmbedErr error

	embedCalls atomic.Int64
	embedTexts atomic.Int64
}

// NewMock creates a mock backend producing dim-dimensional vectors
func NewMock(dim int) *Mock {
	if dim <= 0 {
		dim = 64
	}
	return &Mock{Dim: dim, Vectors: map[string][]float32{}}
}

// Name returns the provider name
func (m *Mock) Name() string {
	return "mock"
}

// EmbedCalls reports how many Embed calls and texts the mock has served
func (m *Mock) EmbedCalls() (calls, texts int64) {
	return m.embedCalls.Load(), m.embedTexts.Load()
}

// Embed implements Embedder
func (m *Mock) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.embedCalls.Add(1)
	m.embedTexts.Add(int64(len(texts)))
	if m.EmbedErr != nil {
		return nil, m.EmbedErr
	}

	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := m.Vectors[t]; ok {
			vecs[i] = unitNormalize(append([]float32(nil), v...))
			continue
		}
		vecs[i] = hashVector(t, m.Dim)
	}
	return vecs, nil
}

// Classify scores each label by the share of its words found in the text.
// Labels with no overlap get a hash-derived score below 0.5.
func (m *Mock) Classify(ctx context.Context, text string, labels []string) (Classification, error) {
	if err := ctx.Err(); err != nil {
		return Classification{}, err
	}
	lower := strings.ToLower(text)
	out := Classification{}
	for _, label := range labels {
		words := labelWords(label)
		hits := 0
		for _, w := range words {
			if strings.Contains(lower, w) {
				hits++
			}
		}
		score := hashUnit(text+"\x00"+label) * 0.4
		if hits > 0 {
			score = 0.5 + 0.5*float64(hits)/float64(len(words))
		}
		out.Labels = append(out.Labels, label)
		out.Scores = append(out.Scores, score)
	}
	sortClassification(&out)
	return out, nil
}

// Recognize reports runs of capitalized words that do not open the text
func (m *Mock) Recognize(ctx context.Context, text string) ([]model.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		entities []model.Entity
		run      []string
	)
	flush := func() {
		if len(run) > 0 {
			entities = append(entities, model.Entity{Label: "MISC", Text: strings.Join(run, " "), Score: 0.9})
			run = nil
		}
	}
	for i, tok := range strings.Fields(text) {
		tok = strings.TrimFunc(tok, unicode.IsPunct)
		r := []rune(tok)
		if i > 0 && len(r) > 0 && unicode.IsUpper(r[0]) {
			run = append(run, tok)
			continue
		}
		flush()
	}
	flush()
	return entities, nil
}

// Summarize keeps the first MaxLength words
func (m *Mock) Summarize(ctx context.Context, text string, opts SummaryOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	words := strings.Fields(text)
	if opts.MaxLength > 0 && len(words) > opts.MaxLength {
		words = words[:opts.MaxLength]
	}
	return strings.Join(words, " "), nil
}

// ClassifyPair implements PairClassifier
func (m *Mock) ClassifyPair(ctx context.Context, premise, hypothesis string) (NLIClass, error) {
	if err := ctx.Err(); err != nil {
		return Neutral, err
	}
	if m.NLIFunc != nil {
		return m.NLIFunc(premise, hypothesis), nil
	}
	return Neutral, nil
}

func labelWords(label string) []string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(label)) {
		if w != "&" {
			words = append(words, w)
		}
	}
	return words
}

func hashVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	seed := []byte(input)
	if len(seed) == 0 {
		seed = []byte("empty")
	}
	for i := 0; i < dim; i++ {
		h := sha256.Sum256(append(seed, byte(i%251)))
		u := binary.BigEndian.Uint32(h[:4])
		vec[i] = float32(u%2000)/1000.0 - 1.0
	}
	return unitNormalize(vec)
}

func hashUnit(input string) float64 {
	h := sha256.Sum256([]byte(input))
	return float64(binary.BigEndian.Uint32(h[:4])) / float64(^uint32(0))
}
