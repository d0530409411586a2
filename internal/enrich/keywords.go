package enrich

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/claimsynth/internal/inference"
	"github.com/ppiankov/claimsynth/internal/model"
	"github.com/ppiankov/claimsynth/internal/synth"
)

const (
	queryPrefix   = "query: "
	passagePrefix = "passage: "
	maxDigitShare = 0.4
	maxStopShare  = 0.4
)

var (
	parenthetical = regexp.MustCompile(`\(.*?\)`)
	phrasePunct   = regexp.MustCompile(`[,.;:!?“”‘’…]`)
)

// KeywordExtractor ranks n-gram candidates of a claim by embedding similarity
// to the claim itself
type KeywordExtractor struct {
	embedder    inference.Embedder
	maxKeywords int
	maxNgram    int
	stopwords   map[string]struct{}
}

// NewKeywordExtractor creates an extractor from the enrichment configuration
func NewKeywordExtractor(embedder inference.Embedder, cfg model.EnrichmentConfig) *KeywordExtractor {
	words := cfg.Stopwords
	if words == nil {
		words = model.DefaultStopwords
	}
	stop := make(map[string]struct{}, len(words))
	for _, w := range words {
		stop[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	maxKeywords := cfg.MaxKeywords
	if maxKeywords <= 0 {
		maxKeywords = 10
	}
	maxNgram := cfg.MaxNgram
	if maxNgram <= 0 {
		maxNgram = 4
	}
	return &KeywordExtractor{
		embedder:    embedder,
		maxKeywords: maxKeywords,
		maxNgram:    maxNgram,
		stopwords:   stop,
	}
}

// Candidates returns the distinct cleaned 1..maxNgram-grams of text in
// first-seen order. An underscore-joined compound is a single token.
func (k *KeywordExtractor) Candidates(text string) []string {
	var tokens []string
	for _, tok := range strings.Fields(text) {
		tokens = append(tokens, strings.ReplaceAll(tok, "_", " "))
	}

	seen := make(map[string]struct{})
	var out []string
	for n := 1; n <= k.maxNgram; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			phrase, ok := k.CleanPhrase(strings.Join(tokens[i:i+n], " "))
			if !ok {
				continue
			}
			if _, dup := seen[phrase]; dup {
				continue
			}
			seen[phrase] = struct{}{}
			out = append(out, phrase)
		}
	}
	return out
}

// CleanPhrase lowercases and normalizes a candidate phrase. ok is false for
// phrases with punctuation, mostly digits, fewer than two words or mostly
// stopwords.
func (k *KeywordExtractor) CleanPhrase(p string) (string, bool) {
	p = strings.Join(strings.Fields(strings.ToLower(p)), " ")
	p = parenthetical.ReplaceAllString(p, "")
	p = strings.Join(strings.Fields(p), " ")
	if p == "" || phrasePunct.MatchString(p) {
		return "", false
	}

	digits := 0
	for _, r := range p {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	if float64(digits) > maxDigitShare*float64(utf8.RuneCountInString(p)) {
		return "", false
	}

	words := strings.Fields(p)
	if len(words) < 2 {
		return "", false
	}
	stop := 0
	for _, w := range words {
		if _, ok := k.stopwords[w]; ok {
			stop++
		}
	}
	if float64(stop)/float64(len(words)) > maxStopShare {
		return "", false
	}
	return p, true
}

// Extract returns up to maxKeywords phrases most similar to text, with
// phrases contained in a longer kept phrase removed
func (k *KeywordExtractor) Extract(ctx context.Context, text string) ([]string, error) {
	cands := k.Candidates(text)
	if len(cands) == 0 {
		return []string{}, nil
	}

	inputs := make([]string, 0, len(cands)+1)
	inputs = append(inputs, queryPrefix+text)
	for _, c := range cands {
		inputs = append(inputs, passagePrefix+c)
	}
	vecs, err := k.embedder.Embed(ctx, inputs)
	if err != nil {
		return nil, err
	}

	type scored struct {
		phrase string
		sim    float64
	}
	ranked := make([]scored, len(cands))
	for i, c := range cands {
		ranked[i] = scored{phrase: c, sim: synth.Cosine(vecs[0], vecs[i+1])}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].sim > ranked[j].sim })
	if len(ranked) > k.maxKeywords {
		ranked = ranked[:k.maxKeywords]
	}

	top := make([]string, len(ranked))
	for i, r := range ranked {
		top[i] = r.phrase
	}
	return DedupeKeywords(top), nil
}

// DedupeKeywords keeps the longest phrases first and drops any phrase that is
// a substring of one already kept
func DedupeKeywords(keywords []string) []string {
	sorted := append([]string(nil), keywords...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return utf8.RuneCountInString(sorted[i]) > utf8.RuneCountInString(sorted[j])
	})
	kept := []string{}
	for _, kw := range sorted {
		contained := false
		for _, k := range kept {
			if strings.Contains(k, kw) {
				contained = true
				break
			}
		}
		if !contained {
			kept = append(kept, kw)
		}
	}
	return kept
}
