package enrich

import (
	"context"
	"regexp"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ppiankov/claimsynth/internal/inference"
	"github.com/ppiankov/claimsynth/internal/model"
)

// datePatterns match Vietnamese dates, years, recurring times, relative days
// and seasons. Word boundaries are checked separately since RE2's \b only
// knows ASCII letters.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:năm|tháng|ngày)\s+\d{1,4}`),
	regexp.MustCompile(`\d{1,2}/\d{1,2}(?:/\d{2,4})?`),
	regexp.MustCompile(`\d{1,2}-\d{1,2}(?:-\d{2,4})?`),
	regexp.MustCompile(`\d{4}`),
	regexp.MustCompile(`(?i)mỗi\s+(?:sáng|chiều|ngày|tuần|tháng|năm)`),
	regexp.MustCompile(`(?i)(?:hôm nay|ngày mai|hôm qua)`),
	regexp.MustCompile(`(?i)(?:mùa xuân|mùa hè|mùa thu|mùa đông)`),
}

// ExtractDates returns every date-pattern match in text, pattern by pattern,
// with rune offsets. Matches from different patterns may overlap.
func ExtractDates(text string) []model.Entity {
	var found []model.Entity
	for _, re := range datePatterns {
		for _, loc := range boundedMatches(re, text) {
			start := utf8.RuneCountInString(text[:loc[0]])
			end := start + utf8.RuneCountInString(text[loc[0]:loc[1]])
			found = append(found, model.Entity{
				Label: model.EntityLabelDate,
				Text:  text[loc[0]:loc[1]],
				Start: &start,
				End:   &end,
				Score: 1.0,
			})
		}
	}
	return found
}

// boundedMatches finds non-overlapping matches of re that start and end on
// Unicode word boundaries. A rejected match is retried one rune later.
func boundedMatches(re *regexp.Regexp, text string) [][2]int {
	var out [][2]int
	pos := 0
	for pos <= len(text) {
		loc := re.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if end > start && atBoundary(text, start) && atBoundary(text, end) {
			out = append(out, [2]int{start, end})
			pos = end
			continue
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		if size == 0 {
			break
		}
		pos = start + size
	}
	return out
}

// atBoundary reports whether byte offset i separates a word rune from a
// non-word rune (or the text edge)
func atBoundary(text string, i int) bool {
	before, after := false, false
	if i > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:i])
		before = isWordRune(r)
	}
	if i < len(text) {
		r, _ := utf8.DecodeRuneInString(text[i:])
		after = isWordRune(r)
	}
	return before != after
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// EntityAnnotator merges recognizer spans with date-pattern matches
type EntityAnnotator struct {
	recognizer inference.EntityRecognizer
	logger     *zap.Logger
}

// NewEntityAnnotator creates an annotator. A nil recognizer yields dates only.
func NewEntityAnnotator(recognizer inference.EntityRecognizer, logger *zap.Logger) *EntityAnnotator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntityAnnotator{recognizer: recognizer, logger: logger}
}

// Annotate returns model entities followed by date entities, without
// deduplication. The second return reports whether the recognizer failed.
func (a *EntityAnnotator) Annotate(ctx context.Context, text string) ([]model.Entity, bool) {
	entities := []model.Entity{}
	failed := false
	if a.recognizer != nil {
		ents, err := a.recognizer.Recognize(ctx, text)
		if err != nil {
			failed = true
			a.logger.Warn("entity recognition failed, keeping date patterns only", zap.Error(err))
		} else {
			entities = append(entities, ents...)
		}
	}
	return append(entities, ExtractDates(text)...), failed
}
