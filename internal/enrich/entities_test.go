package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/claimsynth/internal/model"
)

func entityTexts(ents []model.Entity) []string {
	out := make([]string, len(ents))
	for i, e := range ents {
		out[i] = e.Text
	}
	return out
}

func TestExtractDates_Patterns(t *testing.T) {
	text := "Ngày 12 tháng 5 năm 2023, mùa hè ở Hà Nội"
	dates := ExtractDates(text)

	assert.Equal(t, []string{"Ngày 12", "tháng 5", "năm 2023", "2023", "mùa hè"}, entityTexts(dates))
	runes := []rune(text)
	for _, d := range dates {
		assert.Equal(t, model.EntityLabelDate, d.Label)
		assert.Equal(t, 1.0, d.Score)
		require.NotNil(t, d.Start)
		require.NotNil(t, d.End)
		assert.Equal(t, d.Text, string(runes[*d.Start:*d.End]), "offsets are rune based")
	}
}

func TestExtractDates_SlashesAndRelative(t *testing.T) {
	dates := ExtractDates("Hôm nay là 12/5/2023, mỗi tuần một lần")
	assert.Equal(t, []string{"12/5/2023", "2023", "mỗi tuần", "Hôm nay"}, entityTexts(dates))
}

func TestExtractDates_WordBoundaries(t *testing.T) {
	assert.Empty(t, ExtractDates("mã x2020y"))
	assert.Empty(t, ExtractDates("số 12345"))
	assert.Empty(t, ExtractDates("năm 20201"))
	assert.Empty(t, ExtractDates("không có ngày tháng"))
}

type failingRecognizer struct{}

func (failingRecognizer) Recognize(context.Context, string) ([]model.Entity, error) {
	return nil, errors.New("ner down")
}

func TestEntityAnnotator_MergesModelAndDates(t *testing.T) {
	text := "Hôm qua ông Nguyễn Văn An đến Hà Nội"

	withModel := NewEntityAnnotator(newMockServices().Recognizer, nil)
	ents, failed := withModel.Annotate(context.Background(), text)
	assert.False(t, failed)
	assert.Equal(t, []string{"Nguyễn Văn An", "Hà Nội", "Hôm qua"}, entityTexts(ents))

	degraded := NewEntityAnnotator(failingRecognizer{}, nil)
	ents, failed = degraded.Annotate(context.Background(), text)
	assert.True(t, failed)
	assert.Equal(t, []string{"Hôm qua"}, entityTexts(ents))
}
