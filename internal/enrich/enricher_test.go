package enrich

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ppiankov/claimsynth/internal/inference"
	"github.com/ppiankov/claimsynth/internal/model"
)

// keywordClassifier picks a topic from fixed trigger words in the prompt
type keywordClassifier struct{}

func (keywordClassifier) Classify(_ context.Context, text string, labels []string) (inference.Classification, error) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "lỗi"):
		return inference.Classification{}, errors.New("classifier timeout")
	case strings.Contains(lower, "rau"):
		return inference.Classification{
			Labels: []string{"Sức khỏe & Y tế", "Dinh dưỡng & Thực phẩm"},
			Scores: []float64{0.05, 0.91234},
		}, nil
	case strings.Contains(lower, "bóng đá"):
		return inference.Classification{Labels: []string{"Thể thao"}, Scores: []float64{0.45}}, nil
	}
	return inference.Classification{Labels: labels[:1], Scores: []float64{0.5}}, nil
}

func newMockServices() inference.Services {
	mock := inference.NewMock(8)
	return inference.Services{
		Embedder:   mock,
		Classifier: keywordClassifier{},
		Recognizer: mock,
		Summarizer: mock,
		NLI:        mock,
	}
}

func TestTopicAssigner(t *testing.T) {
	a := NewTopicAssigner(keywordClassifier{}, model.DefaultConfig().Enrichment)
	assert.Equal(t,
		"Đây là một câu trong bài báo tiếng Việt: 'Ăn rau'. Hãy xác định chủ đề phù hợp nhất trong danh sách sau.",
		a.Prompt("Ăn rau"))

	topic, conf, ok, err := a.Assign(context.Background(), "Ăn rau")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Dinh dưỡng & Thực phẩm", topic)
	assert.Equal(t, 0.912, conf)

	_, _, ok, err = a.Assign(context.Background(), "Trận bóng đá")
	require.NoError(t, err)
	assert.False(t, ok)

	topic, _, ok, err = a.Assign(context.Background(), "Tin khác")
	require.NoError(t, err)
	assert.True(t, ok, "a score equal to the threshold is kept")
	assert.Equal(t, DefaultTopicLabels[0], topic)
}

func TestEnrich_FlattensKeptClaims(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Concurrency.EnrichWorkers = 2
	e := New(cfg, newMockServices(), nil)

	articles := []model.Article{
		{ID: "1", URL: "https://a.vn/1", Title: "Rau", Claims: []model.ArticleClaim{
			{Text: " Ăn rau xanh giúp Hà Nội khỏe mạnh năm 2023 "},
			{Text: "Trận bóng đá tối qua"},
			{Text: "  "},
		}},
		{ID: "2", URL: "https://a.vn/2", Claims: []model.ArticleClaim{{Text: "Bóng đá hay"}}},
		{ID: "3", URL: "https://a.vn/3", Claims: []model.ArticleClaim{{Text: "rau lỗi"}}},
	}

	records, stats, err := e.Enrich(context.Background(), articles)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, model.ArticleID("1"), rec.ArticleID)
	assert.Equal(t, "https://a.vn/1", rec.URL)
	assert.Equal(t, "Ăn rau xanh giúp Hà Nội khỏe mạnh năm 2023", rec.Text)
	assert.Equal(t, "Dinh dưỡng & Thực phẩm", rec.Topic)
	require.NotNil(t, rec.Confidence)
	assert.Equal(t, 0.912, *rec.Confidence)
	assert.Equal(t, []string{"Hà Nội", "năm 2023", "2023"}, entityTexts(rec.Entities))
	assert.NotEmpty(t, rec.Keywords)
	assert.LessOrEqual(t, len(rec.Keywords), 10)

	assert.Equal(t, Stats{
		Articles:       3,
		ArticlesKept:   1,
		ClaimsIn:       5,
		ClaimsKept:     1,
		EmptyClaims:    1,
		LowConfidence:  2,
		ClassifyErrors: 1,
	}, stats)
}

func TestEnrich_KeywordEmbeddingFailureAborts(t *testing.T) {
	services := newMockServices()
	mock := inference.NewMock(8)
	mock.EmbedErr = inference.ErrUnavailable
	services.Embedder = mock

	_, _, err := New(model.DefaultConfig(), services, nil).Enrich(context.Background(), []model.Article{
		{ID: "1", Claims: []model.ArticleClaim{{Text: "Ăn rau xanh mỗi ngày"}}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, inference.ErrUnavailable))
}

func TestReadArticles(t *testing.T) {
	single := `{"id": 7, "url": "https://a.vn/7", "claims": ["Câu một", {"text": "Câu hai"}]}`
	arts, err := ReadArticles(strings.NewReader(single))
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, model.ArticleID("7"), arts[0].ID)
	assert.Equal(t, []model.ArticleClaim{{Text: "Câu một"}, {Text: "Câu hai"}}, arts[0].Claims)

	arts, err = ReadArticles(strings.NewReader(`[{"id": "a"}, {"id": "b"}]`))
	require.NoError(t, err)
	assert.Len(t, arts, 2)

	_, err = ReadArticles(strings.NewReader("  "))
	assert.Error(t, err)
}

func TestEnrich_LogsDroppedClaims(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	e := New(model.DefaultConfig(), newMockServices(), zap.New(core))

	_, stats, err := e.Enrich(context.Background(), []model.Article{
		{ID: "9", Claims: []model.ArticleClaim{{Text: "rau lỗi"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ClassifyErrors)

	entries := logs.FilterMessage("topic classification failed, dropping claim").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "9", entries[0].ContextMap()["article_id"])
}
