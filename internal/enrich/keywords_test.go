package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/claimsynth/internal/inference"
	"github.com/ppiankov/claimsynth/internal/model"
)

func newExtractor(embedder inference.Embedder, maxKeywords int) *KeywordExtractor {
	cfg := model.DefaultConfig().Enrichment
	cfg.MaxKeywords = maxKeywords
	return NewKeywordExtractor(embedder, cfg)
}

func TestCleanPhrase(t *testing.T) {
	k := newExtractor(nil, 10)

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Hà   Nội", "hà nội", true},
		{"vitamin (C) tổng hợp", "vitamin tổng hợp", true},
		{"rau xanh,", "", false},
		{"“rau xanh”", "", false},
		{"năm 2023", "", false},
		{"rau", "", false},
		{"của các", "", false},
		{"rau của", "", false},
		{"rau xanh của", "rau xanh của", true},
	}
	for _, tt := range tests {
		got, ok := k.CleanPhrase(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestCandidates(t *testing.T) {
	k := newExtractor(nil, 10)
	got := k.Candidates("Ăn rau_xanh mỗi ngày.")
	assert.Equal(t, []string{"rau xanh", "ăn rau xanh", "rau xanh mỗi", "ăn rau xanh mỗi"}, got)
}

func TestDedupeKeywords(t *testing.T) {
	got := DedupeKeywords([]string{"rau xanh", "ăn rau xanh", "trái cây", "rau"})
	assert.Equal(t, []string{"ăn rau xanh", "trái cây"}, got)
	assert.Equal(t, []string{}, DedupeKeywords(nil))
}

func TestExtract_RanksBySimilarity(t *testing.T) {
	mock := inference.NewMock(4)
	mock.Vectors["query: Ăn rau xanh"] = []float32{1, 0, 0, 0}
	mock.Vectors["passage: ăn rau"] = []float32{0.5, 0.866, 0, 0}
	mock.Vectors["passage: rau xanh"] = []float32{0.9, 0.436, 0, 0}
	mock.Vectors["passage: ăn rau xanh"] = []float32{0.1, 0.995, 0, 0}

	got, err := newExtractor(mock, 2).Extract(context.Background(), "Ăn rau xanh")
	require.NoError(t, err)
	assert.Equal(t, []string{"rau xanh", "ăn rau"}, got)

	got, err = newExtractor(mock, 10).Extract(context.Background(), "Ăn rau xanh")
	require.NoError(t, err)
	assert.Equal(t, []string{"ăn rau xanh"}, got, "shorter phrases inside a kept phrase are dropped")

	calls, texts := mock.EmbedCalls()
	assert.Equal(t, int64(2), calls)
	assert.Equal(t, int64(8), texts)
}

func TestExtract_NoCandidatesSkipsEmbedding(t *testing.T) {
	mock := inference.NewMock(4)
	got, err := newExtractor(mock, 10).Extract(context.Background(), "Rau.")
	require.NoError(t, err)
	assert.Equal(t, []string{}, got)
	calls, _ := mock.EmbedCalls()
	assert.Zero(t, calls)
}

func TestExtract_EmbeddingError(t *testing.T) {
	mock := inference.NewMock(4)
	mock.EmbedErr = inference.ErrUnavailable
	_, err := newExtractor(mock, 10).Extract(context.Background(), "Ăn rau xanh")
	assert.True(t, errors.Is(err, inference.ErrUnavailable))
}
