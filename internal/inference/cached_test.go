package inference

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/claimsynth/internal/cache"
	"github.com/ppiankov/claimsynth/internal/worker"
)

func TestCachedEmbedder_OnlyEmbedsMisses(t *testing.T) {
	mock := NewMock(8)
	c := cache.NewMemoryCache(time.Hour, time.Minute)
	e := NewCachedEmbedder(mock, c, "mock/test", 0)
	ctx := context.Background()

	first, err := e.Embed(ctx, []string{"a", "b", "a"})
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, first[0], first[2])

	calls, texts := mock.EmbedCalls()
	assert.Equal(t, int64(1), calls)
	assert.Equal(t, int64(2), texts, "duplicate texts are embedded once")

	second, err := e.Embed(ctx, []string{"b", "c"})
	require.NoError(t, err)
	assert.Equal(t, first[1], second[0])

	_, texts = mock.EmbedCalls()
	assert.Equal(t, int64(3), texts)
}

func TestCachedEmbedder_NilCache(t *testing.T) {
	mock := NewMock(4)
	assert.Same(t, mock, NewCachedEmbedder(mock, nil, "m", 0))
}

func TestCachedEmbedder_PropagatesErrors(t *testing.T) {
	mock := NewMock(4)
	mock.EmbedErr = ErrUnavailable
	e := NewCachedEmbedder(mock, cache.NewMemoryCache(time.Hour, time.Minute), "m", 0)

	_, err := e.Embed(context.Background(), []string{"a"})
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestBatchedEmbedder_PreservesOrder(t *testing.T) {
	mock := NewMock(4)
	e := NewBatchedEmbedder(mock, 2, 3)
	texts := []string{"a", "b", "c", "d", "e"}

	got, err := e.Embed(context.Background(), texts)
	require.NoError(t, err)

	want, err := NewMock(4).Embed(context.Background(), texts)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	calls, _ := mock.EmbedCalls()
	assert.Equal(t, int64(3), calls)
}

func TestLimit_WrapsEveryService(t *testing.T) {
	mock := NewMock(4)
	s := Limit(Services{Embedder: mock, Classifier: mock, NLI: mock}, worker.NewLimiter(0, 1))

	require.NotNil(t, s.Embedder)
	require.NotNil(t, s.NLI)
	assert.Nil(t, s.Summarizer)

	class, err := s.NLI.ClassifyPair(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, Neutral, class)
}

func TestVectorEncoding(t *testing.T) {
	v := []float32{0.25, -1, 3.5}
	got, err := decodeVector(encodeVector(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
