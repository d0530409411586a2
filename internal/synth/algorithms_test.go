package synth

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/claimsynth/internal/model"
)

func TestCosineAndMatrices(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	c := []float32{2, 0}

	assert.InDelta(t, 0.0, Cosine(a, b), 1e-9)
	assert.InDelta(t, 1.0, Cosine(a, c), 1e-9)
	assert.Equal(t, 0.0, Cosine(a, []float32{1}), "mismatched dimensions")
	assert.Equal(t, 0.0, Cosine(a, []float32{0, 0}), "zero vector")

	dist := DistanceMatrix([][]float32{a, b, []float32{-1, 0}})
	assert.InDelta(t, 0.0, dist[0][0], 1e-9)
	assert.InDelta(t, 1.0, dist[0][1], 1e-9)
	assert.InDelta(t, 1.0, dist[0][2], 1e-9, "distance is clipped to 1")
}

func TestMeanPairwiseSimilarity_ExcludesDiagonal(t *testing.T) {
	vecs := [][]float32{{1, 0}, {0, 1}}
	assert.InDelta(t, 0.0, MeanPairwiseSimilarity(vecs), 1e-9)
	assert.Equal(t, 1.0, MeanPairwiseSimilarity(vecs[:1]))

	same := [][]float32{{1, 1}, {1, 1}, {1, 1}}
	assert.InDelta(t, 1.0, MeanPairwiseSimilarity(same), 1e-9)
}

func TestDBSCAN_CoreBorderNoise(t *testing.T) {
	// 0-1-2 chain, 3-4 pair, 5 isolated
	dist := [][]float64{
		{0, .1, .5, 1, 1, 1},
		{.1, 0, .1, 1, 1, 1},
		{.5, .1, 0, 1, 1, 1},
		{1, 1, 1, 0, .2, 1},
		{1, 1, 1, .2, 0, 1},
		{1, 1, 1, 1, 1, 0},
	}
	labels := DBSCAN(dist, 0.2, 2)
	assert.Equal(t, []int{0, 0, 0, 1, 1, Noise}, labels)
	assert.Equal(t, 2, ClusterCount(labels))
	assert.Equal(t, [][]int{{0, 1, 2}, {3, 4}}, groupLabels(labels))

	// min_samples counts the point itself: with 3, only point 1 is core
	labels = DBSCAN(dist, 0.2, 3)
	assert.Equal(t, []int{0, 0, 0, Noise, Noise, Noise}, labels)
}

func TestDBSCAN_IdenticalPoints(t *testing.T) {
	dist := [][]float64{{0, 0}, {0, 0}}
	assert.Equal(t, []int{0, 0}, DBSCAN(dist, 0.44, 2))
	assert.Empty(t, DBSCAN(nil, 0.44, 2))
}

func TestKMeans_SeparatesBlobs(t *testing.T) {
	points := [][]float32{
		{0, 0}, {0.1, 0}, {0, 0.1},
		{10, 10}, {10.1, 10}, {10, 10.1},
	}
	opts := KMeansOptions{K: 2, NInit: 5, MaxIter: 100, Seed: 42}
	labels := KMeans(points, opts)
	assert.Equal(t, []int{0, 0, 0, 1, 1, 1}, labels)
	assert.Equal(t, labels, KMeans(points, opts), "fixed seed is reproducible")
}

func TestKMeans_EdgeCases(t *testing.T) {
	assert.Nil(t, KMeans(nil, KMeansOptions{K: 3}))

	labels := KMeans([][]float32{{1, 0}, {1, 0}}, KMeansOptions{K: 5, Seed: 1})
	require.Len(t, labels, 2)
	for _, l := range labels {
		assert.Less(t, l, 2, "k is capped at the number of points")
	}
}

func TestKMeans_UniformPointsFormAPair(t *testing.T) {
	points := make([][]float32, 6)
	for i := range points {
		points[i] = uniformVec(i)
	}
	labels := KMeans(points, KMeansOptions{K: 3, NInit: 5, MaxIter: 300, Seed: 42})

	sizes := map[int]int{}
	for _, l := range labels {
		sizes[l]++
	}
	maxSize := 0
	for _, s := range sizes {
		maxSize = max(maxSize, s)
	}
	assert.GreaterOrEqual(t, maxSize, 2)
}

func TestRadiusPolicy(t *testing.T) {
	p := NewRadiusPolicy(model.DefaultConfig().Synthesis.Radius)

	assert.Equal(t, 0.48, p.Radius("Sức khỏe & Y tế"))
	assert.Equal(t, 0.46, p.Radius("Lối sống & Thói quen"))
	assert.Equal(t, 0.44, p.Radius("Thể thao"))

	r, name := p.Lookup("Y tế và Lối sống")
	assert.Equal(t, 0.48, r, "first matching category wins")
	assert.Equal(t, "health", name)
}

func TestNormalizeAliases(t *testing.T) {
	aliases := model.DefaultConfig().Synthesis.Aliases
	got := NormalizeAliases("WHO cảnh báo dịch tại TP HCM, VN", aliases)
	assert.Equal(t, "Tổ chức Y tế Thế giới cảnh báo dịch tại TP.HCM, Việt Nam", got)
}

func TestAssignGroupIDs_TopicThenDiscovery(t *testing.T) {
	cands := []Candidate{
		{Topic: "B", Index: 1},
		{Topic: "A", Index: 0},
		{Topic: "B", Index: 0},
		{Topic: "A", Index: 1},
	}
	got := AssignGroupIDs(cands)
	require.Len(t, got, 4)
	for i, want := range []struct {
		topic string
		index int
	}{{"A", 0}, {"A", 1}, {"B", 0}, {"B", 1}} {
		assert.Equal(t, i, got[i].GroupID)
		assert.Equal(t, want.topic, got[i].Candidate.Topic)
		assert.Equal(t, want.index, got[i].Candidate.Index)
	}
}

// uniformVec returns unit vectors with pairwise cosine 0.6
func uniformVec(i int) []float32 {
	v := make([]float32, 8)
	v[0] = float32(math.Sqrt(0.6))
	v[i+1] = float32(math.Sqrt(0.4))
	return v
}
