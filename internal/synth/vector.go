package synth

import "math"

// Cosine returns the cosine similarity of a and b. Mismatched or zero
// vectors have similarity 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Scale returns a copy of v multiplied by w
func Scale(v []float32, w float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * w)
	}
	return out
}

// SimilarityMatrix returns the full pairwise cosine matrix
func SimilarityMatrix(vecs [][]float32) [][]float64 {
	n := len(vecs)
	sim := make([][]float64, n)
	for i := range sim {
		sim[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		sim[i][i] = Cosine(vecs[i], vecs[i])
		for j := i + 1; j < n; j++ {
			s := Cosine(vecs[i], vecs[j])
			sim[i][j], sim[j][i] = s, s
		}
	}
	return sim
}

// DistanceMatrix converts cosine similarity to distance clip(1-sim, 0, 1)
func DistanceMatrix(vecs [][]float32) [][]float64 {
	dist := SimilarityMatrix(vecs)
	for i := range dist {
		for j := range dist[i] {
			dist[i][j] = clip(1-dist[i][j], 0, 1)
		}
	}
	return dist
}

// MeanPairwiseSimilarity is the mean cosine over all unordered pairs i<j.
// Fewer than two vectors are trivially cohesive.
func MeanPairwiseSimilarity(vecs [][]float32) float64 {
	if len(vecs) < 2 {
		return 1
	}
	var sum float64
	pairs := 0
	for i := 0; i < len(vecs); i++ {
		for j := i + 1; j < len(vecs); j++ {
			sum += Cosine(vecs[i], vecs[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}

func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
