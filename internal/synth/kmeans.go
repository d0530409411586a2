package synth

import (
	"math"
	"math/rand/v2"
)

// KMeansOptions tune the centroid-based clustering
type KMeansOptions struct {
	K       int
	NInit   int   // independent k-means++ restarts, best inertia wins
	MaxIter int   // Lloyd iterations per restart
	Seed    int64 // fixed seed for reproducible runs
}

// KMeans partitions points into opts.K clusters and returns one label per
// point. Labels are renumbered by first appearance, so point 0 is always
// in cluster 0.
func KMeans(points [][]float32, opts KMeansOptions) []int {
	n := len(points)
	if n == 0 {
		return nil
	}
	k := opts.K
	if k <= 0 {
		k = 1
	}
	if k > n {
		k = n
	}
	nInit := max(opts.NInit, 1)
	maxIter := opts.MaxIter
	if maxIter <= 0 {
		maxIter = 300
	}

	data := make([][]float64, n)
	for i, p := range points {
		data[i] = make([]float64, len(p))
		for d, x := range p {
			data[i][d] = float64(x)
		}
	}

	seed := uint64(opts.Seed)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	var (
		best        []int
		bestInertia = math.Inf(1)
	)
	for run := 0; run < nInit; run++ {
		centers := seedPlusPlus(data, k, rng)
		labels, inertia := lloyd(data, centers, maxIter)
		if inertia < bestInertia {
			best, bestInertia = labels, inertia
		}
	}
	return relabel(best)
}

// seedPlusPlus picks k initial centers with D² weighting
func seedPlusPlus(data [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(data)
	centers := make([][]float64, 0, k)
	centers = append(centers, clone(data[rng.IntN(n)]))

	d2 := make([]float64, n)
	for len(centers) < k {
		var total float64
		for i, p := range data {
			d2[i] = math.Inf(1)
			for _, c := range centers {
				d2[i] = math.Min(d2[i], sqDist(p, c))
			}
			total += d2[i]
		}

		next := rng.IntN(n)
		if total > 0 {
			target := rng.Float64() * total
			for i, d := range d2 {
				if d == 0 {
					continue
				}
				next = i
				if target -= d; target <= 0 {
					break
				}
			}
		}
		centers = append(centers, clone(data[next]))
	}
	return centers
}

// lloyd iterates assignment and update steps until assignments settle
func lloyd(data [][]float64, centers [][]float64, maxIter int) ([]int, float64) {
	n, k := len(data), len(centers)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, p := range data {
			c := nearest(p, centers)
			if c != labels[i] {
				labels[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}

		counts := make([]int, k)
		sums := make([][]float64, k)
		for c := range sums {
			sums[c] = make([]float64, len(data[0]))
		}
		for i, p := range data {
			counts[labels[i]]++
			for d, x := range p {
				sums[labels[i]][d] += x
			}
		}

		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				// Empty cluster: move it onto the point farthest from its center
				far := farthestPoint(data, centers, labels)
				centers[c] = clone(data[far])
				labels[far] = c
				continue
			}
			for d := range sums[c] {
				centers[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}

	var inertia float64
	for i, p := range data {
		inertia += sqDist(p, centers[labels[i]])
	}
	return labels, inertia
}

func nearest(p []float64, centers [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, center := range centers {
		if d := sqDist(p, center); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func farthestPoint(data [][]float64, centers [][]float64, labels []int) int {
	far, farDist := 0, -1.0
	for i, p := range data {
		if d := sqDist(p, centers[labels[i]]); d > farDist {
			far, farDist = i, d
		}
	}
	return far
}

func relabel(labels []int) []int {
	mapping := map[int]int{}
	out := make([]int, len(labels))
	for i, l := range labels {
		m, ok := mapping[l]
		if !ok {
			m = len(mapping)
			mapping[l] = m
		}
		out[i] = m
	}
	return out
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}
