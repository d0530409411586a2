package synth

// Noise is the DBSCAN label of points that belong to no cluster
const Noise = -1

// DBSCAN clusters points given a precomputed symmetric distance matrix.
// A point is a core point when at least minSamples points (itself
// included) lie within eps. Labels are 0..k-1 in discovery order, or Noise.
func DBSCAN(dist [][]float64, eps float64, minSamples int) []int {
	n := len(dist)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = Noise
	}
	if n == 0 {
		return labels
	}

	neighbors := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if dist[i][j] <= eps {
				neighbors[i] = append(neighbors[i], j)
			}
		}
	}
	isCore := func(i int) bool { return len(neighbors[i]) >= minSamples }

	visited := make([]bool, n)
	cluster := 0
	for i := 0; i < n; i++ {
		if visited[i] || !isCore(i) {
			continue
		}

		// Breadth-first expansion from core point i
		visited[i] = true
		labels[i] = cluster
		queue := []int{i}
		for len(queue) > 0 {
			p := queue[0]
			queue = queue[1:]
			if !isCore(p) {
				continue
			}
			for _, q := range neighbors[p] {
				if labels[q] == Noise {
					labels[q] = cluster
				}
				if !visited[q] {
					visited[q] = true
					queue = append(queue, q)
				}
			}
		}
		cluster++
	}
	return labels
}

// ClusterCount returns the number of non-noise clusters in labels
func ClusterCount(labels []int) int {
	seen := map[int]bool{}
	for _, l := range labels {
		if l != Noise {
			seen[l] = true
		}
	}
	return len(seen)
}

// groupLabels returns member indices per label, ordered by label, skipping noise
func groupLabels(labels []int) [][]int {
	hi := -1
	for _, l := range labels {
		if l > hi {
			hi = l
		}
	}
	groups := make([][]int, hi+1)
	for i, l := range labels {
		if l != Noise {
			groups[l] = append(groups[l], i)
		}
	}
	out := groups[:0]
	for _, g := range groups {
		if len(g) > 0 {
			out = append(out, g)
		}
	}
	return out
}
