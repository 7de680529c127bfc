package insights

import (
	"math"
	"math/rand"
	"sort"

	"github.com/thebtf/jiraindex/pkg/models"
)

// kmeansSeed is the fixed seed behind every clustering run, matching the
// testable property that identical inputs always produce identical
// assignments (E-KMEANS-DETERMINISM).
const kmeansSeed = 42

// maxKMeansIterations bounds the Lloyd's-algorithm loop; convergence
// (centroids unchanged between iterations) usually happens well before
// this, but issue embeddings are not guaranteed to converge cleanly.
const maxKMeansIterations = 100

// kmeansCosine assigns each vector in vectors to one of k clusters using
// Lloyd's algorithm over Euclidean distance on L2-normalized vectors,
// which is equivalent to maximizing cosine similarity to the nearest
// centroid. Initial centroids are k distinct vectors chosen by a
// fixed-seed RNG. The iteration bound is the maxKMeansIterations constant,
// not an argument.
func kmeansCosine(vectors [][]float32, k int) []int {
	n := len(vectors)
	assign := make([]int, n)
	if n == 0 || k <= 0 {
		return assign
	}
	if k > n {
		k = n
	}

	normed := make([][]float64, n)
	for i, v := range vectors {
		normed[i] = normalize(v)
	}

	rng := rand.New(rand.NewSource(kmeansSeed))
	perm := rng.Perm(n)
	centroids := make([][]float64, k)
	for i := 0; i < k; i++ {
		centroids[i] = append([]float64(nil), normed[perm[i]]...)
	}

	for iter := 0; iter < maxKMeansIterations; iter++ {
		changed := false
		for i, v := range normed {
			best, bestDist := 0, math.Inf(1)
			for c, centroid := range centroids {
				d := sqDist(v, centroid)
				if d < bestDist {
					bestDist, best = d, c
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}

		newCentroids := make([][]float64, k)
		counts := make([]int, k)
		dims := len(normed[0])
		for c := range newCentroids {
			newCentroids[c] = make([]float64, dims)
		}
		for i, v := range normed {
			c := assign[i]
			counts[c]++
			for d := 0; d < dims; d++ {
				newCentroids[c][d] += v[d]
			}
		}
		for c := range newCentroids {
			if counts[c] == 0 {
				newCentroids[c] = centroids[c]
				continue
			}
			for d := range newCentroids[c] {
				newCentroids[c][d] /= float64(counts[c])
			}
		}

		if !changed && iter > 0 {
			centroids = newCentroids
			break
		}
		centroids = newCentroids
	}

	return assign
}

func normalize(v []float32) []float64 {
	out := make([]float64, len(v))
	var sumSq float64
	for i, x := range v {
		out[i] = float64(x)
		sumSq += out[i] * out[i]
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return out
	}
	for i := range out {
		out[i] /= norm
	}
	return out
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// ClusterIssues groups a project's issues by semantic similarity via
// K-means over their embeddings. Clusters smaller than minSize are
// dropped; surviving clusters are returned size-descending with three
// centroid-nearest representatives, top label/component counts, and
// frequency-extracted theme keywords.
func ClusterIssues(issues []models.IssueEmbedding, nClusters, minSize int) []models.ClusterResult {
	if len(issues) < nClusters*minSize {
		return nil
	}

	vectors := make([][]float32, len(issues))
	for i, iss := range issues {
		vectors[i] = iss.Vector
	}
	assign := kmeansCosine(vectors, nClusters)
	normed := make([][]float64, len(issues))
	for i, v := range vectors {
		normed[i] = normalize(v)
	}

	var results []models.ClusterResult
	for c := 0; c < nClusters; c++ {
		var members []int
		for i, a := range assign {
			if a == c {
				members = append(members, i)
			}
		}
		if len(members) < minSize {
			continue
		}

		dims := len(normed[members[0]])
		centroid := make([]float64, dims)
		for _, idx := range members {
			for d := 0; d < dims; d++ {
				centroid[d] += normed[idx][d]
			}
		}
		for d := range centroid {
			centroid[d] /= float64(len(members))
		}

		type distIdx struct {
			idx  int
			dist float64
		}
		dists := make([]distIdx, len(members))
		for i, idx := range members {
			dists[i] = distIdx{idx: idx, dist: sqDist(normed[idx], centroid)}
		}
		sort.Slice(dists, func(i, j int) bool { return dists[i].dist < dists[j].dist })

		repCount := 3
		if repCount > len(dists) {
			repCount = len(dists)
		}
		reps := make([]string, repCount)
		for i := 0; i < repCount; i++ {
			reps[i] = issues[dists[i].idx].IssueID
		}

		labelCounts := map[string]int{}
		componentCounts := map[string]int{}
		summaries := make([]string, 0, len(members))
		for _, idx := range members {
			for _, l := range issues[idx].Labels {
				labelCounts[l]++
			}
			for _, cp := range issues[idx].Components {
				componentCounts[cp]++
			}
			summaries = append(summaries, issues[idx].Summary)
		}

		centroid32 := make([]float32, len(centroid))
		for i, x := range centroid {
			centroid32[i] = float32(x)
		}

		results = append(results, models.ClusterResult{
			ClusterID:            c,
			Size:                 len(members),
			RepresentativeIssues: reps,
			CommonLabels:         topNLabels(labelCounts, 5),
			CommonComponents:     topNLabels(componentCounts, 5),
			ThemeKeywords:        extractKeywords(summaries, 5),
			Centroid:             centroid32,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Size > results[j].Size })
	return results
}

func topNLabels(counts map[string]int, n int) []string {
	type kv struct {
		k string
		v int
	}
	items := make([]kv, 0, len(counts))
	for k, v := range counts {
		items = append(items, kv{k, v})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].v != items[j].v {
			return items[i].v > items[j].v
		}
		return items[i].k < items[j].k
	})
	if len(items) > n {
		items = items[:n]
	}
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.k
	}
	return out
}
