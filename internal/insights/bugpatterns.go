package insights

import (
	"math"
	"sort"

	"github.com/thebtf/jiraindex/pkg/models"
)

// maxBugPatterns caps how many pattern groups find_bug_patterns returns,
// largest-group-first.
const maxBugPatterns = 10

// FindBugPatterns groups Bug-type issues by pairwise cosine similarity:
// for each unvisited bug, collect every other unvisited bug whose
// similarity is >= minSimilarity, mark the whole group visited, and emit
// it as one pattern. Similarity is computed as 1 - L2(a,b)/2 on
// L2-normalized vectors, matching the original pairwise-distance
// formulation rather than a raw dot product.
func FindBugPatterns(issues []models.IssueEmbedding, minSimilarity float64) []models.BugPattern {
	var bugs []models.IssueEmbedding
	for _, iss := range issues {
		if iss.IssueType == "Bug" {
			bugs = append(bugs, iss)
		}
	}
	if len(bugs) < 2 {
		return nil
	}

	normed := make([][]float64, len(bugs))
	for i, b := range bugs {
		normed[i] = normalize(b.Vector)
	}

	visited := make([]bool, len(bugs))
	var patterns []models.BugPattern

	for i := range bugs {
		if visited[i] {
			continue
		}

		group := []int{i}
		for j := i + 1; j < len(bugs); j++ {
			if visited[j] {
				continue
			}
			if cosineFromNormed(normed[i], normed[j]) >= minSimilarity {
				group = append(group, j)
			}
		}

		if len(group) < 2 {
			continue
		}
		for _, idx := range group {
			visited[idx] = true
		}

		statuses := map[string]int{}
		summaries := make([]string, 0, len(group))
		keys := make([]string, 0, len(group))
		for _, idx := range group {
			statuses[bugs[idx].Status]++
			summaries = append(summaries, bugs[idx].Summary)
			keys = append(keys, bugs[idx].IssueID)
		}
		sampleKeys := keys
		if len(sampleKeys) > 5 {
			sampleKeys = sampleKeys[:5]
		}

		patterns = append(patterns, models.BugPattern{
			PatternID:          len(patterns),
			BugCount:           len(group),
			Bugs:               sampleKeys,
			CommonSummaryTerms: extractKeywords(summaries, 3),
			Statuses:           statuses,
		})
	}

	sort.Slice(patterns, func(i, j int) bool { return patterns[i].BugCount > patterns[j].BugCount })
	for i := range patterns {
		patterns[i].PatternID = i
	}
	if len(patterns) > maxBugPatterns {
		patterns = patterns[:maxBugPatterns]
	}
	return patterns
}

// cosineFromNormed computes 1 - L2(a,b)/2 on already-normalized vectors.
// This is not equal to their cosine similarity (which is 1 - L2²/2), but
// it decreases with distance and so orders pairs the same way.
func cosineFromNormed(a, b []float64) float64 {
	var sumSq float64
	for i := range a {
		d := a[i] - b[i]
		sumSq += d * d
	}
	return 1 - math.Sqrt(sumSq)/2
}
