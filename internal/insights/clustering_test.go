package insights

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/thebtf/jiraindex/pkg/models"
)

func makeIssue(key string, vec []float32, labels ...string) models.IssueEmbedding {
	return models.IssueEmbedding{
		IssueID: key,
		Vector:  vec,
		Summary: "summary for " + key,
		Labels:  labels,
	}
}

func TestKMeansDeterministic(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 0}, {0.9, 0.1, 0}, {0.95, 0, 0.05},
		{0, 1, 0}, {0.1, 0.9, 0}, {0, 0.95, 0.05},
	}
	assign1 := kmeansCosine(vectors, 2)
	assign2 := kmeansCosine(vectors, 2)
	assert.Equal(t, assign1, assign2)

	// The first three vectors should land in one cluster, the last three
	// in the other.
	assert.Equal(t, assign1[0], assign1[1])
	assert.Equal(t, assign1[1], assign1[2])
	assert.Equal(t, assign1[3], assign1[4])
	assert.Equal(t, assign1[4], assign1[5])
	assert.NotEqual(t, assign1[0], assign1[3])
}

func TestClusterIssuesTooFewReturnsEmpty(t *testing.T) {
	issues := []models.IssueEmbedding{
		makeIssue("A-1", []float32{1, 0}),
		makeIssue("A-2", []float32{0, 1}),
	}
	clusters := ClusterIssues(issues, 2, 3)
	assert.Empty(t, clusters)
}

func TestClusterIssuesGroupsBySimilarity(t *testing.T) {
	issues := []models.IssueEmbedding{
		makeIssue("A-1", []float32{1, 0, 0}, "login"),
		makeIssue("A-2", []float32{0.95, 0.05, 0}, "login"),
		makeIssue("A-3", []float32{0.9, 0, 0.1}, "auth"),
		makeIssue("A-4", []float32{0, 1, 0}, "perf"),
		makeIssue("A-5", []float32{0, 0.95, 0.05}, "perf"),
		makeIssue("A-6", []float32{0.05, 0.9, 0}, "perf"),
	}
	clusters := ClusterIssues(issues, 2, 3)
	assert.Len(t, clusters, 2)
	for _, c := range clusters {
		assert.GreaterOrEqual(t, c.Size, 3)
		assert.LessOrEqual(t, len(c.RepresentativeIssues), 3)
		assert.NotEmpty(t, c.RepresentativeIssues)
	}
	// Sorted size descending.
	if len(clusters) == 2 {
		assert.GreaterOrEqual(t, clusters[0].Size, clusters[1].Size)
	}
}

func TestExtractKeywordsDropsStopwordsAndShortWords(t *testing.T) {
	keywords := extractKeywords([]string{
		"login fails when the user signs in",
		"login fails on the mobile app",
	}, 5)
	assert.Contains(t, keywords, "login")
	assert.Contains(t, keywords, "fails")
	assert.NotContains(t, keywords, "the")
	assert.NotContains(t, keywords, "in")
}
