package insights

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/thebtf/jiraindex/pkg/models"
)

func TestFindBugPatternsGroupsSimilarBugs(t *testing.T) {
	issues := []models.IssueEmbedding{
		{IssueID: "A-1", IssueType: "Bug", Status: "Open", Summary: "login crash on startup", Vector: []float32{1, 0, 0}},
		{IssueID: "A-2", IssueType: "Bug", Status: "Open", Summary: "login crash after update", Vector: []float32{0.98, 0.02, 0}},
		{IssueID: "A-3", IssueType: "Bug", Status: "Closed", Summary: "slow query on dashboard", Vector: []float32{0, 1, 0}},
		{IssueID: "A-4", IssueType: "Task", Status: "Open", Summary: "write docs", Vector: []float32{1, 0, 0}},
	}
	patterns := FindBugPatterns(issues, 0.9)
	assert.Len(t, patterns, 1)
	assert.Equal(t, 2, patterns[0].BugCount)
	assert.ElementsMatch(t, []string{"A-1", "A-2"}, patterns[0].Bugs)
}

func TestFindBugPatternsNoMatchesBelowThreshold(t *testing.T) {
	issues := []models.IssueEmbedding{
		{IssueID: "A-1", IssueType: "Bug", Summary: "crash", Vector: []float32{1, 0}},
		{IssueID: "A-2", IssueType: "Bug", Summary: "slow", Vector: []float32{0, 1}},
	}
	patterns := FindBugPatterns(issues, 0.99)
	assert.Empty(t, patterns)
}

func TestFindBugPatternsFewerThanTwoBugs(t *testing.T) {
	issues := []models.IssueEmbedding{
		{IssueID: "A-1", IssueType: "Bug", Vector: []float32{1, 0}},
		{IssueID: "A-2", IssueType: "Task", Vector: []float32{0, 1}},
	}
	assert.Empty(t, FindBugPatterns(issues, 0.5))
}
