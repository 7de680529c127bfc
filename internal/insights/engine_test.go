package insights

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/jiraindex/pkg/models"
)

type fakeIssueProvider struct {
	issues []models.IssueEmbedding
}

func (f *fakeIssueProvider) GetIssuesForAnalysis(ctx context.Context, project, issueType string) ([]models.IssueEmbedding, error) {
	var out []models.IssueEmbedding
	for _, iss := range f.issues {
		if project != "" && iss.ProjectKey != project {
			continue
		}
		if issueType != "" && iss.IssueType != issueType {
			continue
		}
		out = append(out, iss)
	}
	return out, nil
}

func TestEngineClusterIssuesTooFew(t *testing.T) {
	provider := &fakeIssueProvider{issues: []models.IssueEmbedding{
		{IssueID: "A-1", ProjectKey: "A", Vector: []float32{1, 0}},
	}}
	engine := NewEngine(provider, zerolog.Nop())
	clusters, err := engine.ClusterIssues(context.Background(), "A", 2, 3)
	require.NoError(t, err)
	assert.Nil(t, clusters)
}

func TestEngineFindBugPatternsFiltersByType(t *testing.T) {
	provider := &fakeIssueProvider{issues: []models.IssueEmbedding{
		{IssueID: "A-1", ProjectKey: "A", IssueType: "Bug", Summary: "crash", Vector: []float32{1, 0}},
		{IssueID: "A-2", ProjectKey: "A", IssueType: "Bug", Summary: "crash again", Vector: []float32{0.99, 0.01}},
		{IssueID: "A-3", ProjectKey: "A", IssueType: "Task", Summary: "docs", Vector: []float32{1, 0}},
	}}
	engine := NewEngine(provider, zerolog.Nop())
	patterns, err := engine.FindBugPatterns(context.Background(), "A", 0.9)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, 2, patterns[0].BugCount)
}
