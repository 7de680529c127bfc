package insights

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/thebtf/jiraindex/pkg/models"
)

func resolvedAt(t time.Time) *time.Time { return &t }

func TestAnalyzeTrendsWindowsAndCounts(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	issues := []models.IssueEmbedding{
		{IssueID: "A-1", IssueType: "Bug", Priority: "High", Labels: []string{"crash"}, CreatedAt: now.Add(-2 * 24 * time.Hour)},
		{IssueID: "A-2", IssueType: "Task", Priority: "Low", CreatedAt: now.Add(-20 * 24 * time.Hour)},
		{IssueID: "A-3", IssueType: "Bug", Priority: "High", CreatedAt: now.Add(-3 * 24 * time.Hour), ResolvedAt: resolvedAt(now.Add(-1 * 24 * time.Hour))},
	}

	trends := AnalyzeTrends(issues, 28, 7, now)
	assert.Len(t, trends, 4)

	var totalCreated, totalResolved int
	for _, tr := range trends {
		totalCreated += tr.TotalCreated
		totalResolved += tr.TotalResolved
		assert.True(t, tr.PeriodStart.Before(tr.PeriodEnd))
	}
	assert.Equal(t, 3, totalCreated)
	assert.Equal(t, 1, totalResolved)
}

func TestAnalyzeTrendsEmptyInput(t *testing.T) {
	trends := AnalyzeTrends(nil, 28, 7, time.Now())
	assert.Empty(t, trends)
}

func TestGetVelocityMetricsTrendDirection(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	var issues []models.IssueEmbedding
	for i := 0; i < 5; i++ {
		issues = append(issues, models.IssueEmbedding{
			IssueID:   "A-" + string(rune('0'+i)),
			CreatedAt: now.Add(-3 * 24 * time.Hour),
		})
	}
	metrics := GetVelocityMetrics("PROJ", issues, 2, now)
	assert.Equal(t, "PROJ", metrics.ProjectKey)
	assert.Len(t, metrics.WeeklyMetrics, 2)
	assert.Equal(t, "growing", metrics.BacklogTrend)
}
