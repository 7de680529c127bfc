package insights

import (
	"time"

	"github.com/thebtf/jiraindex/pkg/models"
)

// GetVelocityMetrics computes per-week created/resolved/net counts over
// the trailing weeks window, most-recent week first, plus averages and a
// growing/shrinking backlog trend.
func GetVelocityMetrics(project string, issues []models.IssueEmbedding, weeks int, now time.Time) models.VelocityMetrics {
	weekly := make([]models.VelocityWeek, weeks)
	var totalCreated, totalResolved int

	for w := 0; w < weeks; w++ {
		weekStart := now.Add(-time.Duration(w+1) * 7 * 24 * time.Hour)
		weekEnd := now.Add(-time.Duration(w) * 7 * 24 * time.Hour)

		var created, resolved int
		for _, iss := range issues {
			if !iss.CreatedAt.Before(weekStart) && iss.CreatedAt.Before(weekEnd) {
				created++
			}
			if iss.ResolvedAt != nil && !iss.ResolvedAt.Before(weekStart) && iss.ResolvedAt.Before(weekEnd) {
				resolved++
			}
		}

		weekly[w] = models.VelocityWeek{
			Week:       w + 1,
			WeekEnding: weekEnd,
			Created:    created,
			Resolved:   resolved,
			Net:        created - resolved,
		}
		totalCreated += created
		totalResolved += resolved
	}

	avgCreated := float64(totalCreated) / float64(weeks)
	avgResolved := float64(totalResolved) / float64(weeks)
	trend := "shrinking"
	if avgCreated > avgResolved {
		trend = "growing"
	}

	return models.VelocityMetrics{
		ProjectKey:         project,
		WeeksAnalyzed:      weeks,
		WeeklyMetrics:      weekly,
		AvgCreatedPerWeek:  avgCreated,
		AvgResolvedPerWeek: avgResolved,
		AvgNetChange:       avgCreated - avgResolved,
		BacklogTrend:       trend,
	}
}
