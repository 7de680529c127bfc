package insights

import (
	"sort"
	"time"

	"github.com/thebtf/jiraindex/pkg/models"
)

// AnalyzeTrends slices [now-days, now] into contiguous periodDays windows
// and computes created/resolved/net counts, type and priority
// distributions, and the top-5 trending labels for each window.
func AnalyzeTrends(issues []models.IssueEmbedding, days, periodDays int, now time.Time) []models.TrendAnalysis {
	if len(issues) == 0 {
		return nil
	}

	start := now.Add(-time.Duration(days) * 24 * time.Hour)
	var results []models.TrendAnalysis

	for periodStart := start; periodStart.Before(now); {
		periodEnd := periodStart.Add(time.Duration(periodDays) * 24 * time.Hour)
		if periodEnd.After(now) {
			periodEnd = now
		}

		byType := map[string]int{}
		byPriority := map[string]int{}
		labelCounts := map[string]int{}
		var created, resolved int

		for _, iss := range issues {
			if !iss.CreatedAt.Before(periodStart) && iss.CreatedAt.Before(periodEnd) {
				created++
				byType[iss.IssueType]++
				byPriority[iss.Priority]++
				for _, l := range iss.Labels {
					labelCounts[l]++
				}
			}
			if iss.ResolvedAt != nil && !iss.ResolvedAt.Before(periodStart) && iss.ResolvedAt.Before(periodEnd) {
				resolved++
			}
		}

		results = append(results, models.TrendAnalysis{
			PeriodStart:    periodStart,
			PeriodEnd:      periodEnd,
			TotalCreated:   created,
			TotalResolved:  resolved,
			NetChange:      created - resolved,
			ByType:         byType,
			ByPriority:     byPriority,
			TrendingLabels: topLabelCounts(labelCounts, 5),
		})

		periodStart = periodEnd
	}

	return results
}

func topLabelCounts(counts map[string]int, n int) []models.LabelCount {
	out := make([]models.LabelCount, 0, len(counts))
	for k, v := range counts {
		out = append(out, models.LabelCount{Label: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
