package pgvector

import (
	"context"

	"github.com/thebtf/jiraindex/pkg/models"
)

// likelyDuplicateCutoff is the similarity score above which a candidate is
// called out as a high-confidence duplicate rather than just worth a
// manual review; grounded on the original tool's fixed 0.92 cutoff.
const likelyDuplicateCutoff = 0.92

// DetectDuplicates searches open (non-Done) issues in project for the
// nearest matches to queryVec (the embedding of a proposed issue's summary
// and description) and classifies the result: DUPLICATE_LIKELY if any
// candidate clears likelyDuplicateCutoff, REVIEW_SUGGESTED if any clears
// threshold but none clears the cutoff, NO_DUPLICATES_FOUND otherwise.
func (s *Store) DetectDuplicates(ctx context.Context, queryVec []float32, project string, threshold float64) (models.DuplicateCheckResult, error) {
	filters := map[string]any{
		"status_category": map[string]any{"$ne": "Done"},
	}
	if project != "" {
		filters["project_key"] = project
	}

	result, err := s.SearchIssues(ctx, queryVec, SearchParams{
		Limit:   10,
		Filters: filters,
	})
	if err != nil {
		return models.DuplicateCheckResult{}, err
	}

	return classifyDuplicates(result.Hits, threshold), nil
}

// classifyDuplicates turns a ranked hit list into a verdict: DUPLICATE_LIKELY
// if any surviving candidate clears likelyDuplicateCutoff, REVIEW_SUGGESTED
// if any clears threshold but none clears the cutoff, NO_DUPLICATES_FOUND
// otherwise. Factored out from DetectDuplicates so the classification logic
// is testable without a live database connection.
func classifyDuplicates(hits []models.SearchHit, threshold float64) models.DuplicateCheckResult {
	out := models.DuplicateCheckResult{Threshold: threshold}
	likely := false
	for _, hit := range hits {
		if hit.Score < threshold {
			continue
		}
		isLikely := hit.Score > likelyDuplicateCutoff
		likely = likely || isLikely
		out.Candidates = append(out.Candidates, models.DuplicateCandidate{
			Key:             hit.Key,
			Summary:         hit.Summary,
			Project:         hit.Project,
			Status:          hit.Status,
			Similarity:      hit.Score,
			LikelyDuplicate: isLikely,
		})
	}

	switch {
	case likely:
		out.Verdict = models.VerdictDuplicateLikely
	case len(out.Candidates) > 0:
		out.Verdict = models.VerdictReviewSuggested
	default:
		out.Verdict = models.VerdictNoDuplicatesFound
	}
	return out
}
