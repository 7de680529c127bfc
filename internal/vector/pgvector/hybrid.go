package pgvector

import (
	"context"
	"fmt"
	"sort"

	pgvec "github.com/pgvector/pgvector-go"

	"github.com/thebtf/jiraindex/internal/errkind"
	"github.com/thebtf/jiraindex/pkg/models"
)

// vectorRecallFactor controls how many extra raw vector candidates
// hybrid_search pulls in (3x limit+offset, vs. 5x for pure vector search —
// hybrid search has the lexical pass to backfill recall).
const vectorRecallFactor = 3

// hybridVectorThresholdFactor is applied to min_score before the vector
// leg of hybrid search, since the final fused score also incorporates the
// lexical leg and so can clear min_score even when the vector leg alone
// would not.
const hybridVectorThresholdFactor = 0.5

// ftsBaselineScore is assigned to a lexical hit when the native full-text
// search path fails and substring fallback is used instead (no ranking
// signal is available, so every fallback hit ties).
const ftsBaselineScore = 0.5

// HybridSearchParams bundles hybrid_search's options.
type HybridSearchParams struct {
	Limit     int
	Offset    int
	Filters   map[string]any
	FTSWeight float64
	MinScore  float64
}

// HybridSearch fuses cosine vector search with lexical search over summary
// and description_preview, per the weighted-fusion algorithm: vector leg
// at half the final threshold for recall, lexical leg via native FTS with
// an ILIKE substring fallback, fused by issue_key, then threshold-filtered
// and paginated.
func (s *Store) HybridSearch(ctx context.Context, queryVec []float32, queryText string, p HybridSearchParams) (models.SearchResult, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}

	vectorScores, meta, err := s.vectorLeg(ctx, queryVec, p.Filters, vectorRecallFactor*(limit+p.Offset), p.MinScore*hybridVectorThresholdFactor)
	if err != nil {
		return models.SearchResult{}, err
	}

	ftsScores, ftsMeta, err := s.lexicalLeg(ctx, queryText, p.Filters, vectorRecallFactor*(limit+p.Offset))
	if err != nil {
		return models.SearchResult{}, err
	}

	for k, v := range ftsMeta {
		if _, ok := meta[k]; !ok {
			meta[k] = v
		}
	}

	fused := fuseScores(vectorScores, ftsScores, p.FTSWeight)

	var hits []models.SearchHit
	for key, score := range fused {
		if score < p.MinScore {
			continue
		}
		m := meta[key]
		hits = append(hits, models.SearchHit{
			Key:     key,
			Summary: m.summary,
			Type:    m.issueType,
			Status:  m.status,
			Project: m.project,
			Score:   score,
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	return paginate(hits, p.Offset, limit), nil
}

type issueMeta struct {
	summary   string
	issueType string
	status    string
	project   string
}

// vectorLeg runs the cosine-distance scan and returns similarity scores by
// issue_key alongside enough metadata to build the final SearchHit.
func (s *Store) vectorLeg(ctx context.Context, queryVec []float32, filters map[string]any, rawLimit int, minScore float64) (map[string]float64, map[string]issueMeta, error) {
	whereClause, args := buildWhereClause(filters, 2, s.logger)
	sqlStr := fmt.Sprintf(`
		SELECT issue_key, project_key, summary, issue_type, status,
		       embedding <=> $1 AS distance
		FROM issues
		%s
		ORDER BY distance ASC
		LIMIT $%d`,
		prefixWhere(whereClause), len(args)+2,
	)

	allArgs := append([]any{pgvec.NewVector(queryVec)}, args...)
	allArgs = append(allArgs, rawLimit)

	rows, err := s.sqlDB.QueryContext(ctx, sqlStr, allArgs...)
	if err != nil {
		return nil, nil, errkind.New(errkind.Persistence, "vectorLeg", err)
	}
	defer rows.Close()

	scores := map[string]float64{}
	meta := map[string]issueMeta{}
	for rows.Next() {
		var key, project, summary, issueType, status string
		var distance float64
		if err := rows.Scan(&key, &project, &summary, &issueType, &status, &distance); err != nil {
			return nil, nil, errkind.New(errkind.Persistence, "vectorLeg", err)
		}
		sim := clampSimilarity(1 - distance)
		if sim < minScore {
			continue
		}
		scores[key] = sim
		meta[key] = issueMeta{summary: summary, issueType: issueType, status: status, project: project}
	}
	return scores, meta, rows.Err()
}

// lexicalLeg runs PostgreSQL full-text search over summary and
// description_preview; on any query failure (e.g. missing tsvector
// support on an exotic deployment) it falls back to a case-insensitive
// substring scan with a flat baseline score.
func (s *Store) lexicalLeg(ctx context.Context, queryText string, filters map[string]any, rawLimit int) (map[string]float64, map[string]issueMeta, error) {
	if queryText == "" {
		return map[string]float64{}, map[string]issueMeta{}, nil
	}

	whereClause, args := buildWhereClause(filters, 2, s.logger)
	ftsSQL := fmt.Sprintf(`
		SELECT issue_key, project_key, summary, issue_type, status,
		       ts_rank(to_tsvector('english', summary || ' ' || description_preview), plainto_tsquery('english', $1)) AS rank
		FROM issues
		WHERE to_tsvector('english', summary || ' ' || description_preview) @@ plainto_tsquery('english', $1)
		%s
		ORDER BY rank DESC
		LIMIT $%d`,
		andWhere(whereClause), len(args)+2,
	)
	allArgs := append([]any{queryText}, args...)
	allArgs = append(allArgs, rawLimit)

	rows, err := s.sqlDB.QueryContext(ctx, ftsSQL, allArgs...)
	if err == nil {
		defer rows.Close()
		scores := map[string]float64{}
		meta := map[string]issueMeta{}
		for rows.Next() {
			var key, project, summary, issueType, status string
			var rank float64
			if scanErr := rows.Scan(&key, &project, &summary, &issueType, &status, &rank); scanErr != nil {
				break
			}
			scores[key] = rank
			meta[key] = issueMeta{summary: summary, issueType: issueType, status: status, project: project}
		}
		if rowsErr := rows.Err(); rowsErr == nil {
			if len(scores) > 0 {
				normalizeScores(scores)
			}
			return scores, meta, nil
		} else {
			err = rowsErr
		}
	}

	s.logger.Debug().Err(err).Msg("native full-text search unavailable, falling back to substring match")
	return s.substringFallback(ctx, queryText, filters, rawLimit)
}

func (s *Store) substringFallback(ctx context.Context, queryText string, filters map[string]any, rawLimit int) (map[string]float64, map[string]issueMeta, error) {
	whereClause, args := buildWhereClause(filters, 3, s.logger)
	sqlStr := fmt.Sprintf(`
		SELECT issue_key, project_key, summary, issue_type, status
		FROM issues
		WHERE (summary ILIKE $1 OR description_preview ILIKE $2)
		%s
		LIMIT $%d`,
		andWhere(whereClause), len(args)+3,
	)
	pattern := "%" + queryText + "%"
	allArgs := append([]any{pattern, pattern}, args...)
	allArgs = append(allArgs, rawLimit)

	rows, err := s.sqlDB.QueryContext(ctx, sqlStr, allArgs...)
	if err != nil {
		return nil, nil, errkind.New(errkind.Persistence, "substringFallback", err)
	}
	defer rows.Close()

	scores := map[string]float64{}
	meta := map[string]issueMeta{}
	for rows.Next() {
		var key, project, summary, issueType, status string
		if err := rows.Scan(&key, &project, &summary, &issueType, &status); err != nil {
			return nil, nil, errkind.New(errkind.Persistence, "substringFallback", err)
		}
		scores[key] = ftsBaselineScore
		meta[key] = issueMeta{summary: summary, issueType: issueType, status: status, project: project}
	}
	return scores, meta, rows.Err()
}

func andWhere(clause string) string {
	if clause == "" {
		return ""
	}
	return "AND " + clause
}

// normalizeScores rescales rank values into [0, 1] by dividing by the max,
// so ts_rank's unbounded scale fuses comparably with cosine similarity.
func normalizeScores(scores map[string]float64) {
	max := 0.0
	for _, v := range scores {
		if v > max {
			max = v
		}
	}
	if max <= 0 {
		return
	}
	for k, v := range scores {
		scores[k] = v / max
	}
}

// fuseScores combines vector and lexical score maps by key:
// score = (1-ftsWeight)*vectorScore + ftsWeight*ftsScore, with either leg
// defaulting to 0 when a key is only present in the other leg.
func fuseScores(vectorScores, ftsScores map[string]float64, ftsWeight float64) map[string]float64 {
	fused := make(map[string]float64, len(vectorScores)+len(ftsScores))
	for k, v := range vectorScores {
		fused[k] = (1 - ftsWeight) * v
	}
	for k, v := range ftsScores {
		fused[k] += ftsWeight * v
	}
	return fused
}
