package pgvector

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/jiraindex/pkg/models"
)

func TestBuildWhereClause_ImplicitEq(t *testing.T) {
	clause, args := buildWhereClause(map[string]any{"project_key": "ABC"}, 2, zerolog.Nop())
	assert.Equal(t, "project_key = $2", clause)
	assert.Equal(t, []any{"ABC"}, args)
}

func TestBuildWhereClause_InSingleElement(t *testing.T) {
	clause, _ := buildWhereClause(map[string]any{
		"status": map[string]any{"$in": []any{"Done"}},
	}, 2, zerolog.Nop())
	assert.Equal(t, "status IN ('Done')", clause, "single-element IN must not render a trailing comma")
}

func TestBuildWhereClause_NinMultipleElements(t *testing.T) {
	clause, _ := buildWhereClause(map[string]any{
		"priority": map[string]any{"$nin": []any{"Low", "Trivial"}},
	}, 2, zerolog.Nop())
	assert.Equal(t, "priority NOT IN ('Low', 'Trivial')", clause)
}

func TestBuildWhereClause_EmptyInList(t *testing.T) {
	clause, _ := buildWhereClause(map[string]any{
		"status": map[string]any{"$in": []any{}},
	}, 2, zerolog.Nop())
	assert.Equal(t, "status IN ()", clause, "empty IN-list propagates as () per the edge-case rule")
}

func TestBuildWhereClause_UnknownOperatorIgnored(t *testing.T) {
	clause, args := buildWhereClause(map[string]any{
		"weird": map[string]any{"$bogus": 1},
	}, 2, zerolog.Nop())
	assert.Empty(t, clause)
	assert.Empty(t, args)
}

func TestBuildWhereClause_StringQuoteEscaping(t *testing.T) {
	clause, _ := buildWhereClause(map[string]any{
		"assignee": map[string]any{"$in": []any{"O'Brien"}},
	}, 2, zerolog.Nop())
	assert.Equal(t, "assignee IN ('O''Brien')", clause)
}

func TestBuildWhereClause_ComparisonOperators(t *testing.T) {
	clause, args := buildWhereClause(map[string]any{
		"updated_at": map[string]any{"$gte": "2024-01-01"},
	}, 5, zerolog.Nop())
	assert.Equal(t, "updated_at >= $5", clause)
	assert.Equal(t, []any{"2024-01-01"}, args)
}

func TestFuseScores_BothLegsPresent(t *testing.T) {
	vector := map[string]float64{"PROJ-1": 0.8}
	fts := map[string]float64{"PROJ-1": 0.4}
	fused := fuseScores(vector, fts, 0.3)
	assert.InDelta(t, 0.7*0.8+0.3*0.4, fused["PROJ-1"], 1e-9)
}

func TestFuseScores_OnlyVectorLeg(t *testing.T) {
	vector := map[string]float64{"PROJ-1": 0.6}
	fused := fuseScores(vector, map[string]float64{}, 0.3)
	assert.InDelta(t, 0.7*0.6, fused["PROJ-1"], 1e-9)
}

func TestFuseScores_OnlyFTSLeg(t *testing.T) {
	fts := map[string]float64{"PROJ-2": 0.5}
	fused := fuseScores(map[string]float64{}, fts, 0.3)
	assert.InDelta(t, 0.3*0.5, fused["PROJ-2"], 1e-9)
}

func TestClampSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, clampSimilarity(1.5))
	assert.Equal(t, 0.0, clampSimilarity(-0.2))
	assert.InDelta(t, 0.5, clampSimilarity(0.5), 1e-9)
}

func TestPaginate(t *testing.T) {
	hits := []models.SearchHit{{Key: "A"}, {Key: "B"}, {Key: "C"}, {Key: "D"}}
	result := paginate(hits, 1, 2)
	require.Len(t, result.Hits, 2)
	assert.Equal(t, "B", result.Hits[0].Key)
	assert.Equal(t, "C", result.Hits[1].Key)
	assert.Equal(t, 4, result.Total)
}

func TestPaginate_OffsetBeyondTotal(t *testing.T) {
	hits := []models.SearchHit{{Key: "A"}}
	result := paginate(hits, 5, 2)
	assert.Empty(t, result.Hits)
	assert.Equal(t, 1, result.Total)
}

func TestDedupeIssueRows_LastWins(t *testing.T) {
	rows := []issueRow{
		{IssueKey: "A", Summary: "first"},
		{IssueKey: "B", Summary: "only"},
		{IssueKey: "A", Summary: "second"},
	}
	out := dedupeIssueRows(rows)
	require.Len(t, out, 2)
	for _, r := range out {
		if r.IssueKey == "A" {
			assert.Equal(t, "second", r.Summary)
		}
	}
}

func TestTopN_OrdersByCountDescending(t *testing.T) {
	counts := map[string]int{"bug": 5, "feature": 9, "chore": 2}
	top := topN(counts, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "feature", top[0].Label)
	assert.Equal(t, "bug", top[1].Label)
}

func TestStringListRoundTrip(t *testing.T) {
	s := stringList{"a", "b"}
	v, err := s.Value()
	require.NoError(t, err)

	var out stringList
	require.NoError(t, out.Scan(v))
	assert.Equal(t, stringList{"a", "b"}, out)
}

func TestStringListScan_Nil(t *testing.T) {
	var out stringList
	require.NoError(t, out.Scan(nil))
	assert.Nil(t, out)
}

func TestClassifyDuplicates_LikelyAboveCutoff(t *testing.T) {
	hits := []models.SearchHit{
		{Key: "PROJ-1", Score: 0.95},
		{Key: "PROJ-2", Score: 0.3},
	}
	result := classifyDuplicates(hits, 0.85)
	assert.Equal(t, models.VerdictDuplicateLikely, result.Verdict)
	require.Len(t, result.Candidates, 1)
	assert.True(t, result.Candidates[0].LikelyDuplicate)
}

func TestClassifyDuplicates_ReviewSuggestedBelowCutoff(t *testing.T) {
	hits := []models.SearchHit{{Key: "PROJ-1", Score: 0.88}}
	result := classifyDuplicates(hits, 0.85)
	assert.Equal(t, models.VerdictReviewSuggested, result.Verdict)
	assert.False(t, result.Candidates[0].LikelyDuplicate)
}

func TestClassifyDuplicates_NoneFound(t *testing.T) {
	hits := []models.SearchHit{{Key: "PROJ-1", Score: 0.5}}
	result := classifyDuplicates(hits, 0.85)
	assert.Equal(t, models.VerdictNoDuplicatesFound, result.Verdict)
	assert.Empty(t, result.Candidates)
}
