package pgvector

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"

	pgvec "github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thebtf/jiraindex/internal/errkind"
	"github.com/thebtf/jiraindex/pkg/models"
)

// recallOverFetchFactor is how many more candidates search_issues pulls
// from the raw cosine scan than the caller asked for, so post-threshold
// filtering and dedup still leave enough rows to paginate.
const recallOverFetchFactor = 5

// maxInBatch is the largest single SQL IN-clause batch delete_issues_by_ids
// issues at once.
const maxInBatch = 500

// Store owns the issues and comments tables: upsert/clear lifecycle, cosine
// and hybrid search, filter-DSL translation, and aggregate analytics
// queries, over a single PostgreSQL+pgvector connection.
type Store struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	dims   int
	logger zerolog.Logger
}

// NewStore wraps an already-connected *gorm.DB (migrated via Migrate) as a
// Store. Dims is the embedding dimensionality this store's vector columns
// were created with.
func NewStore(db *gorm.DB, dims int, logger zerolog.Logger) (*Store, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errkind.New(errkind.Persistence, "NewStore", err)
	}
	return &Store{
		db:     db,
		sqlDB:  sqlDB,
		dims:   dims,
		logger: logger.With().Str("component", "vector_store").Logger(),
	}, nil
}

func (s *Store) Close() error { return s.sqlDB.Close() }

// BulkInsertIssues deduplicates by key within the batch (last wins) and
// appends directly, with no existence check. Used immediately after
// ClearIssues during a full sync, when the table is known to be free of
// conflicting keys.
func (s *Store) BulkInsertIssues(ctx context.Context, records []models.IssueEmbedding) error {
	rows := dedupeIssueRows(toIssueRows(records))
	if len(rows) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return errkind.New(errkind.Persistence, "BulkInsertIssues", err)
	}
	return nil
}

// UpsertIssues writes the batch with a single INSERT ... ON CONFLICT DO
// UPDATE: rows whose key is already present are updated in place, new keys
// are inserted. The batch itself is deduplicated first (last wins).
func (s *Store) UpsertIssues(ctx context.Context, records []models.IssueEmbedding) error {
	rows := dedupeIssueRows(toIssueRows(records))
	if len(rows) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "issue_key"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"project_key", "summary", "description_preview", "issue_type", "status",
				"status_category", "priority", "assignee", "reporter", "labels", "components",
				"created_at", "updated_at", "resolved_at", "parent_key", "linked_issues",
				"embedding", "content_hash", "embedding_version", "indexed_at",
			}),
		}).
		Create(&rows).Error
	if err != nil {
		return errkind.New(errkind.Persistence, "UpsertIssues", err)
	}
	return nil
}

// ClearIssues deletes all issues for project (or every issue, if project is
// empty), returning the deleted count.
func (s *Store) ClearIssues(ctx context.Context, project string) (int64, error) {
	q := s.db.WithContext(ctx)
	if project != "" {
		q = q.Where("project_key = ?", project)
	} else {
		q = q.Where("1 = 1")
	}
	res := q.Delete(&issueRow{})
	if res.Error != nil {
		return 0, errkind.New(errkind.Persistence, "ClearIssues", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteIssuesByIDs removes issues by key, batched by maxInBatch to respect
// SQL IN-clause limits.
func (s *Store) DeleteIssuesByIDs(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += maxInBatch {
		end := start + maxInBatch
		if end > len(keys) {
			end = len(keys)
		}
		if err := s.db.WithContext(ctx).Where("issue_key IN ?", keys[start:end]).Delete(&issueRow{}).Error; err != nil {
			return errkind.New(errkind.Persistence, "DeleteIssuesByIDs", err)
		}
	}
	return nil
}

// GetIssueByKey looks up a single issue by its key. Returns (nil, nil, nil)
// semantics are avoided: ok reports presence.
func (s *Store) GetIssueByKey(ctx context.Context, key string) (*models.IssueEmbedding, bool, error) {
	var row issueRow
	err := s.db.WithContext(ctx).Where("issue_key = ?", key).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errkind.New(errkind.Persistence, "GetIssueByKey", err)
	}
	rec := fromIssueRow(row)
	return &rec, true, nil
}

// GetAllIssueIDs returns every issue key, optionally scoped to a project.
func (s *Store) GetAllIssueIDs(ctx context.Context, project string) ([]string, error) {
	q := s.db.WithContext(ctx).Model(&issueRow{})
	if project != "" {
		q = q.Where("project_key = ?", project)
	}
	var keys []string
	if err := q.Pluck("issue_key", &keys).Error; err != nil {
		return nil, errkind.New(errkind.Persistence, "GetAllIssueIDs", err)
	}
	return keys, nil
}

// SearchParams bundles the query options every search operation shares.
type SearchParams struct {
	Limit    int
	Offset   int
	Filters  map[string]any
	MinScore float64
}

// SearchIssues runs cosine KNN over the issues table: over-fetches
// recallOverFetchFactor*(limit+offset) raw candidates, derives similarity
// from cosine distance, drops anything below MinScore, deduplicates by key
// (first occurrence wins), then paginates. The returned total is the
// post-threshold count among the raw candidates fetched, not an exhaustive
// table scan.
func (s *Store) SearchIssues(ctx context.Context, queryVec []float32, p SearchParams) (models.SearchResult, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}
	rawLimit := recallOverFetchFactor * (limit + p.Offset)

	whereClause, args := buildWhereClause(p.Filters, 2, s.logger)
	sqlStr := fmt.Sprintf(`
		SELECT issue_key, project_key, summary, issue_type, status, status_category,
		       priority, assignee, embedding <=> $1 AS distance
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
		return models.SearchResult{}, errkind.New(errkind.Persistence, "SearchIssues", err)
	}
	defer rows.Close()

	var hits []models.SearchHit
	seen := make(map[string]bool)
	for rows.Next() {
		var key, project, summary, issueType, status, statusCategory, priority, assignee string
		var distance float64
		if err := rows.Scan(&key, &project, &summary, &issueType, &status, &statusCategory, &priority, &assignee, &distance); err != nil {
			return models.SearchResult{}, errkind.New(errkind.Persistence, "SearchIssues", err)
		}
		if seen[key] {
			continue
		}
		similarity := clampSimilarity(1 - distance)
		if similarity < p.MinScore {
			continue
		}
		seen[key] = true
		hits = append(hits, models.SearchHit{
			Key:     key,
			Summary: summary,
			Type:    issueType,
			Status:  status,
			Project: project,
			Score:   similarity,
			Extras: map[string]models.Value{
				"status_category": models.StringValue(statusCategory),
				"priority":        models.StringValue(priority),
				"assignee":        models.StringValue(assignee),
			},
		})
	}
	if err := rows.Err(); err != nil {
		return models.SearchResult{}, errkind.New(errkind.Persistence, "SearchIssues", err)
	}

	return paginate(hits, p.Offset, limit), nil
}

// SearchComments runs cosine KNN over the comments table. Unlike
// SearchIssues, this has no pagination contract (limit only).
func (s *Store) SearchComments(ctx context.Context, queryVec []float32, limit int, filters map[string]any) ([]models.SearchHit, error) {
	if limit <= 0 {
		limit = 10
	}

	whereClause, args := buildWhereClause(filters, 2, s.logger)
	sqlStr := fmt.Sprintf(`
		SELECT comment_id, issue_key, project_key, body_preview, author,
		       embedding <=> $1 AS distance
		FROM comments
		%s
		ORDER BY distance ASC
		LIMIT $%d`,
		prefixWhere(whereClause), len(args)+2,
	)

	allArgs := append([]any{pgvec.NewVector(queryVec)}, args...)
	allArgs = append(allArgs, limit)

	rows, err := s.sqlDB.QueryContext(ctx, sqlStr, allArgs...)
	if err != nil {
		return nil, errkind.New(errkind.Persistence, "SearchComments", err)
	}
	defer rows.Close()

	var hits []models.SearchHit
	for rows.Next() {
		var commentID, issueKey, project, body, author string
		var distance float64
		if err := rows.Scan(&commentID, &issueKey, &project, &body, &author, &distance); err != nil {
			return nil, errkind.New(errkind.Persistence, "SearchComments", err)
		}
		hits = append(hits, models.SearchHit{
			Key:     commentID,
			Summary: body,
			Project: project,
			Score:   clampSimilarity(1 - distance),
			Extras: map[string]models.Value{
				"issue_key": models.StringValue(issueKey),
				"author":    models.StringValue(author),
			},
		})
	}
	return hits, rows.Err()
}

// ProjectAggregation is the get_project_aggregations result: distributions
// over a minimal column set, plus top-10 label/component lists.
type ProjectAggregation struct {
	Project           string
	TotalIssues       int
	ByType            map[string]int
	ByStatusCategory  map[string]int
	ByPriority        map[string]int
	ByAssignee        map[string]int
	TopLabels         []models.LabelCount
	TopComponents     []models.LabelCount
}

// GetProjectAggregations selects the minimal column set the aggregation
// needs and computes distributions in-memory, rather than issuing one SQL
// GROUP BY per dimension.
func (s *Store) GetProjectAggregations(ctx context.Context, project string) (ProjectAggregation, error) {
	var rows []issueRow
	err := s.db.WithContext(ctx).
		Select("issue_type", "status_category", "priority", "assignee", "labels", "components").
		Where("project_key = ?", project).
		Find(&rows).Error
	if err != nil {
		return ProjectAggregation{}, errkind.New(errkind.Persistence, "GetProjectAggregations", err)
	}

	agg := ProjectAggregation{
		Project:          project,
		TotalIssues:      len(rows),
		ByType:           map[string]int{},
		ByStatusCategory: map[string]int{},
		ByPriority:       map[string]int{},
		ByAssignee:       map[string]int{},
	}
	labelCounts := map[string]int{}
	componentCounts := map[string]int{}

	for _, r := range rows {
		agg.ByType[r.IssueType]++
		agg.ByStatusCategory[r.StatusCategory]++
		agg.ByPriority[r.Priority]++
		agg.ByAssignee[r.Assignee]++
		for _, l := range r.Labels {
			labelCounts[l]++
		}
		for _, c := range r.Components {
			componentCounts[c]++
		}
	}

	agg.TopLabels = topN(labelCounts, 10)
	agg.TopComponents = topN(componentCounts, 10)
	return agg, nil
}

// GetRecentIssues returns issues updated within the last `days` days,
// optionally scoped to a project, most-recent first.
func (s *Store) GetRecentIssues(ctx context.Context, project string, days, limit int) ([]models.IssueEmbedding, error) {
	if limit <= 0 {
		limit = 50
	}
	q := s.db.WithContext(ctx).
		Where("updated_at >= NOW() - make_interval(days => ?)", days).
		Order("updated_at DESC").
		Limit(limit)
	if project != "" {
		q = q.Where("project_key = ?", project)
	}

	var rows []issueRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, errkind.New(errkind.Persistence, "GetRecentIssues", err)
	}
	out := make([]models.IssueEmbedding, len(rows))
	for i, r := range rows {
		out[i] = fromIssueRow(r)
	}
	return out, nil
}

// GetIssuesForAnalysis loads full issue rows (including embeddings) for a
// project, optionally restricted to an issue type. The Insights Engine is
// the only caller: clustering, trend aggregation, and bug-pattern discovery
// all need the raw vectors and temporal columns in memory, unlike the
// column-minimal GetProjectAggregations path.
func (s *Store) GetIssuesForAnalysis(ctx context.Context, project, issueType string) ([]models.IssueEmbedding, error) {
	q := s.db.WithContext(ctx).Model(&issueRow{})
	if project != "" {
		q = q.Where("project_key = ?", project)
	}
	if issueType != "" {
		q = q.Where("issue_type = ?", issueType)
	}
	var rows []issueRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, errkind.New(errkind.Persistence, "GetIssuesForAnalysis", err)
	}
	out := make([]models.IssueEmbedding, len(rows))
	for i, r := range rows {
		out[i] = fromIssueRow(r)
	}
	return out, nil
}

// Compact runs a VACUUM ANALYZE over both tables. PostgreSQL has no
// fragment-merge operation analogous to some embedded vector stores; this
// is the closest equivalent maintenance the backend supports.
func (s *Store) Compact(ctx context.Context) error {
	if _, err := s.sqlDB.ExecContext(ctx, `VACUUM ANALYZE issues`); err != nil {
		return errkind.New(errkind.Persistence, "Compact", err)
	}
	if _, err := s.sqlDB.ExecContext(ctx, `VACUUM ANALYZE comments`); err != nil {
		return errkind.New(errkind.Persistence, "Compact", err)
	}
	return nil
}

func prefixWhere(clause string) string {
	if clause == "" {
		return ""
	}
	return "WHERE " + clause
}

// clampSimilarity clamps a raw 1-distance score into [0, 1]. Cosine
// distance can exceed 1 for non-unit vectors, which would otherwise yield
// a negative similarity.
func clampSimilarity(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func paginate(hits []models.SearchHit, offset, limit int) models.SearchResult {
	total := len(hits)
	if offset >= total {
		return models.SearchResult{Hits: nil, Total: total}
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return models.SearchResult{Hits: hits[offset:end], Total: total}
}

func sortLabelCountsDesc(lc []models.LabelCount) {
	sort.Slice(lc, func(i, j int) bool {
		if lc[i].Count != lc[j].Count {
			return lc[i].Count > lc[j].Count
		}
		return lc[i].Label < lc[j].Label
	})
}

func topN(counts map[string]int, n int) []models.LabelCount {
	out := make([]models.LabelCount, 0, len(counts))
	for k, v := range counts {
		if k == "" {
			continue
		}
		out = append(out, models.LabelCount{Label: k, Count: v})
	}
	sortLabelCountsDesc(out)
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func toIssueRows(records []models.IssueEmbedding) []issueRow {
	rows := make([]issueRow, len(records))
	for i, r := range records {
		rows[i] = issueRow{
			IssueKey:           r.IssueID,
			ProjectKey:         r.ProjectKey,
			Summary:            r.Summary,
			DescriptionPreview: r.DescriptionPreview,
			IssueType:          r.IssueType,
			Status:             r.Status,
			StatusCategory:     string(r.StatusCategory),
			Priority:           r.Priority,
			Assignee:           r.Assignee,
			Reporter:           r.Reporter,
			Labels:             stringList(r.Labels),
			Components:         stringList(r.Components),
			CreatedAt:          r.CreatedAt,
			UpdatedAt:          r.UpdatedAt,
			ResolvedAt:         r.ResolvedAt,
			ParentKey:          r.ParentKey,
			LinkedIssues:       stringList(r.LinkedIssues),
			Embedding:          pgvec.NewVector(r.Vector),
			ContentHash:        r.ContentHash,
			EmbeddingVersion:   r.EmbeddingVersion,
			IndexedAt:          r.IndexedAt,
		}
	}
	return rows
}

func fromIssueRow(r issueRow) models.IssueEmbedding {
	return models.IssueEmbedding{
		IssueID:            r.IssueKey,
		ProjectKey:         r.ProjectKey,
		Vector:             r.Embedding.Slice(),
		Summary:            r.Summary,
		DescriptionPreview: r.DescriptionPreview,
		IssueType:          r.IssueType,
		Status:             r.Status,
		StatusCategory:     models.StatusCategory(r.StatusCategory),
		Priority:           r.Priority,
		Assignee:           r.Assignee,
		Reporter:           r.Reporter,
		Labels:             []string(r.Labels),
		Components:         []string(r.Components),
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		ResolvedAt:         r.ResolvedAt,
		ParentKey:          r.ParentKey,
		LinkedIssues:       []string(r.LinkedIssues),
		ContentHash:        r.ContentHash,
		EmbeddingVersion:   r.EmbeddingVersion,
		IndexedAt:          r.IndexedAt,
	}
}

// dedupeIssueRows keeps the last occurrence of each key, preserving the
// first-seen relative order of surviving keys (matching the within-batch
// dedup rule "last wins").
func dedupeIssueRows(rows []issueRow) []issueRow {
	lastIdx := make(map[string]int, len(rows))
	for i, r := range rows {
		lastIdx[r.IssueKey] = i
	}
	order := make([]string, 0, len(lastIdx))
	seen := make(map[string]bool, len(lastIdx))
	for _, r := range rows {
		if !seen[r.IssueKey] {
			seen[r.IssueKey] = true
			order = append(order, r.IssueKey)
		}
	}
	out := make([]issueRow, 0, len(order))
	for _, key := range order {
		out = append(out, rows[lastIdx[key]])
	}
	return out
}
