package pgvector

import (
	"context"

	pgvec "github.com/pgvector/pgvector-go"
	"gorm.io/gorm/clause"

	"github.com/thebtf/jiraindex/internal/errkind"
	"github.com/thebtf/jiraindex/pkg/models"
)

// UpsertComments upserts comment embedding records keyed by comment_id.
func (s *Store) UpsertComments(ctx context.Context, records []models.CommentEmbedding) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]commentRow, len(records))
	for i, r := range records {
		rows[i] = commentRow{
			CommentID:        r.CommentID,
			IssueKey:         r.IssueID,
			ProjectKey:       r.ProjectKey,
			IssueType:        r.IssueType,
			IssueStatus:      r.IssueStatus,
			BodyPreview:      r.BodyPreview,
			Author:           r.Author,
			CreatedAt:        r.CreatedAt,
			Embedding:        pgvec.NewVector(r.Vector),
			ContentHash:      r.ContentHash,
			EmbeddingVersion: r.EmbeddingVersion,
			IndexedAt:        r.IndexedAt,
		}
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "comment_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"issue_key", "project_key", "issue_type", "issue_status",
				"body_preview", "author", "created_at", "embedding",
				"content_hash", "embedding_version", "indexed_at",
			}),
		}).
		Create(&rows).Error
	if err != nil {
		return errkind.New(errkind.Persistence, "UpsertComments", err)
	}
	return nil
}

// DeleteCommentsByIssueKeys removes every comment belonging to the given
// issue keys, batched by maxInBatch. Called alongside issue deletion so a
// removed issue doesn't leave orphaned comment rows behind.
func (s *Store) DeleteCommentsByIssueKeys(ctx context.Context, issueKeys []string) error {
	for start := 0; start < len(issueKeys); start += maxInBatch {
		end := start + maxInBatch
		if end > len(issueKeys) {
			end = len(issueKeys)
		}
		if err := s.db.WithContext(ctx).Where("issue_key IN ?", issueKeys[start:end]).Delete(&commentRow{}).Error; err != nil {
			return errkind.New(errkind.Persistence, "DeleteCommentsByIssueKeys", err)
		}
	}
	return nil
}

// Stats returns the total row counts backing get_sync_status's store-side
// fields (total_issues_indexed/total_comments_indexed reflect what's
// actually persisted, not just what the last run touched).
func (s *Store) Stats(ctx context.Context) (totalIssues, totalComments int64, err error) {
	if err := s.db.WithContext(ctx).Model(&issueRow{}).Count(&totalIssues).Error; err != nil {
		return 0, 0, errkind.New(errkind.Persistence, "Stats", err)
	}
	if err := s.db.WithContext(ctx).Model(&commentRow{}).Count(&totalComments).Error; err != nil {
		return 0, 0, errkind.New(errkind.Persistence, "Stats", err)
	}
	return totalIssues, totalComments, nil
}
