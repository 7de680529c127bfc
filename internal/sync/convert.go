package sync

import (
	"time"

	"github.com/thebtf/jiraindex/internal/schemas"
	"github.com/thebtf/jiraindex/pkg/models"
)

func toIssueEmbedding(issue models.Issue, hash, embeddingVersion string, indexedAt time.Time) models.IssueEmbedding {
	return models.IssueEmbedding{
		IssueID:            issue.Key,
		ProjectKey:         issue.ProjectKey,
		Summary:            issue.Summary,
		DescriptionPreview: schemas.TruncateAtSentence(schemas.Clean(issue.Description), 500),
		IssueType:          valueOr(issue.IssueType, "Task"),
		Status:             valueOr(issue.Status, "Open"),
		StatusCategory:     models.DeriveStatusCategory(issue.Status),
		Priority:           issue.Priority,
		Assignee:           issue.Assignee,
		Reporter:           valueOr(issue.Reporter, "Unknown"),
		Labels:             issue.Labels,
		Components:         issue.Components,
		CreatedAt:          issue.Created,
		UpdatedAt:          issue.Updated,
		ResolvedAt:         issue.ResolvedAt,
		ParentKey:          issue.ParentKey,
		LinkedIssues:       issue.LinkedIssues,
		ContentHash:        hash,
		EmbeddingVersion:   embeddingVersion,
		IndexedAt:          indexedAt,
	}
}

func toCommentEmbedding(c models.Comment, project, embeddingVersion string, indexedAt time.Time) models.CommentEmbedding {
	return models.CommentEmbedding{
		CommentID:        c.ID,
		IssueID:          c.IssueKey,
		ProjectKey:       project,
		BodyPreview:      schemas.TruncateAtSentence(schemas.Clean(c.Body), 500),
		Author:           valueOr(c.Author, "Unknown"),
		CreatedAt:        c.Created,
		ContentHash:      schemas.ComputeContentHash(c.Body, "", nil, ""),
		EmbeddingVersion: embeddingVersion,
		IndexedAt:        indexedAt,
	}
}

func mergeResult(dst *models.SyncResult, src models.SyncResult) {
	dst.IssuesProcessed += src.IssuesProcessed
	dst.IssuesEmbedded += src.IssuesEmbedded
	dst.IssuesSkipped += src.IssuesSkipped
	dst.IssuesDeleted += src.IssuesDeleted
	dst.CommentsProcessed += src.CommentsProcessed
	dst.CommentsEmbedded += src.CommentsEmbedded
	dst.Errors = append(dst.Errors, src.Errors...)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
