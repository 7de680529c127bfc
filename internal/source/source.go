// Package source declares the abstract remote issue-tracker collaborator
// the sync engine depends on. No concrete implementation ships in this
// repository: wiring one (Jira Cloud, Jira Server, a test fixture) is the
// deployment's job, not the indexer's. Keeping the interface narrow — two
// read operations and a project listing — means any test double is a
// handful of lines.
package source

import (
	"context"

	"github.com/thebtf/jiraindex/pkg/models"
)

// Source is the narrow interface the sync engine needs from a Jira-style
// issue tracker: paginated JQL search and per-issue comment fetch.
type Source interface {
	// SearchIssues runs jql, which already contains any cursor or floor
	// filters the caller built, returning up to maxResults issues starting
	// at offset within jql's own ordering. A page shorter than maxResults
	// (including empty) signals the last page. offset is ignored by
	// callers that encode their pagination cursor directly into jql (see
	// the sync engine's key-based full-sync pagination).
	SearchIssues(ctx context.Context, jql string, offset, maxResults int) ([]models.Issue, error)

	// GetComments fetches every comment on issueKey.
	GetComments(ctx context.Context, issueKey string) ([]models.Comment, error)

	// ListProjects returns every project key the source can see. Used only
	// when a sync is requested with no explicit project list and none is
	// configured.
	ListProjects(ctx context.Context) ([]string, error)
}
