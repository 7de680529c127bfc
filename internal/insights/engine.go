// Package insights computes analytics over indexed issue embeddings:
// K-means clustering into thematic groups, temporal trend aggregation,
// bug-pattern discovery via pairwise similarity, and per-project velocity
// metrics. All operations read through an IssueProvider and never write
// to the vector store.
package insights

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/thebtf/jiraindex/pkg/models"
)

// IssueProvider is the subset of the vector store the insights engine
// needs: full issue rows, including embeddings, for a project and
// optional issue-type filter.
type IssueProvider interface {
	GetIssuesForAnalysis(ctx context.Context, project, issueType string) ([]models.IssueEmbedding, error)
}

// Engine wires the individual analysis functions to a live issue store.
// It is constructed explicitly (no package-global instance), like every
// other component in the module.
type Engine struct {
	store  IssueProvider
	logger zerolog.Logger
}

// NewEngine builds an Engine over store.
func NewEngine(store IssueProvider, logger zerolog.Logger) *Engine {
	return &Engine{store: store, logger: logger.With().Str("component", "insights_engine").Logger()}
}

// ClusterIssues loads a project's issue vectors and groups them into
// nClusters via K-means, dropping clusters smaller than minSize. Returns
// nil (not an error) when there are too few issues to cluster meaningfully
// — matching the spec's "return empty" behavior rather than surfacing a
// count mismatch as a caller-visible error.
func (e *Engine) ClusterIssues(ctx context.Context, project string, nClusters, minSize int) ([]models.ClusterResult, error) {
	issues, err := e.store.GetIssuesForAnalysis(ctx, project, "")
	if err != nil {
		return nil, err
	}
	if len(issues) < nClusters*minSize {
		e.logger.Warn().Int("count", len(issues)).Int("required", nClusters*minSize).Msg("not enough issues for clustering")
		return nil, nil
	}
	return ClusterIssues(issues, nClusters, minSize), nil
}

// AnalyzeTrends loads a project's issues and slices [now-days, now] into
// period-day windows, computing created/resolved counts and distributions
// per window.
func (e *Engine) AnalyzeTrends(ctx context.Context, project string, days, periodDays int) ([]models.TrendAnalysis, error) {
	issues, err := e.store.GetIssuesForAnalysis(ctx, project, "")
	if err != nil {
		return nil, err
	}
	return AnalyzeTrends(issues, days, periodDays, time.Now().UTC()), nil
}

// FindBugPatterns loads a project's Bug-type issues and groups them by
// pairwise cosine similarity, returning up to the 10 largest groups.
func (e *Engine) FindBugPatterns(ctx context.Context, project string, minSimilarity float64) ([]models.BugPattern, error) {
	bugs, err := e.store.GetIssuesForAnalysis(ctx, project, "Bug")
	if err != nil {
		return nil, err
	}
	return FindBugPatterns(bugs, minSimilarity), nil
}

// GetVelocityMetrics loads a project's issues and computes trailing-weeks
// created/resolved/net throughput plus a growing/shrinking trend call.
func (e *Engine) GetVelocityMetrics(ctx context.Context, project string, weeks int) (models.VelocityMetrics, error) {
	issues, err := e.store.GetIssuesForAnalysis(ctx, project, "")
	if err != nil {
		return models.VelocityMetrics{}, err
	}
	return GetVelocityMetrics(project, issues, weeks, time.Now().UTC()), nil
}
