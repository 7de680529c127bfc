// Package sync drives full and incremental indexing of an issue tracker
// into the vector store: per-project JQL pagination, content-hash change
// detection, deletion detection, and comment sync. Sync state is persisted
// between runs; the checkpoint it carries is recorded but not read back,
// so an interrupted run is not resumed from it.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/thebtf/jiraindex/internal/errkind"
	"github.com/thebtf/jiraindex/internal/source"
	"github.com/thebtf/jiraindex/pkg/models"
)

// IssueStore is the subset of the vector store the sync engine needs for
// issue lifecycle: existence checks, writes, and deletion.
type IssueStore interface {
	GetIssueByKey(ctx context.Context, key string) (*models.IssueEmbedding, bool, error)
	BulkInsertIssues(ctx context.Context, records []models.IssueEmbedding) error
	UpsertIssues(ctx context.Context, records []models.IssueEmbedding) error
	ClearIssues(ctx context.Context, project string) (int64, error)
	GetAllIssueIDs(ctx context.Context, project string) ([]string, error)
	DeleteIssuesByIDs(ctx context.Context, keys []string) error
}

// CommentStore is the subset of the vector store comment sync needs.
type CommentStore interface {
	UpsertComments(ctx context.Context, records []models.CommentEmbedding) error
	DeleteCommentsByIssueKeys(ctx context.Context, issueKeys []string) error
}

// StatsProvider reports live row counts, used to make get_sync_status
// reflect what's actually persisted rather than only the last run's delta.
type StatsProvider interface {
	Stats(ctx context.Context) (totalIssues, totalComments int64, err error)
}

// Embedder is the subset of the embedding pipeline the sync engine needs.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Config bundles the sync engine's tunables.
type Config struct {
	BatchSize          int // embed_batch_size, default 100
	LookbackDays       int // full-sync floor, default 365
	SyncComments       bool
	CommentConcurrency int // errgroup bound on comment fetch, default 5
	EmbeddingModel     string
	EmbeddingVersion   string
	StatePath          string
	FallbackProjects   []string // used when no explicit projects are given and state/config have none
}

func (c *Config) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.LookbackDays <= 0 {
		c.LookbackDays = 365
	}
	if c.CommentConcurrency <= 0 {
		c.CommentConcurrency = 5
	}
}

// Engine drives full and incremental syncs of a source.Source into an
// IssueStore/CommentStore via an Embedder, persisting high-water-mark state
// to Config.StatePath between runs.
type Engine struct {
	source   source.Source
	embedder Embedder
	issues   IssueStore
	comments CommentStore
	stats    StatsProvider
	cfg      Config
	logger   zerolog.Logger
	now      func() time.Time
}

// New constructs an Engine. stats may be nil if live row counts aren't
// available; GetSyncStatus then reports only the persisted state.
func New(src source.Source, embedder Embedder, issues IssueStore, comments CommentStore, stats StatsProvider, cfg Config, logger zerolog.Logger) *Engine {
	cfg.applyDefaults()
	return &Engine{
		source:   src,
		embedder: embedder,
		issues:   issues,
		comments: comments,
		stats:    stats,
		cfg:      cfg,
		logger:   logger.With().Str("component", "sync_engine").Logger(),
		now:      time.Now,
	}
}

// FullSync clears and re-indexes every named project (or all projects known
// to the source, or the configured fallback set) from the lookback floor
// forward.
func (e *Engine) FullSync(ctx context.Context, projects []string) (models.SyncResult, error) {
	start := e.now()
	result := models.SyncResult{}
	state := loadState(e.cfg.StatePath)

	targets, err := e.resolveFullSyncProjects(ctx, projects)
	if err != nil {
		return result, err
	}
	e.logger.Info().Strs("projects", targets).Msg("starting full sync")

	for _, project := range targets {
		if ctx.Err() != nil {
			break
		}
		projResult, maxUpdated, err := e.runProject(ctx, project, false, time.Time{})
		if err != nil {
			msg := fmt.Sprintf("project %s: %v", project, err)
			e.logger.Error().Err(err).Str("project", project).Msg("full sync failed for project")
			result.Errors = append(result.Errors, msg)
			continue
		}
		mergeResult(&result, projResult)

		if !containsString(state.ProjectsSynced, project) {
			state.ProjectsSynced = append(state.ProjectsSynced, project)
		}
		if maxUpdated.After(state.LastIssueUpdated) {
			state.LastIssueUpdated = maxUpdated
		}
	}

	state.LastSyncAt = e.now()
	state.TotalIssuesIndexed = result.IssuesEmbedded
	state.EmbeddingModel = e.cfg.EmbeddingModel
	state.EmbeddingVersion = e.cfg.EmbeddingVersion
	if err := saveState(e.cfg.StatePath, state); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}

	result.Duration = e.now().Sub(start)
	e.logger.Info().Int("issues_embedded", result.IssuesEmbedded).Dur("elapsed", result.Duration).Msg("full sync complete")
	return result, nil
}

// IncrementalSync re-indexes only issues updated since the last sync's
// high-water mark, for the named projects (or the previously-synced set, or
// the configured fallback set).
func (e *Engine) IncrementalSync(ctx context.Context, projects []string) (models.SyncResult, error) {
	start := e.now()
	result := models.SyncResult{}
	state := loadState(e.cfg.StatePath)

	targets := projects
	if len(targets) == 0 {
		targets = state.ProjectsSynced
	}
	if len(targets) == 0 {
		targets = e.cfg.FallbackProjects
	}
	if len(targets) == 0 {
		e.logger.Warn().Msg("no projects specified for incremental sync")
		result.Duration = e.now().Sub(start)
		return result, nil
	}

	e.logger.Info().Strs("projects", targets).Time("since", state.LastIssueUpdated).Msg("starting incremental sync")

	for _, project := range targets {
		if ctx.Err() != nil {
			break
		}
		projResult, maxUpdated, err := e.runProject(ctx, project, true, state.LastIssueUpdated)
		if err != nil {
			msg := fmt.Sprintf("project %s: %v", project, err)
			e.logger.Error().Err(err).Str("project", project).Msg("incremental sync failed for project")
			result.Errors = append(result.Errors, msg)
			continue
		}
		mergeResult(&result, projResult)
		if maxUpdated.After(state.LastIssueUpdated) {
			state.LastIssueUpdated = maxUpdated
		}
	}

	state.LastSyncAt = e.now()
	state.TotalIssuesIndexed += result.IssuesEmbedded
	if err := saveState(e.cfg.StatePath, state); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}

	result.Duration = e.now().Sub(start)
	e.logger.Info().Int("issues_embedded", result.IssuesEmbedded).Dur("elapsed", result.Duration).Msg("incremental sync complete")
	return result, nil
}

// GetSyncStatus reports the persisted state, overlaid with live store
// totals when a StatsProvider is available.
func (e *Engine) GetSyncStatus(ctx context.Context) (models.SyncState, error) {
	state := loadState(e.cfg.StatePath)
	if e.stats != nil {
		if totalIssues, totalComments, err := e.stats.Stats(ctx); err == nil {
			state.TotalIssuesIndexed = int(totalIssues)
			state.TotalCommentsIndexed = int(totalComments)
		}
	}
	return state, nil
}

func (e *Engine) resolveFullSyncProjects(ctx context.Context, projects []string) ([]string, error) {
	if len(projects) > 0 {
		return projects, nil
	}
	if len(e.cfg.FallbackProjects) > 0 {
		return e.cfg.FallbackProjects, nil
	}
	all, err := e.source.ListProjects(ctx)
	if err != nil {
		return nil, errkind.New(errkind.Transient, "resolveFullSyncProjects", err)
	}
	return all, nil
}
