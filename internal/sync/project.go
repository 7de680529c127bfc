package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thebtf/jiraindex/internal/errkind"
	"github.com/thebtf/jiraindex/internal/schemas"
	"github.com/thebtf/jiraindex/pkg/models"
)

// syncState is the explicit state the per-project sync loop is in.
// fetchingPage pulls one page from the source; embeddingBatch turns
// accumulated issues into vectors; persistingBatch writes them; done ends
// the loop. This makes the otherwise coroutine-driven page/embed/store
// cycle a plain Go loop, with ctx cancellation checked at every
// transition instead of at arbitrary await points.
type syncState int

const (
	stateFetchingPage syncState = iota
	stateEmbeddingBatch
	statePersistingBatch
	stateDone
)

const deletionBatchSize = 100

// pendingIssue pairs an issue's hash-computed record (vector not yet
// attached) with the text embeddingBatch will turn into that vector.
type pendingIssue struct {
	key    string
	text   string
	record models.IssueEmbedding
}

// runProject syncs a single project, full or incremental, returning the
// project's result and the highest issue.Updated timestamp observed (used
// by the caller to advance the high-water mark).
func (e *Engine) runProject(ctx context.Context, project string, incremental bool, highWaterMark time.Time) (models.SyncResult, time.Time, error) {
	result := models.SyncResult{}
	maxUpdated := highWaterMark

	if !incremental {
		if _, err := e.issues.ClearIssues(ctx, project); err != nil {
			return result, maxUpdated, errkind.New(errkind.Persistence, "runProject", err)
		}
	}

	floor := e.fullSyncFloor()
	if incremental && !highWaterMark.IsZero() {
		floor = highWaterMark
	}

	var (
		lastKey      string
		offset       int
		lastPageLen  = -1
		pending      []pendingIssue
		seen         = make(map[string]bool)
		embeddedKeys []string
		state        = stateFetchingPage
	)

	for state != stateDone {
		if err := ctx.Err(); err != nil {
			return result, maxUpdated, err
		}

		switch state {
		case stateFetchingPage:
			jql := e.buildJQL(project, floor, incremental, lastKey)
			pageOffset := 0
			if incremental {
				pageOffset = offset
			}
			page, err := e.source.SearchIssues(ctx, jql, pageOffset, e.cfg.BatchSize)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("fetch page for %s: %v", project, err))
				state = stateDone
				continue
			}

			lastPageLen = len(page)
			if incremental {
				offset += e.cfg.BatchSize
			}
			if !incremental && len(page) > 0 {
				lastKey = page[len(page)-1].Key
			}

			for _, issue := range page {
				result.IssuesProcessed++
				if seen[issue.Key] {
					continue
				}
				seen[issue.Key] = true

				hash := schemas.ComputeContentHash(issue.Summary, issue.Description, issue.Labels, issue.Status)

				if incremental {
					existing, ok, lookupErr := e.issues.GetIssueByKey(ctx, issue.Key)
					if lookupErr == nil && ok && existing.ContentHash == hash {
						result.IssuesSkipped++
						continue
					}
				}

				if issue.Updated.After(maxUpdated) {
					maxUpdated = issue.Updated
				}

				pending = append(pending, pendingIssue{
					key:    issue.Key,
					text:   schemas.ToEmbedText(issue),
					record: toIssueEmbedding(issue, hash, e.cfg.EmbeddingVersion, e.now()),
				})
			}

			switch {
			case len(pending) >= e.cfg.BatchSize:
				state = stateEmbeddingBatch
			case lastPageLen < e.cfg.BatchSize:
				if len(pending) > 0 {
					state = stateEmbeddingBatch
				} else {
					state = stateDone
				}
			default:
				state = stateFetchingPage
			}

		case stateEmbeddingBatch:
			texts := make([]string, len(pending))
			for i, p := range pending {
				texts[i] = p.text
			}
			vectors, err := e.embedder.EmbedBatch(ctx, texts)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("embed batch for %s: %v", project, err))
				pending = nil
				state = lastPageState(lastPageLen, e.cfg.BatchSize)
				continue
			}

			// embedBatch may silently omit permanently-failed texts; match
			// surviving vectors back to their records positionally (both
			// preserve input order for everything that didn't fail).
			n := min(len(vectors), len(pending))
			for i := 0; i < n; i++ {
				pending[i].record.Vector = vectors[i]
			}
			pending = pending[:n]
			state = statePersistingBatch

		case statePersistingBatch:
			records := make([]models.IssueEmbedding, len(pending))
			keys := make([]string, len(pending))
			for i, p := range pending {
				records[i] = p.record
				keys[i] = p.key
			}

			var persistErr error
			if incremental {
				persistErr = e.issues.UpsertIssues(ctx, records)
			} else {
				persistErr = e.issues.BulkInsertIssues(ctx, records)
			}
			if persistErr != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("persist batch for %s: %v", project, persistErr))
			} else {
				result.IssuesEmbedded += len(records)
				embeddedKeys = append(embeddedKeys, keys...)
				e.persistCheckpoint(project, offset)
			}

			pending = nil
			state = lastPageState(lastPageLen, e.cfg.BatchSize)
		}
	}

	if incremental && result.IssuesProcessed > 0 {
		deleted, err := e.detectDeletions(ctx, project)
		if err != nil {
			e.logger.Warn().Err(err).Str("project", project).Msg("deletion detection failed, treating as no-op")
		} else {
			result.IssuesDeleted = deleted
		}
	}

	if e.cfg.SyncComments && len(embeddedKeys) > 0 {
		mergeResult(&result, e.syncComments(ctx, project, embeddedKeys))
	}

	e.clearCheckpoint()
	return result, maxUpdated, nil
}

func lastPageState(lastPageLen, pageSize int) syncState {
	if lastPageLen < pageSize {
		return stateDone
	}
	return stateFetchingPage
}

func (e *Engine) buildJQL(project string, floor time.Time, incremental bool, lastKey string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `project = "%s"`, project)

	if incremental {
		fmt.Fprintf(&b, ` AND updated >= "%s"`, floor.Format("2006-01-02 15:04"))
		b.WriteString(" ORDER BY updated ASC")
		return b.String()
	}

	fmt.Fprintf(&b, ` AND updated >= "%s"`, floor.Format("2006-01-02"))
	if lastKey != "" {
		fmt.Fprintf(&b, ` AND key < "%s"`, lastKey)
	}
	b.WriteString(" ORDER BY key DESC")
	return b.String()
}

func (e *Engine) fullSyncFloor() time.Time {
	return e.now().AddDate(0, 0, -e.cfg.LookbackDays)
}

// detectDeletions lists every indexed key for project, checks the remote
// in batches of deletionBatchSize, and deletes keys absent from the
// remote response. Any error on a batch aborts deletion for that batch
// only — a transient failure never produces a false-positive delete.
func (e *Engine) detectDeletions(ctx context.Context, project string) (int, error) {
	indexedKeys, err := e.issues.GetAllIssueIDs(ctx, project)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for start := 0; start < len(indexedKeys); start += deletionBatchSize {
		end := min(start+deletionBatchSize, len(indexedKeys))
		batch := indexedKeys[start:end]

		jql := fmt.Sprintf(`key in (%s)`, quoteKeys(batch))
		remote, err := e.source.SearchIssues(ctx, jql, 0, len(batch))
		if err != nil {
			e.logger.Warn().Err(err).Str("project", project).Msg("deletion check batch failed, skipping")
			continue
		}

		present := make(map[string]bool, len(remote))
		for _, issue := range remote {
			present[issue.Key] = true
		}

		var missing []string
		for _, key := range batch {
			if !present[key] {
				missing = append(missing, key)
			}
		}
		if len(missing) == 0 {
			continue
		}
		if err := e.issues.DeleteIssuesByIDs(ctx, missing); err != nil {
			e.logger.Warn().Err(err).Str("project", project).Msg("deleting stale issues failed, skipping")
			continue
		}
		if err := e.comments.DeleteCommentsByIssueKeys(ctx, missing); err != nil {
			e.logger.Warn().Err(err).Str("project", project).Msg("deleting stale comments failed, skipping")
		}
		deleted += len(missing)
	}
	return deleted, nil
}

func quoteKeys(keys []string) string {
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = fmt.Sprintf("%q", k)
	}
	return strings.Join(quoted, ",")
}

// syncComments fetches and embeds comments for the given issue keys,
// bounded to cfg.CommentConcurrency concurrent fetches. Per-issue fetch
// errors are recorded but never abort the batch.
func (e *Engine) syncComments(ctx context.Context, project string, issueKeys []string) models.SyncResult {
	result := models.SyncResult{}

	type fetched struct {
		comments []models.Comment
		summary  string
		err      error
	}
	results := make([]fetched, len(issueKeys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.CommentConcurrency)
	for i, key := range issueKeys {
		i, key := i, key
		g.Go(func() error {
			comments, err := e.source.GetComments(gctx, key)
			summary := ""
			if rec, ok, lookupErr := e.issues.GetIssueByKey(gctx, key); lookupErr == nil && ok {
				summary = rec.Summary
			}
			results[i] = fetched{comments: comments, summary: summary, err: err}
			return nil // per-issue errors are recorded below, never fatal to the group
		})
	}
	_ = g.Wait()

	var texts []string
	var records []models.CommentEmbedding
	for i, r := range results {
		if r.err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("comments for %s: %v", issueKeys[i], r.err))
			continue
		}
		for _, c := range r.comments {
			if c.ID == "" || strings.TrimSpace(c.Body) == "" {
				continue // skip malformed
			}
			result.CommentsProcessed++
			texts = append(texts, schemas.ToCommentEmbedText(c, r.summary))
			records = append(records, toCommentEmbedding(c, project, e.cfg.EmbeddingVersion, e.now()))
		}
	}

	if len(texts) == 0 {
		return result
	}

	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("embed comments for %s: %v", project, err))
		return result
	}

	n := min(len(vectors), len(records))
	for i := 0; i < n; i++ {
		records[i].Vector = vectors[i]
	}
	records = records[:n]

	if err := e.comments.UpsertComments(ctx, records); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("store comments for %s: %v", project, err))
		return result
	}
	result.CommentsEmbedded = len(records)
	return result
}

func (e *Engine) persistCheckpoint(project string, offset int) {
	state := loadState(e.cfg.StatePath)
	state.CheckpointProject = project
	state.CheckpointOffset = offset
	if err := saveState(e.cfg.StatePath, state); err != nil {
		e.logger.Warn().Err(err).Msg("failed to persist sync checkpoint")
	}
}

func (e *Engine) clearCheckpoint() {
	state := loadState(e.cfg.StatePath)
	if state.CheckpointProject == "" {
		return
	}
	state.CheckpointProject = ""
	state.CheckpointOffset = 0
	if err := saveState(e.cfg.StatePath, state); err != nil {
		e.logger.Warn().Err(err).Msg("failed to clear sync checkpoint")
	}
}

