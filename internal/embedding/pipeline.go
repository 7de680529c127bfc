package embedding

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/thebtf/jiraindex/internal/errkind"
	"github.com/thebtf/jiraindex/internal/schemas"
)

// Pipeline batches, caches, rate-limits, and retries calls to a Provider.
// It provides Embed and EmbedBatch; there is no streaming variant.
type Pipeline struct {
	provider Provider
	cache    *Cache // nil disables caching
	sem      *semaphore.Weighted
	logger   zerolog.Logger
	metrics  pipelineMetrics

	batchSize int
}

// PipelineConfig configures a Pipeline's batching and concurrency limits.
type PipelineConfig struct {
	BatchSize               int
	MaxConcurrentEmbeddings int
}

// NewPipeline constructs a Pipeline around an explicit Provider and
// optional Cache (pass nil to disable caching entirely).
func NewPipeline(provider Provider, cache *Cache, cfg PipelineConfig, logger zerolog.Logger) *Pipeline {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	maxConcurrent := cfg.MaxConcurrentEmbeddings
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}

	return &Pipeline{
		provider:  provider,
		cache:     cache,
		sem:       semaphore.NewWeighted(int64(maxConcurrent)),
		logger:    logger.With().Str("component", "embedding_pipeline").Logger(),
		metrics:   newPipelineMetrics(),
		batchSize: batchSize,
	}
}

// Embed generates a single embedding, consulting the cache first.
func (p *Pipeline) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, errkind.New(errkind.ProviderHardFailure, "Embed", errProviderReturnedNothing)
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for texts, in input order for surviving
// items. An empty input is valid and returns an empty, non-error result.
//
// Texts that fail after retries are omitted from the output entirely —
// the result is not guaranteed to be the same length as the input.
func (p *Pipeline) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	cached := make([][]float32, len(texts))
	var uncachedTexts []string

	for i, t := range texts {
		hash := textCacheKey(t)
		if p.cache != nil {
			if v, ok := p.cache.Get(hash); ok {
				cached[i] = v
				p.metrics.recordCacheHit(ctx)
				continue
			}
		}
		p.metrics.recordCacheMiss(ctx)
		uncachedTexts = append(uncachedTexts, t)
	}

	computed, err := p.embedUncachedInChunks(ctx, uncachedTexts)
	if err != nil {
		return nil, err
	}

	// computed holds one entry per uncached text, in order, with nil where
	// that text's chunk failed after retries; walk both in lockstep and
	// omit the nil entries from the output.
	result := make([][]float32, 0, len(texts))
	computedPos := 0
	for i, vec := range cached {
		if vec != nil {
			result = append(result, vec)
			continue
		}
		if computedPos >= len(computed) {
			continue // this uncached item's embed failed; omit from output
		}
		v := computed[computedPos]
		computedPos++
		if v == nil {
			continue // this uncached item's chunk failed; omit from output
		}
		result = append(result, v)

		if p.cache != nil {
			hash := textCacheKey(texts[i])
			if err := p.cache.Set(hash, v, p.provider.Version()); err != nil {
				p.logger.Warn().Err(err).Msg("embedding cache write failed, continuing uncached")
			}
		}
	}

	return result, nil
}

func (p *Pipeline) embedUncachedInChunks(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var result [][]float32
	for start := 0; start < len(texts); start += p.batchSize {
		end := start + p.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		chunk := texts[start:end]

		if err := p.sem.Acquire(ctx, 1); err != nil {
			return result, errkind.New(errkind.Cancelled, "embedUncachedInChunks", err)
		}
		vecs, err := p.embedChunkWithRetry(ctx, chunk)
		p.sem.Release(1)

		if err != nil {
			p.logger.Error().Err(err).Int("chunk_size", len(chunk)).Msg("embedding batch failed after retries, omitting chunk")
			p.metrics.recordChunkError(ctx)
			result = append(result, make([][]float32, len(chunk))...)
			continue
		}
		p.metrics.recordEmbedded(ctx, len(vecs))
		result = append(result, vecs...)
	}
	return result, nil
}

// embedChunkWithRetry retries transient provider errors with exponential
// backoff (base 1s, max 60s, at most 5 attempts).
func (p *Pipeline) embedChunkWithRetry(ctx context.Context, chunk []string) ([][]float32, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 1 * time.Second
	bo.MaxInterval = 60 * time.Second
	bo.MaxElapsedTime = 0 // bounded by MaxRetries below, not wall-clock
	var policy backoff.BackOff = backoff.WithMaxRetries(bo, 4)
	policy = backoff.WithContext(policy, ctx)

	var vecs [][]float32
	op := func() error {
		v, err := p.provider.EmbedBatch(chunk)
		if err != nil {
			if isTransient(err) {
				return err // retried by backoff.Retry
			}
			return backoff.Permanent(err)
		}
		vecs = v
		return nil
	}

	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return vecs, nil
}

// isTransient is a conservative heuristic: provider errors that don't
// announce themselves as permanent (auth/quota) are treated as retryable.
// The OpenAI provider wraps hard failures distinctly enough (4xx auth
// errors) that this stays safe in practice; callers that need stricter
// classification should wrap provider errors in *errkind.Error themselves.
func isTransient(err error) bool {
	return !errkind.Is(err, errkind.ProviderHardFailure)
}

// textCacheKey hashes raw text to the same content-hash space the schemas
// package uses, so an embedding computed once for identical prepared text
// is reused regardless of which document produced it.
func textCacheKey(text string) string {
	return schemas.ComputeContentHash(text, "", nil, "")
}

var errProviderReturnedNothing = providerEmptyError{}

type providerEmptyError struct{}

func (providerEmptyError) Error() string { return "provider returned no embeddings" }
