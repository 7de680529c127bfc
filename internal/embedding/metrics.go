package embedding

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// pipelineMetrics holds the OpenTelemetry instruments the Pipeline records
// against. They're built against the global MeterProvider: when the host
// application hasn't configured a real exporter, otel's default no-op
// provider makes every recording a cheap, harmless call, so the pipeline
// never needs a nil check at the call site.
type pipelineMetrics struct {
	cacheHits   metric.Int64Counter
	cacheMisses metric.Int64Counter
	embedded    metric.Int64Counter
	chunkErrors metric.Int64Counter
}

func newPipelineMetrics() pipelineMetrics {
	meter := otel.Meter("github.com/thebtf/jiraindex/internal/embedding")

	cacheHits, _ := meter.Int64Counter("embedding_pipeline.cache_hits",
		metric.WithDescription("embed_batch texts served from the cache"))
	cacheMisses, _ := meter.Int64Counter("embedding_pipeline.cache_misses",
		metric.WithDescription("embed_batch texts that required a provider call"))
	embedded, _ := meter.Int64Counter("embedding_pipeline.vectors_embedded",
		metric.WithDescription("vectors successfully returned from a provider call"))
	chunkErrors, _ := meter.Int64Counter("embedding_pipeline.chunk_errors",
		metric.WithDescription("embed chunks abandoned after exhausting retries"))

	return pipelineMetrics{
		cacheHits:   cacheHits,
		cacheMisses: cacheMisses,
		embedded:    embedded,
		chunkErrors: chunkErrors,
	}
}

func (m pipelineMetrics) recordCacheHit(ctx context.Context)   { m.cacheHits.Add(ctx, 1) }
func (m pipelineMetrics) recordCacheMiss(ctx context.Context)  { m.cacheMisses.Add(ctx, 1) }
func (m pipelineMetrics) recordEmbedded(ctx context.Context, n int) {
	if n > 0 {
		m.embedded.Add(ctx, int64(n))
	}
}
func (m pipelineMetrics) recordChunkError(ctx context.Context) { m.chunkErrors.Add(ctx, 1) }
