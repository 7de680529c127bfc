package scheduler

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// schedulerMetrics are recorded against the global MeterProvider, same as
// the embedding pipeline's: a no-op provider (the default until the host
// application configures a real exporter) makes every call a cheap no-op.
type schedulerMetrics struct {
	runs     metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
}

func newSchedulerMetrics() schedulerMetrics {
	meter := otel.Meter("github.com/thebtf/jiraindex/internal/scheduler")

	runs, _ := meter.Int64Counter("scheduler.sync_runs",
		metric.WithDescription("incremental syncs triggered by the scheduler"))
	failures, _ := meter.Int64Counter("scheduler.sync_failures",
		metric.WithDescription("incremental syncs that returned an error or per-batch errors"))
	duration, _ := meter.Float64Histogram("scheduler.sync_duration_seconds",
		metric.WithDescription("wall-clock duration of each scheduled incremental sync"))

	return schedulerMetrics{runs: runs, failures: failures, duration: duration}
}

func (m schedulerMetrics) recordRun(ctx context.Context, seconds float64, failed bool) {
	m.runs.Add(ctx, 1)
	m.duration.Record(ctx, seconds)
	if failed {
		m.failures.Add(ctx, 1)
	}
}
