package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/jiraindex/pkg/models"
)

type fakeSyncer struct {
	calls    int32
	failNext bool
}

func (f *fakeSyncer) IncrementalSync(ctx context.Context, projects []string) (models.SyncResult, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.failNext {
		return models.SyncResult{Errors: []string{"simulated failure"}}, nil
	}
	return models.SyncResult{IssuesProcessed: 3, IssuesEmbedded: 3}, nil
}

func TestSchedulerRunOnce(t *testing.T) {
	fs := &fakeSyncer{}
	s := New(fs, time.Hour, []string{"PROJ"}, zerolog.Nop())

	result, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.IssuesEmbedded)

	status := s.Status()
	assert.Equal(t, 1, status.SyncCount)
	assert.Equal(t, 0, status.ErrorCount)
	require.NotNil(t, status.LastResult)
	assert.Equal(t, 3, status.LastResult.IssuesEmbedded)
}

func TestSchedulerRunOnceTracksErrors(t *testing.T) {
	fs := &fakeSyncer{failNext: true}
	s := New(fs, time.Hour, nil, zerolog.Nop())

	_, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	status := s.Status()
	assert.Equal(t, 1, status.ErrorCount)
}

func TestSchedulerStartStopRunsOnInterval(t *testing.T) {
	fs := &fakeSyncer{}
	s := New(fs, 10*time.Millisecond, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	assert.True(t, s.Status().Running)

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&fs.calls) < 2 {
		select {
		case <-deadline:
			t.Fatal("scheduler did not tick within deadline")
		case <-time.After(5 * time.Millisecond):
		}
	}

	s.Stop()
	assert.False(t, s.Status().Running)
}

func TestSchedulerStopWithoutStartIsNoop(t *testing.T) {
	s := New(&fakeSyncer{}, time.Hour, nil, zerolog.Nop())
	s.Stop()
	assert.False(t, s.Status().Running)
}
