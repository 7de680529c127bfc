package embedding

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/jiraindex/internal/errkind"
)

type fakeProvider struct {
	calls      int
	batchCalls [][]string
	failNTimes int
	failAlways bool
	dims       int
}

func (f *fakeProvider) Name() string    { return "fake" }
func (f *fakeProvider) Version() string { return "fake-v1" }
func (f *fakeProvider) Dimensions() int { return f.dims }
func (f *fakeProvider) Close() error    { return nil }

func (f *fakeProvider) Embed(text string) ([]float32, error) {
	vs, err := f.EmbedBatch([]string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (f *fakeProvider) EmbedBatch(texts []string) ([][]float32, error) {
	f.calls++
	f.batchCalls = append(f.batchCalls, append([]string(nil), texts...))

	if f.failAlways {
		return nil, errors.New("simulated transient failure")
	}
	if f.failNTimes > 0 {
		f.failNTimes--
		return nil, errors.New("simulated transient failure")
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := NewCache(filepath.Join(t.TempDir(), "cache.db"), 0, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPipelineEmbedBatch_NoCache(t *testing.T) {
	fp := &fakeProvider{dims: 2}
	p := NewPipeline(fp, nil, PipelineConfig{}, zerolog.Nop())

	vecs, err := p.EmbedBatch(context.Background(), []string{"alpha", "bb"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, float32(5), vecs[0][0])
	assert.Equal(t, float32(2), vecs[1][0])
}

func TestPipelineEmbedBatch_UsesCacheOnSecondCall(t *testing.T) {
	fp := &fakeProvider{dims: 2}
	cache := newTestCache(t)
	p := NewPipeline(fp, cache, PipelineConfig{}, zerolog.Nop())

	texts := []string{"alpha", "bravo"}
	_, err := p.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Equal(t, 1, fp.calls)

	_, err = p.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	assert.Equal(t, 1, fp.calls, "second call should be served entirely from cache")
}

func TestPipelineEmbedBatch_EmptyInput(t *testing.T) {
	fp := &fakeProvider{dims: 2}
	p := NewPipeline(fp, nil, PipelineConfig{}, zerolog.Nop())

	vecs, err := p.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestPipelineEmbedBatch_ChunksLargeInput(t *testing.T) {
	fp := &fakeProvider{dims: 2}
	p := NewPipeline(fp, nil, PipelineConfig{BatchSize: 3}, zerolog.Nop())

	texts := make([]string, 7)
	for i := range texts {
		texts[i] = "x"
	}
	vecs, err := p.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 7)
	assert.Equal(t, 3, fp.calls, "7 items at batch size 3 should be 3 provider calls")
}

func TestPipelineEmbedBatch_RetriesTransientThenSucceeds(t *testing.T) {
	fp := &fakeProvider{dims: 2, failNTimes: 2}
	p := NewPipeline(fp, nil, PipelineConfig{}, zerolog.Nop())

	vecs, err := p.EmbedBatch(context.Background(), []string{"abc"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Equal(t, 3, fp.calls, "should retry twice before succeeding on the third attempt")
}

func TestPipelineEmbedBatch_PermanentFailureOmitsChunk(t *testing.T) {
	fp := &fakeProvider{dims: 2, failAlways: true}
	p := NewPipeline(fp, nil, PipelineConfig{}, zerolog.Nop())

	vecs, err := p.EmbedBatch(context.Background(), []string{"abc"})
	require.NoError(t, err, "a chunk that exhausts retries is omitted, not a pipeline error")
	assert.Empty(t, vecs)
}

func TestPipelineEmbed_EmptyResultIsHardFailure(t *testing.T) {
	fp := &fakeProvider{dims: 2, failAlways: true}
	p := NewPipeline(fp, nil, PipelineConfig{}, zerolog.Nop())

	_, err := p.Embed(context.Background(), "abc")
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.ProviderHardFailure))
}

func TestPipelineEmbed_SingleText(t *testing.T) {
	fp := &fakeProvider{dims: 2}
	p := NewPipeline(fp, nil, PipelineConfig{}, zerolog.Nop())

	vec, err := p.Embed(context.Background(), "abcd")
	require.NoError(t, err)
	assert.Equal(t, float32(4), vec[0])
}
