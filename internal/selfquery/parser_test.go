package selfquery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/jiraindex/internal/chat"
)

type fakeChat struct {
	response string
	err      error
	calls    int
}

func (f *fakeChat) Complete(ctx context.Context, messages []chat.Message, temperature float64) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestParse_EmptyQuery(t *testing.T) {
	p := New(&fakeChat{}, 0, 0, zerolog.Nop())
	result, err := p.Parse(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Empty(t, result.SemanticQuery)
}

func TestParse_WellFormedJSON(t *testing.T) {
	fc := &fakeChat{response: `{"semantic_query":"auth","filters":{"issue_type":"Bug"},"interpretation":"auth bugs"}`}
	p := New(fc, 0, 0, zerolog.Nop())

	result, err := p.Parse(context.Background(), "auth bugs")
	require.NoError(t, err)
	assert.Equal(t, "auth", result.SemanticQuery)
	assert.Equal(t, "Bug", result.Filters["issue_type"])
	assert.Equal(t, 0.9, result.Confidence)
}

func TestParse_StripsMarkdownFence(t *testing.T) {
	fc := &fakeChat{response: "```json\n{\"semantic_query\":\"x\",\"filters\":{},\"interpretation\":\"y\"}\n```"}
	p := New(fc, 0, 0, zerolog.Nop())

	result, err := p.Parse(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "x", result.SemanticQuery)
}

func TestParse_MalformedJSONFallsBack(t *testing.T) {
	fc := &fakeChat{response: "not json at all"}
	p := New(fc, 0, 0, zerolog.Nop())

	result, err := p.Parse(context.Background(), "weird query")
	require.NoError(t, err)
	assert.Equal(t, "weird query", result.SemanticQuery)
	assert.Equal(t, 0.3, result.Confidence)
}

func TestParse_ChatErrorFallsBack(t *testing.T) {
	fc := &fakeChat{err: errors.New("provider down")}
	p := New(fc, 0, 0, zerolog.Nop())

	result, err := p.Parse(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "anything", result.SemanticQuery)
	assert.Equal(t, 0.5, result.Confidence)
}

func TestParse_CacheHitAvoidsSecondCall(t *testing.T) {
	fc := &fakeChat{response: `{"semantic_query":"x","filters":{},"interpretation":"y"}`}
	p := New(fc, time.Minute, 100, zerolog.Nop())

	_, err := p.Parse(context.Background(), "Repeat Query")
	require.NoError(t, err)
	_, err = p.Parse(context.Background(), "repeat query  ")
	require.NoError(t, err)
	assert.Equal(t, 1, fc.calls, "case/whitespace-insensitive cache key should dedupe the second call")
}

func TestParse_ResolvesRelativeDateMarker(t *testing.T) {
	fc := &fakeChat{response: `{"semantic_query":"","filters":{"created_at":{"$gte":"RELATIVE:yesterday"}},"interpretation":"y"}`}
	p := New(fc, 0, 0, zerolog.Nop())
	fixedNow := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixedNow }

	result, err := p.Parse(context.Background(), "issues from yesterday")
	require.NoError(t, err)

	createdAt := result.Filters["created_at"].(map[string]any)
	resolved := createdAt["$gte"].(string)
	parsed, err := time.Parse(time.RFC3339, resolved)
	require.NoError(t, err)
	assert.Equal(t, fixedNow.AddDate(0, 0, -1).Day(), parsed.Day())
}

func TestParseDateExpression_LastNDays(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	got, ok := ParseDateExpression("last 7 days", now)
	require.True(t, ok)
	assert.Equal(t, now.AddDate(0, 0, -7), got)
}

func TestParseDateExpression_Quarter(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	got, ok := ParseDateExpression("q2 2025", now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestParseDateExpression_Yesterday(t *testing.T) {
	now := time.Date(2026, 7, 31, 15, 30, 0, 0, time.UTC)
	got, ok := ParseDateExpression("yesterday", now)
	require.True(t, ok)
	assert.Equal(t, now.AddDate(0, 0, -1), got)
}

func TestTranslateToStoreFilters_PassThrough(t *testing.T) {
	in := map[string]any{"status": "Done"}
	out := TranslateToStoreFilters(in)
	assert.Equal(t, in, out)
}

func TestFormatSchemaForPrompt_IncludesEnum(t *testing.T) {
	text := formatSchemaForPrompt()
	assert.Contains(t, text, "issue_type")
	assert.Contains(t, text, "Bug, Story, Task, Epic, Sub-task")
}
