package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/thebtf/jiraindex/pkg/models"
)

func TestCleanIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		"*bold* and _italic_ and {code}x := 1{code}",
		"[~jsmith] said [see here|https://example.com/x] about !image.png!",
		"h1. Heading\n* bullet one\n* bullet two",
		"{panel:title=Note}important{panel}",
	}
	for _, in := range inputs {
		once := Clean(in)
		twice := Clean(once)
		assert.Equal(t, once, twice, "Clean must be idempotent for %q", in)
	}
}

func TestCleanStripsMentionsAndLinks(t *testing.T) {
	out := Clean("[~jsmith] mentioned [the doc|https://example.com/doc]")
	assert.Contains(t, out, "jsmith")
	assert.Contains(t, out, "the doc")
	assert.NotContains(t, out, "https://example.com/doc")
}

func TestComputeContentHashLabelOrderInsensitive(t *testing.T) {
	h1 := ComputeContentHash("summary", "desc", []string{"a", "b"}, "Open")
	h2 := ComputeContentHash("summary", "desc", []string{"b", "a"}, "Open")
	assert.Equal(t, h1, h2)
}

func TestComputeContentHashSensitiveToContent(t *testing.T) {
	h1 := ComputeContentHash("summary", "desc", []string{"a"}, "Open")
	h2 := ComputeContentHash("summary changed", "desc", []string{"a"}, "Open")
	assert.NotEqual(t, h1, h2)
}

func TestTruncateAtSentenceShortTextUnchanged(t *testing.T) {
	short := "short text."
	assert.Equal(t, short, TruncateAtSentence(short, 500))
}

func TestTruncateAtSentenceCutsAtBoundary(t *testing.T) {
	text := "This is the first sentence. " +
		"This is a much longer second sentence that pushes well past the limit we configured for this test case."
	out := TruncateAtSentence(text, 40)
	assert.True(t, len(out) <= len(text))
	assert.Contains(t, out, "first sentence.")
}

func TestTruncateAtSentenceHardCutFallback(t *testing.T) {
	text := "averylongsinglewordwithnospacesorpunctuationatallwhatsoever"
	out := TruncateAtSentence(text, 10)
	assert.Contains(t, out, "…")
}

func TestToEmbedTextSkipsEmptySections(t *testing.T) {
	issue := models.Issue{
		Summary:    "Login fails",
		ProjectKey: "PROJ",
		IssueType:  "Bug",
		Status:     "Open",
	}
	text := ToEmbedText(issue)
	assert.Contains(t, text, "Issue: Login fails")
	assert.Contains(t, text, "Type: Bug in PROJ")
	assert.NotContains(t, text, "Labels:")
	assert.NotContains(t, text, "Components:")
}

func TestToEmbedTextIncludesLabelsAndComponents(t *testing.T) {
	issue := models.Issue{
		Summary:    "Crash on load",
		ProjectKey: "PROJ",
		IssueType:  "Bug",
		Status:     "Open",
		Labels:     []string{"urgent", "crash"},
		Components: []string{"backend"},
	}
	text := ToEmbedText(issue)
	assert.Contains(t, text, "Labels: urgent, crash")
	assert.Contains(t, text, "Components: backend")
}

func TestToCommentEmbedText(t *testing.T) {
	comment := models.Comment{IssueKey: "PROJ-1", Author: "jsmith", Body: "Looks good to me."}
	text := ToCommentEmbedText(comment, "Login fails")
	assert.Contains(t, text, "Comment on PROJ-1: Login fails")
	assert.Contains(t, text, "Author: jsmith")
	assert.Contains(t, text, "Looks good to me.")
}
