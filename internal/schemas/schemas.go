// Package schemas prepares issue-tracker text for embedding: markup
// cleaning, sentence-aware truncation, content hashing, and the structured
// text prompts the embedding pipeline feeds to a provider.
package schemas

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/thebtf/jiraindex/pkg/models"
)

// cleanupPatterns is a compile-once table of the markup transformations
// clean() applies, in order. Lifting the regex list to a package-level var
// (rather than recompiling per call) is the one change the teacher's own
// query-expansion code (internal/search/expansion) already makes for its
// intent patterns; we apply the same idiom here.
var cleanupPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	// Code blocks collapse to a marker; their content is not semantically
	// useful for embedding and can be arbitrarily large.
	{regexp.MustCompile("(?s)\\{code[^}]*\\}.*?\\{code\\}"), "[code snippet]"},
	{regexp.MustCompile("(?s)\\{\\{.*?\\}\\}"), "[code snippet]"},
	// Panel/noformat delimiters are stripped but their content retained.
	{regexp.MustCompile(`\{panel[^}]*\}`), ""},
	{regexp.MustCompile(`\{panel\}`), ""},
	{regexp.MustCompile(`\{noformat\}`), ""},
	// Images and attachments carry no text value.
	{regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`), ""},
	{regexp.MustCompile(`!([^!]+)!`), ""},
	// User mentions: [~name] -> name.
	{regexp.MustCompile(`\[~([^\]]+)\]`), "$1"},
	// [text|url] -> text; bare [url] -> stripped.
	{regexp.MustCompile(`\[([^|\]]+)\|[^\]]+\]`), "$1"},
	{regexp.MustCompile(`\[https?://[^\]\s]*\]`), ""},
	// Bare URLs.
	{regexp.MustCompile(`https?://\S+`), ""},
	// Generic macro braces, e.g. {color:red}, {quote}.
	{regexp.MustCompile(`\{[a-zA-Z][a-zA-Z0-9:_-]*\}`), ""},
	// Bold/italic/underline-italic/strikethrough unwrap.
	{regexp.MustCompile(`\*([^*]+)\*`), "$1"},
	{regexp.MustCompile(`_([^_]+)_`), "$1"},
	{regexp.MustCompile(`-([^-\s][^-]*)-`), "$1"},
}

var (
	bulletLine  = regexp.MustCompile(`^\s*[*#-]+\s*`)
	headingLine = regexp.MustCompile(`^\s*h[1-6]\.\s*`)
	whitespace  = regexp.MustCompile(`[ \t]+`)
	blankLines  = regexp.MustCompile(`\n{3,}`)
)

// Clean removes Jira wiki markup from text, leaving plain prose suitable
// for embedding. Deterministic and idempotent: Clean(Clean(x)) == Clean(x).
func Clean(text string) string {
	if text == "" {
		return ""
	}
	out := text
	for _, p := range cleanupPatterns {
		out = p.re.ReplaceAllString(out, p.repl)
	}

	lines := strings.Split(out, "\n")
	for i, line := range lines {
		line = bulletLine.ReplaceAllString(line, "")
		line = headingLine.ReplaceAllString(line, "")
		lines[i] = line
	}
	out = strings.Join(lines, "\n")

	out = whitespace.ReplaceAllString(out, " ")
	out = blankLines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// sentenceEnders are the terminators TruncateAtSentence scans for. The
// order does not matter: the latest occurrence of any of them past the
// halfway point wins.
var sentenceEnders = []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}

// TruncateAtSentence shortens text to at most maxChars, preferring to cut
// at a sentence boundary, then a word boundary, then hard-cutting.
func TruncateAtSentence(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}

	window := text[:maxChars]
	half := maxChars / 2

	bestPos := -1
	for _, ender := range sentenceEnders {
		if pos := strings.LastIndex(window, ender); pos > half && pos > bestPos {
			bestPos = pos + len(ender) - 1 // keep the terminator, drop trailing space/newline
		}
	}
	if bestPos > half {
		return strings.TrimRight(text[:bestPos+1], " \n")
	}

	if pos := strings.LastIndex(window, " "); pos > half {
		return text[:pos] + "…"
	}

	return window + "…"
}

// ComputeContentHash is the MD5 over the fields that affect semantic
// meaning: summary, description, sorted labels, and status. Label order
// never changes the hash, so reordering labels alone never triggers a
// re-embed.
func ComputeContentHash(summary, description string, labels []string, status string) string {
	sorted := append([]string(nil), labels...)
	sort.Strings(sorted)
	input := fmt.Sprintf("%s|%s|%s|%s", summary, description, strings.Join(sorted, ","), status)
	sum := md5.Sum([]byte(input))
	return hex.EncodeToString(sum[:])
}

// ToEmbedText assembles the structured multi-line prompt used to embed an
// issue. Empty sections (no labels, no components) are skipped.
func ToEmbedText(issue models.Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Issue: %s\n", issue.Summary)
	fmt.Fprintf(&b, "Type: %s in %s\n", valueOr(issue.IssueType, "Task"), issue.ProjectKey)
	fmt.Fprintf(&b, "Status: %s\n", valueOr(issue.Status, "Open"))

	if len(issue.Labels) > 0 {
		fmt.Fprintf(&b, "Labels: %s\n", strings.Join(firstN(issue.Labels, 10), ", "))
	}
	if len(issue.Components) > 0 {
		fmt.Fprintf(&b, "Components: %s\n", strings.Join(firstN(issue.Components, 5), ", "))
	}

	desc := TruncateAtSentence(Clean(issue.Description), 1000)
	if desc != "" {
		fmt.Fprintf(&b, "Description: %s", desc)
	}

	return strings.TrimRight(b.String(), "\n")
}

// ToCommentEmbedText assembles the embedding prompt for a single comment.
func ToCommentEmbedText(comment models.Comment, issueSummary string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Comment on %s: %s\n", comment.IssueKey, issueSummary)
	fmt.Fprintf(&b, "Author: %s\n", valueOr(comment.Author, "Unknown"))
	fmt.Fprintf(&b, "Content: %s", TruncateAtSentence(Clean(comment.Body), 500))
	return b.String()
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
