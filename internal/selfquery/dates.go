package selfquery

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// datePattern is one entry in the ordered relative-date table: a regex and
// the handler that turns a match into a UTC time.
type datePattern struct {
	re      *regexp.Regexp
	handler func(now time.Time, m []string) time.Time
}

// datePatterns is tried in order against the lowercased expression; the
// first match wins. This mirrors the fixed pattern table the original
// parser used before falling back to a general-purpose resolver for
// anything it doesn't recognize.
var datePatterns = []datePattern{
	{regexp.MustCompile(`last\s+(\d+)\s+days?`), func(now time.Time, m []string) time.Time {
		n, _ := strconv.Atoi(m[1])
		return now.AddDate(0, 0, -n)
	}},
	{regexp.MustCompile(`last\s+(\d+)\s+weeks?`), func(now time.Time, m []string) time.Time {
		n, _ := strconv.Atoi(m[1])
		return now.AddDate(0, 0, -n*7)
	}},
	{regexp.MustCompile(`last\s+(\d+)\s+months?`), func(now time.Time, m []string) time.Time {
		n, _ := strconv.Atoi(m[1])
		return now.AddDate(0, 0, -n*30)
	}},
	{regexp.MustCompile(`last\s+week`), func(now time.Time, m []string) time.Time {
		return now.AddDate(0, 0, -7)
	}},
	{regexp.MustCompile(`last\s+month`), func(now time.Time, m []string) time.Time {
		return now.AddDate(0, 0, -30)
	}},
	{regexp.MustCompile(`this\s+week`), func(now time.Time, m []string) time.Time {
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday as end-of-week, matching Python's Monday=0 ISO weekday convention
		}
		return now.AddDate(0, 0, -(weekday - 1))
	}},
	{regexp.MustCompile(`this\s+month`), func(now time.Time, m []string) time.Time {
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}},
	{regexp.MustCompile(`yesterday`), func(now time.Time, m []string) time.Time {
		return now.AddDate(0, 0, -1)
	}},
	{regexp.MustCompile(`today`), func(now time.Time, m []string) time.Time {
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}},
	{regexp.MustCompile(`q1\s*(\d{4})?`), quarterHandler(1)},
	{regexp.MustCompile(`q2\s*(\d{4})?`), quarterHandler(2)},
	{regexp.MustCompile(`q3\s*(\d{4})?`), quarterHandler(3)},
	{regexp.MustCompile(`q4\s*(\d{4})?`), quarterHandler(4)},
}

func quarterHandler(quarter int) func(now time.Time, m []string) time.Time {
	return func(now time.Time, m []string) time.Time {
		year := now.Year()
		if len(m) > 1 && m[1] != "" {
			if y, err := strconv.Atoi(m[1]); err == nil {
				year = y
			}
		}
		month := time.Month((quarter-1)*3 + 1)
		return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	}
}

var whenParser = newWhenParser()

func newWhenParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// ParseDateExpression resolves a relative-date expression ("last week",
// "q2 2024", "two Fridays ago") to a UTC time. The fixed pattern table is
// tried first since it matches the exact vocabulary the self-query prompt
// teaches the model to emit; anything it misses falls through to the
// general-purpose natural-language resolver. Returns (time.Time{}, false)
// if neither resolves it.
func ParseDateExpression(expr string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(expr)
	for _, p := range datePatterns {
		if loc := p.re.FindStringSubmatchIndex(lower); loc != nil {
			groups := extractGroups(lower, loc)
			return p.handler(now, groups), true
		}
	}

	if r, err := whenParser.Parse(expr, now); err == nil && r != nil {
		return r.Time, true
	}
	return time.Time{}, false
}

func extractGroups(s string, loc []int) []string {
	groups := make([]string, len(loc)/2)
	for i := range groups {
		start, end := loc[2*i], loc[2*i+1]
		if start < 0 || end < 0 {
			continue
		}
		groups[i] = s[start:end]
	}
	return groups
}
