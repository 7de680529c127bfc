package selfquery

import (
	"context"
	"regexp"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/thebtf/jiraindex/internal/chat"
	"github.com/thebtf/jiraindex/pkg/models"
)

const relativeMarkerPrefix = "RELATIVE:"

var markdownFence = regexp.MustCompile("^```(?:json)?\\s*|\\s*```$")

// Parser decomposes a natural-language query into a semantic-search
// portion and structured filters via an LLM, with a deterministic
// relative-date resolver and a short-TTL result cache in front of it.
type Parser struct {
	chat   chat.Provider
	cache  *queryCache
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Parser. ttl/capacity of zero use the spec defaults
// (5 minutes, 1000 entries).
func New(provider chat.Provider, ttl time.Duration, capacity int, logger zerolog.Logger) *Parser {
	return &Parser{
		chat:   provider,
		cache:  newQueryCache(ttl, capacity),
		logger: logger.With().Str("component", "self_query_parser").Logger(),
		now:    time.Now,
	}
}

// Parse turns query into a ParsedQuery. Empty queries short-circuit to a
// zero-confidence empty result; cache hits are copied with the new
// raw_query attached. The cache is populated before date resolution, so a
// hit's RELATIVE: date markers are resolved against the current time on
// every call rather than frozen at the time of the first parse.
func (p *Parser) Parse(ctx context.Context, query string) (models.ParsedQuery, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return models.ParsedQuery{RawQuery: query, Interpretation: "Empty query"}, nil
	}

	key := cacheKey(trimmed)
	if cached, ok := p.cache.get(key); ok {
		cached.RawQuery = query
		cached.Filters = p.resolveRelativeDates(cached.Filters)
		return cached, nil
	}

	parsed := p.parseViaLLM(ctx, trimmed, query)

	// Cache before date resolution, so the cached form stays reusable
	// across time (a "last week" filter resolved once would go stale).
	p.cache.set(key, parsed, p.now())

	parsed.Filters = p.resolveRelativeDates(parsed.Filters)
	return parsed, nil
}

func (p *Parser) parseViaLLM(ctx context.Context, trimmed, original string) models.ParsedQuery {
	messages := []chat.Message{
		{Role: "system", Content: buildSystemPrompt()},
		{Role: "user", Content: trimmed},
	}

	content, err := p.chat.Complete(ctx, messages, 0.0)
	if err != nil {
		p.logger.Warn().Err(err).Str("query", trimmed).Msg("chat provider failed, falling back to raw semantic search")
		return models.ParsedQuery{
			SemanticQuery:  original,
			Filters:        map[string]any{},
			Interpretation: "Fallback: treating entire query as semantic search",
			Confidence:     0.5,
			RawQuery:       original,
		}
	}

	return parseLLMResponse(content, original, p.logger)
}

// parseLLMResponse strips markdown code fences (the model sometimes wraps
// JSON in ```json ... ``` despite being told not to) and decodes the
// result. A decode failure degrades to a semantic-only result at
// confidence 0.3, never a hard error — a parser outage should never block
// search.
func parseLLMResponse(content, originalQuery string, logger zerolog.Logger) models.ParsedQuery {
	cleaned := strings.TrimSpace(content)
	cleaned = markdownFence.ReplaceAllString(cleaned, "")

	var data struct {
		SemanticQuery  string         `json:"semantic_query"`
		Filters        map[string]any `json:"filters"`
		Interpretation string         `json:"interpretation"`
	}
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		logger.Warn().Err(err).Msg("failed to parse LLM JSON response")
		return models.ParsedQuery{
			SemanticQuery:  originalQuery,
			Filters:        map[string]any{},
			Interpretation: "Failed to parse LLM response",
			Confidence:     0.3,
			RawQuery:       originalQuery,
		}
	}

	filters := data.Filters
	if filters == nil {
		filters = map[string]any{}
	}
	return models.ParsedQuery{
		SemanticQuery:  data.SemanticQuery,
		Filters:        filters,
		Interpretation: data.Interpretation,
		Confidence:     0.9,
		RawQuery:       originalQuery,
	}
}

// resolveRelativeDates walks the filter tree looking for string values
// prefixed with RELATIVE:, resolving the tail via ParseDateExpression.
// Unresolvable expressions pass through unchanged.
func (p *Parser) resolveRelativeDates(filters map[string]any) map[string]any {
	resolved := make(map[string]any, len(filters))
	now := p.now()

	for field, value := range filters {
		opMap, isOpMap := value.(map[string]any)
		if !isOpMap {
			resolved[field] = value
			continue
		}

		resolvedOps := make(map[string]any, len(opMap))
		for op, operand := range opMap {
			str, isStr := operand.(string)
			if isStr && strings.HasPrefix(str, relativeMarkerPrefix) {
				expr := strings.TrimPrefix(str, relativeMarkerPrefix)
				if t, ok := ParseDateExpression(expr, now); ok {
					resolvedOps[op] = t.UTC().Format(time.RFC3339)
					continue
				}
			}
			resolvedOps[op] = operand
		}
		resolved[field] = resolvedOps
	}
	return resolved
}

// TranslateToStoreFilters maps parser output to the Vector Store's filter
// DSL. Currently a straight pass-through: the self-query filter shape and
// the store's filter shape are already the same map[string]any structure.
func TranslateToStoreFilters(filters map[string]any) map[string]any {
	return filters
}
