package selfquery

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/thebtf/jiraindex/pkg/models"
)

const (
	defaultCacheTTL  = 5 * time.Minute
	defaultCacheCap  = 1000
	cacheEvictFrac   = 0.1
)

type cacheEntry struct {
	query     models.ParsedQuery
	expiresAt time.Time
	insertedAt time.Time
}

// queryCache is a short-TTL, capacity-bounded cache of parsed queries,
// independent of the embedding cache's persistent tier: it never touches
// disk and caches structured query interpretations, not vectors.
type queryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	cap     int
}

func newQueryCache(ttl time.Duration, capacity int) *queryCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if capacity <= 0 {
		capacity = defaultCacheCap
	}
	return &queryCache{entries: make(map[string]cacheEntry), ttl: ttl, cap: capacity}
}

// cacheKey is md5(lowercase(trim(query))), matching the cache-key
// derivation rule so semantically identical queries (up to case/whitespace)
// share a cache entry.
func cacheKey(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := md5.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func (c *queryCache) get(key string) (models.ParsedQuery, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return models.ParsedQuery{}, false
	}
	return e.query, true
}

func (c *queryCache) set(key string, query models.ParsedQuery, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.cap {
		c.evictOldestLocked()
	}
	c.entries[key] = cacheEntry{query: query, expiresAt: now.Add(c.ttl), insertedAt: now}
}

// evictOldestLocked removes the oldest 10% of entries by insertion time.
// Caller must hold c.mu for writing.
func (c *queryCache) evictOldestLocked() {
	n := int(float64(len(c.entries)) * cacheEvictFrac)
	if n < 1 {
		n = 1
	}

	type keyed struct {
		key  string
		when time.Time
	}
	ordered := make([]keyed, 0, len(c.entries))
	for k, e := range c.entries {
		ordered = append(ordered, keyed{k, e.insertedAt})
	}
	for i := 0; i < n && len(ordered) > 0; i++ {
		oldestIdx := 0
		for j := 1; j < len(ordered); j++ {
			if ordered[j].when.Before(ordered[oldestIdx].when) {
				oldestIdx = j
			}
		}
		delete(c.entries, ordered[oldestIdx].key)
		ordered = append(ordered[:oldestIdx], ordered[oldestIdx+1:]...)
	}
}
