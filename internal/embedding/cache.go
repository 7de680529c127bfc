package embedding

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/rs/zerolog"
	"github.com/thebtf/jiraindex/internal/errkind"
)

// Cache is the two-tier embedding cache: an in-memory hot map consulted
// first, backed by a persistent SQLite table. Hits in the persistent tier
// populate the hot tier; misses are logged and treated as cache-absent so
// the pipeline always has a path forward, per the cache failure-mode
// contract.
type Cache struct {
	db         *sql.DB
	logger     zerolog.Logger
	maxEntries int

	hotMu sync.RWMutex
	hot   map[string][]float32
}

// NewCache opens (creating if necessary) the SQLite-backed embedding
// cache at path, with the given entry cap.
func NewCache(path string, maxEntries int, logger zerolog.Logger) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errkind.New(errkind.Persistence, "NewCache", err)
	}
	db.SetMaxOpenConns(1) // single-connection discipline, per the cache's serialized-writer contract

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS embedding_cache (
			content_hash TEXT PRIMARY KEY,
			embedding    BLOB NOT NULL,
			dims         INTEGER NOT NULL,
			model        TEXT NOT NULL,
			created_at   REAL NOT NULL,
			last_accessed REAL NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_embedding_cache_last_accessed
			ON embedding_cache(last_accessed);
	`); err != nil {
		db.Close()
		return nil, errkind.New(errkind.Persistence, "NewCache", err)
	}

	if maxEntries <= 0 {
		maxEntries = 100_000
	}

	return &Cache{
		db:         db,
		logger:     logger.With().Str("component", "embedding_cache").Logger(),
		maxEntries: maxEntries,
		hot:        make(map[string][]float32),
	}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached vector for hash, if present. A persistent-tier hit
// refreshes last_accessed and populates the hot tier. Any error is logged
// and treated as a miss.
func (c *Cache) Get(hash string) ([]float32, bool) {
	c.hotMu.RLock()
	if v, ok := c.hot[hash]; ok {
		c.hotMu.RUnlock()
		return v, true
	}
	c.hotMu.RUnlock()

	var blob []byte
	err := c.db.QueryRow(`SELECT embedding FROM embedding_cache WHERE content_hash = ?`, hash).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("hash", hash).Msg("cache get failed, treating as miss")
		return nil, false
	}

	var vec []float32
	if err := json.Unmarshal(blob, &vec); err != nil {
		c.logger.Warn().Err(err).Str("hash", hash).Msg("cache decode failed, treating as miss")
		return nil, false
	}

	now := float64(time.Now().UnixNano()) / 1e9
	if _, err := c.db.Exec(`UPDATE embedding_cache SET last_accessed = ? WHERE content_hash = ?`, now, hash); err != nil {
		c.logger.Warn().Err(err).Msg("failed to update last_accessed")
	}

	c.hotMu.Lock()
	c.hot[hash] = vec
	c.hotMu.Unlock()

	return vec, true
}

// Set upserts the vector for hash and populates the hot tier. If the
// persistent table exceeds maxEntries afterward, the oldest 10% by
// last_accessed are evicted.
func (c *Cache) Set(hash string, vec []float32, model string) error {
	blob, err := json.Marshal(vec)
	if err != nil {
		return errkind.New(errkind.Persistence, "Set", err)
	}

	now := float64(time.Now().UnixNano()) / 1e9
	_, err = c.db.Exec(`
		INSERT INTO embedding_cache (content_hash, embedding, dims, model, created_at, last_accessed)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_hash) DO UPDATE SET
			embedding = excluded.embedding,
			dims = excluded.dims,
			model = excluded.model,
			last_accessed = excluded.last_accessed
	`, hash, blob, len(vec), model, now, now)
	if err != nil {
		c.logger.Warn().Err(err).Str("hash", hash).Msg("cache set failed")
		return errkind.New(errkind.Persistence, "Set", err)
	}

	c.hotMu.Lock()
	c.hot[hash] = vec
	c.hotMu.Unlock()

	c.evictIfOverCap()
	return nil
}

// evictIfOverCap deletes the oldest 10% of rows by last_accessed once the
// table exceeds maxEntries. This is a genuine time-sorted eviction (not an
// approximation via random map-iteration order), matching the cache
// eviction-bound testable property.
func (c *Cache) evictIfOverCap() {
	var count int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM embedding_cache`).Scan(&count); err != nil {
		c.logger.Warn().Err(err).Msg("failed to count cache rows")
		return
	}
	if count <= c.maxEntries {
		return
	}

	toEvict := count / 10
	if toEvict < 1 {
		toEvict = 1
	}

	rows, err := c.db.Query(`
		SELECT content_hash FROM embedding_cache
		ORDER BY last_accessed ASC LIMIT ?
	`, toEvict)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to select eviction candidates")
		return
	}
	var victims []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err == nil {
			victims = append(victims, h)
		}
	}
	rows.Close()

	for _, h := range victims {
		if _, err := c.db.Exec(`DELETE FROM embedding_cache WHERE content_hash = ?`, h); err != nil {
			c.logger.Warn().Err(err).Str("hash", h).Msg("failed to evict cache row")
			continue
		}
		c.hotMu.Lock()
		delete(c.hot, h)
		c.hotMu.Unlock()
	}

	c.logger.Debug().Int("evicted", len(victims)).Int("cap", c.maxEntries).Msg("evicted oldest cache entries")
}

// Count returns the current persistent row count, for tests and stats.
func (c *Cache) Count() (int, error) {
	var count int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM embedding_cache`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count cache rows: %w", err)
	}
	return count, nil
}
