package cache

import (
	"sync"
	"time"

	"github.com/askdb-inc/askdb-engine/pkg/config"
)

// PatternCache maps normalized question text to validated SQL. Lookups
// are exact after normalization, so paraphrases miss here and fall
// through to the semantic layer.
type PatternCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration
	maxSize int

	now func() time.Time

	hits   int64
	misses int64
}

// NewPatternCache creates a pattern cache sized and aged per config.
func NewPatternCache(cfg config.CacheConfig) *PatternCache {
	return &PatternCache{
		entries: make(map[string]*entry),
		ttl:     cfg.CacheTTL(),
		maxSize: cfg.MaxSize,
		now:     time.Now,
	}
}

// Get returns the cached SQL for a question, if present and fresh.
// Expired entries are removed on access.
func (c *PatternCache) Get(question string) (string, bool) {
	key := patternKey(question)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return "", false
	}
	if e.expired(c.now(), c.ttl) {
		delete(c.entries, key)
		c.misses++
		return "", false
	}

	e.hits++
	c.hits++
	return e.sql, true
}

// Put stores validated SQL for a question. At capacity the oldest entry
// is evicted first.
func (c *PatternCache) Put(question, sql string) {
	key := patternKey(question)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}

	c.entries[key] = &entry{sql: sql, createdAt: c.now()}
}

// Stats returns current counters.
func (c *PatternCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Size: len(c.entries)}
}

// Purge removes all entries, keeping counters.
func (c *PatternCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

func (c *PatternCache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for key, e := range c.entries {
		if first || e.createdAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = e.createdAt
			first = false
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
