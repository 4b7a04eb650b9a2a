package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdb-inc/askdb-engine/pkg/config"
)

func patternConfig() config.CacheConfig {
	return config.CacheConfig{TTLHours: 168, MaxSize: 1000, SimilarityThreshold: 0.92}
}

func TestNormalizeQuestion(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Show me the top 5 customers", "show me the top N customers"},
		{"show me the top 10 customers", "show me the top N customers"},
		{"  What   are\ttotal sales? ", "what are total sales?"},
		{"orders from 2024", "orders from N"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, normalizeQuestion(tt.input))
	}
}

func TestPatternCache_HitAfterPut(t *testing.T) {
	c := NewPatternCache(patternConfig())

	c.Put("Show me the top 5 customers", "SELECT * FROM CUSTOMERS LIMIT 5")

	sql, ok := c.Get("show me the top 5 customers")
	require.True(t, ok)
	assert.Equal(t, "SELECT * FROM CUSTOMERS LIMIT 5", sql)

	// Digit normalization: a different number is the same pattern.
	sql, ok = c.Get("Show me the top 10 customers")
	require.True(t, ok)
	assert.Equal(t, "SELECT * FROM CUSTOMERS LIMIT 5", sql)
}

func TestPatternCache_Miss(t *testing.T) {
	c := NewPatternCache(patternConfig())

	_, ok := c.Get("anything")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestPatternCache_TTLExpiry(t *testing.T) {
	c := NewPatternCache(patternConfig())

	current := time.Now()
	c.now = func() time.Time { return current }

	c.Put("total sales", "SELECT SUM(AMOUNT) FROM ORDERS LIMIT 1")

	current = current.Add(167 * time.Hour)
	_, ok := c.Get("total sales")
	assert.True(t, ok)

	current = current.Add(2 * time.Hour)
	_, ok = c.Get("total sales")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats().Size, "expired entry should be removed on access")
}

func TestPatternCache_EvictsOldestAtCapacity(t *testing.T) {
	cfg := patternConfig()
	cfg.MaxSize = 2
	c := NewPatternCache(cfg)

	current := time.Now()
	c.now = func() time.Time { return current }

	c.Put("question one", "SQL_ONE")
	current = current.Add(time.Minute)
	c.Put("question two", "SQL_TWO")
	current = current.Add(time.Minute)
	c.Put("question three", "SQL_THREE")

	_, ok := c.Get("question one")
	assert.False(t, ok, "oldest entry should have been evicted")
	_, ok = c.Get("question two")
	assert.True(t, ok)
	_, ok = c.Get("question three")
	assert.True(t, ok)
}

func TestPatternCache_PutSameKeyDoesNotEvict(t *testing.T) {
	cfg := patternConfig()
	cfg.MaxSize = 2
	c := NewPatternCache(cfg)

	c.Put("question one", "SQL_ONE")
	c.Put("question two", "SQL_TWO")
	c.Put("question two", "SQL_TWO_UPDATED")

	sql, ok := c.Get("question one")
	require.True(t, ok)
	assert.Equal(t, "SQL_ONE", sql)

	sql, ok = c.Get("question two")
	require.True(t, ok)
	assert.Equal(t, "SQL_TWO_UPDATED", sql)
}

func TestStats_HitRate(t *testing.T) {
	assert.Equal(t, 0.0, Stats{}.HitRate())
	assert.Equal(t, 0.75, Stats{Hits: 3, Misses: 1}.HitRate())
}
