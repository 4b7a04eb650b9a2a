package cache

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/askdb-inc/askdb-engine/pkg/config"
)

// Embedder produces a vector representation of text.
type Embedder interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type semanticEntry struct {
	key       string
	question  string
	sql       string
	vector    []float32
	createdAt time.Time
}

// SemanticCache matches questions by embedding similarity, so "show me
// the biggest orders" can reuse the SQL cached for "what are the largest
// orders". When the embedder is unavailable it degrades to exact
// normalized-text matching rather than failing lookups.
type SemanticCache struct {
	embedder  Embedder
	threshold float64
	ttl       time.Duration
	maxSize   int
	logger    *zap.Logger

	now func() time.Time

	mu      sync.Mutex
	entries []*semanticEntry

	hits   int64
	misses int64
}

// NewSemanticCache creates a semantic cache. If logger is nil, a no-op
// logger is used.
func NewSemanticCache(embedder Embedder, cfg config.CacheConfig, logger *zap.Logger) *SemanticCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemanticCache{
		embedder:  embedder,
		threshold: cfg.SimilarityThreshold,
		ttl:       cfg.CacheTTL(),
		maxSize:   cfg.MaxSize,
		logger:    logger.Named("semantic_cache"),
		now:       time.Now,
	}
}

// Get returns cached SQL for the most similar stored question at or
// above the similarity threshold. When two entries tie, the older one
// wins. If embedding fails, lookup falls back to exact normalized-text
// matching.
func (c *SemanticCache) Get(ctx context.Context, question string) (string, bool) {
	vector, err := c.embedder.CreateEmbedding(ctx, question)
	if err != nil {
		c.logger.Debug("embedding unavailable, falling back to exact match", zap.Error(err))
		return c.getExact(question)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked()

	var best *semanticEntry
	bestScore := 0.0
	for _, e := range c.entries {
		if e.vector == nil {
			continue
		}
		score := cosineSimilarity(vector, e.vector)
		if score >= c.threshold && score > bestScore {
			best = e
			bestScore = score
		}
	}

	if best == nil {
		c.misses++
		return "", false
	}

	c.hits++
	return best.sql, true
}

// Put stores validated SQL with its question embedding. If embedding
// fails the entry is stored without a vector and remains reachable
// through exact matching only.
func (c *SemanticCache) Put(ctx context.Context, question, sql string) {
	vector, err := c.embedder.CreateEmbedding(ctx, question)
	if err != nil {
		c.logger.Debug("embedding unavailable, storing exact-match entry", zap.Error(err))
		vector = nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := patternKey(question)
	for _, e := range c.entries {
		if e.key == key {
			e.sql = sql
			e.vector = vector
			e.createdAt = c.now()
			return
		}
	}

	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}

	c.entries = append(c.entries, &semanticEntry{
		key:       key,
		question:  question,
		sql:       sql,
		vector:    vector,
		createdAt: c.now(),
	})
}

// Stats returns current counters.
func (c *SemanticCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Size: len(c.entries)}
}

func (c *SemanticCache) getExact(question string) (string, bool) {
	key := patternKey(question)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked()

	for _, e := range c.entries {
		if e.key == key {
			c.hits++
			return e.sql, true
		}
	}

	c.misses++
	return "", false
}

func (c *SemanticCache) pruneLocked() {
	now := c.now()
	kept := c.entries[:0]
	for _, e := range c.entries {
		if now.Sub(e.createdAt) <= c.ttl {
			kept = append(kept, e)
		}
	}
	c.entries = kept
}

func (c *SemanticCache) evictOldestLocked() {
	oldest := -1
	for i, e := range c.entries {
		if oldest == -1 || e.createdAt.Before(c.entries[oldest].createdAt) {
			oldest = i
		}
	}
	if oldest >= 0 {
		c.entries = append(c.entries[:oldest], c.entries[oldest+1:]...)
	}
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths or zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
