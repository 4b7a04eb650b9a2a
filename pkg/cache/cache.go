// Package cache holds validated SQL keyed by the natural-language
// question that produced it. Two layers exist: PatternCache matches
// normalized question text exactly, SemanticCache matches by embedding
// similarity. Only SQL that already passed validation may be stored;
// the caches trust their producers on that.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int   `json:"size"`
}

// HitRate returns hits / (hits + misses), or 0 when empty.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

var (
	whitespacePattern = regexp.MustCompile(`\s+`)
	digitsPattern     = regexp.MustCompile(`\d+`)
)

// normalizeQuestion canonicalizes a question for exact-pattern matching:
// lowercased, whitespace collapsed, digit runs replaced with a
// placeholder so "top 5 customers" and "top 10 customers" share a key.
func normalizeQuestion(question string) string {
	normalized := strings.ToLower(strings.TrimSpace(question))
	normalized = whitespacePattern.ReplaceAllString(normalized, " ")
	normalized = digitsPattern.ReplaceAllString(normalized, "N")
	return normalized
}

// patternKey hashes a normalized question into a fixed-size cache key.
func patternKey(question string) string {
	sum := sha256.Sum256([]byte(normalizeQuestion(question)))
	return hex.EncodeToString(sum[:])
}

// entry is one cached statement.
type entry struct {
	sql       string
	createdAt time.Time
	hits      int
}

func (e *entry) expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.createdAt) > ttl
}
