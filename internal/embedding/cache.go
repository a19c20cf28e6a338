package embedding

import (
	"context"
	"crypto/sha256"
	"sync"

	"github.com/helixir/research-survey-service/internal/observability"
)

// cacheEntry holds one cached vector together with the hash of the text it
// was computed from.
type cacheEntry struct {
	contentHash [sha256.Size]byte
	vector      []float32
}

// Cache is an in-process embedding cache keyed by source-qualified paper
// identifier. Entries never expire within a process lifetime but are
// recomputed when the underlying text changes, detected by content hash.
//
// The cache is safe for concurrent reads and writes. Two goroutines racing
// to insert the same key both compute the embedding and the last writer
// wins; since embedding is deterministic for identical text, both writers
// store the same vector and no update is lost.
type Cache struct {
	embedder Embedder
	metrics  *observability.Metrics

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewCache creates an embedding cache in front of embedder.
// metrics may be nil in tests.
func NewCache(embedder Embedder, metrics *observability.Metrics) *Cache {
	return &Cache{
		embedder: embedder,
		metrics:  metrics,
		entries:  make(map[string]cacheEntry),
	}
}

// Embed returns the embedding for text without caching. Used for query
// text, which is never keyed by a paper identifier.
func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := c.embedder.Embed(ctx, text)
	if err == nil && c.metrics != nil {
		c.metrics.EmbeddingsComputed.Inc()
	}
	return vec, err
}

// EmbedPaper returns the embedding for a paper's text, consulting the cache
// first. canonicalID keys the cache entry; the SHA-256 of text invalidates
// entries whose source text changed between retrievals.
func (c *Cache) EmbedPaper(ctx context.Context, canonicalID, text string) ([]float32, error) {
	hash := sha256.Sum256([]byte(text))

	c.mu.RLock()
	entry, ok := c.entries[canonicalID]
	c.mu.RUnlock()

	if ok && entry.contentHash == hash {
		if c.metrics != nil {
			c.metrics.EmbeddingCacheHits.Inc()
		}
		return entry.vector, nil
	}

	if c.metrics != nil {
		c.metrics.EmbeddingCacheMisses.Inc()
	}

	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.EmbeddingsComputed.Inc()
	}

	c.mu.Lock()
	c.entries[canonicalID] = cacheEntry{contentHash: hash, vector: vec}
	c.mu.Unlock()

	return vec, nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
