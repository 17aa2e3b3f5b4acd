package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the default number of cached query embeddings.
const DefaultCacheSize = 256

// CachedEmbedder wraps an Embedder with an LRU cache for query
// embeddings. Document embeddings bypass the cache: they are embedded
// once per content change and caching them would only waste memory.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

var _ Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps inner with a query cache of the given size.
func NewCachedEmbedder(inner Embedder, size int) *CachedEmbedder {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, _ := lru.New[string, []float32](size)
	return &CachedEmbedder{inner: inner, cache: cache}
}

// cacheKey hashes text together with the model name so a model switch
// never serves stale vectors.
func (c *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text + "\x00" + c.inner.ModelName()))
	return hex.EncodeToString(sum[:])
}

// EmbedAll passes document batches straight through and serves query
// batches from the cache where possible.
func (c *CachedEmbedder) EmbedAll(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	if mode != ModeQuery {
		return c.inner.EmbedAll(ctx, texts, mode)
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		if vec, ok := c.cache.Get(c.cacheKey(text)); ok {
			results[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return results, nil
	}

	fresh, err := c.inner.EmbedAll(ctx, missTexts, ModeQuery)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIdx {
		results[idx] = fresh[j]
		c.cache.Add(c.cacheKey(texts[idx]), fresh[j])
	}
	return results, nil
}

// EmbedQuery embeds a query, serving repeats from the cache.
func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedAll(ctx, []string{text}, ModeQuery)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Dimensions passes through to the inner embedder.
func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

// ModelName passes through to the inner embedder.
func (c *CachedEmbedder) ModelName() string { return c.inner.ModelName() }

// Close closes the inner embedder.
func (c *CachedEmbedder) Close() error { return c.inner.Close() }
