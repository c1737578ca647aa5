// Package cached decorates any Embedder with a ristretto cache keyed by
// content hash, so repeated embedding of identical text costs one lookup
// instead of one model invocation.
package cached

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/mnemo-ai/mnemo-go-sdk/memory"
)

// Embedder wraps an inner embedder with a content-hash cache.
type Embedder struct {
	inner memory.Embedder
	cache *ristretto.Cache
}

// Config tunes the cache.
type Config struct {
	// MaxEntries bounds the number of cached embeddings.
	// Default: 4096.
	MaxEntries int64
}

// New wraps inner with a ristretto cache.
func New(inner memory.Embedder, cfg *Config) (*Embedder, error) {
	maxEntries := int64(4096)
	if cfg != nil && cfg.MaxEntries > 0 {
		maxEntries = cfg.MaxEntries
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	return &Embedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for identical text, otherwise delegates
// to the inner embedder and caches the result.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := contentHash(text)

	if v, ok := e.cache.Get(key); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	// Cost 1 per entry; admission is best-effort and a rejected entry
	// just means the next call embeds again.
	e.cache.Set(key, vec, 1)
	return vec, nil
}

// Dimensions returns the inner embedder's vector size.
func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Wait flushes pending cache writes. Intended for tests.
func (e *Embedder) Wait() {
	e.cache.Wait()
}

// Close releases the cache.
func (e *Embedder) Close() {
	e.cache.Close()
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
