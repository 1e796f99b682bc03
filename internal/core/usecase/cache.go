package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/megachat/sales-assistant/internal/core/ports"
)

const (
	responseKeyPrefix  = "response:"
	embeddingKeyPrefix = "embedding:"
	productKeyPrefix   = "product:"
	sessionKeyPrefix   = "session:"

	sharedEmbedTimeout = 30 * time.Second
)

func hashKey(prefix, text string) string {
	sum := sha256.Sum256([]byte(text))
	return prefix + hex.EncodeToString(sum[:])
}

// ResponseCacheKey is keyed by the exact raw query text.
func ResponseCacheKey(query string) string {
	return hashKey(responseKeyPrefix, query)
}

func ProductCacheKey(id string) string {
	return productKeyPrefix + id
}

func SessionCacheKey(userID string) string {
	return sessionKeyPrefix + userID
}

// ResponseCache stores final replies. Writes are idempotent per query.
type ResponseCache struct {
	store ports.CacheStore
	ttl   time.Duration
}

func NewResponseCache(store ports.CacheStore, ttl time.Duration) *ResponseCache {
	return &ResponseCache{store: store, ttl: ttl}
}

func (c *ResponseCache) Get(ctx context.Context, query string) (string, bool, error) {
	raw, found, err := c.store.Get(ctx, ResponseCacheKey(query))
	if err != nil || !found {
		return "", false, err
	}
	return string(raw), true, nil
}

func (c *ResponseCache) Set(ctx context.Context, query, response string) error {
	return c.store.Set(ctx, ResponseCacheKey(query), []byte(response), c.ttl)
}

func (c *ResponseCache) Invalidate(ctx context.Context, query string) error {
	return c.store.Delete(ctx, ResponseCacheKey(query))
}

// CachedEmbedder memoizes embeddings in the cache store and collapses
// concurrent requests for the same text.
type CachedEmbedder struct {
	next  ports.Embedder
	store ports.CacheStore
	ttl   time.Duration
	group singleflight.Group
}

func NewCachedEmbedder(next ports.Embedder, store ports.CacheStore, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{next: next, store: store, ttl: ttl}
}

func (e *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, "query", text, e.next.EmbedQuery)
}

func (e *CachedEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, "document", text, e.next.EmbedDocument)
}

func (e *CachedEmbedder) embed(
	ctx context.Context,
	kind, text string,
	compute func(context.Context, string) ([]float32, error),
) ([]float32, error) {
	key := hashKey(embeddingKeyPrefix, kind+"\x00"+text)

	raw, found, err := e.store.Get(ctx, key)
	if err != nil {
		slog.Debug("embedding_cache_get_failed", "error", err)
	}
	if found {
		var vector []float32
		if err := json.Unmarshal(raw, &vector); err == nil && len(vector) > 0 {
			return vector, nil
		}
	}

	// The shared call outlives any single caller; each waiter honours its own ctx.
	results := e.group.DoChan(key, func() (any, error) {
		sharedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedEmbedTimeout)
		defer cancel()
		vector, err := compute(sharedCtx, text)
		if err != nil {
			return nil, err
		}
		if encoded, err := json.Marshal(vector); err == nil {
			if err := e.store.Set(sharedCtx, key, encoded, e.ttl); err != nil {
				slog.Warn("embedding_cache_set_failed", "error", err)
			}
		}
		return vector, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("embed %s: %w", kind, ctx.Err())
	case res := <-results:
		if res.Err != nil {
			return nil, fmt.Errorf("embed %s: %w", kind, res.Err)
		}
		return res.Val.([]float32), nil
	}
}
