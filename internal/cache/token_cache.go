package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	gocache "github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	ristretto_store "github.com/eko/gocache/store/ristretto/v4"
)

// TokenCache is an in-process cache of minted image capabilities, so
// consecutive page views reuse a token instead of writing a new Redis key.
type TokenCache struct {
	cache *gocache.Cache[string]
	ttl   time.Duration
}

// NewTokenCache keeps entries for ttl. Callers pass a ttl well below the
// capability lifetime so a reused token stays valid long enough.
func NewTokenCache(ttl time.Duration) (*TokenCache, error) {
	client, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     1 << 24,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("token cache: %w", err)
	}
	return &TokenCache{
		cache: gocache.New[string](ristretto_store.NewRistretto(client)),
		ttl:   ttl,
	}, nil
}

func (c *TokenCache) key(kind ImageKind, imageName string) string {
	return string(kind) + imageName
}

// Get returns a cached token for the image.
func (c *TokenCache) Get(ctx context.Context, kind ImageKind, imageName string) (string, bool) {
	if c == nil || c.ttl <= 0 {
		return "", false
	}
	token, err := c.cache.Get(ctx, c.key(kind, imageName))
	if err != nil || token == "" {
		return "", false
	}
	return token, true
}

// Set remembers a freshly minted token.
func (c *TokenCache) Set(ctx context.Context, kind ImageKind, imageName, token string) {
	if c == nil || c.ttl <= 0 {
		return
	}
	_ = c.cache.Set(ctx, c.key(kind, imageName), token, store.WithExpiration(c.ttl), store.WithCost(1))
}

// Forget drops the cached token of a deleted image.
func (c *TokenCache) Forget(ctx context.Context, kind ImageKind, imageName string) {
	if c == nil {
		return
	}
	_ = c.cache.Delete(ctx, c.key(kind, imageName))
}
