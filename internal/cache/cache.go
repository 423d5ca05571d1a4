package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/afedeli/pressline/internal/kvstore"
	"github.com/afedeli/pressline/internal/observability"
)

// Cache is a read-through layer in front of the remote providers: check the
// store, compute on miss, store the result best-effort. A failure to store
// never blocks returning the computed value.
type Cache struct {
	store   kvstore.Store
	metrics *observability.Metrics
}

func New(store kvstore.Store, metrics *observability.Metrics) *Cache {
	return &Cache{store: store, metrics: metrics}
}

// GetOrCompute looks key up, counting a hit or miss under kind. On miss it
// invokes compute and stores the result with ttl.
func (c *Cache) GetOrCompute(ctx context.Context, kind, key string, ttl time.Duration, compute func() (string, error)) (string, error) {
	if val, ok := c.store.Get(ctx, key); ok {
		c.metrics.ObserveCache(kind, true)
		return val, nil
	}
	c.metrics.ObserveCache(kind, false)

	val, err := compute()
	if err != nil {
		return "", err
	}
	c.store.Set(ctx, key, val, ttl)
	return val, nil
}

// Digest collapses the assembled context and query into a fixed-length cache
// operand. Any change in retrieved passages, even reordering, produces a
// different digest; that coarseness is deliberate.
func Digest(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
