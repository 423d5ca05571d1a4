package kvstore

import (
	"context"
	"time"
)

// Store is the narrow key-value surface the rest of the service depends on.
// Get and Set are advisory: transport failures degrade to absent/no-op so a
// caching layer never blocks the primary operation. ListRange and Delete
// propagate errors because history reads must distinguish "store is down"
// from "no history".
type Store interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
	ListAppend(ctx context.Context, key, item string) error
	ListRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	Delete(ctx context.Context, key string) error
	Connected() bool
	Close() error
}
