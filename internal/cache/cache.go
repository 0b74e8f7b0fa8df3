// Package cache provides the TTL key/value capability shared by the height
// oracle, the resolver, and the external subdomain fetcher. The cache is an
// injected dependency, never a package global.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Cache is a TTL key/value store. Entries are replaced wholesale on Set and
// silently evicted once stale; there is no eager invalidation. Implementations
// must be safe for concurrent use. Duplicate concurrent misses for the same
// key may each perform the same idempotent fetch; callers must not rely on
// at-most-once population.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// GetJSON reads key and unmarshals it into v. Missing or expired entries
// return ok=false. A corrupt entry is treated as a miss rather than an
// error so a bad write can never wedge a key until expiry.
func GetJSON(ctx context.Context, c Cache, key string, v any) (bool, error) {
	data, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, nil
	}
	return true, nil
}

// SetJSON marshals v and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, ttl)
}
