package cache

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	platformredis "github.com/Strata-Labs/bnsv2-api/internal/platform/redis"
)

// Redis backs the Cache with a Redis instance so height and zonefile entries
// survive across replicas. Expiry is delegated to Redis TTLs.
type Redis struct {
	client *platformredis.Client
}

// NewRedis wraps an established Redis client.
func NewRedis(client *platformredis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}
