//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/Strata-Labs/bnsv2-api/internal/cache"
	platformredis "github.com/Strata-Labs/bnsv2-api/internal/platform/redis"
	"github.com/Strata-Labs/bnsv2-api/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *cache.Redis
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.cache = cache.NewRedis(&platformredis.Client{Client: s.redis.Client})
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) TestGetSet() {
	ctx := context.Background()

	s.Run("missing key is a miss", func() {
		_, ok, err := s.cache.Get(ctx, "absent")
		s.NoError(err)
		s.False(ok)
	})

	s.Run("stored value round trips", func() {
		s.Require().NoError(s.cache.Set(ctx, "bns:mainnet:height", []byte("842000"), time.Minute))
		got, ok, err := s.cache.Get(ctx, "bns:mainnet:height")
		s.NoError(err)
		s.True(ok)
		s.Equal([]byte("842000"), got)
	})
}

func (s *RedisCacheSuite) TestTTLExpiry() {
	ctx := context.Background()

	s.Require().NoError(s.cache.Set(ctx, "short", []byte("v"), 100*time.Millisecond))
	time.Sleep(200 * time.Millisecond)

	_, ok, err := s.cache.Get(ctx, "short")
	s.NoError(err)
	s.False(ok, "entry should expire via redis TTL")
}
