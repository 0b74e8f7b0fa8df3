package chain

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/Strata-Labs/bnsv2-api/internal/cache"
	"github.com/Strata-Labs/bnsv2-api/internal/platform/config"
	"github.com/Strata-Labs/bnsv2-api/internal/platform/logger"
	"github.com/Strata-Labs/bnsv2-api/pkg/platform/sentinel"
)

type OracleSuite struct {
	suite.Suite
	upstream *httptest.Server
	calls    atomic.Int64
	respond  func(w http.ResponseWriter)
}

func TestOracleSuite(t *testing.T) {
	suite.Run(t, new(OracleSuite))
}

func (s *OracleSuite) SetupTest() {
	s.calls.Store(0)
	s.respond = func(w http.ResponseWriter) {
		_, _ = w.Write([]byte(`{"burn_block_height": 842000, "stacks_tip_height": 150000}`))
	}
	s.upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		s.respond(w)
	}))
	s.T().Cleanup(s.upstream.Close)
}

func (s *OracleSuite) oracle() *Oracle {
	networks := config.Networks{
		"mainnet": {
			Schema:      "mainnet",
			CachePrefix: "bns:mainnet",
			OracleURL:   s.upstream.URL,
		},
	}
	o, err := New(networks, cache.NewMemory(), logger.New(), WithTTL(time.Minute))
	s.Require().NoError(err)
	return o
}

func (s *OracleSuite) TestFetchAndCache() {
	ctx := context.Background()
	o := s.oracle()

	s.Run("miss fetches upstream once", func() {
		height, err := o.CurrentHeight(ctx, "mainnet")
		s.Require().NoError(err)
		s.Equal(uint64(842000), height)
		s.Equal(int64(1), s.calls.Load())
	})

	s.Run("hit skips upstream", func() {
		height, err := o.CurrentHeight(ctx, "mainnet")
		s.Require().NoError(err)
		s.Equal(uint64(842000), height)
		s.Equal(int64(1), s.calls.Load(), "cached height must not refetch")
	})
}

func (s *OracleSuite) TestUnknownNetwork() {
	_, err := s.oracle().CurrentHeight(context.Background(), "regtest")
	s.Error(err)
	s.Equal(int64(0), s.calls.Load())
}

func (s *OracleSuite) TestUpstreamFailures() {
	ctx := context.Background()

	s.Run("non-2xx is a hard failure with no retry", func() {
		s.respond = func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusBadGateway)
		}
		o := s.oracle()

		_, err := o.CurrentHeight(ctx, "mainnet")
		s.ErrorIs(err, sentinel.ErrUnavailable)
		s.Equal(int64(1), s.calls.Load(), "failures are not retried")
	})

	s.Run("malformed payload is a hard failure", func() {
		s.respond = func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"burn_block_height": "not a number"}`))
		}
		o := s.oracle()

		_, err := o.CurrentHeight(ctx, "mainnet")
		s.ErrorIs(err, sentinel.ErrMalformed)
	})

	s.Run("zero height is malformed", func() {
		s.respond = func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"stacks_tip_height": 150000}`))
		}
		o := s.oracle()

		_, err := o.CurrentHeight(ctx, "mainnet")
		s.ErrorIs(err, sentinel.ErrMalformed)
	})

	s.Run("failure is not cached as stale fallback", func() {
		s.respond = func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusInternalServerError)
		}
		o := s.oracle()

		_, err := o.CurrentHeight(ctx, "mainnet")
		s.Error(err)

		s.respond = func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"burn_block_height": 842001}`))
		}
		height, err := o.CurrentHeight(ctx, "mainnet")
		s.Require().NoError(err)
		s.Equal(uint64(842001), height)
	})
}
