// Package chain fetches the current consensus height per network. Height is
// the clock every expiry computation runs against, so failures here are hard
// failures: no retry, no stale-on-error fallback.
package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Strata-Labs/bnsv2-api/internal/cache"
	"github.com/Strata-Labs/bnsv2-api/internal/platform/config"
	"github.com/Strata-Labs/bnsv2-api/internal/platform/metrics"
	"github.com/Strata-Labs/bnsv2-api/pkg/platform/sentinel"
)

// infoPayload is the slice of the oracle's /v2/info response we consume.
type infoPayload struct {
	BurnBlockHeight uint64 `json:"burn_block_height"`
	StacksTipHeight uint64 `json:"stacks_tip_height"`
}

// Oracle resolves the current burn-chain height for each configured network,
// caching results briefly so bursts of queries share one upstream call.
// Duplicate concurrent misses may each fetch; the fetch is idempotent.
type Oracle struct {
	networks config.Networks
	cache    cache.Cache
	client   *http.Client
	logger   *slog.Logger
	metrics  *metrics.Metrics
	ttl      time.Duration
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithHTTPClient overrides the upstream HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Oracle) { o.client = client }
}

// WithMetrics attaches fetch outcome counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Oracle) { o.metrics = m }
}

// WithTTL overrides the height cache TTL.
func WithTTL(ttl time.Duration) Option {
	return func(o *Oracle) { o.ttl = ttl }
}

// New constructs a height oracle over the given networks.
func New(networks config.Networks, c cache.Cache, logger *slog.Logger, opts ...Option) (*Oracle, error) {
	if c == nil {
		return nil, fmt.Errorf("cache is required")
	}

	o := &Oracle{
		networks: networks,
		cache:    c,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
		ttl:      config.HeightCacheTTL,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// CurrentHeight returns the burn-chain height for network. A cache hit
// returns immediately; a miss issues exactly one upstream GET. Non-2xx and
// malformed payloads surface as sentinel.ErrUnavailable; callers translate
// to an upstream-unavailable response.
func (o *Oracle) CurrentHeight(ctx context.Context, network string) (uint64, error) {
	nw, ok := o.networks[network]
	if !ok {
		return 0, fmt.Errorf("unknown network %q", network)
	}

	key := nw.CachePrefix + ":height"
	var cached uint64
	if hit, err := cache.GetJSON(ctx, o.cache, key, &cached); err == nil && hit {
		o.count("hit")
		return cached, nil
	}
	o.count("miss")

	height, err := o.fetch(ctx, network, nw.OracleURL)
	if err != nil {
		o.countFetch(network, "error")
		return 0, err
	}
	o.countFetch(network, "ok")

	if err := cache.SetJSON(ctx, o.cache, key, height, o.ttl); err != nil {
		o.logger.WarnContext(ctx, "failed to cache height",
			"network", network, "error", err)
	}
	return height, nil
}

func (o *Oracle) fetch(ctx context.Context, network, url string) (uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build oracle request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("height oracle for %s: %w: %w", network, sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("height oracle for %s returned %d: %w",
			network, resp.StatusCode, sentinel.ErrUnavailable)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("read oracle response: %w: %w", sentinel.ErrUnavailable, err)
	}

	var info infoPayload
	if err := json.Unmarshal(body, &info); err != nil {
		return 0, fmt.Errorf("parse oracle response: %w: %w", sentinel.ErrMalformed, err)
	}
	if info.BurnBlockHeight == 0 {
		return 0, fmt.Errorf("oracle reported zero height: %w", sentinel.ErrMalformed)
	}
	return info.BurnBlockHeight, nil
}

func (o *Oracle) count(outcome string) {
	if o.metrics == nil {
		return
	}
	switch outcome {
	case "hit":
		o.metrics.CacheHits.WithLabelValues("height").Inc()
	case "miss":
		o.metrics.CacheMisses.WithLabelValues("height").Inc()
	}
}

func (o *Oracle) countFetch(network, outcome string) {
	if o.metrics == nil {
		return
	}
	o.metrics.OracleFetches.WithLabelValues(network, outcome).Inc()
}
