// Command server wires high-level dependencies, exposes the HTTP router,
// and keeps the server lifecycle small. Business logic lives in the internal
// service packages.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Strata-Labs/bnsv2-api/internal/cache"
	"github.com/Strata-Labs/bnsv2-api/internal/chain"
	"github.com/Strata-Labs/bnsv2-api/internal/platform/config"
	"github.com/Strata-Labs/bnsv2-api/internal/platform/httpserver"
	"github.com/Strata-Labs/bnsv2-api/internal/platform/logger"
	"github.com/Strata-Labs/bnsv2-api/internal/platform/metrics"
	platformredis "github.com/Strata-Labs/bnsv2-api/internal/platform/redis"
	"github.com/Strata-Labs/bnsv2-api/internal/resolver"
	"github.com/Strata-Labs/bnsv2-api/internal/store"
	"github.com/Strata-Labs/bnsv2-api/internal/subdomains"
	httptransport "github.com/Strata-Labs/bnsv2-api/internal/transport/http"
)

const healthProbeInterval = 30 * time.Second

func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	networks := config.DefaultNetworks()
	if cfg.NetworksFile != "" {
		loaded, err := config.LoadNetworks(cfg.NetworksFile)
		if err != nil {
			return err
		}
		networks = loaded
	}

	m := metrics.New()

	snapshots, err := store.New(ctx, cfg.DatabaseURL, networks)
	if err != nil {
		return err
	}
	defer snapshots.Close()

	var queryCache cache.Cache = cache.NewMemory()
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		queryCache = cache.NewRedis(redisClient)
		log.Info("using redis cache", "url", cfg.RedisURL)
	} else {
		log.Info("using in-process cache")
	}

	oracle, err := chain.New(networks, queryCache, log, chain.WithMetrics(m))
	if err != nil {
		return err
	}

	fetcher, err := subdomains.New(queryCache, log,
		subdomains.WithMetrics(m),
		subdomains.WithStorageDomains(allStorageDomains(networks)),
	)
	if err != nil {
		return err
	}

	service, err := resolver.New(snapshots, oracle, networks, log,
		resolver.WithCache(queryCache),
		resolver.WithExternalFetcher(fetcher),
	)
	if err != nil {
		return err
	}

	handler := httptransport.NewHandler(service, log)
	router := httptransport.NewRouter(handler, log, m, snapshots)

	go probeStoreHealth(ctx, snapshots, log)

	srv := httpserver.New(cfg.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting bnsv2-api", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// allStorageDomains unions the default allow-list with every per-network
// override so one fetcher can serve all configured networks.
func allStorageDomains(networks config.Networks) []string {
	seen := make(map[string]struct{})
	var domains []string
	add := func(domain string) {
		if _, ok := seen[domain]; !ok {
			seen[domain] = struct{}{}
			domains = append(domains, domain)
		}
	}
	for _, domain := range config.DefaultStorageDomains {
		add(domain)
	}
	for _, nw := range networks {
		for _, domain := range nw.StorageDomains {
			add(domain)
		}
	}
	return domains
}

// probeStoreHealth pings the snapshot store in the background and logs
// state transitions so operators see outages without request traffic.
func probeStoreHealth(ctx context.Context, snapshots *store.Postgres, log *slog.Logger) {
	ticker := time.NewTicker(healthProbeInterval)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := snapshots.Health(ctx)
			switch {
			case err != nil && healthy:
				healthy = false
				log.Error("store became unhealthy", "error", err)
			case err == nil && !healthy:
				healthy = true
				log.Info("store recovered")
			}
		}
	}
}
