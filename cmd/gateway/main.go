package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"admission-gateway/middleware/ratelimit"
	"admission-gateway/middleware/ratelimit/domain"
	"admission-gateway/middleware/ratelimit/infra"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := readConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	log, err := newLogger(cfg.logLevel, cfg.logFormat)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	defer func() { _ = log.Sync() }()

	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		return fmt.Errorf("invalid UPSTREAM_URL: %w", err)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("proxy error", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	store := infra.NewStore(
		infra.WithIdleTTL(cfg.idleTTL),
		infra.WithCleanupEvery(cfg.cleanupEvery),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	store.StartJanitor(ctx)

	var stats []domain.StatsStore
	if cfg.rateStatsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.rateStatsRedisAddr,
			Password: cfg.rateStatsRedisPassword,
			DB:       cfg.rateStatsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		pingCancel()
		if err != nil {
			return fmt.Errorf("redis stats ping error: %w", err)
		}

		stats = append(stats, infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.rateStatsPrefix),
			infra.WithStatsTTL(cfg.rateStatsTTL),
			infra.WithStatsBucket(cfg.rateStatsBucket),
			infra.WithStatsTrackKeys(cfg.rateStatsTrackKeys),
		))
	}

	var metricsSrv *http.Server
	if cfg.metricsAddr != "" {
		prom, err := infra.NewPrometheusStats(prometheus.DefaultRegisterer, store)
		if err != nil {
			return fmt.Errorf("prometheus register: %w", err)
		}
		stats = append(stats, prom)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:              cfg.metricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	h := http.Handler(proxy)
	if cfg.rateEnabled {
		h = ratelimit.Middleware(ratelimit.Options{
			Store:               store,
			Stats:               infra.NewMultiStats(stats...),
			Logger:              log,
			Capacity:            cfg.bucketCapacity,
			RefillRatePerSecond: cfg.refillRate,
			KeyHeader:           cfg.rateKeyHeader,
			TrustProxyHeaders:   cfg.trustProxy,
			RejectStatus:        http.StatusTooManyRequests,
			AddRateLimitHeaders: cfg.addHeaders,
		})(h)
	}

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
	}()

	log.Info("gateway listening",
		zap.String("addr", cfg.listenAddr),
		zap.String("upstream", target.String()))
	log.Info("rate",
		zap.Bool("enabled", cfg.rateEnabled),
		zap.Int64("capacity", cfg.bucketCapacity),
		zap.Int64("refill_per_second", cfg.refillRate),
		zap.String("key_header", cfg.rateKeyHeader),
		zap.Bool("trust_proxy_headers", cfg.trustProxy),
		zap.Duration("idle_ttl", cfg.idleTTL),
		zap.Duration("cleanup_every", cfg.cleanupEvery))
	log.Info("rate-stats",
		zap.Bool("redis", cfg.rateStatsEnabled),
		zap.String("redis_addr", cfg.rateStatsRedisAddr),
		zap.String("bucket", cfg.rateStatsBucket),
		zap.Duration("ttl", cfg.rateStatsTTL),
		zap.Bool("track_keys", cfg.rateStatsTrackKeys),
		zap.String("metrics_addr", cfg.metricsAddr))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
