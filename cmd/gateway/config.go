package main

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"admission-gateway/middleware/ratelimit/application"
	"admission-gateway/middleware/ratelimit/infra"
)

type config struct {
	listenAddr  string
	upstreamURL string
	metricsAddr string
	logLevel    string
	logFormat   string

	rateEnabled    bool
	bucketCapacity int64
	refillRate     int64
	rateKeyHeader  string
	trustProxy     bool
	idleTTL        time.Duration
	cleanupEvery   time.Duration
	addHeaders     bool

	rateStatsEnabled       bool
	rateStatsRedisAddr     string
	rateStatsRedisPassword string
	rateStatsRedisDB       int
	rateStatsPrefix        string
	rateStatsTTL           time.Duration
	rateStatsBucket        string
	rateStatsTrackKeys     bool
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.upstreamURL = os.Getenv("UPSTREAM_URL")
	cfg.metricsAddr = os.Getenv("METRICS_ADDR")
	cfg.logLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.logFormat = getenvDefault("LOG_FORMAT", "json")

	cfg.rateEnabled = getenvBoolDefault("RATE_ENABLED", true)
	cfg.bucketCapacity = getenvInt64Default("BUCKET_CAPACITY", application.DefaultCapacity)
	cfg.refillRate = getenvInt64Default("REFILL_RATE", application.DefaultRefillRatePerSecond)
	cfg.rateKeyHeader = os.Getenv("RATE_KEY_HEADER")
	// IMPORTANTE: só deixe TRUST_PROXY_HEADERS=true atrás de um proxy que
	// sobrescreve X-Forwarded-For/X-Real-IP; senão o cliente escolhe a própria chave.
	cfg.trustProxy = getenvBoolDefault("TRUST_PROXY_HEADERS", true)
	cfg.idleTTL = getenvDurationDefault("IDLE_TTL", infra.DefaultIdleTTL)
	cfg.cleanupEvery = getenvDurationDefault("CLEANUP_EVERY", infra.DefaultCleanupEvery)
	cfg.addHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", false)

	cfg.rateStatsEnabled = getenvBoolDefault("RATE_STATS_ENABLED", false)
	cfg.rateStatsRedisAddr = getenvDefault("RATE_STATS_REDIS_ADDR", "")
	cfg.rateStatsRedisPassword = os.Getenv("RATE_STATS_REDIS_PASSWORD")
	cfg.rateStatsRedisDB = getenvIntDefault("RATE_STATS_REDIS_DB", 0)
	cfg.rateStatsPrefix = getenvDefault("RATE_STATS_PREFIX", "ratelimit:stats")
	cfg.rateStatsTTL = getenvDurationDefault("RATE_STATS_TTL", 24*time.Hour)
	cfg.rateStatsBucket = getenvDefault("RATE_STATS_BUCKET", infra.StatsBucketMinute)
	cfg.rateStatsTrackKeys = getenvBoolDefault("RATE_STATS_TRACK_KEYS", false)

	if cfg.upstreamURL == "" {
		return config{}, errors.New("UPSTREAM_URL is required")
	}
	if cfg.rateStatsEnabled && strings.TrimSpace(cfg.rateStatsRedisAddr) == "" {
		return config{}, errors.New("RATE_STATS_REDIS_ADDR is required when RATE_STATS_ENABLED=true")
	}
	if cfg.bucketCapacity <= 0 {
		return config{}, errors.New("BUCKET_CAPACITY must be > 0")
	}
	if cfg.refillRate <= 0 {
		return config{}, errors.New("REFILL_RATE must be > 0")
	}
	if cfg.idleTTL <= 0 {
		return config{}, errors.New("IDLE_TTL must be > 0")
	}
	switch cfg.rateStatsBucket {
	case infra.StatsBucketMinute, infra.StatsBucketHour, infra.StatsBucketNone:
	default:
		return config{}, errors.New("RATE_STATS_BUCKET must be minute, hour or none")
	}
	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvInt64Default(k string, def int64) int64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return i
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
