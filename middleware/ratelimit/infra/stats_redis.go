package infra

import (
	"context"
	"strings"
	"time"

	"admission-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

const (
	StatsBucketMinute = "minute"
	StatsBucketHour   = "hour"
	StatsBucketNone   = "none"
)

// RedisStatsStore grava contadores de decisão em hashes do Redis.
//
// São só estatísticas: o estado dos buckets continua local ao processo.
//
// Layout (prefix padrão "ratelimit:stats"):
//
//	<prefix>:total                 allowed | denied | denied_cost
//	<prefix>:<bucket>:<timestamp>  allowed | denied          (expira em ttl)
//	<prefix>:route                 "<METHOD> <path>:<field>"
//	<prefix>:key:<key>             allowed | denied          (expira em ttl)
type RedisStatsStore struct {
	rdb redis.UniversalClient

	prefix string
	// ttl aplica apenas em chaves de série temporal / por key.
	// total é cumulativo e não expira.
	ttl time.Duration

	bucket string

	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		if p := strings.Trim(prefix, ":"); p != "" {
			s.prefix = p
		}
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

// WithStatsBucket escolhe a granularidade da série temporal: "minute", "hour" ou "none".
func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb redis.UniversalClient, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "ratelimit:stats",
		ttl:    24 * time.Hour,
		bucket: StatsBucketMinute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := "denied"
	if ev.Allowed {
		field = "allowed"
	}

	pipe := s.rdb.Pipeline()

	totalKey := s.prefix + ":total"
	pipe.HIncrBy(ctx, totalKey, field, 1)
	if !ev.Allowed && ev.Cost > 0 {
		pipe.HIncrBy(ctx, totalKey, "denied_cost", ev.Cost)
	}

	if bucketKey := s.timeBucketKey(at); bucketKey != "" {
		pipe.HIncrBy(ctx, bucketKey, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	routeField := strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Path))
	if routeField != "" {
		pipe.HIncrBy(ctx, s.prefix+":route", routeField+":"+field, 1)
	}

	if s.trackKeys {
		if k := strings.TrimSpace(string(ev.Key)); k != "" {
			keyKey := s.prefix + ":key:" + k
			pipe.HIncrBy(ctx, keyKey, field, 1)
			if s.ttl > 0 {
				pipe.Expire(ctx, keyKey, s.ttl)
			}
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStatsStore) timeBucketKey(at time.Time) string {
	switch s.bucket {
	case StatsBucketMinute:
		return s.prefix + ":minute:" + at.UTC().Format("200601021504")
	case StatsBucketHour:
		return s.prefix + ":hour:" + at.UTC().Format("2006010215")
	default:
		return ""
	}
}
