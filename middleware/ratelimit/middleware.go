package ratelimit

import (
	"errors"
	"net/http"
	"time"

	"admission-gateway/middleware/ratelimit/application"
	"admission-gateway/middleware/ratelimit/domain"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RejectBody é o corpo da resposta 429.
const RejectBody = "Rate limit exceeded"

type Options struct {
	Store  domain.LimiterStore
	Stats  domain.StatsStore
	Logger *zap.Logger

	// Capacity e RefillRatePerSecond valem para toda chave nova.
	// Zero usa os padrões de application (5 e 10/s).
	Capacity            int64
	RefillRatePerSecond int64
	// Cost por request. Padrão 1.
	Cost int64

	KeyFn             KeyFunc
	KeyHeader         string
	TrustProxyHeaders bool

	RejectStatus        int
	AddRateLimitHeaders bool

	// LogInterval limita logs de rejeição/erro a no máximo um por intervalo.
	// Padrão 1s.
	LogInterval time.Duration
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.Cost <= 0 {
		opts.Cost = 1
	}
	if opts.Capacity <= 0 {
		opts.Capacity = application.DefaultCapacity
	}
	if opts.RefillRatePerSecond == 0 {
		opts.RefillRatePerSecond = application.DefaultRefillRatePerSecond
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustProxyHeaders)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.LogInterval <= 0 {
		opts.LogInterval = time.Second
	}

	svc := application.Service{
		Store:               opts.Store,
		Capacity:            opts.Capacity,
		RefillRatePerSecond: opts.RefillRatePerSecond,
	}
	log := opts.Logger.Named("ratelimit")
	denyLog := &rate.Sometimes{First: 1, Interval: opts.LogInterval}
	errLog := &rate.Sometimes{First: 1, Interval: opts.LogInterval}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			dec, err := svc.Admit(domain.Key(key), opts.Cost)
			if err != nil {
				if errors.Is(err, domain.ErrInvalidInput) {
					errLog.Do(func() {
						log.Warn("admission check rejected input", zap.String("key", key), zap.Error(err))
					})
					http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
					return
				}
				errLog.Do(func() {
					log.Error("admission check failed", zap.String("key", key), zap.Error(err))
				})
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			if opts.Stats != nil {
				ev := domain.StatsEvent{
					Key:        domain.Key(key),
					Allowed:    dec.Allowed,
					Cost:       opts.Cost,
					RetryAfter: dec.RetryAfter,
					Method:     r.Method,
					Path:       r.URL.Path,
					At:         time.Now(),
				}
				if err := opts.Stats.Record(r.Context(), ev); err != nil {
					log.Debug("stats record failed", zap.Error(err))
				}
			}

			if opts.AddRateLimitHeaders {
				h := w.Header()
				h.Set("X-RateLimit-Key", key)
				h.Set("X-RateLimit-Limit", formatInt64(opts.Capacity))
				h.Set("X-RateLimit-Refill", formatInt64(opts.RefillRatePerSecond))
				h.Set("X-RateLimit-Remaining", formatInt64(dec.Remaining))
			}

			if !dec.Allowed {
				w.Header().Set("Retry-After", formatRetryAfter(dec.RetryAfter))
				w.Header().Set("X-RateLimit-Retry-After-Ms", formatInt64(dec.RetryAfterMillis()))
				denyLog.Do(func() {
					log.Debug(dec.Reason,
						zap.String("key", key),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.Int64("retry_after_ms", dec.RetryAfterMillis()),
					)
				})
				http.Error(w, RejectBody, opts.RejectStatus)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
