package infra

import (
	"fmt"
	"math"
	"sync"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

// Clock devolve o instante atual. Em testes, troque por um relógio falso.
type Clock func() time.Time

// Bucket é o reservatório de tokens de um único cliente.
//
// Toda a sequência reposição -> débito roda sob o mesmo mutex, então chamadas
// concorrentes na mesma chave equivalem a alguma ordem serial delas.
// A reposição usa aritmética inteira em milissegundos: a fração de token de
// intervalos curtos é truncada e NÃO é acumulada para a próxima chamada.
type Bucket struct {
	mu         sync.Mutex
	capacity   int64
	refillRate int64 // tokens por segundo
	tokens     int64
	lastRefill time.Time
	now        Clock
}

type BucketOption func(*Bucket)

func WithBucketClock(c Clock) BucketOption {
	return func(b *Bucket) {
		if c != nil {
			b.now = c
		}
	}
}

// NewBucket cria um bucket cheio (tokens = capacity).
//
// refillRatePerSecond <= 0 é aceito aqui; o erro só aparece quando o bucket
// esgota e for preciso estimar o retry-after.
func NewBucket(capacity, refillRatePerSecond int64, opts ...BucketOption) *Bucket {
	b := &Bucket{
		capacity:   capacity,
		refillRate: refillRatePerSecond,
		tokens:     capacity,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.lastRefill = b.now()
	return b
}

func (b *Bucket) Capacity() int64   { return b.capacity }
func (b *Bucket) RefillRate() int64 { return b.refillRate }

// TryConsume implementa domain.Limiter.
func (b *Bucket) TryConsume(n int64) (domain.Decision, error) {
	if n < 1 {
		return domain.Decision{}, fmt.Errorf("%w: cost must be >= 1, got %d", domain.ErrInvalidInput, n)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked(b.now())

	if b.tokens >= n {
		b.tokens -= n
		return domain.Allow(b.tokens), nil
	}

	if b.refillRate <= 0 {
		return domain.Decision{}, fmt.Errorf("%w: refill rate must be > 0, got %d", domain.ErrInvalidConfiguration, b.refillRate)
	}

	// ceil(shortfall * 1000 / rate)
	shortfall := n - b.tokens
	retryMs := (shortfall*1000 + b.refillRate - 1) / b.refillRate
	dec := domain.Deny(b.tokens, time.Duration(retryMs)*time.Millisecond)
	if n > b.capacity {
		// nunca cabe: retry-after continua sendo só a estimativa pela falta.
		dec.Reason = domain.ReasonCostExceedsCapacity
	}
	return dec, nil
}

func (b *Bucket) refillLocked(now time.Time) {
	if !now.After(b.lastRefill) {
		// relógio parado ou voltando: nada a repor, e lastRefill nunca diminui.
		return
	}

	elapsedMs := now.Sub(b.lastRefill).Milliseconds()
	b.lastRefill = now
	if b.refillRate <= 0 || elapsedMs <= 0 {
		return
	}

	// elapsedMs*rate pode estourar int64 em buckets ociosos por muito tempo;
	// acima de fullAfterMs o bucket encheria de qualquer jeito.
	fullAfterMs := b.capacity * 1000 / b.refillRate
	if elapsedMs > fullAfterMs || elapsedMs > math.MaxInt64/b.refillRate {
		b.tokens = b.capacity
		return
	}

	newTokens := elapsedMs * b.refillRate / 1000
	b.tokens = min(b.capacity, b.tokens+newTokens)
}

// Tokens devolve o saldo atual sem aplicar reposição.
func (b *Bucket) Tokens() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}

// LastRefill é o instante do último cálculo de reposição (usado na expiração).
func (b *Bucket) LastRefill() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastRefill
}
