package infra

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

const (
	DefaultIdleTTL      = 60 * time.Second
	DefaultCleanupEvery = 30 * time.Second
)

// Store é o registro de Buckets por chave, com criação sob demanda e
// expiração de chaves ociosas.
//
// Deve ser criado uma vez no bootstrap e passado explicitamente para quem
// decide a admissão; não há instância global.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Bucket

	idleTTL      time.Duration
	cleanupEvery time.Duration
	now          Clock

	// lastSweep guarda UnixNano da última limpeza; CAS garante um único
	// varredor por janela.
	lastSweep atomic.Int64
}

type StoreOption func(*Store)

// WithIdleTTL define há quanto tempo sem reposição um bucket é considerado ocioso.
func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *Store) { s.idleTTL = d }
}

// WithCleanupEvery define o intervalo mínimo entre limpezas (oportunistas ou do
// janitor). <= 0 desliga a limpeza oportunista.
func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *Store) { s.cleanupEvery = d }
}

func WithClock(c Clock) StoreOption {
	return func(s *Store) {
		if c != nil {
			s.now = c
		}
	}
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		entries:      make(map[string]*Bucket),
		idleTTL:      DefaultIdleTTL,
		cleanupEvery: DefaultCleanupEvery,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastSweep.Store(s.now().UnixNano())
	return s
}

func (s *Store) IdleTTL() time.Duration      { return s.idleTTL }
func (s *Store) CleanupEvery() time.Duration { return s.cleanupEvery }

// GetOrCreate implementa domain.LimiterStore.
func (s *Store) GetOrCreate(key domain.Key, capacity, refillRatePerSecond int64) domain.Limiter {
	return s.Bucket(string(key), capacity, refillRatePerSecond)
}

// Bucket devolve o bucket da chave, criando-o com (capacity, refillRatePerSecond)
// se ainda não existir.
//
// A configuração só é usada na criação: se a chave já existe, os parâmetros
// são ignorados e o bucket original (com a configuração do primeiro chamador)
// é devolvido. Mudar a configuração em runtime só afeta chaves novas ou
// chaves recriadas após expirar.
func (s *Store) Bucket(key string, capacity, refillRatePerSecond int64) *Bucket {
	s.maybeCleanup()

	s.mu.RLock()
	b, ok := s.entries[key]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// outro chamador pode ter criado entre o RUnlock e o Lock.
	if b, ok := s.entries[key]; ok {
		return b
	}
	b = NewBucket(capacity, refillRatePerSecond, WithBucketClock(s.now))
	s.entries[key] = b
	return b
}

// Len devolve o número de chaves vivas.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Cleanup remove buckets cujo último refill é estritamente anterior a
// now-idleTTL. Um request concorrente para uma chave removida apenas recria
// um bucket cheio.
func (s *Store) Cleanup() int {
	now := s.now()
	s.lastSweep.Store(now.UnixNano())
	cutoff := now.Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, b := range s.entries {
		if b.LastRefill().Before(cutoff) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

func (s *Store) maybeCleanup() {
	if s.cleanupEvery <= 0 {
		return
	}
	now := s.now().UnixNano()
	last := s.lastSweep.Load()
	if now-last < int64(s.cleanupEvery) {
		return
	}
	if !s.lastSweep.CompareAndSwap(last, now) {
		return
	}
	s.Cleanup()
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *Store) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
