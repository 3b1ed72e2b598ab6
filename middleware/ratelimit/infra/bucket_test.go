package infra

import (
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

func mustConsume(t *testing.T, b *Bucket, n int64) domain.Decision {
	t.Helper()
	dec, err := b.TryConsume(n)
	if err != nil {
		t.Fatalf("TryConsume(%d): unexpected error: %v", n, err)
	}
	return dec
}

func TestBucket_FreshBucketAdmitsCapacityThenRejects(t *testing.T) {
	clk := newFakeClock()
	b := NewBucket(5, 10, WithBucketClock(clk.Now))

	for i := 0; i < 5; i++ {
		if dec := mustConsume(t, b, 1); !dec.Allowed {
			t.Fatalf("expected request %d to be allowed", i+1)
		}
	}
	dec := mustConsume(t, b, 1)
	if dec.Allowed {
		t.Fatalf("expected 6th request to be rejected")
	}
	if dec.Reason != domain.ReasonRateLimitExceeded {
		t.Fatalf("expected reason %q, got %q", domain.ReasonRateLimitExceeded, dec.Reason)
	}
}

func TestBucket_RefillAfterOneSecond(t *testing.T) {
	clk := newFakeClock()
	b := NewBucket(10, 5, WithBucketClock(clk.Now))

	if dec := mustConsume(t, b, 10); !dec.Allowed {
		t.Fatalf("expected to drain full bucket")
	}

	clk.Advance(1000 * time.Millisecond)

	for i := 0; i < 5; i++ {
		if dec := mustConsume(t, b, 1); !dec.Allowed {
			t.Fatalf("expected refilled request %d to be allowed", i+1)
		}
	}
	if dec := mustConsume(t, b, 1); dec.Allowed {
		t.Fatalf("expected 6th request after refill to be rejected")
	}
}

func TestBucket_RefillTruncatesFractionalTokens(t *testing.T) {
	clk := newFakeClock()
	b := NewBucket(10, 10, WithBucketClock(clk.Now))
	mustConsume(t, b, 10)

	// 99ms * 10/s = 0.99 token por chamada: truncado a 0 e descartado.
	for i := 0; i < 10; i++ {
		clk.Advance(99 * time.Millisecond)
		if dec := mustConsume(t, b, 1); dec.Allowed {
			t.Fatalf("expected rejection at step %d, fractional tokens must not carry over", i)
		}
	}
	if got := b.Tokens(); got != 0 {
		t.Fatalf("expected 0 tokens, got %d", got)
	}

	clk.Advance(100 * time.Millisecond)
	if dec := mustConsume(t, b, 1); !dec.Allowed {
		t.Fatalf("expected a whole token after 100ms")
	}
}

func TestBucket_RetryAfterUsesShortfall(t *testing.T) {
	cases := []struct {
		name     string
		capacity int64
		rate     int64
		drain    int64
		want     int64
		wantMs   int64
	}{
		{name: "one token at 10/s", capacity: 5, rate: 10, drain: 5, want: 1, wantMs: 100},
		{name: "three tokens at 10/s", capacity: 5, rate: 10, drain: 5, want: 3, wantMs: 300},
		{name: "rounds up", capacity: 5, rate: 3, drain: 5, want: 1, wantMs: 334},
		{name: "partial balance", capacity: 10, rate: 5, drain: 8, want: 4, wantMs: 400},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clk := newFakeClock()
			b := NewBucket(tc.capacity, tc.rate, WithBucketClock(clk.Now))
			mustConsume(t, b, tc.drain)

			dec := mustConsume(t, b, tc.want)
			if dec.Allowed {
				t.Fatalf("expected rejection")
			}
			if got := dec.RetryAfterMillis(); got != tc.wantMs {
				t.Fatalf("expected retry-after %dms, got %dms", tc.wantMs, got)
			}
			if dec.Remaining != tc.capacity-tc.drain {
				t.Fatalf("rejection must not debit tokens: remaining=%d", dec.Remaining)
			}
		})
	}
}

func TestBucket_ZeroRefillRateIsConfigurationError(t *testing.T) {
	for _, rate := range []int64{0, -3} {
		clk := newFakeClock()
		b := NewBucket(2, rate, WithBucketClock(clk.Now))

		mustConsume(t, b, 1)
		mustConsume(t, b, 1)

		clk.Advance(time.Hour)
		_, err := b.TryConsume(1)
		if !errors.Is(err, domain.ErrInvalidConfiguration) {
			t.Fatalf("rate=%d: expected ErrInvalidConfiguration, got %v", rate, err)
		}
		if errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("rate=%d: configuration error must be distinct from invalid input", rate)
		}
	}
}

func TestBucket_InvalidCost(t *testing.T) {
	b := NewBucket(5, 10)

	for _, n := range []int64{0, -1} {
		if _, err := b.TryConsume(n); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("n=%d: expected ErrInvalidInput, got %v", n, err)
		}
	}
	if got := b.Tokens(); got != 5 {
		t.Fatalf("invalid input must not touch tokens, got %d", got)
	}
}

func TestBucket_CostAboveCapacityIsRejectedNotAnError(t *testing.T) {
	clk := newFakeClock()
	b := NewBucket(5, 10, WithBucketClock(clk.Now))

	dec := mustConsume(t, b, 6)
	if dec.Allowed {
		t.Fatalf("expected cost above capacity to be rejected")
	}
	if dec.Reason != domain.ReasonCostExceedsCapacity {
		t.Fatalf("expected reason %q, got %q", domain.ReasonCostExceedsCapacity, dec.Reason)
	}
	// falta 1 token a 10/s
	if got := dec.RetryAfterMillis(); got != 100 {
		t.Fatalf("expected retry-after 100ms, got %d", got)
	}
	if got := b.Tokens(); got != 5 {
		t.Fatalf("rejection must not debit tokens, got %d", got)
	}
}

func TestBucket_ClockGoingBackwardsDoesNotMoveLastRefill(t *testing.T) {
	clk := newFakeClock()
	b := NewBucket(3, 1, WithBucketClock(clk.Now))
	start := b.LastRefill()

	clk.Advance(-5 * time.Second)
	mustConsume(t, b, 1)

	if got := b.LastRefill(); !got.Equal(start) {
		t.Fatalf("expected lastRefill to stay at %s, got %s", start, got)
	}
	if got := b.Tokens(); got != 2 {
		t.Fatalf("expected 2 tokens, got %d", got)
	}
}

func TestBucket_LongIdleSaturatesAtCapacity(t *testing.T) {
	clk := newFakeClock()
	b := NewBucket(7, 1_000_000, WithBucketClock(clk.Now))
	mustConsume(t, b, 7)

	clk.Advance(100_000 * time.Hour)
	dec := mustConsume(t, b, 1)
	if !dec.Allowed || dec.Remaining != 6 {
		t.Fatalf("expected full bucket after long idle, got %+v", dec)
	}
}

func TestBucket_TokensStayWithinBoundsRandomized(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))

	for run := 0; run < 200; run++ {
		capacity := 1 + rng.Int64N(20)
		rate := 1 + rng.Int64N(50)
		clk := newFakeClock()
		b := NewBucket(capacity, rate, WithBucketClock(clk.Now))
		last := b.LastRefill()

		for step := 0; step < 100; step++ {
			clk.Advance(time.Duration(rng.Int64N(1500)) * time.Millisecond)
			n := 1 + rng.Int64N(capacity)

			before := b.Tokens()
			dec := mustConsume(t, b, n)
			after := b.Tokens()

			if after < 0 || after > capacity {
				t.Fatalf("run %d step %d: tokens %d out of [0,%d]", run, step, after, capacity)
			}
			if dec.Remaining != after {
				t.Fatalf("run %d step %d: decision remaining %d != tokens %d", run, step, dec.Remaining, after)
			}
			if !dec.Allowed && after < before {
				t.Fatalf("run %d step %d: rejection debited tokens (%d -> %d)", run, step, before, after)
			}
			if !dec.Allowed && (dec.RetryAfter <= 0 || after >= n) {
				t.Fatalf("run %d step %d: inconsistent rejection %+v for n=%d", run, step, dec, n)
			}
			if got := b.LastRefill(); got.Before(last) {
				t.Fatalf("run %d step %d: lastRefill went backwards", run, step)
			} else {
				last = got
			}
		}
	}
}

func TestBucket_NoOverAdmissionUnderContention(t *testing.T) {
	const (
		capacity = 5
		workers  = 10
		rounds   = 100
	)

	for round := 0; round < rounds; round++ {
		clk := newFakeClock()
		b := NewBucket(capacity, 10, WithBucketClock(clk.Now))

		var (
			allowed atomic.Int64
			denied  atomic.Int64
			wg      sync.WaitGroup
		)
		start := make(chan struct{})
		wg.Add(workers)
		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()
				<-start
				dec, err := b.TryConsume(1)
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				if dec.Allowed {
					allowed.Add(1)
				} else {
					denied.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()

		if allowed.Load() != capacity || denied.Load() != workers-capacity {
			t.Fatalf("round %d: expected %d allowed / %d denied, got %d / %d",
				round, capacity, workers-capacity, allowed.Load(), denied.Load())
		}
	}
}
