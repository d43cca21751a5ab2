package exchange

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is a continuously-refilling rate limiter. Adapted from the
// teacher's exchange.TokenBucket.
type TokenBucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64 // tokens per second
	lastTime time.Time
}

// NewTokenBucket creates a bucket starting full.
func NewTokenBucket(capacity, ratePerSec float64) *TokenBucket {
	return &TokenBucket{
		tokens:   capacity,
		capacity: capacity,
		rate:     ratePerSec,
		lastTime: time.Now(),
	}
}

func (b *TokenBucket) refillLocked() {
	now := time.Now()
	elapsed := now.Sub(b.lastTime).Seconds()
	b.lastTime = now
	b.tokens += elapsed * b.rate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
}

// Wait blocks until a token is available or ctx is done.
func (b *TokenBucket) Wait(ctx context.Context) error {
	for {
		b.mu.Lock()
		b.refillLocked()
		if b.tokens >= 1 {
			b.tokens--
			b.mu.Unlock()
			return nil
		}
		deficit := 1 - b.tokens
		wait := time.Duration(deficit / b.rate * float64(time.Second))
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// SetRate adjusts the refill rate, used when the exchange's own rate-limit
// headers suggest the configured budget is wrong.
func (b *TokenBucket) SetRate(ratePerSec float64) {
	b.mu.Lock()
	b.rate = ratePerSec
	b.mu.Unlock()
}

// RateLimiter groups the buckets that gate each call class. Most Kraken-style
// exchanges count public and private calls against separate budgets; AddOrder
// and CancelOrder share the private budget but are tracked separately here so
// a burst of cancels during reconciliation never starves a pending placement.
type RateLimiter struct {
	Public *TokenBucket
	Order  *TokenBucket
	Cancel *TokenBucket
}

// NewRateLimiter builds a limiter from the configured capacity/refill rate,
// applied uniformly to the three buckets. Operators who need per-class tuning
// can construct the buckets directly.
func NewRateLimiter(capacity, ratePerSec float64) *RateLimiter {
	return &RateLimiter{
		Public: NewTokenBucket(capacity, ratePerSec),
		Order:  NewTokenBucket(capacity, ratePerSec),
		Cancel: NewTokenBucket(capacity, ratePerSec),
	}
}

// AdaptFromHeader nudges the order bucket's refill rate from an
// Api-Rate-Limit-Remaining-shaped response header, when the exchange
// supplies one. remaining is the number of calls left in the current
// window; windowSecs is the window length. If remaining is low relative to
// the window, the bucket is slowed down to avoid tripping the exchange's own
// limiter.
func (r *RateLimiter) AdaptFromHeader(remaining int, windowSecs float64) {
	if windowSecs <= 0 {
		return
	}
	suggested := float64(remaining) / windowSecs
	if suggested <= 0 {
		suggested = 0.1
	}
	r.Order.SetRate(suggested)
}
