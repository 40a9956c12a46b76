// Package backpressure bounds the amount of work admitted per unit of time.
package backpressure

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rzzdr/quant-scenario-engine/pkg/utils/logger"
)

// ErrRequestTooLarge is returned when a request asks for more than the burst
var ErrRequestTooLarge = errors.New("request exceeds burst capacity")

// TokenBucketLimiter admits weighted requests, for example a simulation
// weighing its scenario count, at rate tokens per second up to burst.
type TokenBucketLimiter struct {
	rate       float64
	burst      int
	tokens     float64
	lastUpdate time.Time
	now        func() time.Time
	mutex      sync.Mutex
	log        *logger.Logger
}

func NewTokenBucketLimiter(rate float64, burst int) *TokenBucketLimiter {
	if rate <= 0 {
		rate = 1.0
	}
	if burst <= 0 {
		burst = 1
	}

	limiter := &TokenBucketLimiter{
		rate:   rate,
		burst:  burst,
		tokens: float64(burst),
		now:    time.Now,
		log:    logger.GetLogger("backpressure.token_bucket"),
	}
	limiter.lastUpdate = limiter.now()

	limiter.log.Infof("Token bucket rate limiter created with rate=%.2f, burst=%d", rate, burst)

	return limiter
}

// Allow checks if a single operation is allowed
func (tb *TokenBucketLimiter) Allow() bool {
	return tb.AllowN(1)
}

// AllowN takes n tokens if they are available
func (tb *TokenBucketLimiter) AllowN(n int) bool {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	tb.refill()
	if tb.tokens >= float64(n) {
		tb.tokens -= float64(n)
		return true
	}
	tb.log.Debugf("Rejected request for %d tokens, %.0f available", n, tb.tokens)
	return false
}

// WaitN blocks until n tokens are available or ctx is done
func (tb *TokenBucketLimiter) WaitN(ctx context.Context, n int) error {
	if n > tb.burst {
		return ErrRequestTooLarge
	}

	for {
		if tb.AllowN(n) {
			return nil
		}

		select {
		case <-time.After(tb.waitTime(n)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// refill must be called with mutex held
func (tb *TokenBucketLimiter) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastUpdate)
	if elapsed <= 0 {
		return
	}
	tb.tokens = min(float64(tb.burst), tb.tokens+elapsed.Seconds()*tb.rate)
	tb.lastUpdate = now
}

func (tb *TokenBucketLimiter) waitTime(n int) time.Duration {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	needed := float64(n) - tb.tokens
	wait := time.Duration(needed / tb.rate * float64(time.Second))
	return max(wait, time.Millisecond)
}

// Limit returns the refill rate in tokens per second
func (tb *TokenBucketLimiter) Limit() float64 {
	return tb.rate
}

// Burst returns the burst capacity
func (tb *TokenBucketLimiter) Burst() int {
	return tb.burst
}

// TokensRemaining returns the number of whole tokens available now
func (tb *TokenBucketLimiter) TokensRemaining() int {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	tb.refill()
	return int(tb.tokens)
}
