// Package ratelimit provides per-key token bucket rate limiting for MCP tools.
package ratelimit

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// ErrRateLimited is wrapped by every LimitError.
var ErrRateLimited = errors.New("rate limit exceeded")

// LimitError reports a rejected call and how long until a token is
// available again.
type LimitError struct {
	Tool       string
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	if e.RetryAfter <= 0 {
		return fmt.Sprintf("rate limit exceeded for %s, please try again shortly", e.Tool)
	}
	return fmt.Sprintf("rate limit exceeded for %s, retry in %s", e.Tool, e.RetryAfter.Round(time.Millisecond))
}

func (e *LimitError) Unwrap() error {
	return ErrRateLimited
}

// Limiter implements a per-key token bucket rate limiter.
// Each key gets its own bucket with the configured rate and burst.
// It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64          // tokens per second
	burst   int              // max burst size (also initial token count)
	nowFunc func() time.Time // injectable clock for testing
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// NewLimiter creates a rate limiter with the given rate (tokens/sec) and burst size.
// The burst size also serves as the initial number of tokens available.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		nowFunc: time.Now,
	}
}

// Allow reports whether a request for key may proceed, consuming a token
// if so.
func (l *Limiter) Allow(key string) bool {
	ok, _ := l.take(key)
	return ok
}

// take consumes a token for key. When none is available it returns the time
// until one will be, or 0 if the bucket never refills.
func (l *Limiter) take(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	b := l.refill(key, now)

	if b.tokens < 1.0 {
		if l.rate <= 0 {
			return false, 0
		}
		wait := (1.0 - b.tokens) / l.rate
		return false, time.Duration(math.Ceil(wait * float64(time.Second)))
	}

	b.tokens--
	return true, 0
}

// refill tops up key's bucket for the time elapsed since it was last seen.
// Callers hold l.mu.
func (l *Limiter) refill(key string, now time.Time) *bucket {
	b, ok := l.buckets[key]
	if !ok {
		// First request for this key: start with full burst
		b = &bucket{tokens: float64(l.burst), lastCheck: now}
		l.buckets[key] = b
		return b
	}

	elapsed := now.Sub(b.lastCheck).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(b.tokens+l.rate*elapsed, float64(l.burst))
		b.lastCheck = now
	}
	return b
}

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates the default set of per-tool rate limiters. A run
// can execute up to a million rounds, so it is limited far more tightly
// than the read-only tools.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		"armbench_run":        NewLimiter(30.0/60.0, 5), // 30/minute, burst 5
		"armbench_strategies": NewLimiter(1.0, 10),      // 60/minute, burst 10
		"armbench_runs":       NewLimiter(1.0, 10),      // 60/minute, burst 10
	}
}

// CheckLimit checks the rate limit for a given tool name.
// Returns nil if allowed, or a *LimitError if rate limited.
// Tools without a configured limiter are always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil // No limiter configured = no limit
	}

	if ok, wait := limiter.take(toolName); !ok {
		return &LimitError{Tool: toolName, RetryAfter: wait}
	}
	return nil
}
