// Package resilience retries transient failures of the outbound API clients.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls retries with exponential backoff and jitter.
type Policy struct {
	// Attempts is the total number of tries, including the first. Values
	// below 1 mean a single try.
	Attempts int

	// Backoff is the delay before the first retry; it doubles each time.
	Backoff time.Duration

	// MaxBackoff caps any single delay.
	MaxBackoff time.Duration

	// Service labels retry log lines.
	Service string
}

// DefaultPolicy suits the search and places APIs: three tries, starting at
// 250ms.
func DefaultPolicy(service string) Policy {
	return Policy{Attempts: 3, Backoff: 250 * time.Millisecond, MaxBackoff: 4 * time.Second, Service: service}
}

// NoRetry makes a single attempt.
func NoRetry() Policy {
	return Policy{Attempts: 1}
}

// Retries is DefaultPolicy allowing n retries after the first attempt, or
// NoRetry when n is not positive.
func Retries(service string, n int) Policy {
	if n <= 0 {
		p := NoRetry()
		p.Service = service
		return p
	}
	p := DefaultPolicy(service)
	p.Attempts = n + 1
	return p
}

// Do calls fn until it succeeds, returns a non-transient error, the
// attempts run out or ctx is done. The last error is returned.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := max(p.Attempts, 1)

	var zero T
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsTransient(err) || attempt == attempts-1 {
			return zero, lastErr
		}

		delay := p.delay(attempt)
		zap.L().Debug("resilience: retrying",
			zap.String("service", p.Service),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

// delay is the backoff before retry number attempt+1, with ±25% jitter.
func (p Policy) delay(attempt int) time.Duration {
	base := float64(p.Backoff) * math.Pow(2, float64(attempt))
	if p.MaxBackoff > 0 && base > float64(p.MaxBackoff) {
		base = float64(p.MaxBackoff)
	}
	jitter := (rand.Float64()*2 - 1) * base * 0.25
	return time.Duration(math.Max(0, base+jitter))
}
