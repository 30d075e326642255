package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy configures bounded exponential backoff. It is an immutable
// configuration value; copies are safe to share.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the initial attempt.
	// Default: 3 (so 4 attempts total).
	MaxRetries int

	// InitialDelay seeds the backoff curve. Default: 2s
	InitialDelay time.Duration

	// MaxDelay caps the delay between attempts. Default: 15s
	MaxDelay time.Duration

	// Multiplier is the exponential backoff multiplier. Default: 1.5
	Multiplier float64

	// JitterFactor perturbs each delay by up to ±delay*JitterFactor to
	// avoid synchronized retry storms. Default: 0.25
	JitterFactor float64

	// RetryIf classifies an error as retryable. A fatal error aborts
	// immediately without consuming further attempts.
	// Default: all non-nil errors are retryable.
	RetryIf func(err error) bool

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.MaxRetries == 0 {
		p.MaxRetries = 3
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = 2 * time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 15 * time.Second
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 1.5
	}
	if p.JitterFactor <= 0 {
		p.JitterFactor = 0.25
	}
	if p.RetryIf == nil {
		p.RetryIf = func(err error) bool { return err != nil }
	}
	return p
}

// WithRetry attempts op up to policy.MaxRetries+1 times total. Only
// errors the policy classifies as retryable trigger another attempt; any
// other error aborts immediately. Exhausting all attempts returns an
// error wrapping both ErrRetriesExhausted and the final underlying
// cause.
func WithRetry(ctx context.Context, policy RetryPolicy, op func(context.Context) error) error {
	policy = policy.withDefaults()

	var lastErr error
	maxAttempts := policy.MaxRetries + 1

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		// Context errors are terminal, not retryable upstream failures.
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !policy.RetryIf(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}

		delay := policy.delayBeforeAttempt(attempt + 1)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, maxAttempts, lastErr)
}

// delayBeforeAttempt computes the backoff before attempt n (n >= 2):
// min(MaxDelay, InitialDelay * Multiplier^(n-1)), perturbed by
// ±delay*JitterFactor and floored at zero.
func (p RetryPolicy) delayBeforeAttempt(n int) time.Duration {
	base := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(n-1))
	if capped := float64(p.MaxDelay); base > capped {
		base = capped
	}

	// #nosec G404 -- jitter is non-cryptographic timing variance.
	jitter := base * p.JitterFactor * (rand.Float64()*2 - 1)

	delay := time.Duration(base + jitter)
	if delay < 0 {
		delay = 0
	}
	return delay
}
