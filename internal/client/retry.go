package client

import (
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy configures the delay schedule between attempts of a failed
// backend call. It holds no state.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    60 * time.Second,
		Multiplier:  2,
	}
}

// Delay returns how long to wait before the given attempt (1-based).
// The first attempt is immediate; attempt n waits
// min(BaseDelay * Multiplier^(n-2), MaxDelay).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 || p.BaseDelay <= 0 {
		return 0
	}

	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	delay := float64(p.BaseDelay) * math.Pow(multiplier, float64(attempt-2))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	// float64 overflow past MaxInt64 when MaxDelay is unset
	if delay >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

// attempts returns MaxAttempts, treating non-positive values as a single try.
func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// policyBackOff drives backoff.Retry from a RetryPolicy. One instance
// serves exactly one call.
type policyBackOff struct {
	policy  RetryPolicy
	attempt int
}

var _ backoff.BackOff = (*policyBackOff)(nil)

func newPolicyBackOff(policy RetryPolicy) *policyBackOff {
	return &policyBackOff{policy: policy, attempt: 1}
}

// NextBackOff is called after a failed attempt and returns the wait before
// the next one, or backoff.Stop once attempts are exhausted.
func (b *policyBackOff) NextBackOff() time.Duration {
	b.attempt++
	if b.attempt > b.policy.attempts() {
		return backoff.Stop
	}
	return b.policy.Delay(b.attempt)
}

// Reset implements backoff.BackOff.
func (b *policyBackOff) Reset() {
	b.attempt = 1
}
