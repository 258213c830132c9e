// Package retry decides whether and when a dropped connection is retried.
package retry

import "time"

// Policy is a fixed-delay retry policy with a capped attempt count.
// The zero value never retries; use Default for the standard policy.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Default returns the policy used for the upstream sensor link.
func Default() Policy {
	return Policy{MaxAttempts: 5, Delay: 3 * time.Second}
}

// Decision is the outcome of a retry check.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// Decide returns whether attempt number `attempt` (0-based count of failures
// so far) should be retried, and after what delay. The delay is fixed per
// attempt, not exponential. Once MaxAttempts is exhausted the caller must
// surface a terminal give-up state rather than retry forever.
func (p Policy) Decide(attempt int) Decision {
	if attempt >= p.MaxAttempts {
		return Decision{Retry: false}
	}
	return Decision{Retry: true, Delay: p.Delay}
}
