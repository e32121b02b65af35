package core

import (
	"time"
)

// RetryPolicy defines the exponential backoff parameters for delivery retries.
type RetryPolicy struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryPolicy yields the 5m, 15m, 45m ladder with three retries.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:   3,
	BaseDelay:     5 * time.Minute,
	MaxDelay:      45 * time.Minute,
	BackoffFactor: 3.0,
}

// CalculateNextRetry computes the delay before the next retry attempt using
// exponential backoff: delay = min(BaseDelay * BackoffFactor^attempt, MaxDelay).
func CalculateNextRetry(policy RetryPolicy, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := float64(policy.BaseDelay)
	for i := 0; i < attempt; i++ {
		delay *= policy.BackoffFactor
	}

	d := time.Duration(delay)
	if d > policy.MaxDelay {
		d = policy.MaxDelay
	}
	if d < 0 {
		// Guard against overflow
		d = policy.MaxDelay
	}

	return d
}

// RetryDecision is the outcome of a failed delivery attempt.
type RetryDecision struct {
	Retry          bool
	Delay          time.Duration
	NextRetryCount int
}

// Decide returns whether a record that has already been retried retryCount
// times gets another attempt. With MaxAttempts=3 the fourth consecutive
// failure is final and leaves retry_count at 3.
func Decide(policy RetryPolicy, retryCount int) RetryDecision {
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount >= policy.MaxAttempts {
		return RetryDecision{Retry: false, NextRetryCount: retryCount}
	}
	return RetryDecision{
		Retry:          true,
		Delay:          CalculateNextRetry(policy, retryCount),
		NextRetryCount: retryCount + 1,
	}
}
