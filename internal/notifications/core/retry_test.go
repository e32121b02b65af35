package core

import (
	"testing"
	"time"
)

func TestCalculateNextRetry_DefaultPolicy(t *testing.T) {
	// DefaultRetryPolicy: BaseDelay=5m, BackoffFactor=3.0, MaxDelay=45m
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 5 * time.Minute},  // 5m * 3^0
		{1, 15 * time.Minute}, // 5m * 3^1
		{2, 45 * time.Minute}, // 5m * 3^2
		{3, 45 * time.Minute}, // 5m * 3^3 = 135m, capped at 45m
	}

	for _, tt := range tests {
		d := CalculateNextRetry(DefaultRetryPolicy, tt.attempt)
		if d != tt.expected {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.expected, d)
		}
	}
}

func TestCalculateNextRetry_NegativeAttempt(t *testing.T) {
	d := CalculateNextRetry(DefaultRetryPolicy, -1)
	if d != 5*time.Minute {
		t.Errorf("expected 5m for negative attempt, got %v", d)
	}
}

func TestCalculateNextRetry_CustomPolicy(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:   5,
		BaseDelay:     500 * time.Millisecond,
		MaxDelay:      1 * time.Minute,
		BackoffFactor: 3.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 500 * time.Millisecond},
		{2, 4500 * time.Millisecond},
		{4, 40500 * time.Millisecond},
		{5, 1 * time.Minute}, // 121.5s, capped at 60s
	}

	for _, tt := range tests {
		d := CalculateNextRetry(policy, tt.attempt)
		if d != tt.expected {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.expected, d)
		}
	}
}

func TestDecide_LadderUntilExhausted(t *testing.T) {
	tests := []struct {
		retryCount int
		retry      bool
		delay      time.Duration
		next       int
	}{
		{0, true, 5 * time.Minute, 1},
		{1, true, 15 * time.Minute, 2},
		{2, true, 45 * time.Minute, 3},
		{3, false, 0, 3},
		{7, false, 0, 7},
	}

	for _, tt := range tests {
		got := Decide(DefaultRetryPolicy, tt.retryCount)
		if got.Retry != tt.retry || got.Delay != tt.delay || got.NextRetryCount != tt.next {
			t.Errorf("Decide(%d) = %+v, want retry=%v delay=%v next=%d",
				tt.retryCount, got, tt.retry, tt.delay, tt.next)
		}
	}
}

func TestDecide_FourFailuresExhaustThreeRetries(t *testing.T) {
	retryCount := 0
	attempts := 0
	for {
		attempts++
		d := Decide(DefaultRetryPolicy, retryCount)
		if !d.Retry {
			break
		}
		retryCount = d.NextRetryCount
	}

	if attempts != 4 {
		t.Errorf("expected 4 attempts before giving up, got %d", attempts)
	}
	if retryCount != 3 {
		t.Errorf("expected retry_count=3, got %d", retryCount)
	}
}
