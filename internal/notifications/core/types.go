// Package core provides the delivery-policy building blocks shared by the
// dispatch executor: retry backoff, per-day rate limits, the send-state
// transition, and dispatch metrics.
package core

import (
	"context"
	"time"

	"inboxinspire/internal/types"
)

// MetricResult categorizes a dispatch outcome for metrics reporting.
type MetricResult string

const (
	MetricSuccess MetricResult = "success"
	MetricRetried MetricResult = "retried"
	MetricFailed  MetricResult = "failed"
	MetricSkipped MetricResult = "skipped"
)

// DispatchMetrics abstracts CloudWatch/telemetry operations for the
// dispatch path. Implementations must never fail the caller.
type DispatchMetrics interface {
	// RecordOutcome counts one dispatch outcome. Reason is empty for sends.
	RecordOutcome(ctx context.Context, kind types.OwnerKind, result MetricResult, reason string)

	// RecordLatency records how long the delivery call took.
	RecordLatency(ctx context.Context, kind types.OwnerKind, duration time.Duration)

	// RecordLag records the delay between an occurrence's instant and the
	// moment the executor started on it.
	RecordLag(ctx context.Context, lag time.Duration)

	// RecordFallback counts a message sent with fallback content.
	RecordFallback(ctx context.Context)

	// RecordQueued counts occurrences materialized by a reschedule.
	RecordQueued(ctx context.Context, n int)
}

// SentCounter is the narrow store interface the rate limiter needs.
type SentCounter interface {
	CountSentSince(ctx context.Context, ownerID, scheduleID string, since time.Time) (int, error)
}
