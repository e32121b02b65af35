package core

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"inboxinspire/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Compile-time assertions.
var (
	_ DispatchMetrics = (*CloudWatchDispatchMetrics)(nil)
	_ DispatchMetrics = NoopMetrics{}
)

// CloudWatchDispatchMetrics implements DispatchMetrics by emitting metrics
// to AWS CloudWatch.
//
// Metrics emitted:
//   - DispatchSent / DispatchSkipped / DispatchRetried / DispatchFailedPermanent:
//     Dims {OwnerKind, Result[, Reason]}
//   - DispatchLatency: Dims {OwnerKind}
//   - DispatchLag, ContentFallback, OccurrencesQueued: no dims
type CloudWatchDispatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// NewCloudWatchDispatchMetrics creates a CloudWatchDispatchMetrics publishing
// to namespace (types.MetricNamespace when empty).
func NewCloudWatchDispatchMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchDispatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	return &CloudWatchDispatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordOutcome emits one count under the metric matching result.
func (m *CloudWatchDispatchMetrics) RecordOutcome(ctx context.Context, kind types.OwnerKind, result MetricResult, reason string) {
	dims := []cwtypes.Dimension{
		{Name: aws.String(types.DimOwnerKind), Value: aws.String(string(kind))},
		{Name: aws.String(types.DimResult), Value: aws.String(string(result))},
	}
	if reason != "" {
		dims = append(dims, cwtypes.Dimension{Name: aws.String(types.DimReason), Value: aws.String(reason)})
	}

	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(outcomeMetricName(result)),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: dims,
	}, "result", string(result))
}

// RecordLatency emits the delivery latency in milliseconds.
func (m *CloudWatchDispatchMetrics) RecordLatency(ctx context.Context, kind types.OwnerKind, duration time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDispatchLatency),
		Value:      aws.Float64(float64(duration.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimOwnerKind), Value: aws.String(string(kind))},
		},
	}, "duration_ms", duration.Milliseconds())
}

// RecordLag emits the delay between the scheduled instant and dispatch start.
func (m *CloudWatchDispatchMetrics) RecordLag(ctx context.Context, lag time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDispatchLag),
		Value:      aws.Float64(float64(lag.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
	}, "lag_ms", lag.Milliseconds())
}

// RecordFallback counts a message sent with fallback content.
func (m *CloudWatchDispatchMetrics) RecordFallback(ctx context.Context) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricContentFallback),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
	})
}

// RecordQueued counts materialized occurrences. Zero is not reported.
func (m *CloudWatchDispatchMetrics) RecordQueued(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricOccurrencesQueued),
		Value:      aws.Float64(float64(n)),
		Unit:       cwtypes.StandardUnitCount,
	}, "count", n)
}

// put publishes a single datum. Errors are logged, never returned.
func (m *CloudWatchDispatchMetrics) put(ctx context.Context, datum cwtypes.MetricDatum, logArgs ...any) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		args := append([]any{"error", err.Error(), "metric", aws.ToString(datum.MetricName)}, logArgs...)
		m.logger.Error("failed to record dispatch metric", args...)
	}
}

func outcomeMetricName(result MetricResult) string {
	switch result {
	case MetricSuccess:
		return types.MetricDispatchSent
	case MetricSkipped:
		return types.MetricDispatchSkipped
	case MetricRetried:
		return types.MetricDispatchRetried
	case MetricFailed:
		return types.MetricDispatchFailed
	default:
		return types.MetricDispatchAttempt
	}
}

// NoopMetrics discards all metrics. Used when METRICS_ENABLED is false.
type NoopMetrics struct{}

func (NoopMetrics) RecordOutcome(context.Context, types.OwnerKind, MetricResult, string) {}
func (NoopMetrics) RecordLatency(context.Context, types.OwnerKind, time.Duration)        {}
func (NoopMetrics) RecordLag(context.Context, time.Duration)                             {}
func (NoopMetrics) RecordFallback(context.Context)                                       {}
func (NoopMetrics) RecordQueued(context.Context, int)                                    {}
