package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricDispatchAttempt   = "DispatchAttempt"
	MetricDispatchSent      = "DispatchSent"
	MetricDispatchSkipped   = "DispatchSkipped"
	MetricDispatchRetried   = "DispatchRetried"
	MetricDispatchFailed    = "DispatchFailedPermanent"
	MetricDispatchLatency   = "DispatchLatency"
	MetricDispatchLag       = "DispatchLag"
	MetricContentFallback   = "ContentFallback"
	MetricOccurrencesQueued = "OccurrencesQueued"

	// Dimension Keys
	DimOwnerKind = "OwnerKind"
	DimResult    = "Result"
	DimReason    = "Reason"

	// Metric Namespace
	MetricNamespace = "InboxInspire"
)
