package types

// Telemetry metric names. CloudWatch and Prometheus recorders both key on these.
const (
	MetricFramesProcessed       = "FramesProcessed"
	MetricFramesSkipped         = "FramesSkipped"
	MetricClassifications       = "Classifications"
	MetricClassificationFailure = "ClassificationFailure"
	MetricClassificationLatency = "ClassificationLatency"
	MetricAlertsGenerated       = "AlertsGenerated"
	MetricAlertPersistFailure   = "AlertPersistFailure"

	// Dimension Keys
	DimLabel  = "Label"
	DimReason = "Reason"

	// Metric Namespace
	MetricNamespace = "PostureWatch"
)

// Frame skip reasons reported with MetricFramesSkipped.
const (
	SkipReasonNoFrame      = "no_frame"
	SkipReasonNoPose       = "no_pose"
	SkipReasonLandmarks    = "insufficient_landmarks"
	SkipReasonThrottled    = "throttled"
	SkipReasonEstimatorErr = "estimator_error"
)
