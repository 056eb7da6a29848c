package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricAssessmentCompleted = "AssessmentCompleted"
	MetricAssessmentFailed    = "AssessmentFailed"
	MetricRiskScore           = "RiskScore"
	MetricSourceFailure       = "SourceFailure"
	MetricEscalation          = "Escalation"
	MetricPollCycleDuration   = "PollCycleDuration"
	MetricQueueLag            = "QueueLag"
	MetricAPILatency          = "APILatency"
	MetricCacheHit            = "CacheHit"
	MetricCacheMiss           = "CacheMiss"

	// Dimension Keys
	DimSite       = "Site"
	DimRiskLevel  = "RiskLevel"
	DimSource     = "Source"
	DimEndpoint   = "Endpoint"
	DimConfidence = "Confidence"

	// Metric Namespace
	MetricNamespace = "BloomWatch"
)

// Canonical observation field names. Ingest sources and the data-quality
// block key their entries with these exact strings.
const (
	SourceWeather = "weather"
	SourceArchive = "historical"
	SourceRain    = "rainfall"
	SourceThermal = "thermal"
	SourceDensity = "density"
	SourceLand    = "land_cover"
)
