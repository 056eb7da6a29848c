// Package config defines the global configuration structure for the BloomWatch
// platform. Configuration is loaded once at process initialization and is
// immutable thereafter; code and configuration stay strictly separated.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format fails the process immediately
// on startup.
package config

import (
	"time"

	"bloomwatch/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the BloomWatch platform.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"bloomwatch"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	IsTestMode  bool   `envconfig:"IS_TEST_MODE" default:"false"`

	// Domain Configurations
	Server        ServerConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Ingest        IngestConfig
	Assess        AssessConfig
	Security      SecurityConfig
	Webhook       WebhookConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server tuning.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
// The URL is optional: without it the API serves on-demand assessments
// only and every persistence path reports unavailable.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// AssessQueueURL is the SQS queue carrying async assessment jobs.
	// Empty disables async submission.
	AssessQueueURL string `envconfig:"SQS_ASSESSMENTS" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// IngestConfig holds upstream data-source endpoints and fetch tuning.
// The Open-Meteo hosts are split because forecast, archive and marine
// data live on different subdomains.
type IngestConfig struct {
	ForecastBaseURL string `envconfig:"OPENMETEO_FORECAST_URL" default:"https://api.open-meteo.com" validate:"url"`
	ArchiveBaseURL  string `envconfig:"OPENMETEO_ARCHIVE_URL" default:"https://archive-api.open-meteo.com" validate:"url"`
	MarineBaseURL   string `envconfig:"OPENMETEO_MARINE_URL" default:"https://marine-api.open-meteo.com" validate:"url"`
	NASAPowerURL    string `envconfig:"NASA_POWER_URL" default:"https://power.larc.nasa.gov" validate:"url"`

	// DensityURL is the optional bloom-density calibration endpoint.
	// Empty means no anchor source; the aggregator skips the blend.
	DensityURL string `envconfig:"DENSITY_URL" validate:"omitempty,url"`

	// ShapefilePath points at an ESA-WorldCover-derived land-use polygon
	// shapefile. Empty falls back to the catalog tables.
	ShapefilePath string `envconfig:"LANDUSE_SHAPEFILE"`

	// CatalogPath points at a YAML site catalog overriding the bundled
	// demo sites.
	CatalogPath string `envconfig:"SITE_CATALOG"`

	RequestTimeout time.Duration `envconfig:"INGEST_TIMEOUT" default:"15s"`
	CacheTTL       time.Duration `envconfig:"OBSERVATION_CACHE_TTL" default:"30m"`
	UserAgent      string        `envconfig:"INGEST_USER_AGENT" default:"BloomWatch/1.0"`
}

// AssessConfig holds the site polling loop and job tuning.
type AssessConfig struct {
	PollInterval    time.Duration `envconfig:"POLL_INTERVAL" default:"30m"`
	PollConcurrency int           `envconfig:"POLL_CONCURRENCY" default:"4" validate:"min=1,max=32"`
	HistoryDays     int           `envconfig:"TREND_HISTORY_DAYS" default:"30" validate:"min=4,max=365"`

	// RetentionDays bounds how long stored assessments are kept. Zero
	// disables the retention sweep.
	RetentionDays int `envconfig:"ASSESSMENT_RETENTION_DAYS" default:"365" validate:"min=0,max=3650"`
}

// SecurityConfig holds API access control, rate limiting, and CORS settings.
type SecurityConfig struct {
	// APIKeyHash is the bcrypt hash of the API key required on mutating
	// routes. Empty leaves those routes open (local development).
	APIKeyHash         SecretString  `envconfig:"API_KEY_HASH"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	RateLimitMax       int           `envconfig:"RATE_LIMIT_MAX" default:"120" validate:"min=1"`
	RateLimitWindow    time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// WebhookConfig holds outbound escalation webhook settings. Empty URL
// disables delivery.
type WebhookConfig struct {
	URL       string        `envconfig:"ESCALATION_WEBHOOK_URL" validate:"omitempty,url"`
	Secret    SecretString  `envconfig:"ESCALATION_WEBHOOK_SECRET"`
	UserAgent string        `envconfig:"WEBHOOK_USER_AGENT" default:"BloomWatch-Webhook/1.0"`
	Timeout   time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"10s"`

	// PreviousSecret keeps old signatures verifiable while a secret
	// rotation is in flight. It stops being emitted once the expiry
	// passes (RFC3339).
	PreviousSecret        SecretString `envconfig:"ESCALATION_WEBHOOK_PREVIOUS_SECRET"`
	PreviousSecretExpires time.Time    `envconfig:"ESCALATION_WEBHOOK_PREVIOUS_SECRET_EXPIRES"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"BloomWatch"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
