// Package config defines the configuration structure for the InboxInspire
// scheduler. Configuration is loaded once at process start and is immutable
// thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> Secret references (Lowest)
//
// Any missing required value or invalid format fails startup.
package config

import (
	"time"

	"inboxinspire/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the scheduler process.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"inboxinspire-scheduler"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	// Domain Configurations
	Server        ServerConfig
	Database      DatabaseConfig
	Scheduler     SchedulerConfig
	Dispatch      DispatchConfig
	Retry         RetryConfig
	Email         EmailConfig
	LLM           LLMConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration for the schedule-mutation API.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	AdminAPIKey     SecretString  `envconfig:"ADMIN_API_KEY" validate:"required,min=16"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// SchedulerConfig tunes occurrence materialization and recovery.
type SchedulerConfig struct {
	LookaheadDays       int           `envconfig:"SCHEDULER_LOOKAHEAD_DAYS" default:"7" validate:"min=1,max=31"`
	GraceWindow         time.Duration `envconfig:"SCHEDULER_GRACE_WINDOW" default:"15m"`
	RecoveryParallelism int           `envconfig:"SCHEDULER_RECOVERY_PARALLELISM" default:"8" validate:"min=1,max=64"`
	SweepCron           string        `envconfig:"SCHEDULER_SWEEP_CRON" default:"@hourly" validate:"required"`
	MaintenanceCron     string        `envconfig:"SCHEDULER_MAINTENANCE_CRON" default:"30 3 * * *" validate:"required"`
	StalePendingAge     time.Duration `envconfig:"SCHEDULER_STALE_PENDING_AGE" default:"24h"`
}

// DispatchConfig holds the per-send limits enforced by the dispatch executor.
type DispatchConfig struct {
	GlobalDailyCap  int           `envconfig:"DISPATCH_GLOBAL_DAILY_CAP" default:"10" validate:"min=1"`
	DeliveryTimeout time.Duration `envconfig:"DISPATCH_DELIVERY_TIMEOUT" default:"10s"`
}

// RetryConfig defines the exponential backoff ladder for failed deliveries.
type RetryConfig struct {
	MaxAttempts   int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"3" validate:"min=0,max=10"`
	BaseDelay     time.Duration `envconfig:"RETRY_BASE_DELAY" default:"5m"`
	BackoffFactor float64       `envconfig:"RETRY_BACKOFF_FACTOR" default:"3" validate:"gte=1"`
	MaxDelay      time.Duration `envconfig:"RETRY_MAX_DELAY" default:"45m"`
}

// EmailConfig holds email delivery provider credentials. An empty
// SendGridAPIKey selects the logging stub provider.
type EmailConfig struct {
	SendGridAPIKey SecretString `envconfig:"SENDGRID_API_KEY"`
	SendGridURL    string       `envconfig:"SENDGRID_BASE_URL" default:"https://api.sendgrid.com" validate:"url"`
	FromAddress    string       `envconfig:"EMAIL_FROM_ADDRESS" default:"hello@inboxinspire.app" validate:"email"`
	FromName       string       `envconfig:"EMAIL_FROM_NAME" default:"InboxInspire"`
	RatePerSecond  float64      `envconfig:"EMAIL_RATE_PER_SECOND" default:"5" validate:"gt=0"`
}

// LLMConfig configures the OpenAI-compatible completion endpoint used for
// content generation. An empty APIKey disables generation and every message
// uses the fallback text.
type LLMConfig struct {
	APIKey  SecretString  `envconfig:"LLM_API_KEY"`
	BaseURL string        `envconfig:"LLM_BASE_URL" default:"https://openrouter.ai/api/v1" validate:"url"`
	Model   string        `envconfig:"LLM_MODEL" default:"openai/gpt-4o-mini"`
	Timeout time.Duration `envconfig:"LLM_TIMEOUT" default:"20s"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"InboxInspire"`
	MetricsEnabled  bool   `envconfig:"METRICS_ENABLED" default:"false"`
	AWSRegion       string `envconfig:"AWS_REGION" default:"us-east-1"`
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
	// ErrSecretResolution indicates a failure when resolving _SECRET_REF variables.
	ErrSecretResolution ConfigErrorType = "SECRET_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
