// Package config defines the global configuration structure for the LeadLoop
// platform. Configuration is loaded once at process initialization and is
// immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup.
package config

import (
	"time"

	"leadloop/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the LeadLoop platform.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"leadloop-sweeper"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server        ServerConfig
	Database      DatabaseConfig
	Sweep         SweepConfig
	AWS           AWSConfig
	Billing       BillingConfig
	Email         EmailConfig
	SMS           SMSConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration for the trigger endpoint.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	// Resolved from SSM or Env
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// SweepConfig holds settings that shape a sweep pass.
type SweepConfig struct {
	// TriggerSecret authenticates the external scheduler calling the HTTP
	// trigger endpoint.
	TriggerSecret SecretString `envconfig:"CRON_SECRET" validate:"required,min=16"`

	// Timezone is the IANA zone used for calendar-date comparisons (daily
	// guards, hour-of-day windows). Tenant-local scheduling is out of scope;
	// one platform zone applies to all tenants.
	Timezone string `envconfig:"SWEEP_TIMEZONE" default:"UTC"`

	// MaxCleanupCompanies bounds how many companies a single pass touches
	// in the retention cleaner.
	MaxCleanupCompanies int `envconfig:"SWEEP_MAX_CLEANUP_COMPANIES" default:"100"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// Resource Identifiers
	DigestQueue   string `envconfig:"SQS_DIGESTS" validate:"required,url"`
	SocialQueue   string `envconfig:"SQS_SOCIAL_POSTS" validate:"required,url"`
	ArchiveBucket string `envconfig:"ARCHIVE_BUCKET"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// BillingConfig holds Stripe payment integration credentials.
type BillingConfig struct {
	StripeSecretKey SecretString `envconfig:"STRIPE_SECRET_KEY" validate:"required"`
}

// EmailConfig holds email delivery provider credentials.
type EmailConfig struct {
	SendGridAPIKey SecretString `envconfig:"SENDGRID_API_KEY" validate:"required"`
	FromAddress    string       `envconfig:"EMAIL_FROM_ADDRESS" default:"no-reply@leadloop.io"`
	FromName       string       `envconfig:"EMAIL_FROM_NAME" default:"LeadLoop"`
}

// SMSConfig holds SMS delivery provider credentials.
type SMSConfig struct {
	TwilioAccountSID string       `envconfig:"TWILIO_ACCOUNT_SID" validate:"required"`
	TwilioAuthToken  SecretString `envconfig:"TWILIO_AUTH_TOKEN" validate:"required"`
	FromNumber       string       `envconfig:"TWILIO_FROM_NUMBER" validate:"required"`
}

// ObservabilityConfig holds telemetry and monitoring settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"LeadLoop"`
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

// Location parses the configured sweep timezone. Falls back to UTC when the
// zone name does not resolve.
func (c SweepConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
