// Package perfapi implements gate.Client against the optimization REST API (v2).
package perfapi

import (
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// DefaultEndpoint is the production API root.
const DefaultEndpoint = "https://optimization-api.rigor.com/v2/"

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryWait  = 500 * time.Millisecond
)

// Config configures an API client.
type Config struct {
	// APIKey is sent in the API-KEY header (required).
	APIKey string

	// Endpoint is the API root. Defaults to DefaultEndpoint.
	Endpoint string

	// Timeout bounds a single HTTP request. Defaults to DefaultTimeout.
	Timeout time.Duration

	// RateLimit caps requests per second. Zero disables limiting.
	RateLimit float64

	// MaxRetries is the number of extra attempts for idempotent reads that
	// fail with a throttled, unavailable or transport error. Negative
	// disables retries; zero uses DefaultMaxRetries.
	MaxRetries int

	// RetryWait is the initial retry interval. Defaults to DefaultRetryWait.
	RetryWait time.Duration

	// UserAgent is sent on every request when set.
	UserAgent string

	// HTTPClient overrides the transport. Timeout is ignored when set.
	HTTPClient *http.Client

	Logger *zap.Logger
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return &ConfigError{Field: "APIKey", Message: "API key is required"}
	}
	if c.Endpoint != "" {
		u, err := url.Parse(c.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return &ConfigError{Field: "Endpoint", Message: "endpoint must be an absolute URL"}
		}
	}
	if c.RateLimit < 0 {
		return &ConfigError{Field: "RateLimit", Message: "rate limit must be 0 or larger"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "perfapi config: " + e.Field + ": " + e.Message
}
