// Package config loads perfgate application configuration.
//
// Precedence, highest first: runtime overrides (CLI flags), PERFGATE_*
// environment variables, the user config file, defaults.
package config

import (
	"time"

	"github.com/3leaps/perfgate/pkg/artifact"
	"github.com/3leaps/perfgate/pkg/perfapi"
)

// Config is the application configuration.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
}

// APIConfig configures the optimization API client.
type APIConfig struct {
	Key        string        `mapstructure:"key"`
	Endpoint   string        `mapstructure:"endpoint" validate:"omitempty,url"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gte=0s"`
	RateLimit  float64       `mapstructure:"rate_limit" validate:"gte=0"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryWait  time.Duration `mapstructure:"retry_wait" validate:"gte=0s"`
}

// LoggingConfig configures the CLI logger.
type LoggingConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// ArtifactsConfig configures where run artifacts can be written.
type ArtifactsConfig struct {
	S3 S3Config `mapstructure:"s3"`
}

// S3Config holds S3 settings for s3:// artifact destinations. The bucket
// always comes from the destination URI.
type S3Config struct {
	Region         string `mapstructure:"region"`
	Endpoint       string `mapstructure:"endpoint" validate:"omitempty,url"`
	Profile        string `mapstructure:"profile"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
}

// PerfAPI returns the API client configuration.
func (c *Config) PerfAPI() perfapi.Config {
	return perfapi.Config{
		APIKey:     c.API.Key,
		Endpoint:   c.API.Endpoint,
		Timeout:    c.API.Timeout,
		RateLimit:  c.API.RateLimit,
		MaxRetries: c.API.MaxRetries,
		RetryWait:  c.API.RetryWait,
	}
}

// ArtifactS3 returns the S3 configuration for artifact sinks.
func (c *Config) ArtifactS3() artifact.S3Config {
	return artifact.S3Config{
		Region:         c.Artifacts.S3.Region,
		Endpoint:       c.Artifacts.S3.Endpoint,
		Profile:        c.Artifacts.S3.Profile,
		ForcePathStyle: c.Artifacts.S3.ForcePathStyle,
	}
}
