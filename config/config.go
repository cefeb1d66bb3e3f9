package config

import (
	"errors"
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - database.go: Database and Redis configuration
//   - http.go: HTTP server configuration
//   - caption.go: Caption queue, callback and job registry configuration
//   - services.go: Service mode and reaper configuration
//   - observability.go: Metrics and failure notifications
type AppConfig struct {
	// IsDev controls development mode behavior (text logs, relaxed checks).
	// Set DEV=true or APP_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Database configuration
	DB    DBConfig    `envPrefix:"DB_"`
	Redis RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"http,reaper"`

	// Caption pipeline configuration
	Caption CaptionConfig

	// Reaper configuration
	Reaper ReaperConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.DB.Sanitize()
	c.HTTP.Sanitize()
	c.Caption.Sanitize()
	c.Reaper.Sanitize()
	c.Observability.Sanitize()

	if c.Caption.CallbackBaseURL == "" {
		c.Caption.CallbackBaseURL = c.HTTP.BaseURL
	}

	c.detectDevMode()
}

// Validate reports configuration combinations that cannot start.
func (c *AppConfig) Validate() error {
	var errs []error
	if _, err := c.GetEnabledServices(); err != nil {
		errs = append(errs, err)
	}
	if err := c.DB.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Caption.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// NeedsRedis reports whether any configured component talks to Redis.
func (c *AppConfig) NeedsRedis() bool {
	return c.Caption.QueueBackend == QueueBackendRedis || c.Caption.RegistryBackend == RegistryBackendRedis
}

// detectDevMode checks both DEV and APP_ENV environment variables.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		appEnv := strings.ToLower(os.Getenv("APP_ENV"))
		c.IsDev = appEnv == "development" || appEnv == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeHTTP]
}

// IsReaperEnabled returns true if the reaper service is enabled.
func (c *AppConfig) IsReaperEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeReaper]
}
