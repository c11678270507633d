package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"dmrelay/internal/constants"
	"dmrelay/internal/models"
	"dmrelay/internal/security"
)

var (
	ErrMissingBotToken      = models.ConfigError{Message: "missing Slack bot token"}
	ErrMissingSigningSecret = models.ConfigError{Message: "missing Slack signing secret"}
	ErrMissingChannel       = models.ConfigError{Message: "missing notification channel"}
)

// LoadConfig reads, validates and defaults the application configuration.
// Secrets are taken from the environment when set, so they never have to
// live in the config file.
func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)
	applyDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if token := os.Getenv("SLACK_BOT_TOKEN"); token != "" {
		c.Slack.BotToken = token
	}
	if secret := os.Getenv("SLACK_SIGNING_SECRET"); secret != "" {
		c.Slack.SigningSecret = secret
	}
	if channel := os.Getenv("NOTIFICATION_CHANNEL"); channel != "" {
		c.NotificationChannel = channel
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
}

func applyDefaults(c *models.Config) {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.LogLevel == "" {
		// The original deployment logged at debug in development and only
		// errors elsewhere.
		if c.Environment == "development" {
			c.LogLevel = "debug"
		} else {
			c.LogLevel = "error"
		}
	}
	if c.Server.Port == 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Relay.MaxPendingItems == 0 {
		c.Relay.MaxPendingItems = constants.DefaultMaxPendingItems
	}
	if c.Relay.ResyncDelaySec == 0 {
		c.Relay.ResyncDelaySec = constants.DefaultResyncDelaySec
	}
	if c.Retry.InitialBackoffMs == 0 {
		c.Retry.InitialBackoffMs = constants.DefaultBackoffInitialMs
	}
	if c.Retry.MaxBackoffMs == 0 {
		c.Retry.MaxBackoffMs = constants.DefaultBackoffMaxMs
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = constants.DefaultAuthProbeAttempts
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "dmrelay"
	}
	if c.Tracing.Environment == "" {
		c.Tracing.Environment = c.Environment
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 0.1
	}
}

func validate(c *models.Config) error {
	if c.Slack.BotToken == "" {
		return ErrMissingBotToken
	}
	if c.Slack.SigningSecret == "" {
		return ErrMissingSigningSecret
	}
	if c.NotificationChannel == "" {
		return ErrMissingChannel
	}
	if c.Relay.MaxPendingItems < 1 {
		return models.ConfigError{Message: "maxPendingItems must be positive"}
	}
	return nil
}
