package models

// ConfigError represents a configuration validation error
type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return "config error: " + e.Message
}

// SlackConfig holds the Slack app credentials. BotToken and SigningSecret
// are normally supplied through environment overrides rather than the
// config file.
type SlackConfig struct {
	BotUserID     string `json:"botUserId"`
	BotToken      string `json:"botToken"`
	SigningSecret string `json:"signingSecret"`
}

// RelayConfig tunes the request aggregation behavior.
type RelayConfig struct {
	// MaxPendingItems is the number of pending messages above which the
	// preview degrades to a warning with no submit control.
	MaxPendingItems int `json:"maxPendingItems"`
	// ResyncDelaySec is how long to wait after a failed forward before the
	// preview is re-synced for retry.
	ResyncDelaySec int `json:"resyncDelaySec"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `json:"port"`
}

// RetryConfig configures the boot-time exponential backoff.
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"serviceName"`
	ServiceVersion string  `json:"serviceVersion"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlpEndpoint"`
	SampleRate     float64 `json:"sampleRate"`
	UseStdout      bool    `json:"useStdout"`
}

// Config is the top-level application configuration.
type Config struct {
	Environment         string        `json:"environment"`
	LogLevel            string        `json:"logLevel"`
	Server              ServerConfig  `json:"server"`
	Slack               SlackConfig   `json:"slack"`
	NotificationChannel string        `json:"notificationChannel"`
	Relay               RelayConfig   `json:"relay"`
	Retry               RetryConfig   `json:"retry"`
	Tracing             TracingConfig `json:"tracing"`
}
