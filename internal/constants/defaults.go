package constants

// Default relay configuration values
const (
	DefaultMaxPendingItems = 10
	DefaultResyncDelaySec  = 5
	DefaultServerPort      = 8080
)

// Default timeout values
const (
	DefaultHTTPTimeoutSec        = 30
	DefaultGracefulShutdownSec   = 30
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultAuthProbeAttempts     = 3
	DefaultBackoffInitialMs      = 500
	DefaultBackoffMaxMs          = 5000
	DefaultWebhookMaxBodyBytes   = 1 << 20
)

// Privacy settings
const (
	DefaultIDMaskLength = 4
)
