package constants

import "time"

// Upstream defaults
const (
	DefaultUpstreamTimeoutSec   = 30
	DefaultUpstreamRetryCount   = 3
	DefaultUpstreamRetryDelayMs = 1000
	DefaultSessionName          = "default"
	DefaultBreakerMaxFailures   = 20
	DefaultBreakerTimeoutSec    = 30
	MaxUpstreamBodyBytes        = 10 << 20
	MaxRequestBodyBytes         = 1 << 20
)

// Cache TTLs per resource
const (
	DefaultCacheTTL  = 60 * time.Second
	MessagesCacheTTL = 30 * time.Second
	PictureCacheTTL  = time.Hour
	JanitorInterval  = 5 * time.Minute
)

// Client cache-control hints (seconds)
const (
	MaxAgeChats    = 30
	MaxAgeOverview = 30
	MaxAgeMessages = 10
	MaxAgeMessage  = 30
	MaxAgePicture  = 3600
)

// Rate limiting
const (
	DefaultRateLimitRequests  = 100
	DefaultRateLimitWindowSec = 15 * 60
	RateLimitCleanupInterval  = time.Minute
)

// Server
const (
	DefaultServerPort            = 8082
	DefaultProxyPrefix           = "/api/waha"
	DefaultServerReadTimeoutSec  = 15
	ServerWriteMarginSec         = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultGracefulShutdownSec   = 30
	ServerErrorChannelSize       = 1
	DefaultDatabaseRetryAttempts = 3
	DefaultRetryBackoffMs        = 1000
	DefaultMaxBackoffMs          = 60000
	DefaultRetentionDays         = 30
	DefaultCleanupIntervalHours  = 24
	DefaultHistoryLimit          = 50
	MaxHistoryLimit              = 500
)

// Validation limits
const (
	MaxChatIDLength    = 256
	MaxMessageIDLength = 256
)

// Default pin duration when the caller does not send one (WAHA accepts 24h, 7d, 30d).
const DefaultPinDurationSec = 86400

// Encryption
const (
	EncryptionSalt       = "szenai-sent-messages-v1"
	EncryptionIterations = 100000
	EncryptionKeySize    = 32
	NonceSize            = 12
)
