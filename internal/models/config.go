package models

// Config holds the application configuration
type Config struct {
	WAHA          WAHAConfig      `json:"waha"`
	Server        ServerConfig    `json:"server"`
	Cache         CacheConfig     `json:"cache"`
	RateLimit     RateLimitConfig `json:"rate_limit"`
	Database      DatabaseConfig  `json:"database"`
	Tracing       TracingConfig   `json:"tracing"`
	LogLevel      string          `json:"log_level"`
	RetentionDays int             `json:"retention_days"`
}

// WAHAConfig holds the upstream gateway settings. The API key is only read
// from the environment.
type WAHAConfig struct {
	APIBaseURL   string `json:"api_base_url"`
	SessionName  string `json:"session_name"`
	APIKey       string `json:"-"`
	TimeoutSec   int    `json:"timeout_sec"`
	RetryCount   *int   `json:"retry_count"`
	RetryDelayMs int    `json:"retry_delay_ms"`
	// BreakerMaxFailures of 0 disables the circuit breaker; nil means default.
	BreakerMaxFailures *int `json:"breaker_max_failures"`
	BreakerTimeoutSec  int  `json:"breaker_timeout_sec"`
}

// ServerConfig holds the local HTTP surface settings
type ServerConfig struct {
	Port               int      `json:"port"`
	PathPrefix         string   `json:"path_prefix"`
	ReadTimeoutSec     int      `json:"read_timeout_sec"`
	WriteTimeoutSec    int      `json:"write_timeout_sec"`
	IdleTimeoutSec     int      `json:"idle_timeout_sec"`
	TrustProxy         bool     `json:"trust_proxy"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins"`
	AllowWildcardCORS  bool     `json:"allow_wildcard_cors"`
}

// CacheConfig holds response cache TTLs in seconds
type CacheConfig struct {
	DefaultTTLSec  int `json:"default_ttl_sec"`
	MessagesTTLSec int `json:"messages_ttl_sec"`
	PictureTTLSec  int `json:"picture_ttl_sec"`
}

// RateLimitConfig holds the fixed-window limiter settings
type RateLimitConfig struct {
	Requests  int `json:"requests"`
	WindowSec int `json:"window_sec"`
}

// DatabaseConfig holds the sent-message log settings. Encryption settings are
// only read from the environment.
type DatabaseConfig struct {
	Path             string `json:"path"`
	EnableEncryption bool   `json:"-"`
	EncryptionSecret string `json:"-"`
}

// TracingConfig holds OpenTelemetry export settings
type TracingConfig struct {
	Enabled      bool    `json:"enabled"`
	OTLPEndpoint string  `json:"otlp_endpoint"`
	SampleRate   float64 `json:"sample_rate"`
	UseStdout    bool    `json:"use_stdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
