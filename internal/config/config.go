package config

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"szenai/internal/constants"
	"szenai/internal/models"
	"szenai/internal/security"
	"szenai/internal/validation"
)

var (
	ErrMissingWAHAURL = models.ConfigError{Message: "missing WAHA API URL (set waha.api_base_url or WAHA_API_URL)"}
	ErrMissingAPIKey  = models.ConfigError{Message: "missing WAHA API key (set WAHA_API_KEY environment variable)"}
	ErrMissingDBPath  = models.ConfigError{Message: "missing database path"}
)

// MinEncryptionSecretLength is the shortest accepted SZENAI_ENCRYPTION_SECRET.
const MinEncryptionSecretLength = 32

func LoadConfig(path string) (*models.Config, error) {
	// Validate config file path to prevent directory traversal
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyDefaults(&config)
	if err := applyEnvironmentOverrides(&config); err != nil {
		return nil, err
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	// Perform security validation after environment overrides
	if err := validateSecurity(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyDefaults(c *models.Config) {
	if c.WAHA.SessionName == "" {
		c.WAHA.SessionName = constants.DefaultSessionName
	}
	if c.WAHA.TimeoutSec <= 0 {
		c.WAHA.TimeoutSec = constants.DefaultUpstreamTimeoutSec
	}
	if c.WAHA.RetryCount == nil {
		n := constants.DefaultUpstreamRetryCount
		c.WAHA.RetryCount = &n
	}
	if c.WAHA.RetryDelayMs <= 0 {
		c.WAHA.RetryDelayMs = constants.DefaultUpstreamRetryDelayMs
	}
	if c.WAHA.BreakerMaxFailures == nil {
		n := constants.DefaultBreakerMaxFailures
		c.WAHA.BreakerMaxFailures = &n
	}
	if c.WAHA.BreakerTimeoutSec <= 0 {
		c.WAHA.BreakerTimeoutSec = constants.DefaultBreakerTimeoutSec
	}

	if c.Server.Port == 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.PathPrefix == "" {
		c.Server.PathPrefix = constants.DefaultProxyPrefix
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		budget := UpstreamBudget(c.WAHA)
		c.Server.WriteTimeoutSec = int(math.Ceil(budget.Seconds())) + constants.ServerWriteMarginSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}
	if c.Server.CORSAllowedOrigins == nil {
		c.Server.CORSAllowedOrigins = []string{"*"}
	}

	if c.Cache.DefaultTTLSec <= 0 {
		c.Cache.DefaultTTLSec = int(constants.DefaultCacheTTL.Seconds())
	}
	if c.Cache.MessagesTTLSec <= 0 {
		c.Cache.MessagesTTLSec = int(constants.MessagesCacheTTL.Seconds())
	}
	if c.Cache.PictureTTLSec <= 0 {
		c.Cache.PictureTTLSec = int(constants.PictureCacheTTL.Seconds())
	}

	if c.RateLimit.Requests == 0 {
		c.RateLimit.Requests = constants.DefaultRateLimitRequests
	}
	if c.RateLimit.WindowSec == 0 {
		c.RateLimit.WindowSec = constants.DefaultRateLimitWindowSec
	}

	if c.Database.Path == "" {
		c.Database.Path = "szenai.db"
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 1.0
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = constants.DefaultRetentionDays
	}
}

func applyEnvironmentOverrides(c *models.Config) error {
	if v := os.Getenv("WAHA_API_URL"); v != "" {
		c.WAHA.APIBaseURL = v
	}
	if v := os.Getenv("WAHA_SESSION"); v != "" {
		c.WAHA.SessionName = v
	}

	// SECURITY: the API key is never read from the config file
	c.WAHA.APIKey = os.Getenv("WAHA_API_KEY")

	if v := os.Getenv("SZENAI_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return models.ConfigError{Message: fmt.Sprintf("invalid PORT %q", v)}
		}
		c.Server.Port = port
	}
	if v := os.Getenv("SZENAI_ENABLE_ENCRYPTION"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return models.ConfigError{Message: fmt.Sprintf("invalid SZENAI_ENABLE_ENCRYPTION %q", v)}
		}
		c.Database.EnableEncryption = enabled
	}
	c.Database.EncryptionSecret = os.Getenv("SZENAI_ENCRYPTION_SECRET")
	return nil
}

func validate(c *models.Config) error {
	if c.WAHA.APIBaseURL == "" {
		return ErrMissingWAHAURL
	}
	u, err := url.Parse(c.WAHA.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return models.ConfigError{Message: "WAHA API URL must be an absolute http(s) URL"}
	}
	if c.WAHA.APIKey == "" {
		return ErrMissingAPIKey
	}
	if err := validation.ValidateSessionName(c.WAHA.SessionName); err != nil {
		return models.ConfigError{Message: err.Error()}
	}
	if err := validation.ValidateTimeout(c.WAHA.TimeoutSec, "waha.timeout_sec"); err != nil {
		return models.ConfigError{Message: err.Error()}
	}
	if err := validation.ValidateNumericRange(*c.WAHA.RetryCount, "waha.retry_count", 0, 10); err != nil {
		return models.ConfigError{Message: err.Error()}
	}
	if *c.WAHA.BreakerMaxFailures < 0 {
		return models.ConfigError{Message: "waha.breaker_max_failures cannot be negative"}
	}

	if err := validation.ValidateNumericRange(c.Server.Port, "server.port", 1, 65535); err != nil {
		return models.ConfigError{Message: err.Error()}
	}
	if budget := UpstreamBudget(c.WAHA); time.Duration(c.Server.WriteTimeoutSec)*time.Second <= budget {
		return models.ConfigError{Message: fmt.Sprintf("server.write_timeout_sec must exceed the upstream retry budget of %s", budget)}
	}
	if len(c.Server.PathPrefix) < 2 || !strings.HasPrefix(c.Server.PathPrefix, "/") || strings.HasSuffix(c.Server.PathPrefix, "/") {
		return models.ConfigError{Message: "server.path_prefix must start with / and must not end with /"}
	}

	if c.RateLimit.Requests < 1 {
		return models.ConfigError{Message: "rate_limit.requests must be positive"}
	}
	if c.RateLimit.WindowSec < 1 {
		return models.ConfigError{Message: "rate_limit.window_sec must be positive"}
	}

	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if err := security.ValidateFilePath(c.Database.Path); err != nil {
		return models.ConfigError{Message: fmt.Sprintf("invalid database path: %v", err)}
	}
	if c.Database.EnableEncryption && len(c.Database.EncryptionSecret) < MinEncryptionSecretLength {
		return models.ConfigError{Message: fmt.Sprintf("SZENAI_ENCRYPTION_SECRET must be at least %d characters when encryption is enabled", MinEncryptionSecretLength)}
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return models.ConfigError{Message: "tracing.sample_rate must be between 0 and 1"}
	}
	if err := validation.ValidateRetentionDays(c.RetentionDays); err != nil {
		return models.ConfigError{Message: err.Error()}
	}
	return nil
}

// UpstreamBudget is the longest one upstream call can take: every attempt
// timing out plus the delays between them.
func UpstreamBudget(w models.WAHAConfig) time.Duration {
	retries := 0
	if w.RetryCount != nil {
		retries = *w.RetryCount
	}
	timeout := time.Duration(w.TimeoutSec) * time.Second
	delay := time.Duration(w.RetryDelayMs) * time.Millisecond
	return time.Duration(retries+1)*timeout + time.Duration(retries)*delay
}

// IsProduction reports whether SZENAI_ENV selects production rules.
func IsProduction() bool {
	return os.Getenv("SZENAI_ENV") == "production"
}

// validateSecurity performs security-specific validation
func validateSecurity(c *models.Config) error {
	if !IsProduction() {
		if !c.Database.EnableEncryption {
			fmt.Fprintf(os.Stderr, "WARNING: sent-message log is stored unencrypted. Set SZENAI_ENABLE_ENCRYPTION=true and SZENAI_ENCRYPTION_SECRET for at-rest encryption.\n")
		}
		return nil
	}

	if c.LogLevel == "debug" {
		return models.ConfigError{Message: "debug logging should not be used in production (security risk)"}
	}
	for _, origin := range c.Server.CORSAllowedOrigins {
		if origin == "*" && !c.Server.AllowWildcardCORS {
			return models.ConfigError{Message: "wildcard CORS origin is not allowed in production unless server.allow_wildcard_cors is set"}
		}
	}
	return nil
}
