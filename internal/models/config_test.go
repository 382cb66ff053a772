package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigError_Error(t *testing.T) {
	err := ConfigError{Message: "test error"}
	assert.Equal(t, "test error", err.Error())
}

func TestConfig_SecretsNotSerialized(t *testing.T) {
	cfg := Config{
		WAHA:     WAHAConfig{APIBaseURL: "http://waha:3000", APIKey: "key"},
		Database: DatabaseConfig{Path: "szenai.db", EncryptionSecret: "s3cret", EnableEncryption: true},
	}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "key\"")
	assert.NotContains(t, string(data), "s3cret")
	assert.Contains(t, string(data), `"api_base_url":"http://waha:3000"`)
}

func TestConfig_Unmarshal(t *testing.T) {
	raw := `{
		"waha": {"api_base_url": "http://waha:3000", "session_name": "shop", "breaker_max_failures": 0, "retry_count": 2},
		"server": {"port": 9000, "trust_proxy": true, "cors_allowed_origins": ["https://app.example"]},
		"rate_limit": {"requests": 50, "window_sec": 60},
		"log_level": "warn"
	}`
	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))

	assert.Equal(t, "shop", cfg.WAHA.SessionName)
	require.NotNil(t, cfg.WAHA.BreakerMaxFailures)
	assert.Equal(t, 0, *cfg.WAHA.BreakerMaxFailures)
	require.NotNil(t, cfg.WAHA.RetryCount)
	assert.Equal(t, 2, *cfg.WAHA.RetryCount)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.True(t, cfg.Server.TrustProxy)
	assert.Equal(t, []string{"https://app.example"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, 50, cfg.RateLimit.Requests)
	assert.Equal(t, "warn", cfg.LogLevel)
}
