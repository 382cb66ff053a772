package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"szenai/internal/models"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("WAHA_API_KEY", "key")
	t.Setenv("WAHA_API_URL", "")
	t.Setenv("WAHA_SESSION", "")
	t.Setenv("SZENAI_DB_PATH", "")
	t.Setenv("PORT", "")
	t.Setenv("SZENAI_ENABLE_ENCRYPTION", "")
	t.Setenv("SZENAI_ENCRYPTION_SECRET", "")
	t.Setenv("SZENAI_ENV", "")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setBaseEnv(t)
	path := writeConfig(t, `{"waha":{"api_base_url":"http://waha:3000"}}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://waha:3000", cfg.WAHA.APIBaseURL)
	assert.Equal(t, "key", cfg.WAHA.APIKey)
	assert.Equal(t, "default", cfg.WAHA.SessionName)
	assert.Equal(t, 30, cfg.WAHA.TimeoutSec)
	require.NotNil(t, cfg.WAHA.RetryCount)
	assert.Equal(t, 3, *cfg.WAHA.RetryCount)
	assert.Equal(t, 1000, cfg.WAHA.RetryDelayMs)
	require.NotNil(t, cfg.WAHA.BreakerMaxFailures)
	assert.Equal(t, 20, *cfg.WAHA.BreakerMaxFailures)

	assert.Equal(t, 8082, cfg.Server.Port)
	assert.Equal(t, "/api/waha", cfg.Server.PathPrefix)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, 123*time.Second, UpstreamBudget(cfg.WAHA))
	assert.Equal(t, 138, cfg.Server.WriteTimeoutSec)

	assert.Equal(t, 60, cfg.Cache.DefaultTTLSec)
	assert.Equal(t, 30, cfg.Cache.MessagesTTLSec)
	assert.Equal(t, 3600, cfg.Cache.PictureTTLSec)
	assert.Equal(t, 100, cfg.RateLimit.Requests)
	assert.Equal(t, 900, cfg.RateLimit.WindowSec)

	assert.Equal(t, "szenai.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30, cfg.RetentionDays)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRate)
}

func TestLoadConfig_ExplicitZeroRetriesKept(t *testing.T) {
	setBaseEnv(t)
	path := writeConfig(t, `{"waha":{"api_base_url":"http://waha:3000","retry_count":0,"breaker_max_failures":0}}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0, *cfg.WAHA.RetryCount)
	assert.Equal(t, 0, *cfg.WAHA.BreakerMaxFailures)
}

func TestLoadConfig_WriteTimeoutCoversUpstreamRetries(t *testing.T) {
	setBaseEnv(t)
	path := writeConfig(t, `{"waha":{"api_base_url":"http://waha:3000","timeout_sec":10,"retry_count":1,"retry_delay_ms":500}}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 20500*time.Millisecond, UpstreamBudget(cfg.WAHA))
	assert.Equal(t, 21+15, cfg.Server.WriteTimeoutSec)
	assert.Greater(t, time.Duration(cfg.Server.WriteTimeoutSec)*time.Second, UpstreamBudget(cfg.WAHA))

	path = writeConfig(t, `{"waha":{"api_base_url":"http://waha:3000","timeout_sec":10,"retry_count":0},"server":{"write_timeout_sec":11}}`)
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 11, cfg.Server.WriteTimeoutSec)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("WAHA_API_URL", "https://waha.internal")
	t.Setenv("WAHA_SESSION", "shop")
	t.Setenv("SZENAI_DB_PATH", "/var/lib/szenai/log.db")
	t.Setenv("PORT", "9090")
	t.Setenv("SZENAI_ENABLE_ENCRYPTION", "true")
	t.Setenv("SZENAI_ENCRYPTION_SECRET", testSecret)

	path := writeConfig(t, `{"waha":{"api_base_url":"http://ignored:3000","session_name":"other"}}`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://waha.internal", cfg.WAHA.APIBaseURL)
	assert.Equal(t, "shop", cfg.WAHA.SessionName)
	assert.Equal(t, "/var/lib/szenai/log.db", cfg.Database.Path)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Database.EnableEncryption)
	assert.Equal(t, testSecret, cfg.Database.EncryptionSecret)
}

func TestLoadConfig_APIKeyNotReadFromFile(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("WAHA_API_KEY", "")
	path := writeConfig(t, `{"waha":{"api_base_url":"http://waha:3000","api_key":"from-file"}}`)

	_, err := LoadConfig(path)
	assert.Equal(t, ErrMissingAPIKey, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
		errPart string
	}{
		{"missing url", `{}`, nil, "missing WAHA API URL"},
		{"relative url", `{"waha":{"api_base_url":"waha:3000"}}`, nil, "absolute http(s) URL"},
		{"bad session", `{"waha":{"api_base_url":"http://w","session_name":"a/b"}}`, nil, "session name"},
		{"bad port env", `{"waha":{"api_base_url":"http://w"}}`, map[string]string{"PORT": "eighty"}, "invalid PORT"},
		{"port out of range", `{"waha":{"api_base_url":"http://w"},"server":{"port":70000}}`, nil, "server.port"},
		{"write timeout under budget", `{"waha":{"api_base_url":"http://w"},"server":{"write_timeout_sec":45}}`, nil, "write_timeout_sec"},
		{"root prefix", `{"waha":{"api_base_url":"http://w"},"server":{"path_prefix":"/"}}`, nil, "path_prefix"},
		{"prefix", `{"waha":{"api_base_url":"http://w"},"server":{"path_prefix":"api/"}}`, nil, "path_prefix"},
		{"negative rate", `{"waha":{"api_base_url":"http://w"},"rate_limit":{"requests":-1}}`, nil, "rate_limit.requests"},
		{"short secret", `{"waha":{"api_base_url":"http://w"}}`, map[string]string{"SZENAI_ENABLE_ENCRYPTION": "true", "SZENAI_ENCRYPTION_SECRET": "short"}, "SZENAI_ENCRYPTION_SECRET"},
		{"traversal db", `{"waha":{"api_base_url":"http://w"},"database":{"path":"../x.db"}}`, nil, "database path"},
		{"sample rate", `{"waha":{"api_base_url":"http://w"},"tracing":{"sample_rate":2}}`, nil, "sample_rate"},
		{"retention", `{"waha":{"api_base_url":"http://w"},"retention_days":5000}`, nil, "retention"},
		{"bad json", `{`, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}

func TestLoadConfig_PathValidation(t *testing.T) {
	setBaseEnv(t)
	_, err := LoadConfig("../../etc/passwd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config path")

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadConfig_ProductionRules(t *testing.T) {
	t.Run("debug logging rejected", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("SZENAI_ENV", "production")
		_, err := LoadConfig(writeConfig(t, `{"waha":{"api_base_url":"http://w"},"server":{"cors_allowed_origins":["https://app"]},"log_level":"debug"}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "debug logging")
	})

	t.Run("wildcard cors rejected", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("SZENAI_ENV", "production")
		_, err := LoadConfig(writeConfig(t, `{"waha":{"api_base_url":"http://w"}}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "wildcard CORS")
	})

	t.Run("wildcard cors with opt-in", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("SZENAI_ENV", "production")
		cfg, err := LoadConfig(writeConfig(t, `{"waha":{"api_base_url":"http://w"},"server":{"allow_wildcard_cors":true}}`))
		require.NoError(t, err)
		assert.True(t, cfg.Server.AllowWildcardCORS)
	})

	t.Run("explicit origins", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("SZENAI_ENV", "production")
		cfg, err := LoadConfig(writeConfig(t, `{"waha":{"api_base_url":"http://w"},"server":{"cors_allowed_origins":["https://app.example"]}}`))
		require.NoError(t, err)
		assert.Equal(t, []string{"https://app.example"}, cfg.Server.CORSAllowedOrigins)
	})
}

func TestConfigError(t *testing.T) {
	var err error = models.ConfigError{Message: "boom"}
	assert.Equal(t, "boom", err.Error())
}
