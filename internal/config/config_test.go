package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so host settings don't leak in
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "HOST", "STORAGE_TYPE", "STORAGE_ENABLED", "DATABASE_URL", "SQLITE_PATH",
		"CACHE_ENABLED", "REDIS_URL", "FORGE_PATH", "FOUNDRY_LIBS_PATH", "TOOLCHAIN_TIMEOUT_SECONDS",
		"DEFAULT_COMPILER_VERSION", "VERIFIER_API_URL", "VERIFIER_POLL_ATTEMPTS",
		"VERIFIER_POLL_INTERVAL_SECONDS", "VERIFIER_TESTNET_CHAIN_ID", "VERIFIER_MAINNET_CHAIN_ID",
		"VERIFIER_RPS", "METRICS_ENABLED", "SANDBOX_MAX_AGE_MINUTES", "TRUST_PROXY", "TRUSTED_PROXIES",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, "forge", cfg.Toolchain.ForgePath)
	assert.Equal(t, 120*time.Second, cfg.Toolchain.Timeout())
	assert.Equal(t, "0.8.20", cfg.Toolchain.DefaultCompilerVersion)
	assert.Equal(t, 10, cfg.Verifier.PollAttempts)
	assert.Equal(t, 3*time.Second, cfg.Verifier.PollInterval())
	assert.Equal(t, map[string]int{"testnet": 5003, "mainnet": 5000}, cfg.Verifier.Networks())
	assert.Equal(t, "https://api.etherscan.io/v2/api", cfg.Verifier.APIURL)
	assert.False(t, cfg.Cache.Enabled)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("FORGE_PATH", "/opt/foundry/bin/forge")
	t.Setenv("TOOLCHAIN_TIMEOUT_SECONDS", "30")
	t.Setenv("SANDBOX_MAX_AGE_MINUTES", "5")
	t.Setenv("VERIFIER_TESTNET_CHAIN_ID", "11155111")
	t.Setenv("CACHE_ENABLED", "1")
	t.Setenv("VERIFIER_RPS", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/opt/foundry/bin/forge", cfg.Toolchain.ForgePath)
	assert.Equal(t, 30*time.Second, cfg.Toolchain.Timeout())
	assert.Equal(t, 5*time.Minute, cfg.Sandbox.MaxAge())
	assert.Equal(t, 11155111, cfg.Verifier.Networks()["testnet"])
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 2.5, cfg.Verifier.RequestsPerSecond)
}

func TestLoad_TrustedProxies(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Proxy.TrustProxy)
	assert.Equal(t, []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}, cfg.Proxy.TrustedProxies)

	t.Setenv("TRUST_PROXY", "true")
	t.Setenv("TRUSTED_PROXIES", " 10.1.0.0/16, ,192.0.2.1 ")
	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.Proxy.TrustProxy)
	assert.Equal(t, []string{"10.1.0.0/16", "192.0.2.1"}, cfg.Proxy.TrustedProxies)

	t.Setenv("TRUSTED_PROXIES", "10.1.0.0/40")
	_, err = Load()
	assert.ErrorContains(t, err, "TRUSTED_PROXIES")
}

func TestLoad_DatabaseURLSelectsPostgres(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/contraforge")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Storage.Type)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "not-a-number")
	t.Setenv("METRICS_ENABLED", "nope")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown storage", func(c *Config) { c.Storage.Type = "mongo" }, "unknown STORAGE_TYPE"},
		{"postgres without url", func(c *Config) { c.Storage.Type = "postgres"; c.Storage.Postgres.URL = "" }, "requires DATABASE_URL"},
		{"storage disabled ignores type", func(c *Config) { c.Storage.Enabled = false; c.Storage.Type = "mongo" }, ""},
		{"cache without redis", func(c *Config) { c.Cache.Enabled = true; c.Cache.RedisURL = "" }, "requires REDIS_URL"},
		{"negative timeout", func(c *Config) { c.Toolchain.TimeoutSeconds = -1 }, "TOOLCHAIN_TIMEOUT_SECONDS must be positive"},
		{"disabled timeout", func(c *Config) { c.Toolchain.TimeoutSeconds = 0 }, "TOOLCHAIN_TIMEOUT_SECONDS must be positive"},
		{"zero sandbox max age", func(c *Config) { c.Sandbox.MaxAgeMinutes = 0 }, "SANDBOX_MAX_AGE_MINUTES must be positive"},
		{"max age shorter than timeout", func(c *Config) { c.Sandbox.MaxAgeMinutes = 1; c.Toolchain.TimeoutSeconds = 120 }, "must exceed TOOLCHAIN_TIMEOUT_SECONDS"},
		{"max age equal to timeout", func(c *Config) { c.Sandbox.MaxAgeMinutes = 2; c.Toolchain.TimeoutSeconds = 120 }, "must exceed TOOLCHAIN_TIMEOUT_SECONDS"},
		{"max age longer than timeout", func(c *Config) { c.Sandbox.MaxAgeMinutes = 3; c.Toolchain.TimeoutSeconds = 120 }, ""},
		{"bad trusted proxy", func(c *Config) { c.Proxy.TrustProxy = true; c.Proxy.TrustedProxies = []string{"10.0.0.0/8", "lb.internal"} }, "invalid TRUSTED_PROXIES entry"},
		{"trusted proxies ignored without trust", func(c *Config) { c.Proxy.TrustedProxies = []string{"lb.internal"} }, ""},
		{"zero poll attempts", func(c *Config) { c.Verifier.PollAttempts = 0 }, "must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
