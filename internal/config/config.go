// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pendergraft/contraforge/internal/middleware/realip"
)

// Config holds all configuration for the server
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Cache     CacheConfig
	Logging   LoggingConfig
	RateLimit RateLimitConfig
	Proxy     ProxyConfig
	Toolchain ToolchainConfig
	Sandbox   SandboxConfig
	Verifier  VerifierConfig
	Metrics   MetricsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int
	Host           string
	ReadTimeout    int // seconds
	WriteTimeout   int // seconds
	IdleTimeout    int // seconds
	RequestTimeout int // seconds
	MaxBodySizeMB  int
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Enabled  bool
	Type     string // "sqlite" or "postgres"
	Postgres PostgresConfig
	SQLite   SQLiteConfig
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	URL string
}

// SQLiteConfig holds SQLite settings
type SQLiteConfig struct {
	Path string
}

// CacheConfig holds compile cache settings
type CacheConfig struct {
	Enabled    bool
	RedisURL   string
	TTLSeconds int
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string
	Format string // "text" or "json"
}

// RateLimitConfig holds rate limiting settings for toolchain endpoints
type RateLimitConfig struct {
	Enabled        bool
	RequestsPerMin int
	BurstSize      int
	CleanupMinutes int
	MaxConcurrent  int // concurrent compile/test jobs across all clients
}

// ProxyConfig controls whether X-Forwarded-For / X-Real-IP are trusted
type ProxyConfig struct {
	TrustProxy     bool
	TrustedProxies []string // CIDR ranges or bare IPs
}

// ToolchainConfig holds Foundry settings
type ToolchainConfig struct {
	ForgePath              string
	LibsPath               string
	TimeoutSeconds         int
	DefaultCompilerVersion string
	MaxSourceKB            int
}

// SandboxConfig holds build sandbox settings
type SandboxConfig struct {
	Root                 string
	MaxAgeMinutes        int
	SweepIntervalMinutes int
}

// VerifierConfig holds block-explorer verification settings
type VerifierConfig struct {
	APIURL              string
	APIKey              string
	PollAttempts        int
	PollIntervalSeconds int
	TestnetChainID      int
	MainnetChainID      int
	RequestsPerSecond   float64
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnvInt("PORT", 8080),
			Host:           getEnv("HOST", "0.0.0.0"),
			ReadTimeout:    getEnvInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout:   getEnvInt("SERVER_WRITE_TIMEOUT", 180),
			IdleTimeout:    getEnvInt("SERVER_IDLE_TIMEOUT", 120),
			RequestTimeout: getEnvInt("SERVER_REQUEST_TIMEOUT", 150),
			MaxBodySizeMB:  getEnvInt("MAX_BODY_SIZE_MB", 5),
		},
		Storage: StorageConfig{
			Enabled: getEnvBool("STORAGE_ENABLED", true),
			Type:    getEnv("STORAGE_TYPE", "sqlite"),
			Postgres: PostgresConfig{
				URL: getEnv("DATABASE_URL", ""),
			},
			SQLite: SQLiteConfig{
				Path: getEnv("SQLITE_PATH", "./data/contraforge.db"),
			},
		},
		Cache: CacheConfig{
			Enabled:    getEnvBool("CACHE_ENABLED", false),
			RedisURL:   getEnv("REDIS_URL", "redis://localhost:6379/0"),
			TTLSeconds: getEnvInt("CACHE_TTL_SECONDS", 86400),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMin: getEnvInt("RATE_LIMIT_RPM", 30),
			BurstSize:      getEnvInt("RATE_LIMIT_BURST", 5),
			CleanupMinutes: getEnvInt("RATE_LIMIT_CLEANUP_MINUTES", 10),
			MaxConcurrent:  getEnvInt("MAX_CONCURRENT_BUILDS", 4),
		},
		Proxy: ProxyConfig{
			TrustProxy:     getEnvBool("TRUST_PROXY", false),
			TrustedProxies: getEnvStringSlice("TRUSTED_PROXIES", []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}),
		},
		Toolchain: ToolchainConfig{
			ForgePath:              getEnv("FORGE_PATH", "forge"),
			LibsPath:               getEnv("FOUNDRY_LIBS_PATH", "lib"),
			TimeoutSeconds:         getEnvInt("TOOLCHAIN_TIMEOUT_SECONDS", 120),
			DefaultCompilerVersion: getEnv("DEFAULT_COMPILER_VERSION", "0.8.20"),
			MaxSourceKB:            getEnvInt("MAX_SOURCE_KB", 512),
		},
		Sandbox: SandboxConfig{
			Root:                 getEnv("SANDBOX_ROOT", os.TempDir()+"/contraforge"),
			MaxAgeMinutes:        getEnvInt("SANDBOX_MAX_AGE_MINUTES", 30),
			SweepIntervalMinutes: getEnvInt("SANDBOX_SWEEP_INTERVAL_MINUTES", 10),
		},
		Verifier: VerifierConfig{
			APIURL:              getEnv("VERIFIER_API_URL", "https://api.etherscan.io/v2/api"),
			APIKey:              getEnv("VERIFIER_API_KEY", ""),
			PollAttempts:        getEnvInt("VERIFIER_POLL_ATTEMPTS", 10),
			PollIntervalSeconds: getEnvInt("VERIFIER_POLL_INTERVAL_SECONDS", 3),
			TestnetChainID:      getEnvInt("VERIFIER_TESTNET_CHAIN_ID", 5003),
			MainnetChainID:      getEnvInt("VERIFIER_MAINNET_CHAIN_ID", 5000),
			RequestsPerSecond:   getEnvFloat("VERIFIER_RPS", 5),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
		},
	}

	// If DATABASE_URL is set, default to postgres
	if cfg.Storage.Postgres.URL != "" && cfg.Storage.Type == "sqlite" {
		cfg.Storage.Type = "postgres"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot start with
func (c *Config) Validate() error {
	if c.Storage.Enabled {
		switch c.Storage.Type {
		case "sqlite":
		case "postgres":
			if c.Storage.Postgres.URL == "" {
				return fmt.Errorf("STORAGE_TYPE=postgres requires DATABASE_URL")
			}
		default:
			return fmt.Errorf("unknown STORAGE_TYPE %q (want sqlite or postgres)", c.Storage.Type)
		}
	}
	if c.Cache.Enabled && c.Cache.RedisURL == "" {
		return fmt.Errorf("CACHE_ENABLED requires REDIS_URL")
	}
	// The sweeper removes sandboxes older than the max age, so every forge
	// job must be bounded by a shorter timeout.
	if c.Toolchain.TimeoutSeconds <= 0 {
		return fmt.Errorf("TOOLCHAIN_TIMEOUT_SECONDS must be positive")
	}
	if c.Sandbox.MaxAgeMinutes <= 0 {
		return fmt.Errorf("SANDBOX_MAX_AGE_MINUTES must be positive")
	}
	if c.Sandbox.MaxAge() <= c.Toolchain.Timeout() {
		return fmt.Errorf("SANDBOX_MAX_AGE_MINUTES (%s) must exceed TOOLCHAIN_TIMEOUT_SECONDS (%s)",
			c.Sandbox.MaxAge(), c.Toolchain.Timeout())
	}
	if c.Proxy.TrustProxy {
		if _, err := realip.ParseTrusted(c.Proxy.TrustedProxies); err != nil {
			return fmt.Errorf("invalid TRUSTED_PROXIES entry: %w", err)
		}
	}
	if c.Verifier.PollAttempts <= 0 || c.Verifier.PollIntervalSeconds <= 0 {
		return fmt.Errorf("VERIFIER_POLL_ATTEMPTS and VERIFIER_POLL_INTERVAL_SECONDS must be positive")
	}
	return nil
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Timeout returns the toolchain subprocess timeout
func (t ToolchainConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// MaxAge returns the age after which a sandbox is considered leaked
func (s SandboxConfig) MaxAge() time.Duration {
	return time.Duration(s.MaxAgeMinutes) * time.Minute
}

// SweepInterval returns how often the server sweeps leaked sandboxes
func (s SandboxConfig) SweepInterval() time.Duration {
	return time.Duration(s.SweepIntervalMinutes) * time.Minute
}

// PollInterval returns the delay before each status poll
func (v VerifierConfig) PollInterval() time.Duration {
	return time.Duration(v.PollIntervalSeconds) * time.Second
}

// Networks maps network names to explorer chain ids
func (v VerifierConfig) Networks() map[string]int {
	return map[string]int{
		"testnet": v.TestnetChainID,
		"mainnet": v.MainnetChainID,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
