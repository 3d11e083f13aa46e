//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pendergraft/contraforge/internal/cache"
	"github.com/pendergraft/contraforge/internal/config"
	"github.com/pendergraft/contraforge/internal/server"
	"github.com/pendergraft/contraforge/internal/storage"
	"github.com/pendergraft/contraforge/pkg/client"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const tokenSource = `// SPDX-License-Identifier: MIT
pragma solidity ^0.8.20;

contract Token {
    uint256 public totalSupply;

    function mint(uint256 amount) external {
        totalSupply += amount;
    }
}
`

// TestContext holds shared test infrastructure
type TestContext struct {
	PostgresContainer *postgres.PostgresContainer
	ConnString        string
	Explorer          *fakeExplorer
	ExplorerServer    *httptest.Server
	TestServer        *httptest.Server
	Store             storage.Store
	SandboxRoot       string
	ForgeAvailable    bool
}

// setupPostgresE starts a Postgres container and returns the connection string
func setupPostgresE(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	postgresContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("contraforge"),
		postgres.WithUsername("contraforge"),
		postgres.WithPassword("contraforge"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = postgresContainer.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get postgres connection string: %w", err)
	}

	return postgresContainer, connString, nil
}

// forgePath returns the forge binary on PATH, or a path that does not
// exist so toolchain calls fail fast.
func forgePath(sandboxRoot string) (string, bool) {
	if path, err := exec.LookPath("forge"); err == nil {
		return path, true
	}
	return filepath.Join(sandboxRoot, "no-forge", "forge"), false
}

// startServerE starts the contraforge server in-process against Postgres
func startServerE(connString, explorerURL, sandboxRoot string) (*httptest.Server, storage.Store, bool, error) {
	forge, available := forgePath(sandboxRoot)

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:          8080,
			Host:          "0.0.0.0",
			MaxBodySizeMB: 5,
		},
		Storage: config.StorageConfig{
			Enabled: true,
			Type:    "postgres",
			Postgres: config.PostgresConfig{
				URL: connString,
			},
		},
		Cache:     config.CacheConfig{Enabled: false},
		Logging:   config.LoggingConfig{Level: "debug", Format: "text"},
		RateLimit: config.RateLimitConfig{Enabled: false, MaxConcurrent: 4},
		Proxy:     config.ProxyConfig{TrustProxy: false},
		Toolchain: config.ToolchainConfig{
			ForgePath:              forge,
			LibsPath:               os.Getenv("CONTRAFORGE_E2E_LIBS"),
			TimeoutSeconds:         120,
			DefaultCompilerVersion: "0.8.20",
			MaxSourceKB:            256,
		},
		Sandbox: config.SandboxConfig{
			Root:                 sandboxRoot,
			MaxAgeMinutes:        30,
			SweepIntervalMinutes: 10,
		},
		Verifier: config.VerifierConfig{
			APIURL:              explorerURL,
			APIKey:              "e2e-key",
			PollAttempts:        3,
			PollIntervalSeconds: 1,
			TestnetChainID:      5003,
			MainnetChainID:      5000,
		},
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to create store: %w", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		store.Close()
		return nil, nil, false, fmt.Errorf("failed to run migrations: %w", err)
	}

	srv, err := server.New(cfg, store, cache.Noop{}, logger)
	if err != nil {
		store.Close()
		return nil, nil, false, fmt.Errorf("failed to create server: %w", err)
	}

	return httptest.NewServer(srv.Handler()), store, available, nil
}

// newClient creates a new API client for the test server
func newClient(testServer *httptest.Server) *client.Client {
	return client.New(testServer.URL)
}

func requireForge(t *testing.T) {
	t.Helper()
	if !testCtx.ForgeAvailable {
		t.Skip("forge not on PATH")
	}
}

// get performs a plain GET against the test server
func get(t *testing.T, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, testCtx.TestServer.URL+path, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// assertHTTPError asserts that an error is an APIError with the expected code
func assertHTTPError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	require.Error(t, err, "Expected an error")
	apiErr, ok := err.(*client.APIError)
	require.True(t, ok, "Error should be an APIError")
	require.Equal(t, expectedCode, apiErr.Code, "Error code mismatch")
}
