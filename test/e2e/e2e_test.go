//go:build e2e

package e2e

import (
	"context"
	"flag"
	"log"
	"net/http/httptest"
	"os"
	"testing"
)

var testCtx *TestContext

func TestMain(m *testing.M) {
	flag.Parse()

	// Check if Docker is available (testcontainers requirement)
	if os.Getenv("DOCKER_HOST") == "" && os.Getenv("TESTCONTAINERS_DOCKER_SOCKET") == "" {
		log.Println("Using default Docker socket for testcontainers")
	}

	os.Exit(run(m))
}

// run owns the fixtures so deferred cleanup happens before os.Exit
func run(m *testing.M) int {
	ctx := context.Background()
	testCtx = &TestContext{}

	// 1. Start Postgres container
	log.Println("Starting Postgres container...")
	var err error
	testCtx.PostgresContainer, testCtx.ConnString, err = setupPostgresE(ctx)
	if err != nil {
		log.Printf("Failed to start postgres: %v", err)
		return 1
	}
	defer func() {
		if err := testCtx.PostgresContainer.Terminate(ctx); err != nil {
			log.Printf("Failed to terminate postgres container: %v", err)
		}
	}()
	log.Println("Postgres container started")

	// 2. Fake block explorer
	testCtx.Explorer = newFakeExplorer()
	testCtx.ExplorerServer = httptest.NewServer(testCtx.Explorer)
	defer testCtx.ExplorerServer.Close()

	// 3. Start test server
	testCtx.SandboxRoot, err = os.MkdirTemp("", "contraforge-e2e-")
	if err != nil {
		log.Printf("Failed to create sandbox root: %v", err)
		return 1
	}
	defer os.RemoveAll(testCtx.SandboxRoot)

	log.Println("Starting test server...")
	testCtx.TestServer, testCtx.Store, testCtx.ForgeAvailable, err = startServerE(
		testCtx.ConnString, testCtx.ExplorerServer.URL, testCtx.SandboxRoot)
	if err != nil {
		log.Printf("Failed to start server: %v", err)
		return 1
	}
	defer testCtx.Store.Close()
	defer testCtx.TestServer.Close()
	log.Println("Test server started at:", testCtx.TestServer.URL, "forge available:", testCtx.ForgeAvailable)

	log.Println("Running E2E tests...")
	exitCode := m.Run()

	log.Println("E2E tests completed with exit code:", exitCode)
	return exitCode
}
