//go:build e2e

package e2e

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/contraforge/internal/storage"
)

// TestPostgresStore exercises the Postgres store directly
func TestPostgresStore(t *testing.T) {
	ctx := context.Background()
	store := testCtx.Store

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, store.Ping(ctx))
	})

	t.Run("migrate is idempotent", func(t *testing.T) {
		require.NoError(t, store.Migrate(ctx))
	})

	t.Run("builds round trip and filter", func(t *testing.T) {
		name := fmt.Sprintf("Store%d", time.Now().UnixNano())
		ok := &storage.Build{Kind: storage.KindTest, ContractName: name, CompilerVersion: "0.8.20",
			SourceHash: "abc", Success: true, Passed: 4, DurationMs: 1200}
		bad := &storage.Build{Kind: storage.KindTest, ContractName: name, CompilerVersion: "0.8.20",
			SourceHash: "abc", Error: "1 test(s) failed", Passed: 3, Failed: 1}
		require.NoError(t, store.RecordBuild(ctx, ok))
		require.NoError(t, store.RecordBuild(ctx, bad))
		assert.NotEmpty(t, ok.ID)
		assert.False(t, ok.CreatedAt.IsZero())

		got, err := store.GetBuild(ctx, ok.ID)
		require.NoError(t, err)
		assert.Equal(t, 4, got.Passed)
		assert.Equal(t, int64(1200), got.DurationMs)

		failed := false
		result, err := store.ListBuilds(ctx, storage.BuildFilter{ContractName: name, Success: &failed}, storage.PaginationParams{})
		require.NoError(t, err)
		require.Len(t, result.Data, 1)
		assert.Equal(t, bad.ID, result.Data[0].ID)
		assert.Equal(t, "1 test(s) failed", result.Data[0].Error)
	})

	t.Run("unknown and malformed build ids", func(t *testing.T) {
		for _, id := range []string{"00000000-0000-0000-0000-000000000000", "not-a-uuid"} {
			_, err := store.GetBuild(ctx, id)
			assert.True(t, errors.Is(err, storage.ErrNotFound), "id %s: %v", id, err)
		}
	})

	t.Run("invalid build kind", func(t *testing.T) {
		err := store.RecordBuild(ctx, &storage.Build{Kind: "deploy", ContractName: "Token"})
		assert.ErrorIs(t, err, storage.ErrInvalidRecord)
	})

	t.Run("verifications are keyed by lower-case address", func(t *testing.T) {
		address := "0xABCDEF0000000000000000000000000000000001"
		require.NoError(t, store.RecordVerification(ctx, &storage.Verification{
			GUID: "g-1", Network: "mainnet", ChainID: 5000, Address: address,
			ContractName: "Token", State: "verified", Attempts: 2,
		}))

		result, err := store.ListVerifications(ctx, storage.VerificationFilter{Address: address}, storage.PaginationParams{})
		require.NoError(t, err)
		require.Len(t, result.Data, 1)
		assert.Equal(t, "0xabcdef0000000000000000000000000000000001", result.Data[0].Address)
		assert.Equal(t, int64(5000), result.Data[0].ChainID)

		result, err = store.ListVerifications(ctx, storage.VerificationFilter{Address: address, Network: "testnet"}, storage.PaginationParams{})
		require.NoError(t, err)
		assert.Empty(t, result.Data)
	})

	t.Run("invalid cursor", func(t *testing.T) {
		_, err := store.ListBuilds(ctx, storage.BuildFilter{}, storage.PaginationParams{Cursor: "x"})
		assert.ErrorIs(t, err, storage.ErrInvalidCursor)
	})
}
