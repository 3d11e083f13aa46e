package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileKey(t *testing.T) {
	k := CompileKey("0.8.20", "Token", "contract Token {}")

	assert.True(t, strings.HasPrefix(k, compileKeyPrefix))
	assert.Len(t, strings.TrimPrefix(k, compileKeyPrefix), 64)
	assert.Equal(t, k, CompileKey("0.8.20", "Token", "contract Token {}"), "key must be deterministic")

	tests := []struct {
		name                   string
		version, contract, src string
	}{
		{"different version", "0.8.24", "Token", "contract Token {}"},
		{"different name", "0.8.20", "Vault", "contract Token {}"},
		{"different source", "0.8.20", "Token", "contract Token { uint x; }"},
		{"shifted boundary", "0.8.2", "0Token", "contract Token {}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, k, CompileKey(tt.version, tt.contract, tt.src))
		})
	}
}

func TestNoop(t *testing.T) {
	var c Cache = Noop{}
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v")))
	_, err := c.Get(ctx, "k")
	assert.True(t, errors.Is(err, ErrMiss))
	assert.NoError(t, c.Close())
}

func TestNewRedis_InvalidURL(t *testing.T) {
	_, err := NewRedis(context.Background(), "not-a-url", time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing url")
}

func TestRedis_UnreachableServer(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := NewRedisWithClient(client, time.Minute)
	defer c.Close()

	_, err := c.Get(context.Background(), "k")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMiss), "connection errors are not misses")

	err = c.Set(context.Background(), "k", []byte("v"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: set")
}
