// Package storage persists build and verification records.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pendergraft/contraforge/internal/config"
)

// Build kinds
const (
	KindCompile = "compile"
	KindTest    = "test"
)

// BuildStore handles build record operations
type BuildStore interface {
	RecordBuild(ctx context.Context, b *Build) error
	GetBuild(ctx context.Context, id string) (*Build, error)
	ListBuilds(ctx context.Context, filter BuildFilter, pagination PaginationParams) (*PaginatedResult[Build], error)
}

// VerificationStore handles verification record operations
type VerificationStore interface {
	RecordVerification(ctx context.Context, v *Verification) error
	ListVerifications(ctx context.Context, filter VerificationFilter, pagination PaginationParams) (*PaginatedResult[Verification], error)
}

// Store combines all storage interfaces with lifecycle methods.
// Domain services define their own minimal interfaces based on their actual usage.
type Store interface {
	BuildStore
	VerificationStore

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
}

// Build is one compile or test invocation
type Build struct {
	ID              string
	Kind            string
	ContractName    string
	CompilerVersion string
	SourceHash      string
	Success         bool
	Error           string
	Passed          int
	Failed          int
	Cached          bool
	DurationMs      int64
	CreatedAt       time.Time
}

// Verification is the final state of one explorer verification session
type Verification struct {
	ID              string
	GUID            string
	Network         string
	ChainID         int64
	Address         string
	ContractName    string
	CompilerVersion string
	State           string
	Message         string
	Attempts        int
	CreatedAt       time.Time
}

// BuildFilter contains filter options for listing builds
type BuildFilter struct {
	Kind         string
	ContractName string
	Success      *bool
}

// VerificationFilter contains filter options for listing verifications
type VerificationFilter struct {
	Address string
	Network string
	GUID    string
}

// PaginationParams contains pagination options
type PaginationParams struct {
	Limit  int
	Cursor string
}

// PaginatedResult contains paginated results
type PaginatedResult[T any] struct {
	Data       []T
	HasMore    bool
	NextCursor string
}

// New creates a new store based on configuration
func New(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path, logger)
	case "postgres":
		return NewPostgresStore(cfg.Postgres.URL, logger)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
