// Package domain contains the business logic for compiling and testing contracts.
package domain

import (
	"time"

	"github.com/pendergraft/contraforge/internal/storage"
)

// CompileRequest is a request to compile a single-file contract.
type CompileRequest struct {
	SourceCode      string `json:"sourceCode"`
	ContractName    string `json:"contractName"`
	CompilerVersion string `json:"compilerVersion,omitempty"`
}

// TestRequest is a request to run a test file against a contract.
type TestRequest struct {
	SourceCode      string `json:"sourceCode"`
	ContractName    string `json:"contractName"`
	TestCode        string `json:"testCode"`
	CompilerVersion string `json:"compilerVersion,omitempty"`
}

// Build is a recorded compile or test invocation.
type Build struct {
	ID              string    `json:"id"`
	Kind            string    `json:"kind"`
	ContractName    string    `json:"contractName"`
	CompilerVersion string    `json:"compilerVersion"`
	SourceHash      string    `json:"sourceHash"`
	Success         bool      `json:"success"`
	Error           string    `json:"error,omitempty"`
	Passed          int       `json:"passed"`
	Failed          int       `json:"failed"`
	Cached          bool      `json:"cached"`
	DurationMs      int64     `json:"durationMs"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ListFilter contains filter options for listing builds.
type ListFilter struct {
	Kind         string
	ContractName string
	Success      *bool
}

// PaginationParams contains pagination options.
type PaginationParams struct {
	Limit  int
	Cursor string
}

// ListResult is the result of listing builds.
type ListResult struct {
	Builds     []Build `json:"data"`
	HasMore    bool    `json:"hasMore"`
	NextCursor string  `json:"nextCursor,omitempty"`
}

func fromStorage(b storage.Build) Build {
	return Build{
		ID:              b.ID,
		Kind:            b.Kind,
		ContractName:    b.ContractName,
		CompilerVersion: b.CompilerVersion,
		SourceHash:      b.SourceHash,
		Success:         b.Success,
		Error:           b.Error,
		Passed:          b.Passed,
		Failed:          b.Failed,
		Cached:          b.Cached,
		DurationMs:      b.DurationMs,
		CreatedAt:       b.CreatedAt,
	}
}
