package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pendergraft/contraforge/internal/cache"
	"github.com/pendergraft/contraforge/internal/chains"
	"github.com/pendergraft/contraforge/internal/compliance"
	"github.com/pendergraft/contraforge/internal/observability/metrics"
	"github.com/pendergraft/contraforge/internal/storage"
	"github.com/pendergraft/contraforge/internal/validation"
)

// Common errors returned by the build service.
var (
	ErrInvalidRequest  = errors.New("invalid build request")
	ErrNotFound        = errors.New("build not found")
	ErrHistoryDisabled = errors.New("build history is not enabled")
)

// DefaultCompilerVersion is used when a request names no compiler version
const DefaultCompilerVersion = "0.8.20"

// maxStoredErrorBytes bounds the diagnostic kept in build history
const maxStoredErrorBytes = 4096

// Service defines the build operations exposed to transports.
type Service interface {
	// Compile compiles a single-file contract. Compilation failures are
	// reported in the result; errors are reserved for invalid requests.
	Compile(ctx context.Context, req CompileRequest) (*chains.CompilationResult, error)

	// RunTests compiles a contract with its test file and runs the suite.
	RunTests(ctx context.Context, req TestRequest) (*chains.TestOutcome, error)

	// Score scores a JSON ABI (or artifact) for RWA compliance signatures.
	Score(ctx context.Context, abi json.RawMessage) (*compliance.Report, error)

	// Get retrieves a recorded build.
	Get(ctx context.Context, id string) (*Build, error)

	// List lists recorded builds, newest first.
	List(ctx context.Context, filter ListFilter, pagination PaginationParams) (*ListResult, error)
}

// BuildStore defines the storage operations needed by the builds domain.
type BuildStore interface {
	RecordBuild(ctx context.Context, b *storage.Build) error
	GetBuild(ctx context.Context, id string) (*storage.Build, error)
	ListBuilds(ctx context.Context, filter storage.BuildFilter, pagination storage.PaginationParams) (*storage.PaginatedResult[storage.Build], error)
}

// Options configures the build service.
type Options struct {
	DefaultCompilerVersion string
	MaxSourceBytes         int         // 0 = unbounded
	Cache                  cache.Cache // nil disables compile caching
	Store                  BuildStore  // nil disables build history
	Logger                 *slog.Logger
}

type service struct {
	builder         chains.Builder
	compilerVersion string
	maxSourceBytes  int
	cache           cache.Cache
	store           BuildStore
	logger          *slog.Logger
}

// NewService creates a new build service around a builder.
func NewService(builder chains.Builder, opts Options) *service {
	s := &service{
		builder:         builder,
		compilerVersion: opts.DefaultCompilerVersion,
		maxSourceBytes:  opts.MaxSourceBytes,
		cache:           opts.Cache,
		store:           opts.Store,
		logger:          opts.Logger,
	}
	if s.compilerVersion == "" {
		s.compilerVersion = DefaultCompilerVersion
	}
	if s.cache == nil {
		s.cache = cache.Noop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Compile validates the request, serves it from the cache when possible,
// and otherwise delegates to the builder.
func (s *service) Compile(ctx context.Context, req CompileRequest) (*chains.CompilationResult, error) {
	version, err := s.validate(req.ContractName, req.SourceCode, req.CompilerVersion)
	if err != nil {
		return nil, err
	}

	creq := chains.CompileRequest{
		SourceCode:      req.SourceCode,
		ContractName:    req.ContractName,
		CompilerVersion: version,
	}
	key := cache.CompileKey(version, req.ContractName, req.SourceCode)

	start := time.Now()
	if result, ok := s.cached(ctx, key); ok {
		s.record(ctx, storage.KindCompile, creq, result.Success, result.Error, 0, 0, true, time.Since(start))
		return result, nil
	}

	result := s.builder.Compile(ctx, creq)
	elapsed := time.Since(start)
	metrics.Build(storage.KindCompile, buildStatus(result.Success), elapsed)

	// Only deterministic outcomes are cached; failures may be environmental
	if result.Success {
		s.remember(ctx, key, result)
	}
	s.record(ctx, storage.KindCompile, creq, result.Success, result.Error, 0, 0, false, elapsed)
	return result, nil
}

// RunTests validates the request and runs the test suite through the builder.
func (s *service) RunTests(ctx context.Context, req TestRequest) (*chains.TestOutcome, error) {
	version, err := s.validate(req.ContractName, req.SourceCode, req.CompilerVersion)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateSourceCode(req.TestCode, s.maxSourceBytes); err != nil {
		return nil, fmt.Errorf("%w: test %v", ErrInvalidRequest, err)
	}

	treq := chains.TestRequest{
		SourceCode:      req.SourceCode,
		ContractName:    req.ContractName,
		TestCode:        req.TestCode,
		CompilerVersion: version,
	}

	start := time.Now()
	outcome := s.builder.Test(ctx, treq)
	elapsed := time.Since(start)
	metrics.Build(storage.KindTest, buildStatus(outcome.Success), elapsed)

	creq := chains.CompileRequest{SourceCode: req.SourceCode, ContractName: req.ContractName, CompilerVersion: version}
	s.record(ctx, storage.KindTest, creq, outcome.Success, outcome.Error, outcome.Passed, outcome.Failed, false, elapsed)
	return outcome, nil
}

// Score decodes an ABI and scores it.
func (s *service) Score(ctx context.Context, abi json.RawMessage) (*compliance.Report, error) {
	entries, err := compliance.DecodeABI(abi)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	report := compliance.Score(entries)
	return &report, nil
}

// Get retrieves a recorded build.
func (s *service) Get(ctx context.Context, id string) (*Build, error) {
	if s.store == nil {
		return nil, ErrHistoryDisabled
	}
	b, err := s.store.GetBuild(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting build: %w", err)
	}
	out := fromStorage(*b)
	return &out, nil
}

// List lists recorded builds, newest first.
func (s *service) List(ctx context.Context, filter ListFilter, pagination PaginationParams) (*ListResult, error) {
	if s.store == nil {
		return nil, ErrHistoryDisabled
	}
	result, err := s.store.ListBuilds(ctx,
		storage.BuildFilter{Kind: filter.Kind, ContractName: filter.ContractName, Success: filter.Success},
		storage.PaginationParams{Limit: pagination.Limit, Cursor: pagination.Cursor},
	)
	if errors.Is(err, storage.ErrInvalidCursor) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err != nil {
		return nil, fmt.Errorf("listing builds: %w", err)
	}

	builds := make([]Build, 0, len(result.Data))
	for _, b := range result.Data {
		builds = append(builds, fromStorage(b))
	}
	return &ListResult{Builds: builds, HasMore: result.HasMore, NextCursor: result.NextCursor}, nil
}

// validate checks the shared request fields and returns the effective compiler version.
func (s *service) validate(name, source, version string) (string, error) {
	if err := validation.ValidateContractName(name); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := validation.ValidateSourceCode(source, s.maxSourceBytes); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if strings.TrimSpace(version) == "" {
		version = s.compilerVersion
	}
	if err := validation.ValidateCompilerVersion(version); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return validation.NormalizeVersion(version), nil
}

func (s *service) cached(ctx context.Context, key string) (*chains.CompilationResult, bool) {
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			metrics.CompileCache("miss")
		} else {
			metrics.CompileCache("error")
			s.logger.Warn("compile cache lookup failed", "error", err)
		}
		return nil, false
	}

	var result chains.CompilationResult
	if err := json.Unmarshal(data, &result); err != nil {
		metrics.CompileCache("error")
		s.logger.Warn("discarding corrupt compile cache entry", "key", key, "error", err)
		return nil, false
	}
	metrics.CompileCache("hit")
	return &result, true
}

func (s *service) remember(ctx context.Context, key string, result *chains.CompilationResult) {
	data, err := json.Marshal(result)
	if err != nil {
		s.logger.Warn("encoding compile cache entry", "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, data); err != nil {
		s.logger.Warn("compile cache store failed", "error", err)
	}
}

// record writes build history. It never fails the build.
func (s *service) record(ctx context.Context, kind string, req chains.CompileRequest, success bool, errMsg string, passed, failed int, cached bool, elapsed time.Duration) {
	if s.store == nil {
		return
	}
	if len(errMsg) > maxStoredErrorBytes {
		errMsg = strings.ToValidUTF8(errMsg[:maxStoredErrorBytes], "")
	}
	b := &storage.Build{
		Kind:            kind,
		ContractName:    req.ContractName,
		CompilerVersion: req.CompilerVersion,
		SourceHash:      sourceHash(req.SourceCode),
		Success:         success,
		Error:           errMsg,
		Passed:          passed,
		Failed:          failed,
		Cached:          cached,
		DurationMs:      elapsed.Milliseconds(),
	}
	if err := s.store.RecordBuild(context.WithoutCancel(ctx), b); err != nil {
		s.logger.Warn("recording build", "kind", kind, "contract", req.ContractName, "error", err)
	}
}

func sourceHash(source string) string {
	h := sha256.Sum256([]byte(source))
	return hex.EncodeToString(h[:])
}

func buildStatus(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
