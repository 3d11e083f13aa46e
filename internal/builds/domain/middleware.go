package domain

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pendergraft/contraforge/internal/chains"
	"github.com/pendergraft/contraforge/internal/compliance"
)

// LoggingMiddleware returns a service middleware that logs all operations.
func LoggingMiddleware(logger *slog.Logger) func(Service) Service {
	return func(next Service) Service {
		return &loggingMiddleware{
			next:   next,
			logger: logger,
		}
	}
}

type loggingMiddleware struct {
	next   Service
	logger *slog.Logger
}

func (m *loggingMiddleware) Compile(ctx context.Context, req CompileRequest) (*chains.CompilationResult, error) {
	start := time.Now()
	result, err := m.next.Compile(ctx, req)
	attrs := []any{
		"contract", req.ContractName,
		"compiler_version", req.CompilerVersion,
		"duration", time.Since(start),
		"error", err,
	}
	if result != nil {
		attrs = append(attrs, "success", result.Success)
	}
	m.logger.Info("Compile", attrs...)
	return result, err
}

func (m *loggingMiddleware) RunTests(ctx context.Context, req TestRequest) (*chains.TestOutcome, error) {
	start := time.Now()
	outcome, err := m.next.RunTests(ctx, req)
	attrs := []any{
		"contract", req.ContractName,
		"compiler_version", req.CompilerVersion,
		"duration", time.Since(start),
		"error", err,
	}
	if outcome != nil {
		attrs = append(attrs, "success", outcome.Success, "passed", outcome.Passed, "failed", outcome.Failed)
	}
	m.logger.Info("RunTests", attrs...)
	return outcome, err
}

func (m *loggingMiddleware) Score(ctx context.Context, abi json.RawMessage) (*compliance.Report, error) {
	start := time.Now()
	report, err := m.next.Score(ctx, abi)
	attrs := []any{"duration", time.Since(start), "error", err}
	if report != nil {
		attrs = append(attrs, "compliant", report.Compliant, "confidence", report.Confidence)
	}
	m.logger.Debug("Score", attrs...)
	return report, err
}

func (m *loggingMiddleware) Get(ctx context.Context, id string) (*Build, error) {
	start := time.Now()
	b, err := m.next.Get(ctx, id)
	m.logger.Debug("Get",
		"id", id,
		"duration", time.Since(start),
		"error", err,
	)
	return b, err
}

func (m *loggingMiddleware) List(ctx context.Context, filter ListFilter, pagination PaginationParams) (*ListResult, error) {
	start := time.Now()
	result, err := m.next.List(ctx, filter, pagination)
	m.logger.Debug("List",
		"kind", filter.Kind,
		"contract", filter.ContractName,
		"limit", pagination.Limit,
		"duration", time.Since(start),
		"error", err,
	)
	return result, err
}
