package domain

import (
	"context"
	"log/slog"
	"time"
)

// loggingService is the interface required for logging middleware.
type loggingService interface {
	Verify(ctx context.Context, req VerifyRequest) (*Session, error)
	Status(ctx context.Context, network, guid string) (*Session, error)
	Networks() map[string]int
}

// LoggingMiddleware returns a service middleware that logs all operations.
func LoggingMiddleware(logger *slog.Logger) func(loggingService) *loggingMiddleware {
	return func(next loggingService) *loggingMiddleware {
		return &loggingMiddleware{
			next:   next,
			logger: logger,
		}
	}
}

type loggingMiddleware struct {
	next   loggingService
	logger *slog.Logger
}

func (m *loggingMiddleware) Verify(ctx context.Context, req VerifyRequest) (*Session, error) {
	start := time.Now()
	sess, err := m.next.Verify(ctx, req)
	attrs := []any{
		"address", req.ContractAddress,
		"contract", req.ContractName,
		"network", req.Network,
		"duration", time.Since(start),
		"error", err,
	}
	if sess != nil {
		attrs = append(attrs, "guid", sess.GUID, "state", sess.State, "attempts", sess.Attempts)
	}
	m.logger.Info("Verify", attrs...)
	return sess, err
}

func (m *loggingMiddleware) Status(ctx context.Context, network, guid string) (*Session, error) {
	start := time.Now()
	sess, err := m.next.Status(ctx, network, guid)
	attrs := []any{
		"network", network,
		"guid", guid,
		"duration", time.Since(start),
		"error", err,
	}
	if sess != nil {
		attrs = append(attrs, "state", sess.State)
	}
	m.logger.Debug("Status", attrs...)
	return sess, err
}

func (m *loggingMiddleware) Networks() map[string]int {
	return m.next.Networks()
}
