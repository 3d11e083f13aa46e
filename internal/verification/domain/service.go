package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pendergraft/contraforge/internal/chains/evm"
	"github.com/pendergraft/contraforge/internal/observability/metrics"
	"github.com/pendergraft/contraforge/internal/validation"
	"github.com/pendergraft/contraforge/internal/verification/explorer"
)

// Common errors returned by the verification service.
var (
	ErrInvalidRequest = errors.New("invalid verification request")
	ErrUnknownNetwork = errors.New("unknown network")
)

// Defaults applied when Options leave them unset
const (
	DefaultPollAttempts    = 10
	DefaultPollInterval    = 3 * time.Second
	DefaultCompilerVersion = "0.8.20"
)

// Explorer is the verifier API the service talks to.
type Explorer interface {
	Submit(ctx context.Context, req explorer.SubmitRequest) (*explorer.Response, error)
	CheckStatus(ctx context.Context, chainID int, guid string) (*explorer.Response, error)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the production Sleeper.
func ContextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Options configures the verification service.
type Options struct {
	Networks               map[string]int // network name -> chain id
	PollAttempts           int
	PollInterval           time.Duration
	DefaultCompilerVersion string
	Sleep                  Sleeper
	Logger                 *slog.Logger
}

type service struct {
	explorer        Explorer
	networks        map[string]int
	attempts        int
	interval        time.Duration
	compilerVersion string
	sleep           Sleeper
	logger          *slog.Logger
}

// NewService creates a new verification service.
func NewService(exp Explorer, opts Options) *service {
	s := &service{
		explorer:        exp,
		networks:        opts.Networks,
		attempts:        opts.PollAttempts,
		interval:        opts.PollInterval,
		compilerVersion: opts.DefaultCompilerVersion,
		sleep:           opts.Sleep,
		logger:          opts.Logger,
	}
	if s.networks == nil {
		s.networks = map[string]int{NetworkTestnet: 5003, NetworkMainnet: 5000}
	}
	if s.attempts <= 0 {
		s.attempts = DefaultPollAttempts
	}
	if s.interval <= 0 {
		s.interval = DefaultPollInterval
	}
	if s.compilerVersion == "" {
		s.compilerVersion = DefaultCompilerVersion
	}
	if s.sleep == nil {
		s.sleep = ContextSleep
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Verify submits source to the explorer and polls until the session reaches
// a terminal state or the poll budget is exhausted.
//
// Verification outcomes (failed, timed_out) are session states, not errors.
// An error is returned only for invalid requests and context cancellation;
// in the latter case the session is returned in its last non-terminal state.
func (s *service) Verify(ctx context.Context, req VerifyRequest) (*Session, error) {
	network, chainID, err := s.resolveNetwork(req.Network)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateAddress(req.ContractAddress); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := validation.ValidateContractName(req.ContractName); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := validation.ValidateSourceCode(req.SourceCode, 0); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	version := req.CompilerVersion
	if version == "" {
		version = s.compilerVersion
	}
	if err := validation.ValidateCompilerVersion(version); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	args, err := evm.NormalizeConstructorArgs(req.ConstructorArgs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	sess := &Session{
		Network:      network,
		ChainID:      chainID,
		Address:      req.ContractAddress,
		ContractName: req.ContractName,
		State:        StateCreated,
	}

	must(sess.transition(StateSubmitting, ""))
	resp, err := s.explorer.Submit(ctx, explorer.SubmitRequest{
		ChainID:         chainID,
		Address:         req.ContractAddress,
		SourceCode:      req.SourceCode,
		ContractName:    req.ContractName,
		CompilerVersion: explorer.NormalizeCompilerVersion(version),
		ConstructorArgs: args,
	})
	if err != nil {
		if ctx.Err() != nil {
			return sess, ctx.Err()
		}
		return s.finish(sess, StateFailed, orDefault(err.Error(), messageRequestFailed)), nil
	}
	if !resp.OK() {
		return s.finish(sess, StateFailed, orDefault(resp.Result, messageSubmitFailed)), nil
	}

	sess.GUID = resp.Result
	must(sess.transition(StatePolling, ""))
	return s.poll(ctx, sess)
}

// poll checks the submission status until it settles or attempts run out.
func (s *service) poll(ctx context.Context, sess *Session) (*Session, error) {
	for sess.Attempts < s.attempts {
		if err := s.sleep(ctx, s.interval); err != nil {
			return sess, err
		}
		sess.Attempts++

		resp, err := s.explorer.CheckStatus(ctx, sess.ChainID, sess.GUID)
		if err != nil {
			if ctx.Err() != nil {
				return sess, ctx.Err()
			}
			// A flaky status endpoint does not decide the outcome
			s.logger.Warn("verification status check failed",
				"guid", sess.GUID,
				"attempt", sess.Attempts,
				"error", err,
			)
			continue
		}

		switch {
		case resp.Verified():
			return s.finish(sess, StateVerified, MessageVerified), nil
		case resp.Failed():
			return s.finish(sess, StateFailed, resp.Result), nil
		default:
			sess.Message = resp.Result
		}
	}
	return s.finish(sess, StateTimedOut, MessageTimeout), nil
}

// Status polls a previously submitted session once. A pending result is
// reported as a polling session.
func (s *service) Status(ctx context.Context, network, guid string) (*Session, error) {
	network, chainID, err := s.resolveNetwork(network)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(guid) == "" {
		return nil, fmt.Errorf("%w: guid is required", ErrInvalidRequest)
	}

	sess := &Session{GUID: guid, Network: network, ChainID: chainID, State: StatePolling, Attempts: 1}
	resp, err := s.explorer.CheckStatus(ctx, chainID, guid)
	if err != nil {
		if ctx.Err() != nil {
			return sess, ctx.Err()
		}
		sess.Message = err.Error()
		return sess, nil
	}
	switch {
	case resp.Verified():
		must(sess.transition(StateVerified, MessageVerified))
	case resp.Failed():
		must(sess.transition(StateFailed, resp.Result))
	default:
		sess.Message = resp.Result
	}
	return sess, nil
}

// Networks returns the configured network names and chain ids.
func (s *service) Networks() map[string]int {
	out := make(map[string]int, len(s.networks))
	for k, v := range s.networks {
		out[k] = v
	}
	return out
}

func (s *service) resolveNetwork(network string) (string, int, error) {
	if network == "" {
		network = NetworkTestnet
	}
	chainID, ok := s.networks[network]
	if !ok {
		return "", 0, fmt.Errorf("%w: %q", ErrUnknownNetwork, network)
	}
	return network, chainID, nil
}

func (s *service) finish(sess *Session, state State, msg string) *Session {
	must(sess.transition(state, msg))
	metrics.Verification(sess.Network, string(state), sess.Attempts)
	return sess
}

// must guards the state machine; a failure here is a programming error.
func must(err error) {
	if err != nil {
		panic(err)
	}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
