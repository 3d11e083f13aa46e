// Package toolchain invokes external build tools as subprocesses.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

const (
	// maxOutputBytes caps captured stdout/stderr per stream
	maxOutputBytes = 8 * 1024 * 1024

	outputTruncatedMsg = "\n... output truncated ..."
)

// ErrTimeout is returned when a command exceeds the runner's timeout
var ErrTimeout = errors.New("toolchain invocation timed out")

// Command describes a subprocess invocation
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string // appended to the parent environment
}

// String renders the command line for logs
func (c Command) String() string {
	s := c.Name
	for _, a := range c.Args {
		s += " " + a
	}
	return s
}

// Result is the captured outcome of a command that ran to completion.
// A non-zero ExitCode is not an error.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner runs a command and captures its output.
// Errors are reserved for commands that could not start or did not finish.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct {
	timeout time.Duration
	logger  *slog.Logger
}

// NewExecRunner creates a runner. A zero timeout disables the internal bound.
func NewExecRunner(timeout time.Duration, logger *slog.Logger) *ExecRunner {
	return &ExecRunner{timeout: timeout, logger: logger}
}

// Run executes the command, killing it when the timeout or ctx expires
func (r *ExecRunner) Run(ctx context.Context, c Command) (*Result, error) {
	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	// #nosec G204 -- binary path comes from server configuration
	cmd := exec.CommandContext(runCtx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(cmd.Environ(), c.Env...)
	}
	// Don't wait forever on pipes held open by grandchildren after a kill
	cmd.WaitDelay = 5 * time.Second

	stdout := &limitedBuffer{limit: maxOutputBytes}
	stderr := &limitedBuffer{limit: maxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	r.logger.Debug("toolchain command finished",
		"command", c.String(),
		"duration", elapsed,
		"error", err,
	)

	if runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return nil, fmt.Errorf("%w after %s: %s", ErrTimeout, r.timeout, c.String())
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: elapsed,
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, fmt.Errorf("starting %s: %w", c.Name, err)
	}
	return result, nil
}

// limitedBuffer stops accepting writes after limit bytes
type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (lb *limitedBuffer) Write(p []byte) (int, error) {
	if lb.truncated {
		return len(p), nil
	}
	remaining := lb.limit - lb.buf.Len()
	if len(p) > remaining {
		lb.truncated = true
		lb.buf.Write(p[:remaining])
		return len(p), nil
	}
	return lb.buf.Write(p)
}

func (lb *limitedBuffer) String() string {
	if lb.truncated {
		return lb.buf.String() + outputTruncatedMsg
	}
	return lb.buf.String()
}
