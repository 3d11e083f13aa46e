package toolchain

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunner_CapturesOutput(t *testing.T) {
	requireShell(t)
	r := NewExecRunner(10*time.Second, testLogger())

	result, err := r.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo out; echo err 1>&2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "out\n", result.Stdout)
	assert.Equal(t, "err\n", result.Stderr)
}

func TestExecRunner_NonZeroExitIsNotAnError(t *testing.T) {
	requireShell(t)
	r := NewExecRunner(10*time.Second, testLogger())

	result, err := r.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo 'Error: ParserError' 1>&2; exit 3"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.ExitCode)
	assert.Contains(t, result.Stderr, "ParserError")
}

func TestExecRunner_WorkingDirAndEnv(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	r := NewExecRunner(10*time.Second, testLogger())

	result, err := r.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "pwd; echo $CONTRAFORGE_TEST"},
		Dir:  dir,
		Env:  []string{"CONTRAFORGE_TEST=yes"},
	})
	require.NoError(t, err)
	assert.Contains(t, result.Stdout, "yes")
}

func TestExecRunner_Timeout(t *testing.T) {
	requireShell(t)
	r := NewExecRunner(100*time.Millisecond, testLogger())

	start := time.Now()
	_, err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "sleep 5"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestExecRunner_ContextCancelled(t *testing.T) {
	requireShell(t)
	r := NewExecRunner(0, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := r.Run(ctx, Command{Name: "sh", Args: []string{"-c", "sleep 5"}})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestExecRunner_MissingBinary(t *testing.T) {
	r := NewExecRunner(time.Second, testLogger())

	_, err := r.Run(context.Background(), Command{Name: "/nonexistent/forge", Args: []string{"build"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "starting /nonexistent/forge")
}

func TestLimitedBuffer(t *testing.T) {
	lb := &limitedBuffer{limit: 4}

	n, err := lb.Write([]byte("ab"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = lb.Write([]byte("cdef"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = lb.Write([]byte("gh"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, "abcd"+outputTruncatedMsg, lb.String())
}

func TestCommand_String(t *testing.T) {
	c := Command{Name: "forge", Args: []string{"build", "--root", "/tmp/x", "--force"}}
	assert.Equal(t, "forge build --root /tmp/x --force", c.String())
}
