package probe

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

//go:generate mockgen -destination=mocks/mock_executor.go -package=mocks github.com/anstrom/tellix/internal/probe Executor

const (
	// defaultOutputLimit caps how much stdout and stderr is kept in memory.
	// Results go to the output file, so stdout only matters for help text.
	defaultOutputLimit = 4 << 20

	// waitDelay bounds how long Wait blocks on pipes held open by
	// grandchildren after the binary itself was killed.
	waitDelay = 2 * time.Second
)

// CmdResult holds the captured output of a finished process.
type CmdResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Executor runs an external program with an argument vector. No shell is involved.
type Executor interface {
	Run(ctx context.Context, name string, args ...string) (*CmdResult, error)
}

// CommandExecutor runs programs with os/exec.
type CommandExecutor struct {
	// OutputLimit caps each of stdout and stderr. Zero uses the default.
	OutputLimit int
}

// NewCommandExecutor returns an executor with default limits.
func NewCommandExecutor() *CommandExecutor {
	return &CommandExecutor{OutputLimit: defaultOutputLimit}
}

// Run starts the program and waits for it. The returned result is non-nil
// whenever the process was started. A context deadline is reported as
// context.DeadlineExceeded regardless of how the process died.
func (e *CommandExecutor) Run(ctx context.Context, name string, args ...string) (*CmdResult, error) {
	limit := e.OutputLimit
	if limit <= 0 {
		limit = defaultOutputLimit
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = waitDelay
	stdout := &cappedBuffer{limit: limit}
	stderr := &cappedBuffer{limit: limit}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()

	result := &CmdResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
	}

	if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
		return result, ctxErr
	}

	return result, err
}

// cappedBuffer keeps the first limit bytes written and silently drops the rest,
// so a chatty binary can neither block on a full pipe nor exhaust memory.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
			b.truncated = true
		} else {
			b.buf.Write(p)
		}
	} else if len(p) > 0 {
		b.truncated = true
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + "...(truncated)"
	}
	return b.buf.String()
}
