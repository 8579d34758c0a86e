package probe

import (
	"context"
	stderrors "errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript creates an executable shell script in a temp directory.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "stub.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0700))
	return path
}

func TestCommandExecutor_Run(t *testing.T) {
	t.Run("captures output", func(t *testing.T) {
		script := writeScript(t, `echo "out $1"; echo "err $2" >&2`)

		res, err := NewCommandExecutor().Run(context.Background(), script, "a", "b")
		require.NoError(t, err)
		assert.Equal(t, "out a\n", res.Stdout)
		assert.Equal(t, "err b\n", res.Stderr)
		assert.Equal(t, 0, res.ExitCode)
		assert.Positive(t, res.Duration)
	})

	t.Run("arguments are not shell interpreted", func(t *testing.T) {
		script := writeScript(t, `printf '%s' "$1"`)

		res, err := NewCommandExecutor().Run(context.Background(), script, "$(id); `id`")
		require.NoError(t, err)
		assert.Equal(t, "$(id); `id`", res.Stdout)
	})

	t.Run("non-zero exit", func(t *testing.T) {
		script := writeScript(t, `echo "boom" >&2; exit 3`)

		res, err := NewCommandExecutor().Run(context.Background(), script)
		require.Error(t, err)
		var exitErr *exec.ExitError
		assert.True(t, stderrors.As(err, &exitErr))
		assert.Equal(t, 3, res.ExitCode)
		assert.Equal(t, "boom\n", res.Stderr)
	})

	t.Run("binary not found", func(t *testing.T) {
		_, err := NewCommandExecutor().Run(context.Background(), "tellix-no-such-binary-xyz")
		require.Error(t, err)
		assert.True(t, stderrors.Is(err, exec.ErrNotFound))
	})

	t.Run("deadline exceeded", func(t *testing.T) {
		script := writeScript(t, `exec sleep 5`)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := NewCommandExecutor().Run(ctx, script)
		require.Error(t, err)
		assert.True(t, stderrors.Is(err, context.DeadlineExceeded))
		assert.Less(t, time.Since(start), 4*time.Second)
	})

	t.Run("output is capped", func(t *testing.T) {
		script := writeScript(t, `i=0; while [ $i -lt 100 ]; do echo "0123456789"; i=$((i+1)); done`)

		exe := &CommandExecutor{OutputLimit: 32}
		res, err := exe.Run(context.Background(), script)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(res.Stdout, "...(truncated)"))
		assert.Len(t, res.Stdout, 32+len("...(truncated)"))
	})
}
