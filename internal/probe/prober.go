package probe

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/tellix/internal/config"
	"github.com/anstrom/tellix/internal/errors"
	"github.com/anstrom/tellix/internal/logging"
	"github.com/anstrom/tellix/internal/metrics"
)

const (
	defaultBinary        = "httpx"
	defaultTimeout       = 10 * time.Minute
	defaultMaxConcurrent = 4

	// stderrExcerptLimit bounds the binary's stderr embedded in error messages.
	stderrExcerptLimit = 2048
)

// Options configures a Prober.
type Options struct {
	Binary        string
	ScratchDir    string
	Timeout       time.Duration
	MaxTargets    int
	MaxConcurrent int
	DeniedFlags   []string
}

// OptionsFromConfig maps the probe configuration section onto Options.
func OptionsFromConfig(cfg config.ProbeConfig) Options {
	return Options{
		Binary:        cfg.Binary,
		ScratchDir:    cfg.ScratchDir,
		Timeout:       cfg.Timeout,
		MaxTargets:    cfg.MaxTargets,
		MaxConcurrent: cfg.MaxConcurrent,
		DeniedFlags:   cfg.DeniedFlags,
	}
}

// Request is one probe invocation.
type Request struct {
	// Newline separated targets
	Targets string

	// Flags forwarded to the binary, already tokenized
	Args []string

	// Preset the flags came from, LevelCustom for caller flags
	Level Level
}

// Result is the outcome of a successful invocation. Records hold the values
// the binary emitted. Encoding a Result compacts their whitespace.
type Result struct {
	InvocationID string            `json:"invocation_id"`
	Command      string            `json:"command"`
	Level        Level             `json:"level"`
	Targets      int               `json:"targets"`
	Records      []json.RawMessage `json:"results"`
	Duration     time.Duration     `json:"-"`
}

// Prober runs probe invocations. It is safe for concurrent use.
type Prober struct {
	opts     Options
	executor Executor
	limiter  *Limiter
	logger   *logging.Logger
	metrics  *metrics.PrometheusMetrics
}

// New creates a Prober. Zero option values fall back to defaults, a nil
// executor runs real processes and a nil logger uses the default logger.
func New(opts Options, executor Executor, logger *logging.Logger) *Prober {
	if opts.Binary == "" {
		opts.Binary = defaultBinary
	}
	if opts.ScratchDir == "" {
		opts.ScratchDir = filepath.Join(os.TempDir(), "tellix")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultMaxConcurrent
	}
	if executor == nil {
		executor = NewCommandExecutor()
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &Prober{
		opts:     opts,
		executor: executor,
		limiter:  NewLimiter(opts.MaxConcurrent),
		logger:   logger.WithComponent("probe"),
		metrics:  metrics.GetGlobalMetrics(),
	}
}

// Options returns the effective options.
func (p *Prober) Options() Options {
	return p.opts
}

// Stats reports how many invocations are running.
func (p *Prober) Stats() LimiterStats {
	return p.limiter.Stats()
}

// Close refuses further invocations.
func (p *Prober) Close() error {
	return p.limiter.Close()
}

// Probe runs the binary against req.Targets with req.Args. Target and flag
// validation happen before any filesystem access. The workspace is removed on
// every path, and on failure no partial records are returned.
func (p *Prober) Probe(ctx context.Context, req Request) (*Result, error) {
	level := req.Level
	if level == "" {
		level = LevelCustom
	}
	preset := string(level)

	targets, err := ParseTargets(req.Targets, p.opts.MaxTargets)
	if err != nil {
		p.recordFailure(preset, err)
		return nil, err
	}
	if err := ValidateArgs(req.Args, p.opts.DeniedFlags); err != nil {
		p.recordFailure(preset, err)
		return nil, err
	}

	id := uuid.New().String()
	logger := p.logger.WithInvocation(id)

	if err := p.limiter.Acquire(ctx, id); err != nil {
		p.recordFailure(preset, err)
		return nil, err
	}
	defer p.limiter.Release(id)

	p.metrics.ProbeStarted()
	defer p.metrics.ProbeFinished()
	p.metrics.AddTargets(preset, len(targets))

	start := time.Now()
	defer func() {
		p.metrics.RecordProbeDuration(preset, time.Since(start))
	}()

	logger.InfoProbe("Starting probe invocation", preset, "targets", len(targets))

	records, err := p.invoke(ctx, id, targets, req.Args, logger)
	if err != nil {
		p.recordFailure(preset, err)
		logger.ErrorProbe("Probe invocation failed", preset, err, "duration", time.Since(start))
		return nil, err
	}

	p.metrics.IncrementProbesTotal(preset, "success")
	p.metrics.AddRecords(preset, len(records))
	logger.InfoProbe("Probe invocation completed", preset,
		"records", len(records),
		"duration", time.Since(start))

	return &Result{
		InvocationID: id,
		Command:      CommandLine(p.opts.Binary, req.Args),
		Level:        level,
		Targets:      len(targets),
		Records:      records,
		Duration:     time.Since(start),
	}, nil
}

// invoke owns the workspace for the duration of one binary run.
func (p *Prober) invoke(ctx context.Context, id string, targets, args []string, logger *logging.Logger) (
	[]json.RawMessage, error) {
	ws, err := NewWorkspace(p.opts.ScratchDir, id)
	if err != nil {
		return nil, err
	}
	defer p.cleanup(ws, logger)

	if err := ws.WriteTargets(targets); err != nil {
		return nil, err
	}

	argv := BuildArgs(args, ws.TargetsPath(), ws.ResultsPath())
	logger.Debug("Executing probing binary", "binary", p.opts.Binary, "args", argv)

	runCtx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	res, err := p.executor.Run(runCtx, p.opts.Binary, argv...)
	if err != nil {
		return nil, p.classifyRunError(ctx, "Failed to execute tool", err, res)
	}

	return ReadRecords(ws.ResultsPath())
}

// Help runs the binary's own help flag. No workspace is involved.
func (p *Prober) Help(ctx context.Context) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	res, err := p.executor.Run(runCtx, p.opts.Binary, "-h")
	if err != nil {
		err = p.classifyRunError(ctx, "Failed to retrieve help", err, res)
		p.logger.Error("Help invocation failed", "error", err)
		return "", err
	}

	// Some builds print usage on stderr
	if strings.TrimSpace(res.Stdout) == "" {
		return res.Stderr, nil
	}
	return res.Stdout, nil
}

// classifyRunError maps an executor failure onto an error code. parent is
// the caller's context, used to tell our own timeout from a cancellation.
func (p *Prober) classifyRunError(parent context.Context, msg string, err error, res *CmdResult) error {
	switch {
	case stderrors.Is(err, exec.ErrNotFound), stderrors.Is(err, fs.ErrNotExist):
		return errors.WrapProbeError(errors.CodeBinaryNotFound,
			fmt.Sprintf("%s: binary %q not found", msg, p.opts.Binary), err)

	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.WrapProbeError(errors.CodeTimeout,
			fmt.Sprintf("%s: timed out after %s", msg, p.opts.Timeout), err)

	case stderrors.Is(err, context.Canceled), parent.Err() != nil:
		return errors.WrapProbeError(errors.CodeCanceled, msg+": canceled", err)
	}

	cause := err
	if res != nil {
		if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
			if len(stderr) > stderrExcerptLimit {
				stderr = stderr[len(stderr)-stderrExcerptLimit:]
			}
			cause = fmt.Errorf("%w: %s", err, stderr)
		}
	}
	return errors.WrapProbeError(errors.CodeExecutionFailed, msg, cause)
}

func (p *Prober) cleanup(ws *Workspace, logger *logging.Logger) {
	if err := ws.Remove(); err != nil {
		p.metrics.IncrementCleanupFailures()
		logger.Warn("Failed to remove workspace", "dir", ws.Dir, "error", err)
	}
}

func (p *Prober) recordFailure(preset string, err error) {
	p.metrics.IncrementProbesTotal(preset, "error")
	p.metrics.IncrementProbeErrors(preset, string(errors.GetCode(err)))
}
