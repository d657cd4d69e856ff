package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"clipper/internal/logging"
)

const (
	defaultKillGrace = 5 * time.Second
	defaultTailLines = 20
	maxStdoutBytes   = 16 << 20
)

// Command is a single subprocess invocation.
type Command struct {
	// Name labels the invocation in logs and errors ("fetch", "encode", "probe").
	Name    string
	Binary  string
	Args    []string
	Dir     string
	Timeout time.Duration
	// OnLine receives every output line. Lines are not redacted.
	OnLine func(string)
	// CaptureStdout collects stdout into ExitInfo.Stdout instead of line callbacks.
	CaptureStdout bool
}

// ExitInfo describes a successful invocation.
type ExitInfo struct {
	ExitCode int
	Duration time.Duration
	Stdout   []byte
	Tail     []string
}

// Executor runs commands. Runner is the production implementation.
type Executor interface {
	Run(ctx context.Context, cmd Command) (ExitInfo, error)
}

// Option configures a Runner.
type Option func(*Runner)

// WithKillGrace sets the delay between SIGTERM and SIGKILL.
func WithKillGrace(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.killGrace = d
		}
	}
}

// WithSecrets adds strings scrubbed from retained output.
func WithSecrets(secrets ...string) Option {
	return func(r *Runner) {
		for _, s := range secrets {
			if strings.TrimSpace(s) != "" {
				r.secrets = append(r.secrets, s)
			}
		}
	}
}

// WithLogger sets the logger used for lifecycle debug lines.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTailLines sets how many output lines are retained for diagnostics.
func WithTailLines(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.tailLines = n
		}
	}
}

// Runner launches subprocesses in isolated process groups.
type Runner struct {
	killGrace time.Duration
	tailLines int
	secrets   []string
	logger    *slog.Logger
}

// New constructs a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{
		killGrace: defaultKillGrace,
		tailLines: defaultTailLines,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes cmd and waits for it. A non-zero exit, a timeout or a
// cancelled context returns a *RunError; in every case the process group has
// been signalled before Run returns.
func (r *Runner) Run(ctx context.Context, cmd Command) (ExitInfo, error) {
	name := cmd.Name
	if name == "" {
		name = cmd.Binary
	}
	if strings.TrimSpace(cmd.Binary) == "" {
		return ExitInfo{}, &RunError{Kind: KindStart, Command: name, ExitCode: -1, Err: errors.New("binary not configured")}
	}
	if err := checkWorkDir(cmd.Dir); err != nil {
		return ExitInfo{}, &RunError{Kind: KindStart, Command: name, ExitCode: -1, Err: err}
	}

	runCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	sink := newLineSink(cmd.OnLine, r.secrets, r.tailLines)
	proc := exec.CommandContext(runCtx, cmd.Binary, cmd.Args...) //nolint:gosec
	proc.Dir = cmd.Dir
	proc.Stdin = nil
	stderrLines := sink.writer()
	stdoutLines := sink.writer()
	var stdout *capBuffer
	if cmd.CaptureStdout {
		stdout = &capBuffer{max: maxStdoutBytes}
		proc.Stdout = stdout
	} else {
		proc.Stdout = stdoutLines
	}
	proc.Stderr = stderrLines
	isolate(proc)
	proc.Cancel = func() error {
		return signalGroup(proc, sigTerm)
	}
	proc.WaitDelay = r.killGrace

	logger := r.logger.With(logging.String("command", name))
	logger.Debug("subprocess starting",
		logging.String("binary", cmd.Binary),
		logging.String("args", logging.RedactLine(strings.Join(cmd.Args, " "), r.secrets...)),
		logging.String("dir", cmd.Dir),
		logging.Duration("timeout", cmd.Timeout),
	)

	started := time.Now()
	if err := proc.Start(); err != nil {
		return ExitInfo{}, &RunError{Kind: KindStart, Command: name, ExitCode: -1, Err: err}
	}
	waitErr := proc.Wait()
	// Reap anything the tool left behind in its group.
	_ = signalGroup(proc, sigKill)
	elapsed := time.Since(started)
	stdoutLines.flush()
	stderrLines.flush()

	info := ExitInfo{
		ExitCode: -1,
		Duration: elapsed,
		Tail:     sink.snapshot(),
	}
	if proc.ProcessState != nil {
		info.ExitCode = proc.ProcessState.ExitCode()
	}
	if stdout != nil {
		info.Stdout = stdout.buf.Bytes()
	}

	switch {
	case ctx.Err() != nil:
		logger.Debug("subprocess cancelled", logging.Duration("elapsed", elapsed))
		return info, &RunError{Kind: KindCancelled, Command: name, ExitCode: info.ExitCode, Tail: info.Tail, Err: ctx.Err()}
	case runCtx.Err() != nil:
		logger.Debug("subprocess timed out", logging.Duration("elapsed", elapsed))
		return info, &RunError{
			Kind:     KindTimeout,
			Command:  name,
			ExitCode: info.ExitCode,
			Tail:     info.Tail,
			Err:      fmt.Errorf("exceeded %s", cmd.Timeout),
		}
	case waitErr != nil && !errors.Is(waitErr, exec.ErrWaitDelay):
		logger.Debug("subprocess failed",
			logging.Int("exit_code", info.ExitCode),
			logging.String("last_line", lastLine(info.Tail)),
		)
		return info, &RunError{Kind: KindExit, Command: name, ExitCode: info.ExitCode, Tail: info.Tail, Err: waitErr}
	}
	logger.Debug("subprocess finished", logging.Duration("elapsed", elapsed))
	return info, nil
}

func checkWorkDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("working directory required")
	}
	st, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("working directory: %w", err)
	}
	if !st.IsDir() {
		return fmt.Errorf("working directory %s is not a directory", dir)
	}
	return nil
}

func lastLine(tail []string) string {
	if len(tail) == 0 {
		return ""
	}
	return tail[len(tail)-1]
}
