package taskwarrior

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskwarlock/domain"
)

// Runner executes one Taskwarrior command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, args ...string) ([]byte, error)
}

// defaultOverrides keep the CLI non-interactive and its export machine-readable.
var defaultOverrides = []string{"rc.confirmation=off", "rc.json.array=on"}

// ExecConfig configures the subprocess runner.
type ExecConfig struct {
	Binary    string
	Timeout   time.Duration
	Overrides []string
	TaskRC    string
	TaskData  string
}

// ExecRunner runs the task binary as a subprocess.
type ExecRunner struct {
	cfg    ExecConfig
	logger *zap.Logger
}

// NewExecRunner builds a runner for the configured binary.
func NewExecRunner(cfg ExecConfig, logger *zap.Logger) *ExecRunner {
	if cfg.Binary == "" {
		cfg.Binary = "task"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecRunner{cfg: cfg, logger: logger}
}

// CommandError describes a task invocation that exited unsuccessfully.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("task %s: exit code %d: %s", strings.Join(e.Args, " "), e.ExitCode, e.Stderr)
}

func (r *ExecRunner) Run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	full := make([]string, 0, len(defaultOverrides)+len(r.cfg.Overrides)+len(args))
	full = append(full, defaultOverrides...)
	full = append(full, r.cfg.Overrides...)
	full = append(full, args...)

	cmd := exec.CommandContext(ctx, r.cfg.Binary, full...)
	cmd.Env = os.Environ()
	if r.cfg.TaskRC != "" {
		cmd.Env = append(cmd.Env, "TASKRC="+r.cfg.TaskRC)
	}
	if r.cfg.TaskData != "" {
		cmd.Env = append(cmd.Env, "TASKDATA="+r.cfg.TaskData)
	}

	start := time.Now()
	output, err := cmd.Output()
	r.logger.Debug("taskwarrior command",
		zap.Strings("args", args),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err))
	if err == nil {
		return output, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, domain.WrapError(domain.ErrCodeExternal, "taskwarrior command timed out", ctxErr)
		}
		return nil, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil, domain.WrapError(domain.ErrCodeExternal, "taskwarrior command failed", &CommandError{
			Args:     args,
			ExitCode: exitErr.ExitCode(),
			Stderr:   strings.TrimSpace(string(exitErr.Stderr)),
		})
	}
	return nil, domain.WrapError(domain.ErrCodeExternal, "taskwarrior command failed", err)
}
