package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octgate/pkg/domain/interfaces"
	"github.com/m-mizutani/octgate/pkg/domain/model"
)

type execRunner struct {
	stdout io.Writer
	stderr io.Writer
}

// NewExecRunner runs steps as child processes, streaming their output to
// stdout and stderr.
func NewExecRunner(stdout, stderr io.Writer) interfaces.CommandRunner {
	return &execRunner{stdout: stdout, stderr: stderr}
}

func (r *execRunner) Run(ctx context.Context, step model.Step, env []string) (int, error) {
	logger := ctxlog.From(ctx)

	// Create context with timeout
	if step.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}

	// Expand environment variables in command and args
	command := expandPath(step.Command)
	args := make([]string, len(step.Args))
	for i, arg := range step.Args {
		args[i] = os.Expand(arg, lookupIn(env))
	}

	// On Windows, PowerShell scripts go through powershell
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" && strings.HasSuffix(strings.ToLower(command), ".ps1") {
		psArgs := append([]string{"-ExecutionPolicy", "Bypass", "-File", command}, args...)
		cmd = exec.CommandContext(ctx, "powershell", psArgs...) // #nosec G204 - command is from config file
	} else {
		cmd = exec.CommandContext(ctx, command, args...) // #nosec G204 - command is from config file
	}
	cmd.Env = env
	cmd.Dir = step.Dir
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr

	logger.Debug("Executing step",
		slog.String("step", step.Name),
		slog.String("command", command),
		slog.Any("args", args),
		slog.Duration("timeout", step.Timeout),
	)

	// Run command
	start := time.Now()
	err := cmd.Run()
	logger.Debug("Step finished",
		slog.String("step", step.Name),
		slog.Duration("elapsed", time.Since(start)),
	)

	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// Check if it was a timeout
		if ctx.Err() == context.DeadlineExceeded {
			return exitErr.ExitCode(), goerr.New("step timed out after " + step.Timeout.String())
		}
		if code := exitErr.ExitCode(); code >= 0 {
			return code, nil
		}
		// killed by a signal
		return -1, goerr.Wrap(err, "step was terminated")
	}

	return -1, goerr.Wrap(err, "failed to start step")
}

// lookupIn resolves ${VAR} in arguments against the step environment, falling
// back to the process environment.
func lookupIn(env []string) func(string) string {
	return func(name string) string {
		for i := len(env) - 1; i >= 0; i-- {
			if k, v, ok := strings.Cut(env[i], "="); ok && k == name {
				return v
			}
		}
		return os.Getenv(name)
	}
}
