package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octgate/pkg/domain/interfaces"
	"github.com/m-mizutani/octgate/pkg/domain/model"
)

const defaultActionTimeout = 30 * time.Second

type commandAction struct {
	runner interfaces.CommandRunner
}

// NewCommandAction creates a new CommandAction instance
func NewCommandAction() interfaces.ActionExecutor {
	return &commandAction{runner: NewExecRunner(os.Stderr, os.Stderr)}
}

// Execute runs a command with OCTGATE_* variables describing the run
func (c *commandAction) Execute(ctx context.Context, action model.Action, event model.RunEvent) error {
	logger := ctxlog.From(ctx)

	// Convert to typed action
	cmdAction, err := action.ToCommandAction()
	if err != nil {
		return goerr.Wrap(err, "failed to parse command action")
	}

	// Set default timeout if not specified
	timeout := cmdAction.Timeout
	if timeout == 0 {
		timeout = defaultActionTimeout
	}

	// Prepare environment variables, action env last so it wins
	env := append(c.prepareEnv(event), cmdAction.Env...)
	step := model.Step{
		Name:    "hook " + string(event.Type),
		Command: cmdAction.Command,
		Args:    cmdAction.Args,
		Timeout: timeout,
	}

	// Execute command
	code, err := c.runner.Run(ctx, step, env)
	if err != nil {
		return goerr.Wrap(err, "command execution failed")
	}
	if code != 0 {
		return goerr.New(fmt.Sprintf("command exited with %d", code))
	}

	logger.Debug("Command executed successfully",
		slog.String("command", cmdAction.Command),
		slog.Any("args", cmdAction.Args),
	)
	return nil
}

// prepareEnv adds octgate-specific variables to the current environment
func (c *commandAction) prepareEnv(event model.RunEvent) []string {
	return append(os.Environ(),
		"OCTGATE_EVENT_TYPE="+string(event.Type),
		"OCTGATE_REPOSITORY="+event.Repository,
		"OCTGATE_WORKFLOW="+event.Workflow,
		"OCTGATE_CONCURRENCY_KEY="+event.ConcurrencyKey,
		"OCTGATE_RUN_ID="+event.RunID,
		fmt.Sprintf("OCTGATE_EXIT_CODE=%d", event.ExitCode),
		"OCTGATE_REASON="+event.Reason,
	)
}

// expandPath expands environment variables and a leading ~ in a command path
func expandPath(p string) string {
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
