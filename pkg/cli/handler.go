package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octgate/pkg/domain"
	"github.com/m-mizutani/octgate/pkg/domain/interfaces"
	"github.com/m-mizutani/octgate/pkg/domain/model"
	"github.com/m-mizutani/octgate/pkg/repository"
	"github.com/m-mizutani/octgate/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// RunDetect is the docs-change-detection job. It writes
// changes_outside_docs to the job outputs, or nothing when the fork gate
// keeps the job from running.
func RunDetect(ctx context.Context, cmd *cli.Command) error {
	ctx, logger := newLogger(ctx, cmd)

	config, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}
	env, err := usecase.LoadActionsEnv(ctx, nil)
	if err != nil {
		return err
	}
	event, err := loadEvent(env, config, cmd.Int("pr"))
	if err != nil {
		return err
	}

	if !usecase.ShouldRunDocsCheck(*event, config.Gate) {
		logger.Warn("pull request from a fork without the override label, skipping docs check",
			slog.Int("number", event.PullRequest.Number),
			slog.String("label", config.Gate.Label()),
		)
		printSkipped(cmd.Root().Writer, "docs check skipped: fork pull request needs the \""+config.Gate.Label()+"\" label")
		return nil
	}

	changed := true
	switch {
	case cmd.IsSet("files"):
		changed, err = usecase.DetectDocsChanges(ctx, cmd.StringSlice("files"), config.Gate.Patterns())
		if err != nil {
			return err
		}

	case event.PullRequest != nil && event.PullRequest.Number > 0:
		gh, err := newGitHubService(ctx, cmd, env, logger)
		if err != nil {
			return err
		}
		files, err := gh.ListChangedFiles(ctx, event.Repository, event.PullRequest.Number)
		if err != nil {
			return err
		}
		changed, err = usecase.DetectDocsChanges(ctx, files, config.Gate.Patterns())
		if err != nil {
			return err
		}

	default:
		// nothing to diff against; a manual dispatch always runs the tests
		logger.Info("no pull request, reporting changes outside docs", slog.String("event", string(event.Kind)))
	}

	output := cmd.String("output")
	if output == "" {
		output = env.Output
	}
	return writeOutput(cmd.Root().Writer, output, model.ChangesOutsideDocsOutput, strconv.FormatBool(changed))
}

// RunPipeline evaluates the gate and runs the job, exiting with the job's
// exit code.
func RunPipeline(ctx context.Context, cmd *cli.Command) error {
	ctx, logger := newLogger(ctx, cmd)

	fileConfig, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}
	config := NewConfig(cmd).Apply(fileConfig)

	actionsEnv, err := usecase.LoadActionsEnv(ctx, nil)
	if err != nil {
		return err
	}
	jobEnv, err := usecase.LoadJobEnv(ctx, nil)
	if err != nil {
		return err
	}
	event, err := loadEvent(actionsEnv, config, cmd.Int("pr"))
	if err != nil {
		return err
	}

	var upstream model.UpstreamOutputs
	if cmd.IsSet("needs") {
		upstream = usecase.ParseNeeds(ctx, []byte(cmd.String("needs")), usecase.DocsCheckJob)
	} else {
		upstream.ChangesOutsideDocs = cmd.String("changes-outside-docs")
	}

	if cmd.Bool("remote-cancel") {
		cancelRemote(ctx, cmd, actionsEnv, event, logger)
	}

	ledger, err := openLedger(config.Ledger.Path)
	if err != nil {
		return err
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			logger.Warn("failed to close run ledger", slog.String("error", err.Error()))
		}
	}()

	hooks := usecase.NewHookExecutor(config)
	defer hooks.WaitForCompletion()

	executor := usecase.NewJobExecutor(usecase.JobExecutorOptions{
		Runner: usecase.NewExecRunner(os.Stdout, os.Stderr),
		Cache:  usecase.NewFileCacheStore(config.Job.CacheDir),
		Job:    config.Job,
	})

	pipeline := usecase.NewPipelineUseCase(usecase.PipelineUseCaseOptions{
		Ledger:   ledger,
		Executor: executor,
		Hooks:    hooks,
		Config:   config,
	})

	inv, err := pipeline.Run(ctx, usecase.RunInput{
		Event:    *event,
		Upstream: upstream,
		Env:      *jobEnv,
	})
	printInvocation(cmd.Root().Writer, inv)

	if err != nil {
		code := inv.ExitCode
		if code == 0 {
			code = 1
		}
		return cli.Exit(err.Error(), code)
	}
	if inv.Status == model.RunStatusFailure {
		return cli.Exit("", inv.ExitCode)
	}
	return nil
}

// RunCancel cancels older GitHub Actions runs of the current run's group
func RunCancel(ctx context.Context, cmd *cli.Command) error {
	ctx, logger := newLogger(ctx, cmd)

	config, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}
	env, err := usecase.LoadActionsEnv(ctx, nil)
	if err != nil {
		return err
	}
	if cmd.IsSet("run-id") {
		env.RunID = cmd.Int64("run-id")
	}
	if env.RunID == 0 {
		return domain.ErrConfiguration.Wrap(goerr.New("GITHUB_RUN_ID or --run-id is required"))
	}

	event, err := loadEvent(env, config, cmd.Int("pr"))
	if err != nil {
		return err
	}
	gh, err := newGitHubService(ctx, cmd, env, logger)
	if err != nil {
		return err
	}

	ids, err := usecase.NewRemoteCanceller(gh).CancelSuperseded(ctx, *event, env.RunID)
	if err != nil {
		return err
	}
	printCancelled(cmd.Root().Writer, ids)
	return nil
}

// RunListRuns prints the runs recorded in the ledger
func RunListRuns(ctx context.Context, cmd *cli.Command) error {
	ctx, _ = newLogger(ctx, cmd)

	config, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}
	path := cmd.String("ledger")
	if path == "" {
		path = config.Ledger.Path
	}
	if path == "" {
		return domain.ErrConfiguration.Wrap(goerr.New("no run ledger: set ledger.path or --ledger"))
	}

	ledger, err := repository.NewSQLite(path)
	if err != nil {
		return err
	}
	defer ledger.Close()

	runs, err := ledger.List(ctx, cmd.String("key"), cmd.Int("limit"))
	if err != nil {
		return err
	}
	printRuns(cmd.Root().Writer, runs)
	return nil
}

func openLedger(path string) (interfaces.RunLedger, error) {
	if path == "" {
		return repository.NewMemory(), nil
	}
	return repository.NewSQLite(path)
}

// loadEvent reads the GitHub Actions event. Outside Actions it builds a pull
// request event from --pr, or a manual dispatch event.
func loadEvent(env *usecase.ActionsEnv, config *model.Config, pr int) (*model.Event, error) {
	if env.EventPath != "" {
		event, err := usecase.LoadEvent(env)
		if err != nil {
			return nil, err
		}
		if event.Workflow == "" {
			event.Workflow = config.WorkflowName()
		}
		return event, nil
	}

	event := &model.Event{
		Kind:       model.EventWorkflowDispatch,
		Repository: model.ParseRepository(env.Repository),
		Workflow:   env.Workflow,
		Ref:        env.Ref,
	}
	if event.Workflow == "" {
		event.Workflow = config.WorkflowName()
	}
	if event.Ref == "" {
		event.Ref = "local"
	}
	if pr > 0 {
		event.Kind = model.EventPullRequest
		event.PullRequest = &model.PullRequest{Number: pr}
	}
	return event, nil
}

func newGitHubService(ctx context.Context, cmd *cli.Command, env *usecase.ActionsEnv, logger *slog.Logger) (interfaces.GitHubService, error) {
	token := cmd.String("token")
	if token == "" {
		token = env.Token
	}

	var opts []usecase.AuthOption
	if url := cmd.String("github-url"); url != "" {
		opts = append(opts, usecase.WithBaseURL(url))
	}

	client, err := usecase.NewAuthService(token, opts...).GetAuthenticatedClient(ctx)
	if err != nil {
		return nil, err
	}
	return usecase.NewGitHubService(client, logger), nil
}

// cancelRemote is best effort: a failed cancellation never blocks the run
func cancelRemote(ctx context.Context, cmd *cli.Command, env *usecase.ActionsEnv, event *model.Event, logger *slog.Logger) {
	if env.RunID == 0 {
		logger.Warn("GITHUB_RUN_ID is not set, skipping remote cancellation")
		return
	}
	gh, err := newGitHubService(ctx, cmd, env, logger)
	if err != nil {
		logger.Warn("skipping remote cancellation", slog.String("error", err.Error()))
		return
	}
	ids, err := usecase.NewRemoteCanceller(gh).CancelSuperseded(ctx, *event, env.RunID)
	if err != nil {
		logger.Warn("failed to cancel superseded runs", slog.String("error", err.Error()))
		return
	}
	if len(ids) > 0 {
		printCancelled(os.Stderr, ids)
	}
}

// writeOutput appends name=value to the GitHub Actions output file, or prints
// it when there is none.
func writeOutput(w io.Writer, path, name, value string) error {
	line := fmt.Sprintf("%s=%s\n", name, value)
	if path == "" {
		_, err := fmt.Fprint(w, line)
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) // #nosec G304 - path is provided by the runner
	if err != nil {
		return domain.ErrConfiguration.Wrap(goerr.Wrap(err, "failed to open output file"))
	}
	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()
		return domain.ErrConfiguration.Wrap(err)
	}
	return f.Close()
}
