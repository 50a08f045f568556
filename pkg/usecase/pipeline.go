package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/octgate/pkg/domain"
	"github.com/m-mizutani/octgate/pkg/domain/interfaces"
	"github.com/m-mizutani/octgate/pkg/domain/model"
)

// PipelineUseCase runs the gated job for one trigger: supersede older runs of
// the same concurrency group, evaluate the gate, execute, record the result.
type PipelineUseCase struct {
	ledger       interfaces.RunLedger
	groups       *ConcurrencyGroups
	executor     *JobExecutor
	hooks        interfaces.HookExecutor
	gate         model.GatePolicy
	workflow     string
	qualifier    string
	pollInterval time.Duration
}

type PipelineUseCaseOptions struct {
	Ledger   interfaces.RunLedger
	Groups   *ConcurrencyGroups
	Executor *JobExecutor
	Hooks    interfaces.HookExecutor
	Config   *model.Config
}

func NewPipelineUseCase(opts PipelineUseCaseOptions) *PipelineUseCase {
	groups := opts.Groups
	if groups == nil {
		groups = NewConcurrencyGroups()
	}
	hooks := opts.Hooks
	if hooks == nil {
		hooks = NewHookExecutor(opts.Config)
	}

	u := &PipelineUseCase{
		ledger:    opts.Ledger,
		groups:    groups,
		executor:  opts.Executor,
		hooks:     hooks,
		workflow:  opts.Config.WorkflowName(),
		qualifier: model.DefaultCacheQualifier,
	}
	if opts.Config != nil {
		if opts.Config.Job.CacheQualifier != "" {
			u.qualifier = opts.Config.Job.CacheQualifier
		}
		u.pollInterval = opts.Config.Ledger.PollInterval
		u.gate = opts.Config.Gate
	}
	return u
}

// RunInput is one trigger of the pipeline
type RunInput struct {
	Event    model.Event
	Upstream model.UpstreamOutputs
	Env      JobEnv
}

// Run evaluates and, when the gate allows, executes the job. The returned
// invocation is always set; err is set for MissingCredential and
// infrastructure failures, not for failing tests, skips or supersession.
func (u *PipelineUseCase) Run(ctx context.Context, input RunInput) (*model.JobInvocation, error) {
	logger := ctxlog.From(ctx)

	if input.Event.Workflow == "" {
		input.Event.Workflow = u.workflow
	}
	run := model.NewWorkflowRun(input.Event.Workflow, input.Event.ConcurrencyKey(u.qualifier))
	logger = logger.With(slog.String("run_id", run.ID), slog.String("concurrency_key", run.ConcurrencyKey))
	ctx = ctxlog.With(ctx, logger)

	superseded, err := u.ledger.Begin(ctx, run)
	if err != nil {
		return &model.JobInvocation{RunID: run.ID, Status: model.RunStatusFailure, ExitCode: 1}, err
	}
	for _, id := range superseded {
		logger.Info("cancelled superseded run", slog.String("superseded_run_id", id))
	}

	groupCtx, release := u.groups.Acquire(ctx, run.ConcurrencyKey, run.ID)
	defer release()

	// a fork PR without the override label never runs, whatever upstream says
	if !ShouldRunDocsCheck(input.Event, u.gate) {
		logger.Warn("pull request from a fork without the override label, skipping job",
			slog.String("label", u.gate.Label()),
		)
		inv := &model.JobInvocation{RunID: run.ID, Status: model.RunStatusSkipped, Reason: "fork pull request without \"" + u.gate.Label() + "\" label"}
		return u.finish(ctx, input.Event, run, inv, nil)
	}

	if !ShouldRun(input.Event, input.Upstream) {
		logger.Info("no changes outside docs, skipping job",
			slog.String("changes_outside_docs", input.Upstream.ChangesOutsideDocs),
			slog.String("upstream_result", input.Upstream.Result),
		)
		inv := &model.JobInvocation{RunID: run.ID, Status: model.RunStatusSkipped, Reason: "no changes outside docs"}
		return u.finish(ctx, input.Event, run, inv, nil)
	}

	if err := u.ledger.Start(ctx, run.ID); err != nil {
		return &model.JobInvocation{RunID: run.ID, Status: model.RunStatusFailure, ExitCode: 1}, err
	}

	watchCtx, stopWatch := WatchLedger(groupCtx, u.ledger, run.ID, u.pollInterval)
	defer stopWatch()

	inv, err := u.executor.Execute(ctx, ExecuteRequest{
		RunID:       run.ID,
		Credentials: input.Env.Credentials,
		Runtime:     input.Env.Runtime,
		Superseded: func() error {
			if watchCtx.Err() == nil {
				return nil
			}
			if cause := context.Cause(watchCtx); errors.Is(cause, domain.ErrSuperseded) {
				return cause
			}
			return watchCtx.Err()
		},
	})
	if errors.Is(err, domain.ErrSuperseded) {
		inv.Status = model.RunStatusCancelled
		err = nil
	}

	return u.finish(ctx, input.Event, run, inv, err)
}

func (u *PipelineUseCase) finish(ctx context.Context, event model.Event, run *model.WorkflowRun, inv *model.JobInvocation, runErr error) (*model.JobInvocation, error) {
	logger := ctxlog.From(ctx)

	// a signal or timeout must not keep the result from being recorded
	recordCtx := context.WithoutCancel(ctx)

	applied, err := u.ledger.Finish(recordCtx, run.ID, inv.Status, inv.ExitCode, inv.Reason)
	if err != nil {
		logger.Error("failed to record run result", slog.String("error", err.Error()))
		if runErr == nil {
			runErr = err
		}
	} else if !applied {
		// superseded while finishing; the ledger keeps the cancelled status
		stored, getErr := u.ledger.Get(recordCtx, run.ID)
		if getErr == nil && stored.Status == model.RunStatusCancelled {
			inv.Status = model.RunStatusCancelled
			inv.ExitCode = 0
			inv.Reason = stored.Reason
		}
	}

	logger.Info("run finished",
		slog.String("status", string(inv.Status)),
		slog.Int("exit_code", inv.ExitCode),
		slog.Bool("cache_hit", inv.CacheHit),
	)

	if hookEvent, ok := model.HookEventFromStatus(inv.Status); ok {
		_ = u.hooks.Execute(recordCtx, model.RunEvent{
			Type:           hookEvent,
			Repository:     event.Repository.FullName(),
			Workflow:       run.Workflow,
			ConcurrencyKey: run.ConcurrencyKey,
			RunID:          run.ID,
			ExitCode:       inv.ExitCode,
			Reason:         inv.Reason,
		})
	}

	return inv, runErr
}
