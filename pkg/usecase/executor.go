package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"slices"
	"sort"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octgate/pkg/domain"
	"github.com/m-mizutani/octgate/pkg/domain/interfaces"
	"github.com/m-mizutani/octgate/pkg/domain/model"
)

const (
	EnvDepsDir = "OCTGATE_DEPS_DIR"
	// poetry creates the project virtualenv below this directory
	envPoetryVirtualenvs = "POETRY_VIRTUALENVS_PATH"
)

// ExitCodeMissingCredential is the exit status for a rejected credential set (EX_CONFIG)
const ExitCodeMissingCredential = 78

type JobExecutor struct {
	runner  interfaces.CommandRunner
	cache   interfaces.CacheStore
	job     model.JobConfig
	baseEnv []string
}

type JobExecutorOptions struct {
	Runner interfaces.CommandRunner
	Cache  interfaces.CacheStore
	Job    model.JobConfig
	// BaseEnv is inherited by every step. Defaults to the process environment.
	BaseEnv []string
}

func NewJobExecutor(opts JobExecutorOptions) *JobExecutor {
	baseEnv := opts.BaseEnv
	if baseEnv == nil {
		baseEnv = os.Environ()
	}
	return &JobExecutor{
		runner:  opts.Runner,
		cache:   opts.Cache,
		job:     opts.Job.WithDefaults(),
		baseEnv: baseEnv,
	}
}

// ExecuteRequest is the input of a single job execution
type ExecuteRequest struct {
	RunID       string
	Credentials model.CredentialSet
	Runtime     model.RuntimeEnv
	// Superseded is polled between steps. A non-nil result stops the job.
	Superseded func() error
}

// Execute validates credentials, restores or builds the dependency cache and
// runs the test command. A failing test is reported through the invocation's
// exit code, not through the error.
func (x *JobExecutor) Execute(ctx context.Context, req ExecuteRequest) (*model.JobInvocation, error) {
	logger := ctxlog.From(ctx)
	start := time.Now()
	inv := &model.JobInvocation{RunID: req.RunID, Status: model.RunStatusRunning}
	finish := func(status model.RunStatus, code int, reason string) *model.JobInvocation {
		inv.Status = status
		inv.ExitCode = code
		inv.Reason = reason
		inv.Duration = time.Since(start)
		return inv
	}

	if err := req.Credentials.Validate(); err != nil {
		return finish(model.RunStatusFailure, ExitCodeMissingCredential, err.Error()), err
	}

	if err := checkSuperseded(req); err != nil {
		return finish(model.RunStatusCancelled, 0, err.Error()), err
	}

	hash, err := HashLockfile(x.job.Lockfile)
	if err != nil {
		return finish(model.RunStatusFailure, 1, err.Error()), err
	}
	key := model.CacheKey{
		OS:             runtime.GOOS,
		RuntimeVersion: x.job.RuntimeVersion,
		LockfileHash:   hash,
		Qualifier:      x.job.CacheQualifier,
	}
	inv.CacheKey = key.String()

	depsDir, hit, err := x.cache.Lookup(ctx, inv.CacheKey)
	if err != nil {
		return finish(model.RunStatusFailure, 1, err.Error()), err
	}
	inv.CacheHit = hit

	if hit {
		logger.Info("dependency cache hit", slog.String("key", inv.CacheKey))
	} else {
		logger.Info("dependency cache miss, installing", slog.String("key", inv.CacheKey))

		var installCode int
		depsDir, err = x.cache.Build(ctx, inv.CacheKey, func(dir string) error {
			code, err := x.runner.Run(ctx, x.job.Install, installEnv(x.stepEnv(dir, nil)))
			if err != nil {
				return domain.ErrDownstream.Wrap(goerr.Wrap(err, "install step failed"))
			}
			if code != 0 {
				installCode = code
				return domain.ErrDownstream.Wrap(goerr.New(fmt.Sprintf("install step exited with %d", code)))
			}
			return nil
		})
		if err != nil {
			code := installCode
			if code == 0 {
				code = 1
			}
			return finish(model.RunStatusFailure, code, err.Error()), err
		}
	}

	if err := checkSuperseded(req); err != nil {
		return finish(model.RunStatusCancelled, 0, err.Error()), err
	}

	env := x.stepEnv(depsDir, append(req.Credentials.Env(), req.Runtime.Env()...))
	code, err := x.runner.Run(ctx, x.job.Test, env)
	if err != nil {
		if ctx.Err() != nil {
			return finish(model.RunStatusCancelled, code, ctx.Err().Error()), ctx.Err()
		}
		return finish(model.RunStatusFailure, nonZero(code), err.Error()), domain.ErrDownstream.Wrap(err)
	}
	if code != 0 {
		logger.Warn("test command failed", slog.Int("exit_code", code))
		return finish(model.RunStatusFailure, code, fmt.Sprintf("test command exited with %d", code)), nil
	}

	return finish(model.RunStatusSuccess, 0, ""), nil
}

// stepEnv layers job env, the deps dir and extra bindings over the base env.
// Later entries win, and the job env never overrides explicit bindings.
func (x *JobExecutor) stepEnv(depsDir string, extra []string) []string {
	env := append([]string{}, x.baseEnv...)

	keys := make([]string, 0, len(x.job.Env))
	for k := range x.job.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+x.job.Env[k])
	}

	env = append(env,
		EnvDepsDir+"="+depsDir,
		envPoetryVirtualenvs+"="+depsDir,
	)
	return append(env, extra...)
}

// installEnv drops credentials inherited from the process or job env
func installEnv(env []string) []string {
	return slices.DeleteFunc(env, model.IsCredentialEnv)
}

func checkSuperseded(req ExecuteRequest) error {
	if req.Superseded == nil {
		return nil
	}
	return req.Superseded()
}

func nonZero(code int) int {
	if code == 0 || code == -1 {
		return 1
	}
	return code
}
