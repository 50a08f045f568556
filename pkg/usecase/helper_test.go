package usecase_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/octgate/pkg/domain/model"
)

type runnerCall struct {
	Step model.Step
	Env  []string
}

// fakeRunner returns canned exit codes per step name and records every call
type fakeRunner struct {
	mu    sync.Mutex
	calls []runnerCall
	codes map[string]int
	errs  map[string]error
	// onRun is called before the result is returned
	onRun func(step model.Step, env []string)
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{codes: map[string]int{}, errs: map[string]error{}}
}

func (r *fakeRunner) Run(ctx context.Context, step model.Step, env []string) (int, error) {
	r.mu.Lock()
	r.calls = append(r.calls, runnerCall{Step: step, Env: slices.Clone(env)})
	onRun := r.onRun
	code, err := r.codes[step.Name], r.errs[step.Name]
	r.mu.Unlock()

	if onRun != nil {
		onRun(step, env)
	}
	return code, err
}

func (r *fakeRunner) Calls() []runnerCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

func (r *fakeRunner) StepNames() []string {
	var names []string
	for _, c := range r.Calls() {
		names = append(names, c.Step.Name)
	}
	return names
}

// envValue returns the last binding of name, as exec does
func envValue(env []string, name string) (string, bool) {
	for i := len(env) - 1; i >= 0; i-- {
		if k, v, ok := strings.Cut(env[i], "="); ok && k == name {
			return v, true
		}
	}
	return "", false
}

func writeLockfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "poetry.lock")
	gt.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func testJob(lockfile string) model.JobConfig {
	return model.JobConfig{
		Lockfile:       lockfile,
		RuntimeVersion: "3.10",
		CacheQualifier: "dbt-cloud",
		Install:        model.Step{Name: "install", Command: "poetry", Args: []string{"install"}},
		Test:           model.Step{Name: "test", Command: "poetry", Args: []string{"run", "pytest"}},
		Env:            map[string]string{model.EnvLogLevel: "ERROR"},
	}
}

func validCredentials() model.CredentialSet {
	return model.CredentialSet{AccountID: "10", JobID: "20", APIToken: "secret"}
}

func pullRequestEvent(number int) model.Event {
	return model.Event{
		Kind:       model.EventPullRequest,
		Repository: model.Repository{Owner: "dlt-hub", Name: "dlt"},
		Workflow:   "test dbt cloud",
		PullRequest: &model.PullRequest{
			Number:     number,
			BaseBranch: "devel",
			HeadRepo:   "dlt-hub/dlt",
		},
	}
}
