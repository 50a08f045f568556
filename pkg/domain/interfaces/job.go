package interfaces

import (
	"context"
	"io"
	"time"

	"github.com/m-mizutani/octgate/pkg/domain/model"
)

// CommandRunner runs one step and reports its exit code. A non-nil error
// means the command could not be run at all.
type CommandRunner interface {
	Run(ctx context.Context, step model.Step, env []string) (int, error)
}

// CacheStore is a content-addressed store of dependency directories.
// An entry never changes once it has been built.
type CacheStore interface {
	Lookup(ctx context.Context, key string) (path string, hit bool, err error)
	// Build calls build with an empty staging directory and publishes it under
	// key. If the key already exists the existing entry wins.
	Build(ctx context.Context, key string, build func(dir string) error) (string, error)
	List(ctx context.Context) ([]*model.CacheEntry, error)
	Prune(ctx context.Context, olderThan time.Duration) ([]string, error)
}

// RunLedger records workflow runs and enforces one live run per concurrency key
type RunLedger interface {
	io.Closer
	// Begin cancels every non-terminal run sharing run.ConcurrencyKey and
	// inserts run. It returns the IDs of the cancelled runs.
	Begin(ctx context.Context, run *model.WorkflowRun) ([]string, error)
	Start(ctx context.Context, id string) error
	// Finish records a terminal status. It returns false when the run had
	// already reached a terminal status, which is left untouched.
	Finish(ctx context.Context, id string, status model.RunStatus, exitCode int, reason string) (bool, error)
	Get(ctx context.Context, id string) (*model.WorkflowRun, error)
	List(ctx context.Context, concurrencyKey string, limit int) ([]*model.WorkflowRun, error)
}
