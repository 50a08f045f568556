package usecase

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octgate/pkg/domain"
	"github.com/m-mizutani/octgate/pkg/domain/interfaces"
	"github.com/m-mizutani/octgate/pkg/domain/model"
	"golang.org/x/sync/errgroup"
)

// ConcurrencyGroups tracks the live run of every concurrency key inside one
// process. Acquiring a key cancels the previous holder instead of waiting.
type ConcurrencyGroups struct {
	mu      sync.Mutex
	holders map[string]*groupHolder
}

type groupHolder struct {
	runID  string
	cancel context.CancelCauseFunc
}

func NewConcurrencyGroups() *ConcurrencyGroups {
	return &ConcurrencyGroups{holders: make(map[string]*groupHolder)}
}

// Acquire makes runID the holder of key. The returned context is cancelled
// with ErrSuperseded once a newer run acquires the same key. release must be
// called when the run ends.
func (g *ConcurrencyGroups) Acquire(ctx context.Context, key, runID string) (context.Context, func()) {
	runCtx, cancel := context.WithCancelCause(ctx)
	holder := &groupHolder{runID: runID, cancel: cancel}

	g.mu.Lock()
	if prev, ok := g.holders[key]; ok {
		prev.cancel(domain.ErrSuperseded.Wrap(goerr.New("superseded by " + runID)))
	}
	g.holders[key] = holder
	g.mu.Unlock()

	release := func() {
		g.mu.Lock()
		if g.holders[key] == holder {
			delete(g.holders, key)
		}
		g.mu.Unlock()
		cancel(nil)
	}
	return runCtx, release
}

// Holder returns the run currently holding key
func (g *ConcurrencyGroups) Holder(key string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	h, ok := g.holders[key]
	if !ok {
		return "", false
	}
	return h.runID, true
}

// WatchLedger cancels the returned context once the ledger reports the run
// as cancelled by another process. Polling stops when ctx is done.
func WatchLedger(ctx context.Context, ledger interfaces.RunLedger, runID string, interval time.Duration) (context.Context, func()) {
	watchCtx, cancel := context.WithCancelCause(ctx)
	if interval <= 0 {
		interval = model.DefaultPollInterval
	}

	go func() {
		logger := ctxlog.From(ctx)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-watchCtx.Done():
				return
			case <-ticker.C:
				run, err := ledger.Get(watchCtx, runID)
				if err != nil {
					logger.Debug("failed to poll run ledger", slog.String("error", err.Error()))
					continue
				}
				if run.Status == model.RunStatusCancelled {
					cancel(domain.ErrSuperseded.Wrap(goerr.New(run.Reason)))
					return
				}
			}
		}
	}()

	return watchCtx, func() { cancel(nil) }
}

// RemoteCanceller cancels queued or running GitHub Actions runs that belong
// to the same concurrency group as the current run.
type RemoteCanceller struct {
	github   interfaces.GitHubService
	attempts uint
	delay    time.Duration
}

func NewRemoteCanceller(github interfaces.GitHubService) *RemoteCanceller {
	return &RemoteCanceller{github: github, attempts: 3, delay: time.Second}
}

// WithRetry overrides the retry policy of API calls
func (c *RemoteCanceller) WithRetry(attempts uint, delay time.Duration) *RemoteCanceller {
	c.attempts = attempts
	c.delay = delay
	return c
}

// CancelSuperseded cancels older active runs of the current run's workflow
// that target the same pull request (or branch, for other events). It returns
// the cancelled run IDs.
func (c *RemoteCanceller) CancelSuperseded(ctx context.Context, event model.Event, currentRunID int64) ([]int64, error) {
	logger := ctxlog.From(ctx)

	current, err := c.github.GetRun(ctx, event.Repository, currentRunID)
	if err != nil {
		return nil, err
	}

	runs, err := c.github.ListActiveRuns(ctx, event.Repository, current.WorkflowID)
	if err != nil {
		return nil, err
	}

	var targets []int64
	for _, run := range runs {
		if run.ID >= currentRunID || !run.Active() {
			continue
		}
		if !sameGroup(event, current, run) {
			continue
		}
		targets = append(targets, run.ID)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range targets {
		g.Go(func() error {
			err := retry.Do(func() error {
				return c.github.CancelRun(gctx, event.Repository, id)
			},
				retry.Context(gctx),
				retry.Attempts(c.attempts),
				retry.Delay(c.delay),
				retry.LastErrorOnly(true),
			)
			if err != nil {
				return err
			}
			logger.Info("cancelled superseded run", slog.Int64("run_id", id))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return targets, nil
}

// sameGroup matches by pull request number. Runs of fork pull requests carry
// no numbers, so those match on head repository and head branch together;
// forks commonly share branch names like main.
func sameGroup(event model.Event, current, other *model.ActionsRun) bool {
	if other.Event != current.Event {
		return false
	}

	if event.PullRequest != nil && event.PullRequest.Number > 0 {
		if len(other.PRNumbers) > 0 {
			return slices.Contains(other.PRNumbers, event.PullRequest.Number)
		}
		headRepo := current.HeadRepo
		if headRepo == "" {
			headRepo = event.PullRequest.HeadRepo
		}
		if headRepo == "" || other.HeadRepo == "" {
			return false
		}
		return other.HeadRepo == headRepo && other.HeadBranch == current.HeadBranch
	}

	return other.HeadRepo == current.HeadRepo && other.HeadBranch == current.HeadBranch
}
