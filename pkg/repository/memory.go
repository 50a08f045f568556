package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octgate/pkg/domain"
	"github.com/m-mizutani/octgate/pkg/domain/interfaces"
	"github.com/m-mizutani/octgate/pkg/domain/model"
)

// Memory is a RunLedger kept in process memory. It only sees runs started by
// the same process.
type Memory struct {
	mu   sync.Mutex
	runs map[string]*model.WorkflowRun
}

var _ interfaces.RunLedger = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{runs: make(map[string]*model.WorkflowRun)}
}

func (m *Memory) Begin(ctx context.Context, run *model.WorkflowRun) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[run.ID]; ok {
		return nil, domain.ErrRepository.Wrap(goerr.New("run already exists: " + run.ID))
	}

	now := time.Now().UTC()
	var cancelled []string
	for _, r := range m.runs {
		if r.ConcurrencyKey == run.ConcurrencyKey && !r.Status.Terminal() {
			r.Status = model.RunStatusCancelled
			r.Reason = "superseded by " + run.ID
			r.UpdatedAt = now
			cancelled = append(cancelled, r.ID)
		}
	}
	sort.Strings(cancelled)

	stored := *run
	m.runs[run.ID] = &stored
	return cancelled, nil
}

func (m *Memory) Start(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.runs[id]
	if !ok {
		return errRunNotFound(id)
	}
	if r.Status == model.RunStatusPending {
		r.Status = model.RunStatusRunning
		r.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *Memory) Finish(ctx context.Context, id string, status model.RunStatus, exitCode int, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.runs[id]
	if !ok {
		return false, errRunNotFound(id)
	}
	if r.Status.Terminal() {
		return false, nil
	}

	r.Status = status
	r.ExitCode = exitCode
	r.Reason = reason
	r.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *Memory) Get(ctx context.Context, id string) (*model.WorkflowRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.runs[id]
	if !ok {
		return nil, errRunNotFound(id)
	}
	copied := *r
	return &copied, nil
}

func (m *Memory) List(ctx context.Context, concurrencyKey string, limit int) ([]*model.WorkflowRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var runs []*model.WorkflowRun
	for _, r := range m.runs {
		if concurrencyKey != "" && r.ConcurrencyKey != concurrencyKey {
			continue
		}
		copied := *r
		runs = append(runs, &copied)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (m *Memory) Close() error {
	return nil
}

func errRunNotFound(id string) error {
	return domain.ErrRepository.Wrap(goerr.New("run not found: " + id))
}
