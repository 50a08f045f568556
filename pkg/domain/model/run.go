package model

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSkipped   RunStatus = "skipped"
	RunStatusSuccess   RunStatus = "success"
	RunStatusFailure   RunStatus = "failure"
	RunStatusCancelled RunStatus = "cancelled"
)

func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusSkipped, RunStatusSuccess, RunStatusFailure, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// WorkflowRun is a single evaluation of the pipeline recorded in the run ledger
type WorkflowRun struct {
	ID             string
	Workflow       string
	ConcurrencyKey string
	Status         RunStatus
	ExitCode       int
	Reason         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewWorkflowRun(workflow, concurrencyKey string) *WorkflowRun {
	now := time.Now().UTC()
	return &WorkflowRun{
		ID:             uuid.NewString(),
		Workflow:       workflow,
		ConcurrencyKey: concurrencyKey,
		Status:         RunStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// JobInvocation is the outcome of the gated job
type JobInvocation struct {
	RunID    string
	Status   RunStatus
	ExitCode int
	CacheKey string
	CacheHit bool
	Duration time.Duration
	Reason   string
}
