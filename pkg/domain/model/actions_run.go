package model

import "time"

type WorkflowStatus string

const (
	WorkflowStatusQueued     WorkflowStatus = "queued"
	WorkflowStatusInProgress WorkflowStatus = "in_progress"
	WorkflowStatusCompleted  WorkflowStatus = "completed"
)

type WorkflowConclusion string

const (
	WorkflowConclusionSuccess   WorkflowConclusion = "success"
	WorkflowConclusionFailure   WorkflowConclusion = "failure"
	WorkflowConclusionCancelled WorkflowConclusion = "cancelled"
	WorkflowConclusionSkipped   WorkflowConclusion = "skipped"
	WorkflowConclusionTimedOut  WorkflowConclusion = "timed_out"
)

// ActionsRun is a workflow run as seen by GitHub Actions
type ActionsRun struct {
	ID         int64
	WorkflowID int64
	Name       string
	HeadBranch string
	// HeadRepo is the full name of the repository the head branch lives in
	HeadRepo   string
	Event      string
	PRNumbers  []int
	Status     WorkflowStatus
	Conclusion WorkflowConclusion
	URL        string
	CreatedAt  time.Time
}

func (r *ActionsRun) Active() bool {
	return r.Status == WorkflowStatusQueued || r.Status == WorkflowStatusInProgress
}
