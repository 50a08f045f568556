package model

import (
	"fmt"
	"slices"
	"strconv"
)

type EventKind string

const (
	EventPullRequest      EventKind = "pull_request"
	EventWorkflowDispatch EventKind = "workflow_dispatch"
)

// Event is the trigger of a workflow run.
type Event struct {
	Kind        EventKind
	Repository  Repository
	Workflow    string
	Ref         string
	PullRequest *PullRequest
}

type PullRequest struct {
	Number     int
	BaseBranch string
	HeadRepo   string
	Fork       bool
	Labels     []string
}

func (p *PullRequest) HasLabel(name string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.Labels, name)
}

// ConcurrencyKey identifies the concurrency group of a run. Runs of the same
// workflow for the same pull request (or ref, when there is none) share a key.
func (e Event) ConcurrencyKey(qualifier string) string {
	target := e.Ref
	if e.PullRequest != nil && e.PullRequest.Number > 0 {
		target = strconv.Itoa(e.PullRequest.Number)
	}

	key := fmt.Sprintf("%s-%s", e.Workflow, target)
	if qualifier != "" {
		key += "-" + qualifier
	}
	return key
}

// IsForkPullRequest reports whether the event is a pull request opened from a
// repository clone outside the main repository.
func (e Event) IsForkPullRequest() bool {
	return e.Kind == EventPullRequest && e.PullRequest != nil && e.PullRequest.Fork
}
