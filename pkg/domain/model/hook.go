package model

// HookEvent represents the terminal status a hook reacts to
type HookEvent string

const (
	HookRunSuccess   HookEvent = "run_success"
	HookRunFailure   HookEvent = "run_failure"
	HookRunSkipped   HookEvent = "run_skipped"
	HookRunCancelled HookEvent = "run_cancelled"
)

func HookEventFromStatus(status RunStatus) (HookEvent, bool) {
	switch status {
	case RunStatusSuccess:
		return HookRunSuccess, true
	case RunStatusFailure:
		return HookRunFailure, true
	case RunStatusSkipped:
		return HookRunSkipped, true
	case RunStatusCancelled:
		return HookRunCancelled, true
	default:
		return "", false
	}
}

// RunEvent contains information passed to hook actions
type RunEvent struct {
	Type           HookEvent
	Repository     string
	Workflow       string
	ConcurrencyKey string
	RunID          string
	ExitCode       int
	Reason         string
}
