package core

import (
	"fmt"
	"time"
)

// ActionStatus is the lifecycle state of an action record.
//
//	pending -> running -> {complete | aborted | failed}
//
// No transition leaves a terminal state.
type ActionStatus string

const (
	StatusPending  ActionStatus = "pending"
	StatusRunning  ActionStatus = "running"
	StatusComplete ActionStatus = "complete"
	StatusAborted  ActionStatus = "aborted"
	StatusFailed   ActionStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s ActionStatus) IsTerminal() bool {
	switch s {
	case StatusComplete, StatusAborted, StatusFailed:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is a legal transition.
func (s ActionStatus) CanTransition(next ActionStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch next {
	case StatusRunning:
		return s == StatusPending || s == StatusRunning
	case StatusComplete, StatusAborted, StatusFailed:
		return true
	default:
		return false
	}
}

// ParseStatus converts the textual form of a status.
func ParseStatus(s string) (ActionStatus, error) {
	switch st := ActionStatus(s); st {
	case StatusPending, StatusRunning, StatusComplete, StatusAborted, StatusFailed:
		return st, nil
	default:
		return "", fmt.Errorf("unknown action status %q", s)
	}
}

// ActionState is the runner-owned record wrapping an action. Snapshots handed
// out by the runner are values; mutating them does not affect the runner.
type ActionState struct {
	Action

	ID          string       `json:"id"`
	Status      ActionStatus `json:"status"`
	Executed    bool         `json:"executed"`
	Output      string       `json:"output,omitempty"`
	Error       string       `json:"error,omitempty"`
	LongRunning bool         `json:"long_running,omitempty"`
	ExitCode    *int         `json:"exit_code,omitempty"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Failed reports whether the action ended in the failed state.
func (s ActionState) Failed() bool { return s.Status == StatusFailed }

// InBackground reports whether a long-running command completed its unit while
// its process is still alive. The exit code is recorded once it exits.
func (s ActionState) InBackground() bool {
	return s.LongRunning && s.Status == StatusComplete && s.ExitCode == nil
}
