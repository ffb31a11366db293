package payroll

import "fmt"

// RunStatus enum
type RunStatus string

const (
	RunStatusDraft     RunStatus = "draft"
	RunStatusApproved  RunStatus = "approved"
	RunStatusCompleted RunStatus = "completed"
)

func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusDraft, RunStatusApproved, RunStatusCompleted:
		return true
	}
	return false
}

// runTransitions lists the only legal moves of the run state machine.
var runTransitions = map[RunStatus][]RunStatus{
	RunStatusDraft:    {RunStatusApproved},
	RunStatusApproved: {RunStatusCompleted},
}

// CanTransitionTo reports whether a run in status s may move to next.
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	for _, allowed := range runTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CheckTransition returns ErrInvalidStatusTransition wrapped with the attempted move.
func CheckTransition(from, to RunStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, from, to)
	}
	return nil
}
