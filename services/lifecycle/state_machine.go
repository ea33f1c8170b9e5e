// Package lifecycle holds the application status transition rules.
package lifecycle

import (
	"github.com/upb/internship-placement/models"
	"github.com/upb/internship-placement/services"
)

// Transition is a company decision on an application
type Transition string

const (
	Accept Transition = "accept"
	Reject Transition = "reject"
)

// Target returns the status a transition leads to
func (t Transition) Target() (models.ApplicationStatus, bool) {
	switch t {
	case Accept:
		return models.StatusAccepted, true
	case Reject:
		return models.StatusRejected, true
	default:
		return "", false
	}
}

// StateMachine validates transitions. Only pending applications move, and accepted
// and rejected are final: repeating a decision is an error, not a no-op.
type StateMachine struct{}

// NewStateMachine creates a state machine
func NewStateMachine() *StateMachine {
	return &StateMachine{}
}

// Next returns the status reached by applying t to current
func (m *StateMachine) Next(current models.ApplicationStatus, t Transition) (models.ApplicationStatus, error) {
	target, ok := t.Target()
	if !ok {
		return "", services.ErrInvalidInput.Newf("unknown transition %q", t).
			WithDetail("transition", string(t))
	}

	if current != models.StatusPending {
		return "", services.ErrInvalidTransition.Newf("cannot %s an application that is %s", t, current).
			WithDetail("current_status", string(current)).
			WithDetail("transition", string(t))
	}

	return target, nil
}
