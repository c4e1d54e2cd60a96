package models

import (
	dErrors "veriflow/pkg/domain-errors"
)

// Action enumerates the operator decisions applied to a request.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionReopen  Action = "reopen"
	ActionResend  Action = "resend"
)

// ParseAction validates and returns an Action.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	switch a {
	case ActionApprove, ActionReject, ActionReopen, ActionResend:
		return a, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unknown action: "+s)
}

// TargetStatus returns the status an approve/reject action drives the request
// to. Reopen targets pending; resend leaves the status unchanged and returns
// false.
func (a Action) TargetStatus() (Status, bool) {
	switch a {
	case ActionApprove:
		return StatusApproved, true
	case ActionReject:
		return StatusRejected, true
	case ActionReopen:
		return StatusPending, true
	}
	return "", false
}

func (a Action) String() string {
	return string(a)
}
