package models

// Status enumerates the lifecycle states of a verification request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// IsValid reports whether the status is a known lifecycle state.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// IsDecided reports whether an operator has processed the request.
func (s Status) IsDecided() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransitionTo reports whether a direct transition to target is allowed.
// Pending moves to a decided state; decided states move back to pending on
// reopen. Everything else is rejected so double-processing stays a no-op.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPending:
		return target.IsDecided()
	case StatusApproved, StatusRejected:
		return target == StatusPending
	}
	return false
}

func (s Status) String() string {
	return string(s)
}
