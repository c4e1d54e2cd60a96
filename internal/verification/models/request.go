package models

import (
	"strings"
	"time"

	id "veriflow/pkg/domain"
	dErrors "veriflow/pkg/domain-errors"
)

// Request is the aggregate root for a user's verification lifecycle.
//
// Invariants:
//   - UserID is immutable after creation; reuse retargets FormID, never UserID
//   - Status changes only through the decision service (or intake's reopen on
//     reuse), validated by Status.CanTransitionTo
//   - OldRoles holds the snapshot taken immediately before the most recent
//     approve/reject side effect; it is overwritten, never accumulated
//   - ProcessedBy/ProcessedAt are stamped on approve/reject and cleared on
//     reopen and reuse
//   - Version increments on every persisted update; stores use it as the
//     optimistic-concurrency guard so concurrent writers cannot both win
//
// A user has at most one request record. History accumulates in the audit
// trail, not in additional request rows.
type Request struct {
	ID          id.RequestID `json:"id"`
	UserID      id.UserID    `json:"user_id"`
	FormID      id.FormID    `json:"form_id"`
	Status      Status       `json:"status"`
	OldRoles    []string     `json:"old_roles"`
	ProcessedBy id.UserID    `json:"processed_by,omitempty"`
	ProcessedAt *time.Time   `json:"processed_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	Version     int64        `json:"version"`
}

// CanApply checks whether the action is valid from the current status.
// Returns an error for invalid transitions; callers treat it as "already
// processed" and report a no-op rather than a failure.
func (r *Request) CanApply(action Action) error {
	switch action {
	case ActionApprove, ActionReject:
		if r.Status != StatusPending {
			return dErrors.New(dErrors.CodeInvariantViolation, "request is not pending")
		}
	case ActionReopen, ActionResend:
		if !r.Status.IsDecided() {
			return dErrors.New(dErrors.CodeInvariantViolation, "request has not been decided")
		}
	default:
		return dErrors.New(dErrors.CodeInvalidInput, "unknown action: "+string(action))
	}
	return nil
}

// ApplyDecision transitions to the decided status, snapshotting the user's
// current roles for a later reopen. Call CanApply first.
func (r *Request) ApplyDecision(target Status, roles []string, actor id.UserID, now time.Time) {
	r.Status = target
	r.OldRoles = append([]string(nil), roles...)
	r.ProcessedBy = actor
	r.ProcessedAt = &now
}

// ApplyReopen moves a decided request back to pending and clears the
// processing stamp. Role restoration is the caller's side effect; the stored
// snapshot stays in place so the audit entry can still reference it.
func (r *Request) ApplyReopen() {
	r.Status = StatusPending
	r.ProcessedBy = 0
	r.ProcessedAt = nil
}

// Retarget points an existing request at a new form on resubmission. The
// request returns to pending with a fresh role snapshot; the user keeps a
// single request record for their whole history.
func (r *Request) Retarget(formID id.FormID, roles []string) {
	r.FormID = formID
	r.Status = StatusPending
	r.OldRoles = append([]string(nil), roles...)
	r.ProcessedBy = 0
	r.ProcessedAt = nil
}

// Clone returns a deep copy so stores can hand out values without aliasing
// the stored slices.
func (r *Request) Clone() *Request {
	dup := *r
	dup.OldRoles = append([]string(nil), r.OldRoles...)
	if r.ProcessedAt != nil {
		at := *r.ProcessedAt
		dup.ProcessedAt = &at
	}
	return &dup
}

// JoinRoles renders a role set for audit data as a comma-joined list.
func JoinRoles(roles []string) string {
	return strings.Join(roles, ",")
}

// SplitRoles parses a comma-joined role list back into a slice.
// Empty input yields an empty slice.
func SplitRoles(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}
