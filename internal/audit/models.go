package audit

import (
	"time"

	id "veriflow/pkg/domain"
)

// Action tags an audit entry with the lifecycle step it records.
type Action string

const (
	// Intake actions.
	ActionCreated          Action = "created"
	ActionUpgradeSubmitted Action = "upgrade_submitted"

	// Decision actions. The *_begin entries land before side effects so a
	// crash mid-transition is visible in the trail.
	ActionApproveBegin       Action = "approve_begin"
	ActionApproved           Action = "approved"
	ActionApproveFailedWrite Action = "approve_failed_update"
	ActionRejectBegin        Action = "reject_begin"
	ActionRejected           Action = "rejected"
	ActionRejectFailedWrite  Action = "reject_failed_update"
	ActionReopened           Action = "reopened"
	ActionReopenFailedWrite  Action = "reopen_failed_update"
	ActionResend             Action = "resend"

	// Notification actions.
	ActionEmailSent      Action = "email_sent"
	ActionEmailFailed    Action = "email_failed"
	ActionEmailSkipped   Action = "email_skipped"
	ActionVouchEmailSent Action = "vouch_email_sent"
)

// Entry records one action against a verification request. Entries are
// immutable once appended and keep insertion order for the life of the
// request; the trail is the sole history, there is no snapshot table.
type Entry struct {
	RequestID id.RequestID `json:"request_id"`
	Timestamp time.Time    `json:"timestamp"`
	// ActorID is the operator who triggered the action; zero for
	// system-triggered entries such as intake.
	ActorID id.UserID         `json:"actor_id,omitempty"`
	Action  Action            `json:"action"`
	Data    map[string]string `json:"data,omitempty"`
}

// Well-known Data keys. Role lists are comma-joined slugs.
const (
	DataFromRole   = "from_role"
	DataToRole     = "to_role"
	DataFromForm   = "from_form"
	DataToForm     = "to_form"
	DataFromStatus = "from_status"
	DataProvider   = "provider"
	DataEvent      = "event"
	DataFormID     = "form_id"
	DataReason     = "reason"
	DataRecipient  = "recipient"
	DataError      = "error"
)
