package models

import (
	id "veriflow/pkg/domain"
)

// Submission is the event a form adapter emits when a user completes a
// verification form. Provider and Event name the adapter and its hook for
// audit provenance; Fields carries the raw answers opaquely.
type Submission struct {
	UserID   id.UserID `json:"user_id"`
	FormID   id.FormID `json:"form_id"`
	Provider string    `json:"provider,omitempty"`
	Event    string    `json:"event,omitempty"`
	// VoucherEmail, when present, routes the submission through the external
	// vouching flow instead of the default admin notification.
	VoucherEmail string `json:"voucher_email,omitempty"`
	// DisplayName is the submitter's self-reported name, used in notification
	// contexts. A fallback is derived from the user's email when empty.
	DisplayName string `json:"display_name,omitempty"`
	// Fields holds the submitted answers keyed by field name. Values are
	// passed through to notification templates untouched.
	Fields map[string]any `json:"fields,omitempty"`
}

// IsActionable reports whether the submission identifies a user and a form.
// Non-actionable submissions are silently ignored by intake.
func (s Submission) IsActionable() bool {
	return !s.UserID.IsNil() && !s.FormID.IsNil()
}
