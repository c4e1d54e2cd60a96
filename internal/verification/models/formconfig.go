package models

import (
	id "veriflow/pkg/domain"
)

// FormConfig carries the per-form verification settings resolved by the
// config provider. Read-only to this engine; absence of a config means the
// form is not a verification form and submissions are ignored.
type FormConfig struct {
	FormID         id.FormID `json:"form_id"`
	ApprovedRole   string    `json:"approved_role"`
	RejectedRole   string    `json:"rejected_role"`
	ApproveSubject string    `json:"approve_subject"`
	ApproveBody    string    `json:"approve_body"`
	RejectSubject  string    `json:"reject_subject"`
	RejectBody     string    `json:"reject_body"`
	// Recipients are the admin addresses notified about new submissions.
	Recipients []string `json:"recipients,omitempty"`
}

// DecisionTemplate returns the subject/body pair matching a decided status.
// The second return is false for undecided statuses.
func (c *FormConfig) DecisionTemplate(status Status) (subject, body string, ok bool) {
	switch status {
	case StatusApproved:
		return c.ApproveSubject, c.ApproveBody, true
	case StatusRejected:
		return c.RejectSubject, c.RejectBody, true
	}
	return "", "", false
}

// DecisionRole returns the role assigned for a decided status.
func (c *FormConfig) DecisionRole(status Status) (string, bool) {
	switch status {
	case StatusApproved:
		return c.ApprovedRole, true
	case StatusRejected:
		return c.RejectedRole, true
	}
	return "", false
}
