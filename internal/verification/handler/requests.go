package handler

import (
	"strings"

	"veriflow/internal/verification/models"
	id "veriflow/pkg/domain"
	dErrors "veriflow/pkg/domain-errors"
)

// SubmissionRequest is the HTTP request body for POST /submissions.
type SubmissionRequest struct {
	UserID       string         `json:"user_id"`
	FormID       string         `json:"form_id"`
	Provider     string         `json:"provider"`
	Event        string         `json:"event"`
	VoucherEmail string         `json:"voucher_email"`
	DisplayName  string         `json:"display_name"`
	Fields       map[string]any `json:"fields"`

	// Parsed values (populated by Validate)
	parsedUserID id.UserID
}

// Validate validates and parses the request.
// Implements the Validator interface for httputil.DecodeAndPrepare.
func (r *SubmissionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.UserID = strings.TrimSpace(r.UserID)
	if r.UserID == "" {
		return dErrors.New(dErrors.CodeValidation, "user_id is required")
	}
	userID, err := id.ParseUserID(r.UserID)
	if err != nil {
		return err
	}
	r.parsedUserID = userID

	r.FormID = strings.TrimSpace(r.FormID)
	if r.FormID == "" {
		return dErrors.New(dErrors.CodeValidation, "form_id is required")
	}

	return nil
}

// ToSubmission converts the validated request into the domain submission.
func (r *SubmissionRequest) ToSubmission() models.Submission {
	return models.Submission{
		UserID:       r.parsedUserID,
		FormID:       id.FormID(r.FormID),
		Provider:     strings.TrimSpace(r.Provider),
		Event:        strings.TrimSpace(r.Event),
		VoucherEmail: strings.TrimSpace(r.VoucherEmail),
		DisplayName:  strings.TrimSpace(r.DisplayName),
		Fields:       r.Fields,
	}
}

// DecisionRequest is the HTTP request body for POST /requests/{id}/decisions.
type DecisionRequest struct {
	Action  string `json:"action"`
	ActorID string `json:"actor_id"`
	CCSelf  bool   `json:"cc_self"`

	// Parsed values (populated by Validate)
	parsedAction  models.Action
	parsedActorID id.UserID
}

// Validate validates and parses the request.
func (r *DecisionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Action = strings.TrimSpace(r.Action)
	if r.Action == "" {
		return dErrors.New(dErrors.CodeValidation, "action is required")
	}
	action, err := models.ParseAction(r.Action)
	if err != nil {
		return err
	}
	r.parsedAction = action

	r.ActorID = strings.TrimSpace(r.ActorID)
	if r.ActorID != "" {
		actorID, err := id.ParseUserID(r.ActorID)
		if err != nil {
			return err
		}
		r.parsedActorID = actorID
	}

	return nil
}

// ParsedAction returns the validated action.
func (r *DecisionRequest) ParsedAction() models.Action {
	return r.parsedAction
}

// ParsedActorID returns the validated actor ID; zero when the body omitted it
// and the acting operator comes from the request context instead.
func (r *DecisionRequest) ParsedActorID() id.UserID {
	return r.parsedActorID
}
