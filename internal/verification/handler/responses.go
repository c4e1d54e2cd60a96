package handler

import (
	"time"

	"veriflow/internal/audit"
	"veriflow/internal/verification/models"
	id "veriflow/pkg/domain"
)

// SubmissionResponse is the HTTP response for POST /submissions.
// VerificationID is empty when the submission was ignored.
type SubmissionResponse struct {
	VerificationID string `json:"verification_id"`
}

// DecisionResponse is the HTTP response for POST /requests/{id}/decisions.
type DecisionResponse struct {
	Applied bool `json:"applied"`
}

// RequestResponse is the HTTP response for GET /requests/{id}.
type RequestResponse struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	FormID      string     `json:"form_id"`
	Status      string     `json:"status"`
	OldRoles    []string   `json:"old_roles"`
	ProcessedBy string     `json:"processed_by,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	Version     int64      `json:"version"`
}

// FromRequest converts a domain request to an HTTP response.
func FromRequest(request *models.Request) *RequestResponse {
	resp := &RequestResponse{
		ID:          request.ID.String(),
		UserID:      request.UserID.String(),
		FormID:      request.FormID.String(),
		Status:      string(request.Status),
		OldRoles:    request.OldRoles,
		ProcessedAt: request.ProcessedAt,
		CreatedAt:   request.CreatedAt,
		Version:     request.Version,
	}
	if !request.ProcessedBy.IsNil() {
		resp.ProcessedBy = request.ProcessedBy.String()
	}
	return resp
}

// AuditResponse is the HTTP response for GET /requests/{id}/audit.
type AuditResponse struct {
	VerificationID string          `json:"verification_id"`
	Entries        []EntryResponse `json:"entries"`
}

// EntryResponse is one audit entry in the response.
type EntryResponse struct {
	Timestamp time.Time         `json:"timestamp"`
	ActorID   string            `json:"actor_id,omitempty"`
	Action    string            `json:"action"`
	Data      map[string]string `json:"data,omitempty"`
}

// FromEntries converts a request's audit trail to an HTTP response.
func FromEntries(verificationID id.RequestID, entries []audit.Entry) *AuditResponse {
	resp := &AuditResponse{
		VerificationID: verificationID.String(),
		Entries:        make([]EntryResponse, 0, len(entries)),
	}
	for _, entry := range entries {
		out := EntryResponse{
			Timestamp: entry.Timestamp,
			Action:    string(entry.Action),
			Data:      entry.Data,
		}
		if !entry.ActorID.IsNil() {
			out.ActorID = entry.ActorID.String()
		}
		resp.Entries = append(resp.Entries, out)
	}
	return resp
}
