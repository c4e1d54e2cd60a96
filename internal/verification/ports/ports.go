// Package ports defines the collaborator interfaces the verification engine
// consumes. Interfaces live here when more than one service depends on them,
// and so the engine can be wired against external role, mail, and config
// systems it does not own.
package ports

import (
	"context"
	"log/slog"
	"time"

	"veriflow/internal/verification/models"
	id "veriflow/pkg/domain"
	"veriflow/pkg/requestcontext"
)

// RequestStore persists verification requests.
//
// Update takes the version observed at load time and must fail with
// sentinel.ErrConflict when the stored version has moved on, so two
// concurrent decisions cannot both win.
type RequestStore interface {
	// Create persists a new request and assigns its ID.
	Create(ctx context.Context, request *models.Request) (id.RequestID, error)

	// Load returns a copy of the request, or sentinel.ErrNotFound.
	Load(ctx context.Context, requestID id.RequestID) (*models.Request, error)

	// Update persists the request guarded by the version read at load time.
	// Returns sentinel.ErrConflict if another writer got there first.
	Update(ctx context.Context, request *models.Request, expectedVersion int64) error

	// FindPending returns the user's pending request for the given form,
	// or sentinel.ErrNotFound.
	FindPending(ctx context.Context, userID id.UserID, formID id.FormID) (*models.Request, error)

	// FindLatest returns the user's most recent request of any status,
	// or sentinel.ErrNotFound.
	FindLatest(ctx context.Context, userID id.UserID) (*models.Request, error)
}

// ConfigProvider resolves per-form verification configuration.
type ConfigProvider interface {
	// GetByFormID returns the form's config, or sentinel.ErrNotFound when the
	// form is not a verification form.
	GetByFormID(ctx context.Context, formID id.FormID) (*models.FormConfig, error)
}

// RoleAssigner mutates a user's role set in the external role store.
type RoleAssigner interface {
	// GetRoles returns the user's current role slugs.
	GetRoles(ctx context.Context, userID id.UserID) ([]string, error)

	// SetSingleRole replaces the user's role set with the single given role.
	SetSingleRole(ctx context.Context, userID id.UserID, role string) error

	// RestoreRoles replaces the user's role set with a previously captured
	// snapshot.
	RestoreRoles(ctx context.Context, userID id.UserID, roles []string) error
}

// DirectoryReader looks up contact details for a user. Separated from
// RoleAssigner because role storage and the user directory are distinct
// external systems.
type DirectoryReader interface {
	// Email returns the user's address; empty when the user has none on file.
	Email(ctx context.Context, userID id.UserID) (string, error)

	// DisplayName returns the user's display name; empty when unknown.
	DisplayName(ctx context.Context, userID id.UserID) (string, error)
}

// Message is a rendered notification ready for the mail transport.
type Message struct {
	To      []string
	Subject string
	Body    string
	// BCC carries the acting operator's address when they asked to be copied.
	BCC []string
}

// Notifier hands a rendered message to the mail transport. Headers beyond
// the ones on Message are the transport's concern. Send is best-effort and
// synchronous; the transport enforces its own timeout.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// VouchDelegate hands a submission off to the external vouching flow when the
// context carries an external verifier's address. Returns true when the
// handoff happened, in which case the default admin notification is skipped.
type VouchDelegate interface {
	Delegate(ctx context.Context, request *models.Request, sub models.Submission) (bool, error)
}

// DecisionMade is broadcast to external subscribers after a decision commits.
type DecisionMade struct {
	RequestID id.RequestID
	UserID    id.UserID
	FormID    id.FormID
	Action    models.Action
	Status    models.Status
	ActorID   id.UserID
	Timestamp time.Time
}

// Subscriber reacts to committed decisions. Subscriber failures never affect
// the decision itself.
type Subscriber interface {
	Notify(ctx context.Context, event DecisionMade) error
}

// LogEvent is a shared helper for structured event logging across the
// verification services. Correlation IDs ride along when present.
func LogEvent(ctx context.Context, logger *slog.Logger, event string, attrs ...any) {
	if logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attrs = append(attrs, "request_id", requestID)
	}
	args := append(attrs, "event", event, "log_type", "audit")
	logger.InfoContext(ctx, event, args...)
}
