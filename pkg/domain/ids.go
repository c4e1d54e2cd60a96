package domain

import (
	"strconv"

	"github.com/google/uuid"

	dErrors "veriflow/pkg/domain-errors"
)

// Domain primitives for identifiers. Parsing enforces validity at trust
// boundaries so downstream code never re-validates.

// UserID identifies the subject user of a verification request. User accounts
// live in an external directory that hands out positive numeric IDs.
type UserID int64

// ParseUserID validates and returns a UserID.
func ParseUserID(s string) (UserID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInvalidInput, "user ID must be numeric")
	}
	if n <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "user ID must be positive")
	}
	return UserID(n), nil
}

// IsNil returns true when the ID does not reference a user.
func (u UserID) IsNil() bool {
	return u <= 0
}

func (u UserID) String() string {
	return strconv.FormatInt(int64(u), 10)
}

// RequestID identifies a verification request. Assigned by the request store
// on creation; the zero value means "no request".
type RequestID uuid.UUID

// NewRequestID returns a fresh random RequestID.
func NewRequestID() RequestID {
	return RequestID(uuid.New())
}

// ParseRequestID validates and returns a RequestID.
// Returns an error for empty, malformed, or nil UUIDs.
func ParseRequestID(s string) (RequestID, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return RequestID{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "request ID must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return RequestID{}, dErrors.New(dErrors.CodeInvalidInput, "request ID must not be nil")
	}
	return RequestID(parsed), nil
}

func (r RequestID) IsNil() bool {
	return uuid.UUID(r) == uuid.Nil
}

func (r RequestID) String() string {
	return uuid.UUID(r).String()
}

// FormID identifies the submitting form configuration. Free-form slug chosen
// by form adapters; only non-emptiness is enforced here.
type FormID string

func (f FormID) IsNil() bool {
	return f == ""
}

func (f FormID) String() string {
	return string(f)
}
