package audit

import (
	"context"

	id "veriflow/pkg/domain"
	"veriflow/pkg/requestcontext"
)

// Store persists audit entries. Implementations must preserve insertion
// order per request and never mutate stored entries.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByRequest(ctx context.Context, requestID id.RequestID) ([]Entry, error)
}

// Trail captures the per-request action history. It is append-only and uses
// the storage layer for persistence so tests can swap sinks easily.
type Trail struct {
	store Store
}

func NewTrail(store Store) *Trail {
	return &Trail{store: store}
}

// Append records an entry, stamping the request-scoped time in UTC when the
// caller left the timestamp zero.
func (t *Trail) Append(ctx context.Context, entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = requestcontext.Now(ctx).UTC()
	}
	return t.store.Append(ctx, entry)
}

// List returns the entries for a request in insertion order.
func (t *Trail) List(ctx context.Context, requestID id.RequestID) ([]Entry, error) {
	return t.store.ListByRequest(ctx, requestID)
}
