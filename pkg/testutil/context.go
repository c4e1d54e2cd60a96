package testutil

import (
	"net/http"
	"time"

	id "veriflow/pkg/domain"
	"veriflow/pkg/requestcontext"
)

// WithActor adds an acting operator to the request context, simulating what
// the operator middleware does for authenticated admin requests.
// Unparsable IDs are silently ignored.
func WithActor(req *http.Request, actorID string) *http.Request {
	parsed, err := id.ParseUserID(actorID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithActorID(req.Context(), parsed))
}

// WithClientMetadata adds a client IP and User-Agent to the request context,
// bypassing the metadata middleware.
func WithClientMetadata(req *http.Request, clientIP, userAgent string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), clientIP, userAgent))
}

// WithFrozenTime pins the request-scoped clock so assertions on produced
// timestamps are exact.
func WithFrozenTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
