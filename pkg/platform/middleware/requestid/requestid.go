// Package requestid assigns each HTTP request a correlation ID. Inbound
// X-Request-ID headers are honored so IDs survive proxy hops; otherwise a
// fresh one is generated.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"veriflow/pkg/requestcontext"
)

const Header = "X-Request-ID"

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(Header)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(Header, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
