// Package requesttime stamps every request with a single "now" and a request ID
// so claim logs and receipts produced by one request agree with each other.
package requesttime

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"mintgate/pkg/requestcontext"
)

// HeaderRequestID is echoed back on every response.
const HeaderRequestID = "X-Request-ID"

// Middleware captures the current time at the start of the request and assigns
// a request ID (reusing an inbound X-Request-ID when present).
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		ctx = requestcontext.WithRequestID(ctx, requestID)
		w.Header().Set(HeaderRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
