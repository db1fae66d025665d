// Package admin protects the operator listener.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"mintgate/pkg/platform/httputil"
	"mintgate/pkg/requestcontext"
)

// HeaderAdminToken carries the operator token on admin requests.
const HeaderAdminToken = "X-Admin-Token"

// RequireAdminToken guards the admin router. An empty expected token disables
// the check; the admin listener is then expected to be reachable only from a
// trusted network.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if expectedToken == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(HeaderAdminToken)
			if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "rejected admin request",
					"request_id", requestcontext.RequestID(ctx),
					"method", r.Method,
					"path", r.URL.Path,
					"token_present", token != "",
				)
				httputil.WriteErrorCode(w, http.StatusUnauthorized, "unauthorized", "admin token required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
