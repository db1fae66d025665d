// Package caller resolves the implicit claimant address of a request.
//
// The address is asserted by the fronting gateway (which owns signature
// checking) through the X-Caller-Address header. Requests without a valid
// address simply carry no caller; handlers that need one reject them.
package caller

import (
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"mintgate/pkg/requestcontext"
)

// HeaderCallerAddress carries the 0x-prefixed claimant address.
const HeaderCallerAddress = "X-Caller-Address"

// Middleware copies a well-formed caller address into the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if addr, ok := FromRequest(r); ok {
			r = r.WithContext(requestcontext.WithCaller(r.Context(), addr))
		}
		next.ServeHTTP(w, r)
	})
}

// FromRequest parses the caller header. The zero address is rejected.
func FromRequest(r *http.Request) (common.Address, bool) {
	raw := strings.TrimSpace(r.Header.Get(HeaderCallerAddress))
	if !common.IsHexAddress(raw) {
		return common.Address{}, false
	}
	addr := common.HexToAddress(raw)
	if addr == (common.Address{}) {
		return common.Address{}, false
	}
	return addr, true
}
