package testutil

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"mintgate/pkg/platform/middleware/admin"
	"mintgate/pkg/platform/middleware/caller"
)

// AsCaller sets the caller header the gateway would assert for addr.
func AsCaller(req *http.Request, addr common.Address) *http.Request {
	req.Header.Set(caller.HeaderCallerAddress, addr.Hex())
	return req
}

// WithAdminToken sets the operator token header.
func WithAdminToken(req *http.Request, token string) *http.Request {
	req.Header.Set(admin.HeaderAdminToken, token)
	return req
}
