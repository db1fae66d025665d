package sentinel

import "errors"

// Sentinel errors for infrastructure facts. State stores return these
// (optionally wrapped) so the sale service can tell a missing snapshot from a
// failing backend.
//
// For claim rejections (phase, quantity, membership, quota, payment) use the
// typed errors in internal/sale/models instead.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
