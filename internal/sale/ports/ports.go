// Package ports defines the interfaces the sale service depends on.
package ports

import (
	"context"

	"mintgate/internal/sale/models"
)

// StateStore persists the durable sale state: phase, totals and per-address
// counters. Several service instances may share one store, so the store is the
// authority on phase and ceilings: ApplyClaim checks the delta against the
// persisted state and applies it in one atomic step.
type StateStore interface {
	// Load returns the persisted state, or sentinel.ErrNotFound for a sale
	// that has never been written.
	Load(ctx context.Context) (*models.State, error)

	// ApplyClaim adds one claim to the persisted counters and returns them.
	// A claim the persisted phase or delta.Limits do not allow is rejected
	// with the *models.ClaimError State.Check reports, and nothing moves.
	// Deltas for phases other than early and open fail with
	// sentinel.ErrInvalidState.
	ApplyClaim(ctx context.Context, delta models.ClaimDelta) (models.ClaimResult, error)

	// SetPhase persists a phase change.
	SetPhase(ctx context.Context, phase models.Phase) error
}
