// Package ledger keeps the issuance counters of a sale: per-address claims for
// each phase plus running totals for the early phase and overall.
//
// A Ledger is not safe for concurrent use. The sale service owns it and holds
// its lock across check and commit.
package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"mintgate/internal/sale/models"
	"mintgate/pkg/platform/sentinel"
)

// Limits are the ceilings the ledger enforces.
type Limits struct {
	TotalSupplyCap     uint64
	EarlySupplyCap     uint64
	EarlyMaxPerAddress uint64
	OpenMaxPerAddress  uint64
}

// LimitsFrom picks the ledger ceilings out of a sale config.
func LimitsFrom(cfg models.Config) Limits {
	return Limits{
		TotalSupplyCap:     cfg.TotalSupplyCap,
		EarlySupplyCap:     cfg.EarlySupplyCap,
		EarlyMaxPerAddress: cfg.EarlyMaxPerAddress,
		OpenMaxPerAddress:  cfg.OpenMaxPerAddress,
	}
}

type Ledger struct {
	limits       Limits
	totalIssued  uint64
	earlyIssued  uint64
	earlyClaimed map[common.Address]uint64
	openClaimed  map[common.Address]uint64
}

// New returns an empty ledger.
func New(limits Limits) *Ledger {
	return &Ledger{
		limits:       limits,
		earlyClaimed: make(map[common.Address]uint64),
		openClaimed:  make(map[common.Address]uint64),
	}
}

// Restore rebuilds a ledger from persisted counters. A snapshot that already
// breaks a ceiling is rejected rather than silently accepted.
func Restore(limits Limits, state *models.State) (*Ledger, error) {
	l := New(limits)
	if state == nil {
		return l, nil
	}
	if state.TotalIssued > limits.TotalSupplyCap ||
		state.EarlyIssued > limits.EarlySupplyCap ||
		state.EarlyIssued > state.TotalIssued {
		return nil, fmt.Errorf("restore ledger: totals %d/%d outside caps: %w",
			state.EarlyIssued, state.TotalIssued, sentinel.ErrInvalidState)
	}

	var sumEarly, sumOpen uint64
	for addr, claims := range state.Addresses {
		if claims.Early > limits.EarlyMaxPerAddress || claims.Open > limits.OpenMaxPerAddress {
			return nil, fmt.Errorf("restore ledger: address %s over its allocation: %w",
				addr.Hex(), sentinel.ErrInvalidState)
		}
		if claims.Early > 0 {
			l.earlyClaimed[addr] = claims.Early
		}
		if claims.Open > 0 {
			l.openClaimed[addr] = claims.Open
		}
		sumEarly += claims.Early
		sumOpen += claims.Open
	}
	if sumEarly != state.EarlyIssued || sumEarly+sumOpen != state.TotalIssued {
		return nil, fmt.Errorf("restore ledger: per-address counters do not add up to totals: %w",
			sentinel.ErrInvalidState)
	}

	l.totalIssued = state.TotalIssued
	l.earlyIssued = state.EarlyIssued
	return l, nil
}

// CheckEarly returns the first ceiling an early claim of qty by addr would
// break, or "" when it fits. Ceilings are checked per-address first, then
// early supply, then total supply.
func (l *Ledger) CheckEarly(addr common.Address, qty uint64) models.QuotaReason {
	if exceeds(l.earlyClaimed[addr], qty, l.limits.EarlyMaxPerAddress) {
		return models.ReasonAddressLimit
	}
	if exceeds(l.earlyIssued, qty, l.limits.EarlySupplyCap) {
		return models.ReasonPhaseSupply
	}
	if exceeds(l.totalIssued, qty, l.limits.TotalSupplyCap) {
		return models.ReasonTotalSupply
	}
	return ""
}

// CheckOpen is CheckEarly for the open phase, which has no phase supply cap.
func (l *Ledger) CheckOpen(addr common.Address, qty uint64) models.QuotaReason {
	if exceeds(l.openClaimed[addr], qty, l.limits.OpenMaxPerAddress) {
		return models.ReasonAddressLimit
	}
	if exceeds(l.totalIssued, qty, l.limits.TotalSupplyCap) {
		return models.ReasonTotalSupply
	}
	return ""
}

func (l *Ledger) CanClaimEarly(addr common.Address, qty uint64) bool {
	return l.CheckEarly(addr, qty) == ""
}

func (l *Ledger) CanClaimOpen(addr common.Address, qty uint64) bool {
	return l.CheckOpen(addr, qty) == ""
}

// CommitEarly records an early claim. The caller must have checked it.
func (l *Ledger) CommitEarly(addr common.Address, qty uint64) {
	l.earlyClaimed[addr] += qty
	l.earlyIssued += qty
	l.totalIssued += qty
}

// CommitOpen records an open claim. The caller must have checked it.
func (l *Ledger) CommitOpen(addr common.Address, qty uint64) {
	l.openClaimed[addr] += qty
	l.totalIssued += qty
}

func (l *Ledger) TotalIssued() uint64 { return l.totalIssued }

func (l *Ledger) EarlyIssued() uint64 { return l.earlyIssued }

// Claims returns addr's per-phase counters; unknown addresses read as zero.
func (l *Ledger) Claims(addr common.Address) models.AddressClaims {
	return models.AddressClaims{
		Early: l.earlyClaimed[addr],
		Open:  l.openClaimed[addr],
	}
}

// Limits returns the ceilings the ledger was built with.
func (l *Ledger) Limits() Limits { return l.limits }

// Snapshot copies the counters into a State with the given phase.
func (l *Ledger) Snapshot(phase models.Phase) *models.State {
	state := models.NewState()
	state.Phase = phase
	state.TotalIssued = l.totalIssued
	state.EarlyIssued = l.earlyIssued
	for addr, n := range l.earlyClaimed {
		c := state.Addresses[addr]
		c.Early = n
		state.Addresses[addr] = c
	}
	for addr, n := range l.openClaimed {
		c := state.Addresses[addr]
		c.Open = n
		state.Addresses[addr] = c
	}
	return state
}

// exceeds reports used+qty > limit without overflowing.
func exceeds(used, qty, limit uint64) bool {
	return used > limit || qty > limit-used
}
