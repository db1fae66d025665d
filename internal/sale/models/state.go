package models

import "github.com/ethereum/go-ethereum/common"

// AddressClaims is how many units one address has claimed in each phase.
type AddressClaims struct {
	Early uint64 `json:"early_claimed"`
	Open  uint64 `json:"open_claimed"`
}

// State is the durable mutable state of a sale: the phase plus every counter.
// Per-address entries exist only for addresses that have claimed.
type State struct {
	Phase       Phase
	TotalIssued uint64
	EarlyIssued uint64
	Addresses   map[common.Address]AddressClaims
}

// NewState returns an empty, closed sale.
func NewState() *State {
	return &State{
		Phase:     PhaseClosed,
		Addresses: make(map[common.Address]AddressClaims),
	}
}

// Clone deep-copies the state.
func (s *State) Clone() *State {
	out := &State{
		Phase:       s.Phase,
		TotalIssued: s.TotalIssued,
		EarlyIssued: s.EarlyIssued,
		Addresses:   make(map[common.Address]AddressClaims, len(s.Addresses)),
	}
	for addr, claims := range s.Addresses {
		out.Addresses[addr] = claims
	}
	return out
}

// ClaimDelta is the change one successful claim applies to the state. Stores
// check it against Limits and the persisted phase and then persist it
// atomically, before the in-memory ledger is advanced.
type ClaimDelta struct {
	Address  common.Address
	Phase    Phase
	Quantity uint64
	Limits   ClaimLimits
}

// ClaimLimits are the ceilings a claim is checked against. AddressMax is the
// per-address limit of the claim's phase; EarlySupply applies to early claims
// only.
type ClaimLimits struct {
	AddressMax  uint64
	EarlySupply uint64
	TotalSupply uint64
}

// ClaimResult is the persisted state right after a claim was applied.
type ClaimResult struct {
	TotalIssued uint64
	EarlyIssued uint64
	Claims      AddressClaims
}

// FirstUnit is the number of the first unit the claim of qty issued.
func (r ClaimResult) FirstUnit(qty uint64) uint64 {
	return r.TotalIssued - qty + 1
}

// Check returns the first reason s cannot take d: a phase error when the sale
// is not in d.Phase, then quota errors by address, phase supply and total
// supply.
func (s *State) Check(d ClaimDelta) error {
	if s.Phase != d.Phase {
		return NewPhaseError(d.Phase)
	}
	claims := s.Addresses[d.Address]
	switch d.Phase {
	case PhaseEarly:
		if exceeds(claims.Early, d.Quantity, d.Limits.AddressMax) {
			return NewQuotaError(ReasonAddressLimit)
		}
		if exceeds(s.EarlyIssued, d.Quantity, d.Limits.EarlySupply) {
			return NewQuotaError(ReasonPhaseSupply)
		}
	case PhaseOpen:
		if exceeds(claims.Open, d.Quantity, d.Limits.AddressMax) {
			return NewQuotaError(ReasonAddressLimit)
		}
	}
	if exceeds(s.TotalIssued, d.Quantity, d.Limits.TotalSupply) {
		return NewQuotaError(ReasonTotalSupply)
	}
	return nil
}

// Apply adds the delta to s.
func (s *State) Apply(d ClaimDelta) {
	claims := s.Addresses[d.Address]
	switch d.Phase {
	case PhaseEarly:
		claims.Early += d.Quantity
		s.EarlyIssued += d.Quantity
	case PhaseOpen:
		claims.Open += d.Quantity
	}
	s.TotalIssued += d.Quantity
	s.Addresses[d.Address] = claims
}

// Result reports the counters a claim by addr left behind.
func (s *State) Result(addr common.Address) ClaimResult {
	return ClaimResult{
		TotalIssued: s.TotalIssued,
		EarlyIssued: s.EarlyIssued,
		Claims:      s.Addresses[addr],
	}
}

// exceeds reports used+qty > limit without overflowing.
func exceeds(used, qty, limit uint64) bool {
	return used > limit || qty > limit-used
}
