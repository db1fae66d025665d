package models

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MaxCounter is the largest value any supply counter or limit may take.
const MaxCounter = math.MaxInt64

// Config is the immutable sale configuration fixed at construction.
type Config struct {
	TotalSupplyCap     uint64
	EarlySupplyCap     uint64
	EarlyMaxPerTx      uint64
	OpenMaxPerTx       uint64
	EarlyMaxPerAddress uint64
	OpenMaxPerAddress  uint64
	EarlyPrice         *big.Int
	OpenPrice          *big.Int
	AllowlistRoot      common.Hash
}

// Validate checks the cross-field constraints of the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.TotalSupplyCap == 0 {
		errs = append(errs, errors.New("total supply cap must be positive"))
	}
	if c.EarlySupplyCap > c.TotalSupplyCap {
		errs = append(errs, fmt.Errorf("early supply cap %d exceeds total supply cap %d", c.EarlySupplyCap, c.TotalSupplyCap))
	}
	if c.EarlyMaxPerTx == 0 || c.OpenMaxPerTx == 0 {
		errs = append(errs, errors.New("per-transaction limits must be positive"))
	}
	if c.EarlyMaxPerAddress == 0 || c.OpenMaxPerAddress == 0 {
		errs = append(errs, errors.New("per-address limits must be positive"))
	}
	// Counters are stored as signed 64-bit columns and fields.
	for _, limit := range []struct {
		name  string
		value uint64
	}{
		{"total supply cap", c.TotalSupplyCap},
		{"early supply cap", c.EarlySupplyCap},
		{"early max per tx", c.EarlyMaxPerTx},
		{"open max per tx", c.OpenMaxPerTx},
		{"early max per address", c.EarlyMaxPerAddress},
		{"open max per address", c.OpenMaxPerAddress},
	} {
		if limit.value > MaxCounter {
			errs = append(errs, fmt.Errorf("%s %d exceeds %d", limit.name, limit.value, uint64(MaxCounter)))
		}
	}
	if c.EarlyPrice == nil || c.EarlyPrice.Sign() < 0 {
		errs = append(errs, errors.New("early price must be a non-negative amount"))
	}
	if c.OpenPrice == nil || c.OpenPrice.Sign() < 0 {
		errs = append(errs, errors.New("open price must be a non-negative amount"))
	}
	if c.AllowlistRoot == (common.Hash{}) {
		errs = append(errs, errors.New("allowlist root is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid sale config: %w", errors.Join(errs...))
	}
	return nil
}

// PriceFor returns the unit price of the given phase. Closed has no price.
func (c Config) PriceFor(phase Phase) *big.Int {
	switch phase {
	case PhaseEarly:
		return new(big.Int).Set(c.EarlyPrice)
	case PhaseOpen:
		return new(big.Int).Set(c.OpenPrice)
	default:
		return new(big.Int)
	}
}

// ClaimLimits returns the ceilings a claim in phase is checked against.
func (c Config) ClaimLimits(phase Phase) ClaimLimits {
	limits := ClaimLimits{
		EarlySupply: c.EarlySupplyCap,
		TotalSupply: c.TotalSupplyCap,
	}
	switch phase {
	case PhaseEarly:
		limits.AddressMax = c.EarlyMaxPerAddress
	case PhaseOpen:
		limits.AddressMax = c.OpenMaxPerAddress
	}
	return limits
}

// MaxPerTx returns the per-call quantity ceiling of the given phase.
func (c Config) MaxPerTx(phase Phase) uint64 {
	switch phase {
	case PhaseEarly:
		return c.EarlyMaxPerTx
	case PhaseOpen:
		return c.OpenMaxPerTx
	default:
		return 0
	}
}
