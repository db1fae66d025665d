package models

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePhase(t *testing.T) {
	tests := []struct {
		in   string
		want Phase
	}{
		{"closed", PhaseClosed},
		{"0", PhaseClosed},
		{"early", PhaseEarly},
		{"Presale", PhaseEarly},
		{"1", PhaseEarly},
		{" open ", PhaseOpen},
		{"public", PhaseOpen},
		{"2", PhaseOpen},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePhase(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "3", "-1", "soon", "256"} {
		_, err := ParsePhase(bad)
		assert.ErrorIs(t, err, ErrInvalidPhase, "input %q", bad)
	}
}

func TestPhaseText(t *testing.T) {
	text, err := PhaseOpen.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "open", string(text))

	var p Phase
	require.NoError(t, p.UnmarshalText([]byte("presale")))
	assert.Equal(t, PhaseEarly, p)

	_, err = Phase(7).MarshalText()
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func validConfig() Config {
	return Config{
		TotalSupplyCap:     15,
		EarlySupplyCap:     12,
		EarlyMaxPerTx:      4,
		OpenMaxPerTx:       5,
		EarlyMaxPerAddress: 4,
		OpenMaxPerAddress:  5,
		EarlyPrice:         big.NewInt(50),
		OpenPrice:          big.NewInt(80),
		AllowlistRoot:      common.HexToHash("0x01"),
	}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	largest := validConfig()
	largest.TotalSupplyCap = MaxCounter
	largest.OpenMaxPerTx = MaxCounter
	largest.OpenMaxPerAddress = MaxCounter
	require.NoError(t, largest.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"early cap above total", func(c *Config) { c.EarlySupplyCap = 16 }, "exceeds total supply cap"},
		{"zero total", func(c *Config) { c.TotalSupplyCap = 0; c.EarlySupplyCap = 0 }, "total supply cap must be positive"},
		{"zero per tx", func(c *Config) { c.OpenMaxPerTx = 0 }, "per-transaction"},
		{"zero per address", func(c *Config) { c.EarlyMaxPerAddress = 0 }, "per-address"},
		{"negative price", func(c *Config) { c.OpenPrice = big.NewInt(-1) }, "open price"},
		{"nil price", func(c *Config) { c.EarlyPrice = nil }, "early price"},
		{"missing root", func(c *Config) { c.AllowlistRoot = common.Hash{} }, "allowlist root"},
		{"per-tx limit beyond signed range", func(c *Config) { c.OpenMaxPerTx = math.MaxUint64 }, "open max per tx"},
		{"per-address limit beyond signed range", func(c *Config) { c.EarlyMaxPerAddress = MaxCounter + 1 }, "early max per address"},
		{"supply beyond signed range", func(c *Config) { c.TotalSupplyCap = math.MaxUint64 }, "total supply cap"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestStateApply(t *testing.T) {
	addr := common.HexToAddress("0xaa")
	s := NewState()
	s.Apply(ClaimDelta{Address: addr, Phase: PhaseEarly, Quantity: 4})
	s.Apply(ClaimDelta{Address: addr, Phase: PhaseOpen, Quantity: 5})

	assert.Equal(t, uint64(9), s.TotalIssued)
	assert.Equal(t, uint64(4), s.EarlyIssued)
	assert.Equal(t, AddressClaims{Early: 4, Open: 5}, s.Addresses[addr])

	clone := s.Clone()
	clone.Apply(ClaimDelta{Address: addr, Phase: PhaseOpen, Quantity: 1})
	assert.Equal(t, uint64(5), s.Addresses[addr].Open, "clone must not alias the original")
}

func TestStateCheck(t *testing.T) {
	addr := common.HexToAddress("0xaa")
	other := common.HexToAddress("0xbb")
	cfg := validConfig()
	early := func(a common.Address, qty uint64) ClaimDelta {
		return ClaimDelta{Address: a, Phase: PhaseEarly, Quantity: qty, Limits: cfg.ClaimLimits(PhaseEarly)}
	}
	open := func(a common.Address, qty uint64) ClaimDelta {
		return ClaimDelta{Address: a, Phase: PhaseOpen, Quantity: qty, Limits: cfg.ClaimLimits(PhaseOpen)}
	}

	s := NewState()
	assert.ErrorIs(t, s.Check(early(addr, 1)), ErrPhase)

	s.Phase = PhaseEarly
	require.NoError(t, s.Check(early(addr, 4)))
	assert.ErrorIs(t, s.Check(open(addr, 1)), ErrPhase)
	assert.Equal(t, ReasonAddressLimit, QuotaReasonOf(s.Check(early(addr, 5))))

	s.Apply(early(addr, 4))
	s.Apply(early(other, 4))
	s.EarlyIssued, s.TotalIssued = 12, 12
	s.Addresses[common.HexToAddress("0xcc")] = AddressClaims{Early: 4}
	// Address ceiling is reported before the phase supply.
	assert.Equal(t, ReasonAddressLimit, QuotaReasonOf(s.Check(early(addr, 1))))
	assert.Equal(t, ReasonPhaseSupply, QuotaReasonOf(s.Check(early(common.HexToAddress("0xdd"), 1))))

	s.Phase = PhaseOpen
	require.NoError(t, s.Check(open(addr, 3)))
	assert.Equal(t, ReasonTotalSupply, QuotaReasonOf(s.Check(open(addr, 4))))
	assert.Equal(t, ReasonAddressLimit, QuotaReasonOf(s.Check(open(addr, 6))))

	t.Run("huge quantities do not wrap", func(t *testing.T) {
		assert.Equal(t, ReasonAddressLimit, QuotaReasonOf(s.Check(open(addr, math.MaxUint64))))
	})

	t.Run("result numbers units from the new total", func(t *testing.T) {
		clone := s.Clone()
		clone.Apply(open(addr, 3))
		res := clone.Result(addr)
		assert.Equal(t, uint64(15), res.TotalIssued)
		assert.Equal(t, uint64(13), res.FirstUnit(3))
		assert.Equal(t, AddressClaims{Early: 4, Open: 3}, res.Claims)
	})
}

func TestClaimErrors(t *testing.T) {
	err := fmt.Errorf("claim: %w", NewQuotaError(ReasonPhaseSupply))
	assert.True(t, errors.Is(err, ErrQuota))
	assert.False(t, errors.Is(err, ErrPayment))
	assert.Equal(t, ReasonPhaseSupply, QuotaReasonOf(err))
	assert.Equal(t, "quantity exceeds max supply for presale", NewQuotaError(ReasonPhaseSupply).Error())

	assert.Equal(t, QuotaReason(""), QuotaReasonOf(NewPaymentError()))
	assert.Equal(t, "presale is not open", NewPhaseError(PhaseEarly).Error())
	assert.Equal(t, "public sale is not open", NewPhaseError(PhaseOpen).Error())
}
