//go:build integration

package state_test

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/suite"

	"mintgate/internal/sale/models"
	"mintgate/internal/sale/ports"
	"mintgate/internal/sale/service"
	"mintgate/pkg/platform/sentinel"
)

var (
	earlyBuyer = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	openBuyer  = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
)

// saleConfig is the reference sale: 15 units, 12 early, 4 early and 5 open
// units per address.
func saleConfig() models.Config {
	return models.Config{
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

func claim(addr common.Address, phase models.Phase, qty uint64) models.ClaimDelta {
	return models.ClaimDelta{Address: addr, Phase: phase, Quantity: qty, Limits: saleConfig().ClaimLimits(phase)}
}

// storeContract holds the behaviour every durable StateStore must share.
type storeContract struct {
	suite.Suite
	store ports.StateStore
}

func (s *storeContract) TestLoadMissingSale() {
	_, err := s.store.Load(context.Background())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *storeContract) TestRoundTrip() {
	ctx := context.Background()
	s.Require().NoError(s.store.SetPhase(ctx, models.PhaseEarly))
	res, err := s.store.ApplyClaim(ctx, claim(earlyBuyer, models.PhaseEarly, 4))
	s.Require().NoError(err)
	s.Equal(models.ClaimResult{TotalIssued: 4, EarlyIssued: 4, Claims: models.AddressClaims{Early: 4}}, res)

	s.Require().NoError(s.store.SetPhase(ctx, models.PhaseOpen))
	_, err = s.store.ApplyClaim(ctx, claim(earlyBuyer, models.PhaseOpen, 5))
	s.Require().NoError(err)
	res, err = s.store.ApplyClaim(ctx, claim(openBuyer, models.PhaseOpen, 2))
	s.Require().NoError(err)
	s.Equal(uint64(11), res.TotalIssued)
	s.Equal(uint64(10), res.FirstUnit(2))

	got, err := s.store.Load(ctx)
	s.Require().NoError(err)
	s.Equal(models.PhaseOpen, got.Phase)
	s.Equal(uint64(11), got.TotalIssued)
	s.Equal(uint64(4), got.EarlyIssued)
	s.Equal(models.AddressClaims{Early: 4, Open: 5}, got.Addresses[earlyBuyer])
	s.Equal(models.AddressClaims{Open: 2}, got.Addresses[openBuyer])
}

func (s *storeContract) TestClaimAgainstClosedSaleRejected() {
	ctx := context.Background()
	_, err := s.store.ApplyClaim(ctx, claim(openBuyer, models.PhaseOpen, 1))
	s.ErrorIs(err, models.ErrPhase)

	_, err = s.store.Load(ctx)
	s.ErrorIs(err, sentinel.ErrNotFound, "rejected claim must not create state")
}

func (s *storeContract) TestClaimInOtherPhaseRejected() {
	ctx := context.Background()
	s.Require().NoError(s.store.SetPhase(ctx, models.PhaseOpen))
	_, err := s.store.ApplyClaim(ctx, claim(earlyBuyer, models.PhaseEarly, 1))
	s.ErrorIs(err, models.ErrPhase)

	got, err := s.store.Load(ctx)
	s.Require().NoError(err)
	s.Zero(got.TotalIssued)
}

func (s *storeContract) TestClosedPhaseClaimRejected() {
	ctx := context.Background()
	_, err := s.store.ApplyClaim(ctx, claim(openBuyer, models.PhaseClosed, 1))
	s.ErrorIs(err, sentinel.ErrInvalidState)

	_, err = s.store.Load(ctx)
	s.ErrorIs(err, sentinel.ErrNotFound, "rejected claim must not create state")
}

func (s *storeContract) TestCeilingsEnforced() {
	ctx := context.Background()
	s.Require().NoError(s.store.SetPhase(ctx, models.PhaseEarly))
	for i := 0; i < 3; i++ {
		addr := common.BigToAddress(big.NewInt(int64(100 + i)))
		_, err := s.store.ApplyClaim(ctx, claim(addr, models.PhaseEarly, 4))
		s.Require().NoError(err)
	}

	_, err := s.store.ApplyClaim(ctx, claim(common.BigToAddress(big.NewInt(100)), models.PhaseEarly, 1))
	s.Equal(models.ReasonAddressLimit, models.QuotaReasonOf(err), "address ceiling comes first")
	_, err = s.store.ApplyClaim(ctx, claim(earlyBuyer, models.PhaseEarly, 1))
	s.Equal(models.ReasonPhaseSupply, models.QuotaReasonOf(err))

	s.Require().NoError(s.store.SetPhase(ctx, models.PhaseOpen))
	_, err = s.store.ApplyClaim(ctx, claim(openBuyer, models.PhaseOpen, 3))
	s.Require().NoError(err)
	_, err = s.store.ApplyClaim(ctx, claim(earlyBuyer, models.PhaseOpen, 1))
	s.Equal(models.ReasonTotalSupply, models.QuotaReasonOf(err))

	got, err := s.store.Load(ctx)
	s.Require().NoError(err)
	s.Equal(uint64(15), got.TotalIssued)
	s.Equal(uint64(12), got.EarlyIssued)
	s.Equal(models.AddressClaims{}, got.Addresses[earlyBuyer])
}

func (s *storeContract) TestConcurrentClaims() {
	ctx := context.Background()
	s.Require().NoError(s.store.SetPhase(ctx, models.PhaseOpen))
	const goroutines = 20

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			_, err := s.store.ApplyClaim(ctx, claim(openBuyer, models.PhaseOpen, 1))
			if err != nil {
				s.Equal(models.ReasonAddressLimit, models.QuotaReasonOf(err))
				return
			}
			mu.Lock()
			accepted++
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.Equal(5, accepted)
	got, err := s.store.Load(ctx)
	s.Require().NoError(err)
	s.Equal(uint64(5), got.TotalIssued)
	s.Equal(uint64(5), got.Addresses[openBuyer].Open)
}

// TestServicesSharingStore runs two sale services over one store, as two
// replicas of the server would.
func (s *storeContract) TestServicesSharingStore() {
	ctx := context.Background()
	first, err := service.New(ctx, saleConfig(), s.store)
	s.Require().NoError(err)
	s.Require().NoError(first.SetPhase(ctx, models.PhaseOpen))
	second, err := service.New(ctx, saleConfig(), s.store)
	s.Require().NoError(err)

	issued := 0
	for i := 0; i < 3; i++ {
		for j, svc := range []*service.Service{first, second} {
			caller := common.BigToAddress(big.NewInt(int64(200 + 2*i + j)))
			receipt, err := svc.ClaimOpen(ctx, service.ClaimOpenRequest{
				Caller: caller, Quantity: big.NewInt(5), Paid: big.NewInt(400),
			})
			if err != nil {
				s.ErrorIs(err, models.ErrQuota)
				continue
			}
			s.Equal(uint64(issued+1), receipt.FirstUnit)
			issued += 5
		}
	}
	s.Equal(15, issued)

	got, err := s.store.Load(ctx)
	s.Require().NoError(err)
	s.Equal(uint64(15), got.TotalIssued)

	_, err = service.New(ctx, saleConfig(), s.store)
	s.NoError(err, "a third replica must restore the shared state")
}
