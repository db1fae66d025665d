// Package service is the sale controller: it owns the phase, validates claims
// against the allowlist and the quota ledger, and issues sequentially numbered
// units.
//
// Every claim runs check, persist and commit under one lock, so no two claims
// interleave and a rejected or failed claim leaves every counter untouched.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mintgate/internal/allowlist"
	"mintgate/internal/sale/ledger"
	"mintgate/internal/sale/metrics"
	"mintgate/internal/sale/models"
	"mintgate/internal/sale/ports"
	"mintgate/pkg/platform/sentinel"
	"mintgate/pkg/requestcontext"
)

const tracerName = "mintgate/internal/sale/service"

// Store is the persistence port the service writes through.
type Store = ports.StateStore

// ClaimEarlyRequest is an allowlisted claim. Quantity and Paid are arbitrary
// precision so oversized inputs are compared, never truncated.
type ClaimEarlyRequest struct {
	Caller   common.Address
	Quantity *big.Int
	Proof    allowlist.Proof
	Paid     *big.Int
}

// ClaimOpenRequest is a claim in the open phase.
type ClaimOpenRequest struct {
	Caller   common.Address
	Quantity *big.Int
	Paid     *big.Int
}

// Status is a read-only view of the sale.
type Status struct {
	Phase          models.Phase
	TotalIssued    uint64
	EarlyIssued    uint64
	TotalSupplyCap uint64
	EarlySupplyCap uint64
	EarlyPrice     *big.Int
	OpenPrice      *big.Int
	AllowlistRoot  common.Hash
}

type Service struct {
	mu      sync.Mutex
	cfg     models.Config
	phase   models.Phase
	ledger  *ledger.Ledger
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// New validates cfg and restores the sale from store. A store with no saved
// state starts a closed sale with zero counters.
func New(ctx context.Context, cfg models.Config, store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("sale state store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	svc := &Service{
		cfg:    cfg,
		phase:  models.PhaseClosed,
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(svc)
	}

	if err := svc.restore(ctx); err != nil {
		return nil, err
	}

	svc.logger.InfoContext(ctx, "sale restored",
		"phase", svc.phase.String(),
		"total_issued", svc.ledger.TotalIssued(),
		"early_issued", svc.ledger.EarlyIssued(),
	)
	return svc, nil
}

// restore replaces the phase and ledger with the store's copy. Other
// instances sharing the store may have moved it since this one last looked.
func (s *Service) restore(ctx context.Context) error {
	saved, err := s.store.Load(ctx)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		saved = nil
	case err != nil:
		return fmt.Errorf("load sale state: %w", err)
	}

	l, err := ledger.Restore(ledger.LimitsFrom(s.cfg), saved)
	if err != nil {
		return err
	}
	phase := models.PhaseClosed
	if saved != nil {
		if !saved.Phase.IsValid() {
			return fmt.Errorf("load sale state: phase %d: %w", uint8(saved.Phase), sentinel.ErrInvalidState)
		}
		phase = saved.Phase
	}
	s.ledger = l
	s.phase = phase

	if s.metrics != nil {
		s.metrics.SetPhase(uint8(phase))
		s.metrics.SetTotals(l.TotalIssued(), l.EarlyIssued())
	}
	return nil
}

// ClaimEarly issues units to an allowlisted caller during the early phase.
// Checks run in a fixed order and the first failure is returned: phase,
// quantity, membership, quota, payment.
func (s *Service) ClaimEarly(ctx context.Context, req ClaimEarlyRequest) (*models.Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "sale.ClaimEarly")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	receipt, err := s.claimEarlyLocked(ctx, req)
	s.finish(ctx, span, models.PhaseEarly, req.Caller, receipt, err, start)
	return receipt, err
}

func (s *Service) claimEarlyLocked(ctx context.Context, req ClaimEarlyRequest) (*models.Receipt, error) {
	if s.phase != models.PhaseEarly {
		return nil, models.NewPhaseError(models.PhaseEarly)
	}
	qty, err := checkQuantity(req.Quantity, s.cfg.EarlyMaxPerTx)
	if err != nil {
		return nil, err
	}
	if !allowlist.Verify(s.cfg.AllowlistRoot, req.Caller, req.Proof) {
		return nil, models.NewMembershipError()
	}
	if reason := s.ledger.CheckEarly(req.Caller, qty); reason != "" {
		return nil, models.NewQuotaError(reason)
	}
	required, err := checkPayment(s.cfg.EarlyPrice, qty, req.Paid)
	if err != nil {
		return nil, err
	}
	return s.commit(ctx, req.Caller, models.PhaseEarly, qty, required, req.Paid)
}

// ClaimOpen issues units to any caller during the open phase. Checks run in
// order: phase, quantity, quota, payment.
func (s *Service) ClaimOpen(ctx context.Context, req ClaimOpenRequest) (*models.Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "sale.ClaimOpen")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	receipt, err := s.claimOpenLocked(ctx, req)
	s.finish(ctx, span, models.PhaseOpen, req.Caller, receipt, err, start)
	return receipt, err
}

func (s *Service) claimOpenLocked(ctx context.Context, req ClaimOpenRequest) (*models.Receipt, error) {
	if s.phase != models.PhaseOpen {
		return nil, models.NewPhaseError(models.PhaseOpen)
	}
	qty, err := checkQuantity(req.Quantity, s.cfg.OpenMaxPerTx)
	if err != nil {
		return nil, err
	}
	if reason := s.ledger.CheckOpen(req.Caller, qty); reason != "" {
		return nil, models.NewQuotaError(reason)
	}
	required, err := checkPayment(s.cfg.OpenPrice, qty, req.Paid)
	if err != nil {
		return nil, err
	}
	return s.commit(ctx, req.Caller, models.PhaseOpen, qty, required, req.Paid)
}

// commit persists the claim, then advances the in-memory ledger. A store
// failure returns before the ledger moves. The store re-checks the claim
// against the shared state; when it rejects the claim, or its counters show
// another instance issued units meanwhile, the ledger is reloaded from it.
func (s *Service) commit(ctx context.Context, caller common.Address, phase models.Phase, qty uint64, required, paid *big.Int) (*models.Receipt, error) {
	delta := models.ClaimDelta{
		Address:  caller,
		Phase:    phase,
		Quantity: qty,
		Limits:   s.cfg.ClaimLimits(phase),
	}
	// Once checks pass the write must not be abandoned half way by the caller.
	ctx = context.WithoutCancel(ctx)
	result, err := s.store.ApplyClaim(ctx, delta)
	if err != nil {
		var claimErr *models.ClaimError
		if errors.As(err, &claimErr) {
			s.resync(ctx)
			return nil, claimErr
		}
		if s.metrics != nil {
			s.metrics.IncrementStoreFailures()
		}
		return nil, fmt.Errorf("persist claim: %w", err)
	}

	if result.TotalIssued == s.ledger.TotalIssued()+qty {
		if phase == models.PhaseEarly {
			s.ledger.CommitEarly(caller, qty)
		} else {
			s.ledger.CommitOpen(caller, qty)
		}
	} else {
		s.resync(ctx)
	}
	first := result.FirstUnit(qty)

	paidCopy := new(big.Int).Set(paid)
	return &models.Receipt{
		ID:        uuid.New(),
		Caller:    caller,
		Phase:     phase,
		Quantity:  qty,
		FirstUnit: first,
		LastUnit:  first + qty - 1,
		Required:  required,
		Paid:      paidCopy,
		Overpaid:  new(big.Int).Sub(paidCopy, required),
		IssuedAt:  requestcontext.Now(ctx),
	}, nil
}

// resync reloads shared state after the store disagreed with the ledger. A
// failed reload keeps the current ledger; the store still enforces every
// ceiling, so the next write catches up.
func (s *Service) resync(ctx context.Context) {
	before := s.ledger.TotalIssued()
	if err := s.restore(ctx); err != nil {
		s.logger.WarnContext(ctx, "sale state resync failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return
	}
	s.logger.InfoContext(ctx, "sale state resynced",
		"request_id", requestcontext.RequestID(ctx),
		"phase", s.phase.String(),
		"total_issued_before", before,
		"total_issued", s.ledger.TotalIssued(),
	)
}

// SetPhase moves the sale to phase. Any valid phase may follow any other;
// ordering is the operator's decision.
func (s *Service) SetPhase(ctx context.Context, phase models.Phase) error {
	if !phase.IsValid() {
		return fmt.Errorf("%w: %d", models.ErrInvalidPhase, uint8(phase))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.phase
	if err := s.store.SetPhase(context.WithoutCancel(ctx), phase); err != nil {
		if s.metrics != nil {
			s.metrics.IncrementStoreFailures()
		}
		return fmt.Errorf("persist phase: %w", err)
	}
	s.phase = phase

	if s.metrics != nil {
		s.metrics.SetPhase(uint8(phase))
		s.metrics.IncrementPhaseChanges()
	}
	s.logger.InfoContext(ctx, "sale_phase_changed",
		"request_id", requestcontext.RequestID(ctx),
		"from", previous.String(),
		"to", phase.String(),
		"log_type", "audit",
	)
	return nil
}

func (s *Service) Phase() models.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Phase:          s.phase,
		TotalIssued:    s.ledger.TotalIssued(),
		EarlyIssued:    s.ledger.EarlyIssued(),
		TotalSupplyCap: s.cfg.TotalSupplyCap,
		EarlySupplyCap: s.cfg.EarlySupplyCap,
		EarlyPrice:     s.cfg.PriceFor(models.PhaseEarly),
		OpenPrice:      s.cfg.PriceFor(models.PhaseOpen),
		AllowlistRoot:  s.cfg.AllowlistRoot,
	}
}

// Claimed returns addr's per-phase counters.
func (s *Service) Claimed(addr common.Address) models.AddressClaims {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Claims(addr)
}

// Snapshot copies the full mutable state.
func (s *Service) Snapshot() *models.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Snapshot(s.phase)
}

func (s *Service) finish(ctx context.Context, span trace.Span, phase models.Phase, caller common.Address, receipt *models.Receipt, err error, start time.Time) {
	elapsedMs := float64(time.Since(start).Microseconds()) / 1000.0
	span.SetAttributes(
		attribute.String("sale.phase", phase.String()),
		attribute.String("sale.caller", caller.Hex()),
	)

	if err != nil {
		outcome := outcomeOf(err)
		if s.metrics != nil {
			s.metrics.ObserveClaim(phase.String(), outcome, elapsedMs)
		}
		span.SetAttributes(attribute.String("sale.outcome", outcome))
		if outcome == "error" {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.logger.ErrorContext(ctx, "claim failed",
				"request_id", requestcontext.RequestID(ctx),
				"phase", phase.String(),
				"caller", caller.Hex(),
				"error", err,
			)
			return
		}
		s.logger.InfoContext(ctx, "claim rejected",
			"request_id", requestcontext.RequestID(ctx),
			"phase", phase.String(),
			"caller", caller.Hex(),
			"outcome", outcome,
			"reason", string(models.QuotaReasonOf(err)),
			"error", err.Error(),
		)
		return
	}

	if s.metrics != nil {
		s.metrics.ObserveClaim(phase.String(), "issued", elapsedMs)
		s.metrics.AddIssued(phase.String(), receipt.Quantity)
		s.metrics.SetTotals(s.ledger.TotalIssued(), s.ledger.EarlyIssued())
	}
	span.SetAttributes(
		attribute.String("sale.outcome", "issued"),
		attribute.Int64("sale.quantity", int64(receipt.Quantity)),
	)
	s.logger.InfoContext(ctx, "units_claimed",
		"request_id", requestcontext.RequestID(ctx),
		"receipt_id", receipt.ID.String(),
		"phase", phase.String(),
		"caller", caller.Hex(),
		"quantity", receipt.Quantity,
		"first_unit", receipt.FirstUnit,
		"last_unit", receipt.LastUnit,
		"paid", receipt.Paid.String(),
		"overpaid", receipt.Overpaid.String(),
		"log_type", "audit",
	)
}

func checkQuantity(qty *big.Int, maxPerTx uint64) (uint64, error) {
	if qty == nil || qty.Sign() <= 0 {
		return 0, models.NewQuantityError("quantity must be positive")
	}
	if qty.Cmp(new(big.Int).SetUint64(maxPerTx)) > 0 {
		return 0, models.NewQuantityError("quantity exceeds max quantity per tx")
	}
	return qty.Uint64(), nil
}

func checkPayment(price *big.Int, qty uint64, paid *big.Int) (*big.Int, error) {
	required := new(big.Int).Mul(price, new(big.Int).SetUint64(qty))
	if paid == nil || paid.Cmp(required) < 0 {
		return nil, models.NewPaymentError()
	}
	return required, nil
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, models.ErrPhase):
		return "phase"
	case errors.Is(err, models.ErrQuantity):
		return "quantity"
	case errors.Is(err, models.ErrMembership):
		return "membership"
	case errors.Is(err, models.ErrQuota):
		return "quota"
	case errors.Is(err, models.ErrPayment):
		return "payment"
	default:
		return "error"
	}
}
