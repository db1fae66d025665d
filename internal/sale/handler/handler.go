package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"mintgate/internal/allowlist"
	"mintgate/internal/sale/models"
	"mintgate/internal/sale/service"
	"mintgate/pkg/platform/httputil"
	"mintgate/pkg/platform/sentinel"
	"mintgate/pkg/requestcontext"
)

// Service defines the sale operations the handler exposes.
type Service interface {
	ClaimEarly(ctx context.Context, req service.ClaimEarlyRequest) (*models.Receipt, error)
	ClaimOpen(ctx context.Context, req service.ClaimOpenRequest) (*models.Receipt, error)
	SetPhase(ctx context.Context, phase models.Phase) error
	Status() service.Status
	Claimed(addr common.Address) models.AddressClaims
}

// ProofSource serves inclusion proofs for allowlisted addresses.
type ProofSource interface {
	Root() common.Hash
	Proof(addr common.Address) (allowlist.Proof, error)
}

// Handler wires sale endpoints to the sale service.
type Handler struct {
	service Service
	proofs  ProofSource
	logger  *slog.Logger
}

// New constructs a sale handler. proofs may be nil when the allowlist itself
// is not deployed with the service; the proof endpoint then answers 404.
func New(service Service, proofs ProofSource, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		proofs:  proofs,
		logger:  logger,
	}
}

// Register mounts the public sale endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/sale/claims/early", h.HandleClaimEarly)
	r.Post("/sale/claims/open", h.HandleClaimOpen)
	r.Get("/sale/status", h.HandleStatus)
	r.Get("/sale/addresses/{address}", h.HandleAddressClaims)
	r.Get("/sale/allowlist/{address}/proof", h.HandleProof)
}

// RegisterAdmin mounts the administrative endpoints. They belong on the admin
// listener only.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Put("/admin/sale/phase", h.HandleSetPhase)
}

// HandleClaimEarly handles POST /sale/claims/early.
func (h *Handler) HandleClaimEarly(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if !requestcontext.HasCaller(ctx) {
		httputil.WriteErrorCode(w, http.StatusUnauthorized, "unauthorized", "caller address required")
		return
	}

	req, ok := httputil.DecodeAndPrepare[ClaimEarlyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	receipt, err := h.service.ClaimEarly(ctx, service.ClaimEarlyRequest{
		Caller:   requestcontext.Caller(ctx),
		Quantity: req.parsedQuantity,
		Proof:    allowlist.ParseProof(req.Proof),
		Paid:     req.parsedPaid,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromReceipt(receipt))
}

// HandleClaimOpen handles POST /sale/claims/open.
func (h *Handler) HandleClaimOpen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if !requestcontext.HasCaller(ctx) {
		httputil.WriteErrorCode(w, http.StatusUnauthorized, "unauthorized", "caller address required")
		return
	}

	req, ok := httputil.DecodeAndPrepare[ClaimOpenRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	receipt, err := h.service.ClaimOpen(ctx, service.ClaimOpenRequest{
		Caller:   requestcontext.Caller(ctx),
		Quantity: req.parsedQuantity,
		Paid:     req.parsedPaid,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromReceipt(receipt))
}

// HandleStatus handles GET /sale/status.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, FromStatus(h.service.Status()))
}

// HandleAddressClaims handles GET /sale/addresses/{address}.
func (h *Handler) HandleAddressClaims(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r)
	if !ok {
		return
	}
	claims := h.service.Claimed(addr)
	httputil.WriteJSON(w, http.StatusOK, AddressClaimsResponse{
		Address:     addr.Hex(),
		EarlyClaims: claims.Early,
		OpenClaims:  claims.Open,
	})
}

// HandleProof handles GET /sale/allowlist/{address}/proof.
func (h *Handler) HandleProof(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r)
	if !ok {
		return
	}
	if h.proofs == nil {
		httputil.WriteErrorCode(w, http.StatusNotFound, "not_found", "allowlist proofs are not served")
		return
	}
	proof, err := h.proofs.Proof(addr)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteErrorCode(w, http.StatusNotFound, "not_found", "address is not allowlisted")
			return
		}
		h.writeError(r.Context(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ProofResponse{
		Address: addr.Hex(),
		Root:    h.proofs.Root().Hex(),
		Proof:   proof.Hex(),
	})
}

// HandleSetPhase handles PUT /admin/sale/phase.
func (h *Handler) HandleSetPhase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SetPhaseRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.SetPhase(ctx, req.parsedPhase); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PhaseResponse{Phase: req.parsedPhase.String()})
}

// writeError maps claim rejections to client errors and everything else to 500.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var claimErr *models.ClaimError
	if errors.As(err, &claimErr) {
		status, code := claimStatus(claimErr)
		httputil.WriteErrorResponse(w, status, httputil.ErrorResponse{
			Error:       code,
			Description: claimErr.Message,
			Reason:      string(claimErr.Reason),
		})
		return
	}
	if errors.Is(err, models.ErrInvalidPhase) {
		httputil.WriteErrorCode(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	h.logger.ErrorContext(ctx, "sale request failed",
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteErrorCode(w, http.StatusInternalServerError, "internal_error", "")
}

func claimStatus(err *models.ClaimError) (int, string) {
	switch {
	case errors.Is(err, models.ErrPhase):
		return http.StatusConflict, "phase_closed"
	case errors.Is(err, models.ErrQuantity):
		return http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, models.ErrMembership):
		return http.StatusForbidden, "not_allowlisted"
	case errors.Is(err, models.ErrQuota):
		return http.StatusConflict, "quota_exceeded"
	case errors.Is(err, models.ErrPayment):
		return http.StatusPaymentRequired, "insufficient_payment"
	default:
		return http.StatusBadRequest, "bad_request"
	}
}

func addressParam(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	raw := chi.URLParam(r, "address")
	if !common.IsHexAddress(raw) {
		httputil.WriteErrorCode(w, http.StatusBadRequest, "bad_request", "invalid address")
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}
