package models

import "errors"

// Claim rejection kinds. Every *ClaimError unwraps to exactly one of these, so
// callers branch with errors.Is.
var (
	ErrPhase      = errors.New("phase not open for this claim")
	ErrQuantity   = errors.New("invalid quantity")
	ErrMembership = errors.New("not on allowlist")
	ErrQuota      = errors.New("quota exceeded")
	ErrPayment    = errors.New("insufficient payment")
)

// ErrInvalidPhase rejects phase values outside closed/early/open.
var ErrInvalidPhase = errors.New("invalid phase")

// QuotaReason distinguishes which ceiling a quota rejection hit.
type QuotaReason string

const (
	ReasonAddressLimit QuotaReason = "address_limit"
	ReasonPhaseSupply  QuotaReason = "phase_supply"
	ReasonTotalSupply  QuotaReason = "total_supply"
)

// ClaimError is a rejected claim. Message is the caller-facing text; Reason is
// set only for ErrQuota.
type ClaimError struct {
	Kind    error
	Reason  QuotaReason
	Message string
}

func (e *ClaimError) Error() string {
	return e.Message
}

func (e *ClaimError) Unwrap() error {
	return e.Kind
}

func NewPhaseError(phase Phase) *ClaimError {
	msg := "sale is not open"
	switch phase {
	case PhaseEarly:
		msg = "presale is not open"
	case PhaseOpen:
		msg = "public sale is not open"
	}
	return &ClaimError{Kind: ErrPhase, Message: msg}
}

func NewQuantityError(msg string) *ClaimError {
	return &ClaimError{Kind: ErrQuantity, Message: msg}
}

func NewMembershipError() *ClaimError {
	return &ClaimError{Kind: ErrMembership, Message: "invalid proof"}
}

func NewQuotaError(reason QuotaReason) *ClaimError {
	msg := "quantity exceeds max supply"
	switch reason {
	case ReasonAddressLimit:
		msg = "quantity exceeds max quantity per address"
	case ReasonPhaseSupply:
		msg = "quantity exceeds max supply for presale"
	}
	return &ClaimError{Kind: ErrQuota, Reason: reason, Message: msg}
}

func NewPaymentError() *ClaimError {
	return &ClaimError{Kind: ErrPayment, Message: "insufficient payment"}
}

// QuotaReasonOf extracts the quota reason from err, or "" when err is not a
// quota rejection.
func QuotaReasonOf(err error) QuotaReason {
	var claimErr *ClaimError
	if errors.As(err, &claimErr) && errors.Is(claimErr.Kind, ErrQuota) {
		return claimErr.Reason
	}
	return ""
}
