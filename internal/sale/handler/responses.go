package handler

import (
	"time"

	"mintgate/internal/sale/models"
	"mintgate/internal/sale/service"
)

type ReceiptResponse struct {
	ReceiptID string    `json:"receipt_id"`
	Caller    string    `json:"caller"`
	Phase     string    `json:"phase"`
	Quantity  uint64    `json:"quantity"`
	FirstUnit uint64    `json:"first_unit"`
	LastUnit  uint64    `json:"last_unit"`
	Required  string    `json:"required"`
	Paid      string    `json:"paid"`
	Overpaid  string    `json:"overpaid"`
	IssuedAt  time.Time `json:"issued_at"`
}

func FromReceipt(r *models.Receipt) ReceiptResponse {
	return ReceiptResponse{
		ReceiptID: r.ID.String(),
		Caller:    r.Caller.Hex(),
		Phase:     r.Phase.String(),
		Quantity:  r.Quantity,
		FirstUnit: r.FirstUnit,
		LastUnit:  r.LastUnit,
		Required:  r.Required.String(),
		Paid:      r.Paid.String(),
		Overpaid:  r.Overpaid.String(),
		IssuedAt:  r.IssuedAt,
	}
}

type StatusResponse struct {
	Phase          string `json:"phase"`
	TotalIssued    uint64 `json:"total_issued"`
	EarlyIssued    uint64 `json:"early_issued"`
	TotalSupplyCap uint64 `json:"total_supply_cap"`
	EarlySupplyCap uint64 `json:"early_supply_cap"`
	EarlyPrice     string `json:"early_price"`
	OpenPrice      string `json:"open_price"`
	AllowlistRoot  string `json:"allowlist_root"`
}

func FromStatus(s service.Status) StatusResponse {
	return StatusResponse{
		Phase:          s.Phase.String(),
		TotalIssued:    s.TotalIssued,
		EarlyIssued:    s.EarlyIssued,
		TotalSupplyCap: s.TotalSupplyCap,
		EarlySupplyCap: s.EarlySupplyCap,
		EarlyPrice:     s.EarlyPrice.String(),
		OpenPrice:      s.OpenPrice.String(),
		AllowlistRoot:  s.AllowlistRoot.Hex(),
	}
}

type AddressClaimsResponse struct {
	Address     string `json:"address"`
	EarlyClaims uint64 `json:"early_claimed"`
	OpenClaims  uint64 `json:"open_claimed"`
}

type ProofResponse struct {
	Address string   `json:"address"`
	Root    string   `json:"root"`
	Proof   []string `json:"proof"`
}

type PhaseResponse struct {
	Phase string `json:"phase"`
}
