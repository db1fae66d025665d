package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"mintgate/internal/sale/models"
)

// ClaimEarlyRequest is the body of POST /sale/claims/early. Quantity and paid
// accept JSON numbers or decimal strings of any size.
type ClaimEarlyRequest struct {
	Quantity json.Number `json:"quantity"`
	Proof    []string    `json:"proof"`
	Paid     json.Number `json:"paid"`

	parsedQuantity *big.Int
	parsedPaid     *big.Int
}

// Validate parses the amounts. A missing quantity reads as zero and proof
// contents are not checked here: range, proof and phase checks belong to the
// sale service so its error ordering is preserved.
func (r *ClaimEarlyRequest) Validate() error {
	var err error
	if r.parsedQuantity, err = parseInteger("quantity", r.Quantity); err != nil {
		return err
	}
	r.parsedPaid, err = parseInteger("paid", r.Paid)
	return err
}

// ClaimOpenRequest is the body of POST /sale/claims/open.
type ClaimOpenRequest struct {
	Quantity json.Number `json:"quantity"`
	Paid     json.Number `json:"paid"`

	parsedQuantity *big.Int
	parsedPaid     *big.Int
}

func (r *ClaimOpenRequest) Validate() error {
	var err error
	if r.parsedQuantity, err = parseInteger("quantity", r.Quantity); err != nil {
		return err
	}
	r.parsedPaid, err = parseInteger("paid", r.Paid)
	return err
}

// SetPhaseRequest is the body of PUT /admin/sale/phase.
type SetPhaseRequest struct {
	Phase string `json:"phase"`

	parsedPhase models.Phase
}

func (r *SetPhaseRequest) Validate() error {
	if strings.TrimSpace(r.Phase) == "" {
		return errors.New("phase is required")
	}
	phase, err := models.ParsePhase(r.Phase)
	if err != nil {
		return err
	}
	r.parsedPhase = phase
	return nil
}

// parseInteger reads an optional decimal integer; absent means zero.
func parseInteger(field string, raw json.Number) (*big.Int, error) {
	s := strings.TrimSpace(raw.String())
	if s == "" {
		return new(big.Int), nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%s must be a base-10 integer", field)
	}
	return n, nil
}
