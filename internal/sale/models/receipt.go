package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Receipt describes the units issued by one successful claim. Unit numbers are
// 1-based and contiguous: FirstUnit..LastUnit inclusive.
type Receipt struct {
	ID        uuid.UUID
	Caller    common.Address
	Phase     Phase
	Quantity  uint64
	FirstUnit uint64
	LastUnit  uint64
	Required  *big.Int
	Paid      *big.Int
	// Overpaid is kept by the sale; refunds are settled outside this service.
	Overpaid *big.Int
	IssuedAt time.Time
}
