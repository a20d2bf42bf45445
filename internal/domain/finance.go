package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// FinanceRequestStatus follows the request through executive review.
type FinanceRequestStatus string

const (
	FinanceStatusPending  FinanceRequestStatus = "pending"
	FinanceStatusApproved FinanceRequestStatus = "approved"
	FinanceStatusDeclined FinanceRequestStatus = "declined"
)

// FinanceRequest is a unit-level spending request awaiting executive
// approval. Amounts are exact decimals, never floats.
type FinanceRequest struct {
	ID          string               `json:"id"`
	UnitID      string               `json:"unit_id"`
	RequestedBy string               `json:"requested_by"`
	Purpose     string               `json:"purpose"`
	Amount      decimal.Decimal      `json:"amount"`
	Status      FinanceRequestStatus `json:"status"`
	CreatedAt   time.Time            `json:"created_at"`
	ReviewedBy  string               `json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time           `json:"reviewed_at,omitempty"`
}

func (f FinanceRequest) Key() string  { return f.ID }
func (f FinanceRequest) Unit() string { return f.UnitID }

func (f FinanceRequest) Pending() bool { return f.Status == FinanceStatusPending }
