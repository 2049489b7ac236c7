package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReceiptState string

const (
	ReceiptPending ReceiptState = "pending"
	ReceiptPaid    ReceiptState = "paid"
)

// StateForBalance derives the receipt state from its remaining balance.
// The state machine has no other inputs: a balance of zero means paid,
// anything above zero means pending (a correction can flip it back).
func StateForBalance(balance decimal.Decimal) ReceiptState {
	if balance.IsZero() {
		return ReceiptPaid
	}
	return ReceiptPending
}

type Receipt struct {
	ID           int64           `json:"id"`
	Number       string          `json:"number"`
	UnitID       int64           `json:"unit_id"`
	EmissionDate time.Time       `json:"emission_date"`
	CarriedDebt  decimal.Decimal `json:"carried_debt"`
	MonthCharges decimal.Decimal `json:"month_charges"`
	Interest     decimal.Decimal `json:"interest"`
	TotalDue     decimal.Decimal `json:"total_due"`
	Balance      decimal.Decimal `json:"balance"`
	State        ReceiptState    `json:"state"`

	Details []ReceiptDetail `json:"details,omitempty"`

	OwnerID        *int64  `json:"owner_id,omitempty"`
	OwnerName      *string `json:"owner_name,omitempty"`
	BuildingNumber *string `json:"building_number,omitempty"`
	UnitFloor      *string `json:"unit_floor,omitempty"`
	UnitLabel      *string `json:"unit_label,omitempty"`
}

// ReceiptDetail is one contributing expense line, tagged with the calc
// method that produced it for display grouping.
type ReceiptDetail struct {
	ID          int64           `json:"id"`
	ReceiptID   int64           `json:"receipt_id"`
	MovementID  *int64          `json:"movement_id,omitempty"`
	Description string          `json:"description"`
	CalcMethod  CalcMethod      `json:"calc_method"`
	Amount      decimal.Decimal `json:"amount"`
}
