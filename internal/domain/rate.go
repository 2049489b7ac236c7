package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRate is a stored reference record. Billing math is single
// currency; rates exist for display only.
type ExchangeRate struct {
	ID   int64           `json:"id"`
	Date time.Time       `json:"date"`
	Rate decimal.Decimal `json:"rate"`
}
