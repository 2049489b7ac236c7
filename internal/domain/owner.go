package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Owner struct {
	ID         int64  `json:"id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	NationalID string `json:"national_id"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
}

func (o Owner) FullName() string {
	return o.FirstName + " " + o.LastName
}

// OwnerCredit is the running overpayment balance held per owner.
// It is consumed before new money on the owner's next payment.
type OwnerCredit struct {
	ID        int64           `json:"id"`
	OwnerID   int64           `json:"owner_id"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}
