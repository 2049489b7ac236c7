package domain

import "github.com/shopspring/decimal"

// Unit is a billable apartment or office. Share is the ownership fraction
// used to prorate common expenses, in (0, 1]. Floor+Label is unique within
// a building. Shares within a building are expected to sum to 1; that
// invariant is audited, not enforced (see report.ShareAudit).
type Unit struct {
	ID         int64           `json:"id"`
	BuildingID int64           `json:"building_id"`
	OwnerID    int64           `json:"owner_id"`
	Floor      string          `json:"floor"`
	Label      string          `json:"label"`
	Share      decimal.Decimal `json:"share"`

	// joined columns, populated by list queries
	OwnerName      *string `json:"owner_name,omitempty"`
	BuildingNumber *string `json:"building_number,omitempty"`
}
