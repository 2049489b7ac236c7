package notify

import (
	"encoding/json"
	"time"
)

// ReceiptIssuedMessage announces a freshly generated receipt. The delivery
// worker fetches the full receipt and renders the owner's template.
type ReceiptIssuedMessage struct {
	ReceiptID int64     `json:"receipt_id"`
	Number    string    `json:"number"`
	OwnerID   int64     `json:"owner_id"`
	Phone     string    `json:"phone"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentReminderMessage nudges an owner with open receipts.
type PaymentReminderMessage struct {
	OwnerID   int64     `json:"owner_id"`
	Phone     string    `json:"phone"`
	Body      string    `json:"body"`
	OpenCount int       `json:"open_count"`
	Timestamp time.Time `json:"timestamp"`
}

func (m *ReceiptIssuedMessage) ToJSON() ([]byte, error)   { return json.Marshal(m) }
func (m *PaymentReminderMessage) ToJSON() ([]byte, error) { return json.Marshal(m) }
