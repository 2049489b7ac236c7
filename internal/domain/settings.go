package domain

import "time"

// BillingSettings drives the scheduler and notification templates.
// It replaces a global singleton: flows receive the loaded settings as an
// argument at call time.
type BillingSettings struct {
	ID             int64 `json:"id"`
	GenerationDay  int   `json:"generation_day"`
	GenerationHour int   `json:"generation_hour"`
	ReminderDay    int   `json:"reminder_day"`
	ReminderHour   int   `json:"reminder_hour"`
	Active         bool  `json:"active"`

	NewReceiptTemplate string `json:"new_receipt_template"`
	ReminderTemplate   string `json:"reminder_template"`

	// Open receipts above this count mark an owner delinquent.
	DelinquencyThreshold int `json:"delinquency_threshold"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const DefaultDelinquencyThreshold = 3
