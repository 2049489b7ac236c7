package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type VerificationState string

const (
	PaymentPendingReview VerificationState = "pending_review"
	PaymentVerified      VerificationState = "verified"
	PaymentRejected      VerificationState = "rejected"
)

type Payment struct {
	ID            string            `json:"id"`
	ReceiptID     int64             `json:"receipt_id"`
	PaymentDate   time.Time         `json:"payment_date"`
	Amount        decimal.Decimal   `json:"amount"`
	BankReference string            `json:"bank_reference"`
	Method        string            `json:"method"`
	Verification  VerificationState `json:"verification"`
	Note          string            `json:"note"`

	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	ReceiptNumber *string `json:"receipt_number,omitempty"`
	OwnerName     *string `json:"owner_name,omitempty"`
}

// TransactionKind classifies one allocation step in the payment history.
type TransactionKind string

const (
	TxFull              TransactionKind = "full"
	TxPartial           TransactionKind = "partial"
	TxOverpayment       TransactionKind = "overpayment"
	TxCreditApplication TransactionKind = "credit_application"
)

// PaymentHistoryEntry is an immutable audit record of one allocation step.
type PaymentHistoryEntry struct {
	ID            int64           `json:"id"`
	ReceiptID     int64           `json:"receipt_id"`
	OwnerID       int64           `json:"owner_id"`
	Applied       decimal.Decimal `json:"applied"`
	CreditCreated decimal.Decimal `json:"credit_created"`
	Kind          TransactionKind `json:"kind"`
	BankReference string          `json:"bank_reference"`
	Note          string          `json:"note"`
	CreatedAt     time.Time       `json:"created_at"`

	ReceiptNumber *string `json:"receipt_number,omitempty"`
}
