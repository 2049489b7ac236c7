package billing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"condoledger/internal/domain"
)

// PaymentInput is a snapshot for one payment run. OpenReceipts must hold
// balance-positive receipts ordered by emission date ascending; the caller
// takes that snapshot and persists the result inside one transaction.
type PaymentInput struct {
	OwnerID int64
	// TargetReceiptID is the receipt the payment referenced; overpayment
	// and credit-application history entries attach to it.
	TargetReceiptID int64
	Amount          decimal.Decimal
	PriorCredit     decimal.Decimal
	BankReference   string
	OpenReceipts    []domain.Receipt
}

// ReceiptApplication is one balance mutation the caller must persist.
type ReceiptApplication struct {
	ReceiptID  int64
	Number     string
	Applied    decimal.Decimal
	NewBalance decimal.Decimal
	NewState   domain.ReceiptState
}

type PaymentResult struct {
	Applications    []ReceiptApplication
	History         []domain.PaymentHistoryEntry
	TotalApplied    decimal.Decimal
	RemainingCredit decimal.Decimal
}

// ApplyPayment allocates amount plus prior credit across the owner's open
// receipts, oldest first. Each receipt absorbs min(remaining, balance); a
// receipt driven to zero transitions to paid and is recorded as a full
// payment, otherwise partial. Whatever survives the walk becomes the new
// owner credit, recorded as an overpayment entry.
//
// Conservation holds exactly: TotalApplied + RemainingCredit equals
// Amount + PriorCredit at two decimal places.
func ApplyPayment(in PaymentInput) (PaymentResult, error) {
	if strings.TrimSpace(in.BankReference) == "" {
		return PaymentResult{}, fmt.Errorf("%w: bank reference is required", domain.ErrValidation)
	}
	if in.Amount.Sign() <= 0 {
		return PaymentResult{}, fmt.Errorf("%w: payment amount must be positive", domain.ErrValidation)
	}

	available := in.Amount.Add(in.PriorCredit)
	remaining := available

	var res PaymentResult

	for _, r := range in.OpenReceipts {
		if remaining.Sign() <= 0 {
			break
		}
		if r.Balance.Sign() <= 0 {
			continue
		}

		applied := decimal.Min(remaining, r.Balance)
		newBalance := r.Balance.Sub(applied)

		kind := domain.TxPartial
		if newBalance.IsZero() {
			kind = domain.TxFull
		}

		res.Applications = append(res.Applications, ReceiptApplication{
			ReceiptID:  r.ID,
			Number:     r.Number,
			Applied:    applied,
			NewBalance: newBalance,
			NewState:   domain.StateForBalance(newBalance),
		})
		res.History = append(res.History, domain.PaymentHistoryEntry{
			ReceiptID:     r.ID,
			OwnerID:       in.OwnerID,
			Applied:       applied,
			Kind:          kind,
			BankReference: in.BankReference,
			Note:          fmt.Sprintf("applied to receipt %s", r.Number),
		})

		remaining = remaining.Sub(applied)
	}

	res.TotalApplied = available.Sub(remaining)
	res.RemainingCredit = decimal.Zero

	// credit drains before new funds, so the consumed portion is whatever
	// of it reached a receipt; unconsumed credit reappears in the
	// overpayment entry instead. The entry leads the trail to keep the
	// chronological order of funds.
	if in.PriorCredit.Sign() > 0 {
		consumed := decimal.Min(in.PriorCredit, res.TotalApplied)
		if consumed.Sign() > 0 {
			entry := domain.PaymentHistoryEntry{
				ReceiptID:     in.TargetReceiptID,
				OwnerID:       in.OwnerID,
				Applied:       consumed,
				Kind:          domain.TxCreditApplication,
				BankReference: in.BankReference,
				Note:          fmt.Sprintf("credit of %s applied before new funds", consumed.StringFixed(2)),
			}
			res.History = append([]domain.PaymentHistoryEntry{entry}, res.History...)
		}
	}

	if remaining.Sign() > 0 {
		res.RemainingCredit = remaining
		res.History = append(res.History, domain.PaymentHistoryEntry{
			ReceiptID:     in.TargetReceiptID,
			OwnerID:       in.OwnerID,
			Applied:       in.Amount,
			CreditCreated: remaining,
			Kind:          domain.TxOverpayment,
			BankReference: in.BankReference,
			Note:          fmt.Sprintf("overpayment left %s as credit", remaining.StringFixed(2)),
		})
	}

	return res, nil
}
