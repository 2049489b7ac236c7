package billing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"condoledger/internal/domain"
)

// MovementCharge pairs one expense movement with its resolved distribution
// context for the billing month.
type MovementCharge struct {
	Movement domain.ExpenseMovement
	Context  DistributionContext
}

// ReceiptInput is everything BuildReceipt needs. CarriedDebt is the sum of
// the unit's open balances, already excluding any receipt being rebuilt.
// AnnualRate is the arrears interest rate (0.03 for 3% per year).
type ReceiptInput struct {
	Unit         domain.Unit
	Number       string
	EmissionDate time.Time
	CarriedDebt  decimal.Decimal
	AnnualRate   decimal.Decimal
	Charges      []MovementCharge
}

// MonthlyInterest is the flat monthly arrears charge: 1/12 of the annual
// rate applied to prior unpaid debt. Current-month charges never accrue
// interest.
func MonthlyInterest(carried, annualRate decimal.Decimal) decimal.Decimal {
	return round2(carried.Mul(annualRate).Div(twelve))
}

// ReceiptNumber formats the {YYYYMM}-{NNNN} receipt number for an emission
// date and a per-period sequence value.
func ReceiptNumber(emission time.Time, seq int64) string {
	return fmt.Sprintf("%s-%04d", emission.Format("200601"), seq)
}

// BuildReceipt computes a unit's receipt for a billing cycle: one detail
// line per non-zero allocation from the movements that affect the unit,
// plus carried debt and arrears interest. An equal split over zero units
// contributes nothing and its line is omitted. The receipt starts pending
// with the full total outstanding.
func BuildReceipt(in ReceiptInput) (domain.Receipt, error) {
	charges := decimal.Zero
	var details []domain.ReceiptDetail

	for _, ch := range in.Charges {
		if !ch.Context.Affects(in.Unit) {
			continue
		}
		amount, err := Allocate(ch.Movement.ActualAmount, in.Unit, ch.Context)
		if errors.Is(err, domain.ErrDivisionUndefined) {
			continue
		}
		if err != nil {
			return domain.Receipt{}, err
		}
		if amount.IsZero() {
			continue
		}
		movementID := ch.Movement.ID
		description := ""
		if ch.Movement.ConceptDescription != nil {
			description = *ch.Movement.ConceptDescription
		}
		details = append(details, domain.ReceiptDetail{
			MovementID:  &movementID,
			Description: description,
			CalcMethod:  ch.Context.Method,
			Amount:      amount,
		})
		charges = charges.Add(amount)
	}

	interest := MonthlyInterest(in.CarriedDebt, in.AnnualRate)
	total := in.CarriedDebt.Add(charges).Add(interest)

	return domain.Receipt{
		Number:       in.Number,
		UnitID:       in.Unit.ID,
		EmissionDate: in.EmissionDate,
		CarriedDebt:  in.CarriedDebt,
		MonthCharges: charges,
		Interest:     interest,
		TotalDue:     total,
		Balance:      total,
		State:        domain.ReceiptPending,
		Details:      details,
	}, nil
}
