package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"condoledger/internal/domain"
)

func strp(s string) *string { return &s }

func methodp(m domain.CalcMethod) *domain.CalcMethod { return &m }

func scopep(s domain.DistributionScope) *domain.DistributionScope { return &s }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBuildReceipt_InterestOnlyOnArrears(t *testing.T) {
	unit := domain.Unit{ID: 1, BuildingID: 1, Share: dec("0.2")}

	in := ReceiptInput{
		Unit:         unit,
		Number:       "202401-0001",
		EmissionDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		CarriedDebt:  dec("1000.00"),
		AnnualRate:   dec("0.03"),
		Charges: []MovementCharge{{
			Movement: domain.ExpenseMovement{
				ID:                 10,
				ActualAmount:       dec("1000.00"),
				ConceptDescription: strp("Cleaning"),
			},
			Context: DistributionContext{Method: domain.CalcByShare, Scope: domain.ScopeAllUnits},
		}},
	}

	r, err := BuildReceipt(in)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if r.MonthCharges.StringFixed(2) != "200.00" {
		t.Fatalf("month charges: expected 200.00; got %s", r.MonthCharges.StringFixed(2))
	}
	// interest = round2(1000 * 0.03 / 12) = 2.50, on carried debt only
	if r.Interest.StringFixed(2) != "2.50" {
		t.Fatalf("interest: expected 2.50; got %s", r.Interest.StringFixed(2))
	}
	if r.TotalDue.StringFixed(2) != "1202.50" {
		t.Fatalf("total: expected 1202.50; got %s", r.TotalDue.StringFixed(2))
	}
	if !r.Balance.Equal(r.TotalDue) {
		t.Fatalf("new receipt balance must equal total: %s vs %s", r.Balance, r.TotalDue)
	}
	if r.State != domain.ReceiptPending {
		t.Fatalf("new receipt must be pending; got %s", r.State)
	}
}

func TestBuildReceipt_SkipsUnaffectedAndZeroSplit(t *testing.T) {
	unit := domain.Unit{ID: 1, BuildingID: 1, Share: dec("0.5")}

	in := ReceiptInput{
		Unit:         unit,
		EmissionDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		CarriedDebt:  decimal.Zero,
		AnnualRate:   dec("0.03"),
		Charges: []MovementCharge{
			{
				// other building: not affected
				Movement: domain.ExpenseMovement{ID: 1, ActualAmount: dec("500.00"), ConceptDescription: strp("Elevator")},
				Context: DistributionContext{
					Method:          domain.CalcEqualSplit,
					Scope:           domain.ScopeSpecificBuildings,
					LinkedBuildings: map[int64]struct{}{2: {}},
					AffectedUnits:   3,
				},
			},
			{
				// zero affected units: silently omitted
				Movement: domain.ExpenseMovement{ID: 2, ActualAmount: dec("120.00"), ConceptDescription: strp("Garden")},
				Context: DistributionContext{
					Method:          domain.CalcEqualSplit,
					Scope:           domain.ScopeSpecificBuildings,
					LinkedBuildings: map[int64]struct{}{1: {}},
					AffectedUnits:   0,
				},
			},
			{
				Movement: domain.ExpenseMovement{ID: 3, ActualAmount: dec("80.00"), ConceptDescription: strp("Water")},
				Context:  DistributionContext{Method: domain.CalcByShare, Scope: domain.ScopeAllUnits},
			},
		},
	}

	r, err := BuildReceipt(in)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(r.Details) != 1 {
		t.Fatalf("expected 1 detail line; got %d", len(r.Details))
	}
	if r.Details[0].Description != "Water" {
		t.Fatalf("unexpected detail: %+v", r.Details[0])
	}
	if r.TotalDue.StringFixed(2) != "40.00" {
		t.Fatalf("total: expected 40.00; got %s", r.TotalDue.StringFixed(2))
	}
}

func TestBuildReceipt_DetailsTaggedByMethod(t *testing.T) {
	unit := domain.Unit{ID: 4, BuildingID: 1, Share: dec("0.1")}

	in := ReceiptInput{
		Unit:         unit,
		EmissionDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		CarriedDebt:  decimal.Zero,
		AnnualRate:   dec("0.03"),
		Charges: []MovementCharge{
			{
				Movement: domain.ExpenseMovement{ID: 1, ActualAmount: dec("900.00"), ConceptDescription: strp("Maintenance")},
				Context:  DistributionContext{Method: domain.CalcByShare, Scope: domain.ScopeAllUnits},
			},
			{
				Movement: domain.ExpenseMovement{ID: 2, ActualAmount: dec("200.00"), ConceptDescription: strp("Security")},
				Context:  DistributionContext{Method: domain.CalcEqualSplit, Scope: domain.ScopeAllUnits, AffectedUnits: 10},
			},
		},
	}

	r, err := BuildReceipt(in)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(r.Details) != 2 {
		t.Fatalf("expected 2 detail lines; got %d", len(r.Details))
	}
	if r.Details[0].CalcMethod != domain.CalcByShare || r.Details[1].CalcMethod != domain.CalcEqualSplit {
		t.Fatalf("details not tagged by calc method: %+v", r.Details)
	}
	if r.MonthCharges.StringFixed(2) != "110.00" {
		t.Fatalf("month charges: expected 110.00; got %s", r.MonthCharges.StringFixed(2))
	}
}

func TestReceiptNumber(t *testing.T) {
	got := ReceiptNumber(time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), 7)
	if got != "202402-0007" {
		t.Fatalf("expected 202402-0007; got %s", got)
	}
}

func TestMonthlyInterest_Rounding(t *testing.T) {
	// 333.33 * 0.03 / 12 = 0.8333... -> 0.83
	got := MonthlyInterest(dec("333.33"), dec("0.03"))
	if got.StringFixed(2) != "0.83" {
		t.Fatalf("expected 0.83; got %s", got.StringFixed(2))
	}
	// 1000 * 0.03 / 12 = 2.50 exactly
	if MonthlyInterest(dec("1000.00"), dec("0.03")).StringFixed(2) != "2.50" {
		t.Fatal("expected 2.50")
	}
}
