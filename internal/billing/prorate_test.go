package billing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"condoledger/internal/domain"
)

func unitIn(building int64, share string) domain.Unit {
	return domain.Unit{ID: 1, BuildingID: building, Share: decimal.RequireFromString(share)}
}

func TestAllocate_ByShare(t *testing.T) {
	ctx := DistributionContext{Method: domain.CalcByShare, Scope: domain.ScopeAllUnits}

	got, err := Allocate(decimal.RequireFromString("1000.00"), unitIn(1, "0.123456"), ctx)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	// 123.456 rounds half-up to 123.46, once, on the final product
	if got.StringFixed(2) != "123.46" {
		t.Fatalf("expected 123.46; got %s", got.StringFixed(2))
	}
}

func TestAllocate_EqualSplit(t *testing.T) {
	ctx := DistributionContext{Method: domain.CalcEqualSplit, Scope: domain.ScopeAllUnits, AffectedUnits: 4}

	got, err := Allocate(decimal.RequireFromString("300.00"), unitIn(1, "0.25"), ctx)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if got.StringFixed(2) != "75.00" {
		t.Fatalf("expected 75.00; got %s", got.StringFixed(2))
	}
}

func TestAllocate_EqualSplitZeroUnits(t *testing.T) {
	ctx := DistributionContext{Method: domain.CalcEqualSplit, Scope: domain.ScopeSpecificBuildings}

	_, err := Allocate(decimal.RequireFromString("300.00"), unitIn(1, "0.25"), ctx)
	if !errors.Is(err, domain.ErrDivisionUndefined) {
		t.Fatalf("expected ErrDivisionUndefined; got %v", err)
	}
}

func TestAllocate_Deterministic(t *testing.T) {
	ctx := DistributionContext{Method: domain.CalcByShare, Scope: domain.ScopeAllUnits}
	u := unitIn(1, "0.333333")
	amount := decimal.RequireFromString("997.13")

	first, err := Allocate(amount, u, ctx)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Allocate(amount, u, ctx)
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}
		if !again.Equal(first) {
			t.Fatalf("allocation not repeatable: %s vs %s", again, first)
		}
	}
}

func TestAffects(t *testing.T) {
	all := DistributionContext{Scope: domain.ScopeAllUnits}
	if !all.Affects(unitIn(7, "0.1")) {
		t.Fatal("all-units scope must affect every unit")
	}

	specific := DistributionContext{
		Scope:           domain.ScopeSpecificBuildings,
		LinkedBuildings: map[int64]struct{}{2: {}},
	}
	if !specific.Affects(unitIn(2, "0.1")) {
		t.Fatal("unit in linked building must be affected")
	}
	if specific.Affects(unitIn(3, "0.1")) {
		t.Fatal("unit outside linked buildings must not be affected")
	}
}

func TestContextFor_MissingTypeData(t *testing.T) {
	_, err := ContextFor(domain.ExpenseMovement{ID: 5}, 3)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation; got %v", err)
	}
}
