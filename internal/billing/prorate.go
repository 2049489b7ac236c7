// Package billing holds the computation core: expense proration, receipt
// building and payment allocation. Everything here is pure; persistence
// and delivery live in the service layer.
package billing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"condoledger/internal/domain"
)

var twelve = decimal.NewFromInt(12)

// round2 rounds to two decimal places. decimal.Round resolves ties away
// from zero, which for the non-negative amounts handled here is half-up.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// DistributionContext is the resolved distribution data for one expense
// movement: calc method and scope from its expense type, the linked
// building set, and the affected-unit count used by equal splits.
type DistributionContext struct {
	Method          domain.CalcMethod
	Scope           domain.DistributionScope
	LinkedBuildings map[int64]struct{}
	AffectedUnits   int
}

// ContextFor builds a DistributionContext from a movement whose expense
// type columns were joined in. affectedUnits is the count of units the
// movement reaches under its scope.
func ContextFor(mv domain.ExpenseMovement, affectedUnits int) (DistributionContext, error) {
	if mv.CalcMethod == nil || mv.Scope == nil {
		return DistributionContext{}, fmt.Errorf("%w: movement %d has no expense type data", domain.ErrValidation, mv.ID)
	}
	linked := make(map[int64]struct{}, len(mv.BuildingIDs))
	for _, id := range mv.BuildingIDs {
		linked[id] = struct{}{}
	}
	return DistributionContext{
		Method:          *mv.CalcMethod,
		Scope:           *mv.Scope,
		LinkedBuildings: linked,
		AffectedUnits:   affectedUnits,
	}, nil
}

// Affects reports whether a unit is reached by the movement: every unit
// under all-units scope, otherwise only units in a linked building.
func (c DistributionContext) Affects(u domain.Unit) bool {
	switch c.Scope {
	case domain.ScopeAllUnits:
		return true
	case domain.ScopeSpecificBuildings:
		_, ok := c.LinkedBuildings[u.BuildingID]
		return ok
	}
	return false
}

// Allocate computes the unit's portion of an expense amount. By-share
// multiplies by the ownership fraction; equal-split divides by the
// affected-unit count. Rounding happens once, on the final product.
func Allocate(actual decimal.Decimal, u domain.Unit, ctx DistributionContext) (decimal.Decimal, error) {
	switch ctx.Method {
	case domain.CalcByShare:
		return round2(actual.Mul(u.Share)), nil
	case domain.CalcEqualSplit:
		if ctx.AffectedUnits <= 0 {
			return decimal.Zero, domain.ErrDivisionUndefined
		}
		return round2(actual.Div(decimal.NewFromInt(int64(ctx.AffectedUnits)))), nil
	}
	return decimal.Zero, fmt.Errorf("%w: unknown calc method %q", domain.ErrValidation, ctx.Method)
}
