package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CalcMethod decides how an expense is divided among units.
type CalcMethod string

const (
	// CalcByShare prorates by each unit's ownership fraction.
	CalcByShare CalcMethod = "by_share"
	// CalcEqualSplit divides evenly among the affected units.
	CalcEqualSplit CalcMethod = "equal_split"
)

func (m CalcMethod) Valid() bool {
	return m == CalcByShare || m == CalcEqualSplit
}

// DistributionScope decides which units an expense reaches.
type DistributionScope string

const (
	ScopeAllUnits          DistributionScope = "all_units"
	ScopeSpecificBuildings DistributionScope = "specific_buildings"
)

func (s DistributionScope) Valid() bool {
	return s == ScopeAllUnits || s == ScopeSpecificBuildings
}

type ExpenseType struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	CalcMethod  CalcMethod  `json:"calc_method"`
	State       EntityState `json:"state"`
}

type ExpenseConcept struct {
	ID            int64  `json:"id"`
	ExpenseTypeID int64  `json:"expense_type_id"`
	Description   string `json:"description"`

	TypeName   *string     `json:"type_name,omitempty"`
	CalcMethod *CalcMethod `json:"calc_method,omitempty"`
}

// ExpenseInstance is a budgeted expense: a concept with a base amount,
// a recurrence flag and a distribution scope. Specific-building scope is
// materialized through BuildingIDs linkage rows.
type ExpenseInstance struct {
	ID          int64             `json:"id"`
	ConceptID   int64             `json:"concept_id"`
	BaseAmount  decimal.Decimal   `json:"base_amount"`
	Recurring   bool              `json:"recurring"`
	Scope       DistributionScope `json:"scope"`
	State       EntityState       `json:"state"`
	BuildingIDs []int64           `json:"building_ids"`

	ConceptDescription *string     `json:"concept_description,omitempty"`
	CalcMethod         *CalcMethod `json:"calc_method,omitempty"`
}

// ExpenseMovement is one realized occurrence of an instance for a specific
// application month. ActualAmount may differ from the instance base amount.
// Building linkages are inherited from the instance.
type ExpenseMovement struct {
	ID               int64           `json:"id"`
	InstanceID       int64           `json:"instance_id"`
	ActualAmount     decimal.Decimal `json:"actual_amount"`
	ExpenseDate      time.Time       `json:"expense_date"`
	ApplicationMonth time.Time       `json:"application_month"`
	Note             string          `json:"note"`

	ConceptDescription *string            `json:"concept_description,omitempty"`
	CalcMethod         *CalcMethod        `json:"calc_method,omitempty"`
	Scope              *DistributionScope `json:"scope,omitempty"`
	BuildingIDs        []int64            `json:"building_ids,omitempty"`
}
