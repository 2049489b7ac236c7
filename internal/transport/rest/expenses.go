package rest

import (
	"encoding/json"
	"io"
	"net/http"

	"condoledger/internal/domain"
	"condoledger/internal/repository"
)

type rawExpenseInstanceRequest struct {
	ConceptID   interface{} `json:"concept_id"`
	BaseAmount  interface{} `json:"base_amount"`
	Recurring   interface{} `json:"recurring"`
	Scope       interface{} `json:"scope"`
	State       interface{} `json:"state"`
	BuildingIDs []int64     `json:"building_ids"`
}

func validateExpenseInstanceRequest(r *http.Request) (domain.ExpenseInstance, error) {
	var raw rawExpenseInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return domain.ExpenseInstance{}, err
	}

	conceptID, err := toInt64Ptr(raw.ConceptID)
	if err != nil || conceptID == nil {
		return domain.ExpenseInstance{}, &ValidationError{Field: "concept_id", Message: "concept_id is required"}
	}
	baseAmount, err := toDecimalPtr(raw.BaseAmount)
	if err != nil || baseAmount == nil {
		return domain.ExpenseInstance{}, &ValidationError{Field: "base_amount", Message: "base_amount is required"}
	}
	if baseAmount.Sign() <= 0 {
		return domain.ExpenseInstance{}, &ValidationError{Field: "base_amount", Message: "base_amount must be positive"}
	}
	recurring, err := toBoolPtr(raw.Recurring)
	if err != nil {
		return domain.ExpenseInstance{}, &ValidationError{Field: "recurring", Message: "recurring must be a boolean"}
	}
	scope, err := toDistributionScope(raw.Scope)
	if err != nil {
		return domain.ExpenseInstance{}, err
	}
	state, err := toEntityState(raw.State)
	if err != nil {
		return domain.ExpenseInstance{}, err
	}

	if scope == domain.ScopeSpecificBuildings && len(raw.BuildingIDs) == 0 {
		return domain.ExpenseInstance{}, &ValidationError{Field: "building_ids", Message: "building_ids is required for specific_buildings scope"}
	}
	if scope == domain.ScopeAllUnits && len(raw.BuildingIDs) > 0 {
		return domain.ExpenseInstance{}, &ValidationError{Field: "building_ids", Message: "building_ids must be empty for all_units scope"}
	}

	inst := domain.ExpenseInstance{
		ConceptID:   *conceptID,
		BaseAmount:  *baseAmount,
		Scope:       scope,
		State:       state,
		BuildingIDs: raw.BuildingIDs,
	}
	if recurring != nil {
		inst.Recurring = *recurring
	}
	return inst, nil
}

func toDistributionScope(v interface{}) (domain.DistributionScope, error) {
	s, err := toStringPtr(v)
	if err != nil {
		return "", &ValidationError{Field: "scope", Message: "scope must be a string"}
	}
	if s == nil {
		return domain.ScopeAllUnits, nil
	}
	scope := domain.DistributionScope(*s)
	if !scope.Valid() {
		return "", &ValidationError{Field: "scope", Message: "scope must be all_units or specific_buildings"}
	}
	return scope, nil
}

func (h *Handler) listExpenseInstances(w http.ResponseWriter, r *http.Request) {
	conceptID, err := queryInt64Ptr(r, "concept_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	filter := repository.ExpenseInstancesFilter{ConceptID: conceptID}
	if s := queryStringPtr(r, "recurring"); s != nil {
		recurring := *s == "true"
		filter.Recurring = &recurring
	}
	if s := queryStringPtr(r, "state"); s != nil {
		state := domain.EntityState(*s)
		if !state.Valid() {
			ErrorBadRequest(w, "state must be active or inactive")
			return
		}
		filter.State = &state
	}

	instances, err := h.deps.Expenses.List(r.Context(), filter)
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "expense instances", instances)
}

func (h *Handler) getExpenseInstance(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r, "instance_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	inst, err := h.deps.Expenses.GetByID(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "expense instance", inst)
}

func (h *Handler) createExpenseInstance(w http.ResponseWriter, r *http.Request) {
	inst, err := validateExpenseInstanceRequest(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	if err := h.deps.Expenses.Create(r.Context(), &inst); err != nil {
		RespondError(w, err)
		return
	}
	SuccessCreated(w, "expense instance created", inst)
}

func (h *Handler) updateExpenseInstance(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r, "instance_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	inst, err := validateExpenseInstanceRequest(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}
	inst.ID = id

	if err := h.deps.Expenses.Update(r.Context(), inst); err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "expense instance updated", inst)
}

type rawMovementRequest struct {
	InstanceID       interface{} `json:"instance_id"`
	ActualAmount     interface{} `json:"actual_amount"`
	ExpenseDate      interface{} `json:"expense_date"`
	ApplicationMonth interface{} `json:"application_month"`
	Note             interface{} `json:"note"`
}

func validateMovementRequest(r *http.Request) (domain.ExpenseMovement, error) {
	var raw rawMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return domain.ExpenseMovement{}, err
	}

	instanceID, err := toInt64Ptr(raw.InstanceID)
	if err != nil || instanceID == nil {
		return domain.ExpenseMovement{}, &ValidationError{Field: "instance_id", Message: "instance_id is required"}
	}
	amount, err := toDecimalPtr(raw.ActualAmount)
	if err != nil || amount == nil {
		return domain.ExpenseMovement{}, &ValidationError{Field: "actual_amount", Message: "actual_amount is required"}
	}
	if amount.Sign() <= 0 {
		return domain.ExpenseMovement{}, &ValidationError{Field: "actual_amount", Message: "actual_amount must be positive"}
	}
	expenseDate, err := toDatePtr(raw.ExpenseDate)
	if err != nil || expenseDate == nil {
		return domain.ExpenseMovement{}, &ValidationError{Field: "expense_date", Message: "expense_date must be YYYY-MM-DD"}
	}
	month, err := toMonthPtr(raw.ApplicationMonth)
	if err != nil || month == nil {
		return domain.ExpenseMovement{}, &ValidationError{Field: "application_month", Message: "application_month must be YYYY-MM"}
	}
	note, err := toStringPtr(raw.Note)
	if err != nil {
		return domain.ExpenseMovement{}, &ValidationError{Field: "note", Message: "note must be a string"}
	}

	mv := domain.ExpenseMovement{
		InstanceID:       *instanceID,
		ActualAmount:     *amount,
		ExpenseDate:      *expenseDate,
		ApplicationMonth: *month,
	}
	if note != nil {
		mv.Note = *note
	}
	return mv, nil
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	instanceID, err := queryInt64Ptr(r, "instance_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}
	month, err := queryMonthPtr(r, "month")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}
	start, err := queryDatePtr(r, "start_date")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}
	end, err := queryDatePtr(r, "end_date")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	movements, err := h.deps.Movements.List(r.Context(), repository.MovementsFilter{
		InstanceID:       instanceID,
		ApplicationMonth: month,
		StartDate:        start,
		EndDate:          end,
	})
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "expense movements", movements)
}

func (h *Handler) getMovement(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r, "movement_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	mv, err := h.deps.Movements.GetByID(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "expense movement", mv)
}

func (h *Handler) createMovement(w http.ResponseWriter, r *http.Request) {
	mv, err := validateMovementRequest(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	if err := h.deps.Movements.Create(r.Context(), &mv); err != nil {
		RespondError(w, err)
		return
	}
	SuccessCreated(w, "expense movement created", mv)
}
