package rest

import (
	"encoding/json"
	"io"
	"net/http"

	"condoledger/internal/domain"
	"condoledger/internal/repository"
)

type rawExpenseTypeRequest struct {
	Name        interface{} `json:"name"`
	Description interface{} `json:"description"`
	CalcMethod  interface{} `json:"calc_method"`
	State       interface{} `json:"state"`
}

func validateExpenseTypeRequest(r *http.Request) (domain.ExpenseType, error) {
	var raw rawExpenseTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return domain.ExpenseType{}, err
	}

	name, err := toStringPtr(raw.Name)
	if err != nil || name == nil {
		return domain.ExpenseType{}, &ValidationError{Field: "name", Message: "name is required"}
	}
	description, err := toStringPtr(raw.Description)
	if err != nil {
		return domain.ExpenseType{}, &ValidationError{Field: "description", Message: "description must be a string"}
	}
	method, err := toCalcMethod(raw.CalcMethod)
	if err != nil {
		return domain.ExpenseType{}, err
	}
	state, err := toEntityState(raw.State)
	if err != nil {
		return domain.ExpenseType{}, err
	}

	t := domain.ExpenseType{Name: *name, CalcMethod: method, State: state}
	if description != nil {
		t.Description = *description
	}
	return t, nil
}

// toCalcMethod rejects anything outside the closed enum.
func toCalcMethod(v interface{}) (domain.CalcMethod, error) {
	s, err := toStringPtr(v)
	if err != nil || s == nil {
		return "", &ValidationError{Field: "calc_method", Message: "calc_method is required"}
	}
	method := domain.CalcMethod(*s)
	if !method.Valid() {
		return "", &ValidationError{Field: "calc_method", Message: "calc_method must be by_share or equal_split"}
	}
	return method, nil
}

func (h *Handler) listExpenseTypes(w http.ResponseWriter, r *http.Request) {
	filter := repository.ExpenseTypesFilter{}
	if s := queryStringPtr(r, "state"); s != nil {
		state := domain.EntityState(*s)
		if !state.Valid() {
			ErrorBadRequest(w, "state must be active or inactive")
			return
		}
		filter.State = &state
	}
	if s := queryStringPtr(r, "calc_method"); s != nil {
		method := domain.CalcMethod(*s)
		if !method.Valid() {
			ErrorBadRequest(w, "calc_method must be by_share or equal_split")
			return
		}
		filter.CalcMethod = &method
	}

	types, err := h.deps.Catalog.ListTypes(r.Context(), filter)
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "expense types", types)
}

func (h *Handler) getExpenseType(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r, "type_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	t, err := h.deps.Catalog.GetType(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "expense type", t)
}

func (h *Handler) createExpenseType(w http.ResponseWriter, r *http.Request) {
	t, err := validateExpenseTypeRequest(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	if err := h.deps.Catalog.CreateType(r.Context(), &t); err != nil {
		RespondError(w, err)
		return
	}
	SuccessCreated(w, "expense type created", t)
}

func (h *Handler) updateExpenseType(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r, "type_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	t, err := validateExpenseTypeRequest(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}
	t.ID = id

	if err := h.deps.Catalog.UpdateType(r.Context(), t); err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "expense type updated", t)
}

type rawExpenseConceptRequest struct {
	ExpenseTypeID interface{} `json:"expense_type_id"`
	Description   interface{} `json:"description"`
}

func validateExpenseConceptRequest(r *http.Request) (domain.ExpenseConcept, error) {
	var raw rawExpenseConceptRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return domain.ExpenseConcept{}, err
	}

	typeID, err := toInt64Ptr(raw.ExpenseTypeID)
	if err != nil || typeID == nil {
		return domain.ExpenseConcept{}, &ValidationError{Field: "expense_type_id", Message: "expense_type_id is required"}
	}
	description, err := toStringPtr(raw.Description)
	if err != nil || description == nil {
		return domain.ExpenseConcept{}, &ValidationError{Field: "description", Message: "description is required"}
	}

	return domain.ExpenseConcept{ExpenseTypeID: *typeID, Description: *description}, nil
}

func (h *Handler) listExpenseConcepts(w http.ResponseWriter, r *http.Request) {
	typeID, err := queryInt64Ptr(r, "type_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	concepts, err := h.deps.Catalog.ListConcepts(r.Context(), typeID)
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "expense concepts", concepts)
}

func (h *Handler) getExpenseConcept(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r, "concept_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	c, err := h.deps.Catalog.GetConcept(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "expense concept", c)
}

func (h *Handler) createExpenseConcept(w http.ResponseWriter, r *http.Request) {
	c, err := validateExpenseConceptRequest(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	if err := h.deps.Catalog.CreateConcept(r.Context(), &c); err != nil {
		RespondError(w, err)
		return
	}
	SuccessCreated(w, "expense concept created", c)
}

func (h *Handler) updateExpenseConcept(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r, "concept_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	c, err := validateExpenseConceptRequest(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}
	c.ID = id

	if err := h.deps.Catalog.UpdateConcept(r.Context(), c); err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "expense concept updated", c)
}
