package rest

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"condoledger/internal/domain"
	"condoledger/internal/repository"
)

type rawOwnerRequest struct {
	FirstName  interface{} `json:"first_name"`
	LastName   interface{} `json:"last_name"`
	NationalID interface{} `json:"national_id"`
	Phone      interface{} `json:"phone"`
	Email      interface{} `json:"email"`
}

func validateOwnerRequest(r *http.Request) (domain.Owner, error) {
	var raw rawOwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return domain.Owner{}, err
	}

	firstName, err := toStringPtr(raw.FirstName)
	if err != nil || firstName == nil {
		return domain.Owner{}, &ValidationError{Field: "first_name", Message: "first_name is required"}
	}
	lastName, err := toStringPtr(raw.LastName)
	if err != nil || lastName == nil {
		return domain.Owner{}, &ValidationError{Field: "last_name", Message: "last_name is required"}
	}
	nationalID, err := toStringPtr(raw.NationalID)
	if err != nil || nationalID == nil {
		return domain.Owner{}, &ValidationError{Field: "national_id", Message: "national_id is required"}
	}
	phone, err := toStringPtr(raw.Phone)
	if err != nil {
		return domain.Owner{}, &ValidationError{Field: "phone", Message: "phone must be a string"}
	}
	email, err := toStringPtr(raw.Email)
	if err != nil {
		return domain.Owner{}, &ValidationError{Field: "email", Message: "email must be a string"}
	}

	o := domain.Owner{
		FirstName:  *firstName,
		LastName:   *lastName,
		NationalID: *nationalID,
	}
	if phone != nil {
		o.Phone = *phone
	}
	if email != nil {
		o.Email = *email
	}
	return o, nil
}

func (h *Handler) listOwners(w http.ResponseWriter, r *http.Request) {
	filter := repository.OwnersFilter{
		NationalID: queryStringPtr(r, "national_id"),
		Search:     queryStringPtr(r, "search"),
	}

	owners, err := h.deps.Owners.List(r.Context(), filter)
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "owners", owners)
}

func (h *Handler) getOwner(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r, "owner_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	owner, err := h.deps.Owners.GetByID(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "owner", owner)
}

func (h *Handler) createOwner(w http.ResponseWriter, r *http.Request) {
	owner, err := validateOwnerRequest(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	if err := h.deps.Owners.Create(r.Context(), &owner); err != nil {
		RespondError(w, err)
		return
	}
	SuccessCreated(w, "owner created", owner)
}

func (h *Handler) updateOwner(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r, "owner_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	owner, err := validateOwnerRequest(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}
	owner.ID = id

	if err := h.deps.Owners.Update(r.Context(), owner); err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "owner updated", owner)
}

type rawBuildingRequest struct {
	Number      interface{} `json:"number"`
	Description interface{} `json:"description"`
	State       interface{} `json:"state"`
}

func validateBuildingRequest(r *http.Request) (domain.Building, error) {
	var raw rawBuildingRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return domain.Building{}, err
	}

	number, err := toStringPtr(raw.Number)
	if err != nil || number == nil {
		return domain.Building{}, &ValidationError{Field: "number", Message: "number is required"}
	}
	description, err := toStringPtr(raw.Description)
	if err != nil {
		return domain.Building{}, &ValidationError{Field: "description", Message: "description must be a string"}
	}
	state, err := toEntityState(raw.State)
	if err != nil {
		return domain.Building{}, err
	}

	b := domain.Building{Number: *number, State: state}
	if description != nil {
		b.Description = *description
	}
	return b, nil
}

// toEntityState defaults to active; the enum is closed.
func toEntityState(v interface{}) (domain.EntityState, error) {
	s, err := toStringPtr(v)
	if err != nil {
		return "", &ValidationError{Field: "state", Message: "state must be a string"}
	}
	if s == nil {
		return domain.StateActive, nil
	}
	state := domain.EntityState(*s)
	if !state.Valid() {
		return "", &ValidationError{Field: "state", Message: "state must be active or inactive"}
	}
	return state, nil
}

func (h *Handler) listBuildings(w http.ResponseWriter, r *http.Request) {
	filter := repository.BuildingsFilter{}
	if s := queryStringPtr(r, "state"); s != nil {
		state := domain.EntityState(*s)
		if !state.Valid() {
			ErrorBadRequest(w, "state must be active or inactive")
			return
		}
		filter.State = &state
	}

	buildings, err := h.deps.Buildings.List(r.Context(), filter)
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "buildings", buildings)
}

func (h *Handler) getBuilding(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r, "building_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	building, err := h.deps.Buildings.GetByID(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "building", building)
}

func (h *Handler) createBuilding(w http.ResponseWriter, r *http.Request) {
	building, err := validateBuildingRequest(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	if err := h.deps.Buildings.Create(r.Context(), &building); err != nil {
		RespondError(w, err)
		return
	}
	SuccessCreated(w, "building created", building)
}

func (h *Handler) updateBuilding(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r, "building_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	building, err := validateBuildingRequest(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}
	building.ID = id

	if err := h.deps.Buildings.Update(r.Context(), building); err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "building updated", building)
}

type rawUnitRequest struct {
	BuildingID interface{} `json:"building_id"`
	OwnerID    interface{} `json:"owner_id"`
	Floor      interface{} `json:"floor"`
	Label      interface{} `json:"label"`
	Share      interface{} `json:"share"`
}

func validateUnitRequest(r *http.Request) (domain.Unit, error) {
	var raw rawUnitRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return domain.Unit{}, err
	}

	buildingID, err := toInt64Ptr(raw.BuildingID)
	if err != nil || buildingID == nil {
		return domain.Unit{}, &ValidationError{Field: "building_id", Message: "building_id is required"}
	}
	ownerID, err := toInt64Ptr(raw.OwnerID)
	if err != nil || ownerID == nil {
		return domain.Unit{}, &ValidationError{Field: "owner_id", Message: "owner_id is required"}
	}
	floor, err := toStringPtr(raw.Floor)
	if err != nil || floor == nil {
		return domain.Unit{}, &ValidationError{Field: "floor", Message: "floor is required"}
	}
	label, err := toStringPtr(raw.Label)
	if err != nil || label == nil {
		return domain.Unit{}, &ValidationError{Field: "label", Message: "label is required"}
	}
	share, err := toDecimalPtr(raw.Share)
	if err != nil || share == nil {
		return domain.Unit{}, &ValidationError{Field: "share", Message: "share is required"}
	}
	if share.Sign() <= 0 || share.GreaterThan(decimal.NewFromInt(1)) {
		return domain.Unit{}, &ValidationError{Field: "share", Message: "share must be in (0, 1]"}
	}

	return domain.Unit{
		BuildingID: *buildingID,
		OwnerID:    *ownerID,
		Floor:      *floor,
		Label:      *label,
		Share:      *share,
	}, nil
}

func (h *Handler) listUnits(w http.ResponseWriter, r *http.Request) {
	buildingID, err := queryInt64Ptr(r, "building_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}
	ownerID, err := queryInt64Ptr(r, "owner_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	units, err := h.deps.Units.List(r.Context(), repository.UnitsFilter{BuildingID: buildingID, OwnerID: ownerID})
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "units", units)
}

func (h *Handler) getUnit(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r, "unit_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	unit, err := h.deps.Units.GetByID(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "unit", unit)
}

func (h *Handler) createUnit(w http.ResponseWriter, r *http.Request) {
	unit, err := validateUnitRequest(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	if err := h.deps.Units.Create(r.Context(), &unit); err != nil {
		RespondError(w, err)
		return
	}
	SuccessCreated(w, "unit created", unit)
}

func (h *Handler) updateUnit(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r, "unit_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	unit, err := validateUnitRequest(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}
	unit.ID = id

	if err := h.deps.Units.Update(r.Context(), unit); err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "unit updated", unit)
}
