package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"condoledger/internal/domain"
	"condoledger/internal/repository"
)

func (h *Handler) listReceipts(w http.ResponseWriter, r *http.Request) {
	filter, err := receiptsFilterFromQuery(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	receipts, err := h.deps.Receipts.List(r.Context(), filter)
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "receipts", receipts)
}

func receiptsFilterFromQuery(r *http.Request) (repository.ReceiptsFilter, error) {
	unitID, err := queryInt64Ptr(r, "unit_id")
	if err != nil {
		return repository.ReceiptsFilter{}, err
	}
	ownerID, err := queryInt64Ptr(r, "owner_id")
	if err != nil {
		return repository.ReceiptsFilter{}, err
	}
	month, err := queryMonthPtr(r, "month")
	if err != nil {
		return repository.ReceiptsFilter{}, err
	}

	filter := repository.ReceiptsFilter{UnitID: unitID, OwnerID: ownerID, EmissionMonth: month}
	if s := queryStringPtr(r, "state"); s != nil {
		state := domain.ReceiptState(*s)
		if state != domain.ReceiptPending && state != domain.ReceiptPaid {
			return repository.ReceiptsFilter{}, &ValidationError{Field: "state", Message: "state must be pending or paid"}
		}
		filter.State = &state
	}
	return filter, nil
}

func (h *Handler) getReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r, "receipt_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	rec, err := h.deps.Receipts.GetByID(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "receipt", rec)
}

// downloadReceipt streams the rendered workbook straight to the caller.
func (h *Handler) downloadReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r, "receipt_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	data, fileName, err := h.deps.Documents.ReceiptDocument(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	if _, err := w.Write(data); err != nil {
		return
	}
}

type rawMonthRequest struct {
	Month interface{} `json:"month"`
}

// validateMonthRequest reads {"month": "YYYY-MM"}; an absent month means
// the current one.
func validateMonthRequest(r *http.Request) (time.Time, error) {
	var raw rawMonthRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return time.Time{}, err
	}

	month, err := toMonthPtr(raw.Month)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "month", Message: "month must be YYYY-MM"}
	}
	if month == nil {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	}
	return *month, nil
}

func (h *Handler) generateReceipts(w http.ResponseWriter, r *http.Request) {
	month, err := validateMonthRequest(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	summary, err := h.deps.Billing.GenerateMonth(r.Context(), month)
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "receipts generated", summary)
}

func (h *Handler) regenerateReceipts(w http.ResponseWriter, r *http.Request) {
	month, err := validateMonthRequest(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	summary, err := h.deps.Billing.RegenerateMonth(r.Context(), month)
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "receipts regenerated", summary)
}

func (h *Handler) refreshReceiptStates(w http.ResponseWriter, r *http.Request) {
	changed, err := h.deps.Billing.RefreshStates(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "receipt states refreshed", map[string]int64{"changed": changed})
}

func (h *Handler) materializeRecurring(w http.ResponseWriter, r *http.Request) {
	month, err := validateMonthRequest(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	created, err := h.deps.Billing.MaterializeRecurring(r.Context(), month)
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "recurring movements materialized", map[string]int{"created": created})
}

type rawRemindersRequest struct {
	DelinquentsOnly interface{} `json:"delinquents_only"`
}

func (h *Handler) sendReminders(w http.ResponseWriter, r *http.Request) {
	var raw rawRemindersRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		ErrorBadRequest(w, err.Error())
		return
	}
	only, err := toBoolPtr(raw.DelinquentsOnly)
	if err != nil {
		ErrorBadRequest(w, "delinquents_only must be a boolean")
		return
	}

	delinquentsOnly := only != nil && *only
	sent, err := h.deps.Billing.SendReminders(r.Context(), delinquentsOnly)
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "payment reminders queued", map[string]int{"sent": sent})
}
