package rest

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"condoledger/internal/domain"
	"condoledger/internal/repository"
	"condoledger/internal/transport/auth"
)

type rawReceiptsExportRequest struct {
	Fields []string `json:"fields"`

	UnitID  interface{} `json:"unit_id"`
	OwnerID interface{} `json:"owner_id"`
	Month   interface{} `json:"month"`
	State   interface{} `json:"state"`
}

type ReceiptsExportRequest struct {
	Fields []string
	Filter repository.ReceiptsFilter
}

func ValidateReceiptsExportRequest(r *http.Request) (*ReceiptsExportRequest, error) {
	var raw rawReceiptsExportRequest

	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return nil, err
	}

	if len(raw.Fields) == 0 {
		return nil, &ValidationError{Field: "fields", Message: "fields is required and must be an array"}
	}

	unitID, err := toInt64Ptr(raw.UnitID)
	if err != nil {
		return nil, &ValidationError{Field: "unit_id", Message: "unit_id must be integer or empty"}
	}
	ownerID, err := toInt64Ptr(raw.OwnerID)
	if err != nil {
		return nil, &ValidationError{Field: "owner_id", Message: "owner_id must be integer or empty"}
	}
	month, err := toMonthPtr(raw.Month)
	if err != nil {
		return nil, &ValidationError{Field: "month", Message: "month must be YYYY-MM or empty"}
	}

	filter := repository.ReceiptsFilter{UnitID: unitID, OwnerID: ownerID, EmissionMonth: month}

	stateStr, err := toStringPtr(raw.State)
	if err != nil {
		return nil, &ValidationError{Field: "state", Message: "state must be string or empty"}
	}
	if stateStr != nil {
		state := domain.ReceiptState(*stateStr)
		if state != domain.ReceiptPending && state != domain.ReceiptPaid {
			return nil, &ValidationError{Field: "state", Message: "state must be pending or paid"}
		}
		filter.State = &state
	}

	return &ReceiptsExportRequest{Fields: raw.Fields, Filter: filter}, nil
}

func (h *Handler) exportReceipts(w http.ResponseWriter, r *http.Request) {
	req, err := ValidateReceiptsExportRequest(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "unauthorized")
		return
	}

	documentID, err := h.deps.Documents.StartReceiptsExport(r.Context(), req.Fields, req.Filter, userID)
	if err != nil {
		RespondError(w, err)
		return
	}

	SuccessAccepted(w, "export started", map[string]interface{}{
		"document_id": documentID,
	})
}

func (h *Handler) exportDelinquents(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "unauthorized")
		return
	}

	documentID, err := h.deps.Documents.StartDelinquentsExport(r.Context(), userID)
	if err != nil {
		RespondError(w, err)
		return
	}

	SuccessAccepted(w, "export started", map[string]interface{}{
		"document_id": documentID,
	})
}

func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "unauthorized")
		return
	}

	statuses, err := h.deps.Documents.ListDocuments(r.Context(), userID)
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "documents", statuses)
}

func (h *Handler) getDocument(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "document_id")
	if documentID == "" {
		ErrorBadRequest(w, "document_id is required")
		return
	}

	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "unauthorized")
		return
	}

	status, err := h.deps.Documents.GetDocument(r.Context(), documentID, userID)
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "document status", status)
}

func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "unauthorized")
		return
	}
	h.deps.Hub.HandleWebSocket(w, r, userID)
}
