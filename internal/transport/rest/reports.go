package rest

import "net/http"

func (h *Handler) delinquentsReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.deps.Reports.Delinquents(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "delinquents report", report)
}

func (h *Handler) cashFlowReport(w http.ResponseWriter, r *http.Request) {
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
	if start == nil || end == nil {
		ErrorBadRequest(w, "start_date and end_date are required")
		return
	}
	if end.Before(*start) {
		ErrorBadRequest(w, "end_date must not precede start_date")
		return
	}

	report, err := h.deps.Reports.CashFlow(r.Context(), *start, *end)
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "cash flow report", report)
}

func (h *Handler) paymentHistoryReport(w http.ResponseWriter, r *http.Request) {
	ownerID, err := urlParamID(r, "owner_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	history, err := h.deps.Reports.PaymentHistory(r.Context(), ownerID)
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "payment history", history)
}

func (h *Handler) creditsReport(w http.ResponseWriter, r *http.Request) {
	credits, err := h.deps.Reports.Credits(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "owner credits", credits)
}

func (h *Handler) shareAuditReport(w http.ResponseWriter, r *http.Request) {
	audit, err := h.deps.Reports.ShareAudit(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "share audit", audit)
}
