package rest

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"condoledger/internal/domain"
	"condoledger/internal/repository"
	"condoledger/internal/service"
)

type rawPaymentRequest struct {
	ReceiptID     interface{} `json:"receipt_id"`
	PaymentDate   interface{} `json:"payment_date"`
	Amount        interface{} `json:"amount"`
	BankReference interface{} `json:"bank_reference"`
	Method        interface{} `json:"method"`
	Note          interface{} `json:"note"`
}

func validatePaymentRequest(r *http.Request) (service.PaymentInput, error) {
	var raw rawPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return service.PaymentInput{}, err
	}

	receiptID, err := toInt64Ptr(raw.ReceiptID)
	if err != nil || receiptID == nil {
		return service.PaymentInput{}, &ValidationError{Field: "receipt_id", Message: "receipt_id is required"}
	}
	paymentDate, err := toDatePtr(raw.PaymentDate)
	if err != nil || paymentDate == nil {
		return service.PaymentInput{}, &ValidationError{Field: "payment_date", Message: "payment_date must be YYYY-MM-DD"}
	}
	amount, err := toDecimalPtr(raw.Amount)
	if err != nil || amount == nil {
		return service.PaymentInput{}, &ValidationError{Field: "amount", Message: "amount is required"}
	}
	reference, err := toStringPtr(raw.BankReference)
	if err != nil || reference == nil {
		return service.PaymentInput{}, &ValidationError{Field: "bank_reference", Message: "bank_reference is required"}
	}
	method, err := toStringPtr(raw.Method)
	if err != nil {
		return service.PaymentInput{}, &ValidationError{Field: "method", Message: "method must be a string"}
	}
	note, err := toStringPtr(raw.Note)
	if err != nil {
		return service.PaymentInput{}, &ValidationError{Field: "note", Message: "note must be a string"}
	}

	in := service.PaymentInput{
		ReceiptID:     *receiptID,
		PaymentDate:   *paymentDate,
		Amount:        *amount,
		BankReference: *reference,
	}
	if method != nil {
		in.Method = *method
	}
	if note != nil {
		in.Note = *note
	}
	return in, nil
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	receiptID, err := queryInt64Ptr(r, "receipt_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}
	ownerID, err := queryInt64Ptr(r, "owner_id")
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

	filter := repository.PaymentsFilter{
		ReceiptID: receiptID,
		OwnerID:   ownerID,
		StartDate: start,
		EndDate:   end,
	}
	if s := queryStringPtr(r, "verification"); s != nil {
		state := domain.VerificationState(*s)
		switch state {
		case domain.PaymentPendingReview, domain.PaymentVerified, domain.PaymentRejected:
			filter.Verification = &state
		default:
			ErrorBadRequest(w, "verification must be pending_review, verified or rejected")
			return
		}
	}

	payments, err := h.deps.Payments.List(r.Context(), filter)
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "payments", payments)
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "payment_id")
	if id == "" {
		ErrorBadRequest(w, "payment_id is required")
		return
	}

	p, err := h.deps.Payments.GetByID(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "payment", p)
}

// intakePayment records an owner-reported payment; money moves only after
// verification.
func (h *Handler) intakePayment(w http.ResponseWriter, r *http.Request) {
	in, err := validatePaymentRequest(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	p, err := h.deps.Processor.Intake(r.Context(), in)
	if err != nil {
		RespondError(w, err)
		return
	}
	SuccessCreated(w, "payment received for review", p)
}

// registerPayment records an admin-entered payment and allocates it in the
// same request.
func (h *Handler) registerPayment(w http.ResponseWriter, r *http.Request) {
	in, err := validatePaymentRequest(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	outcome, err := h.deps.Processor.Register(r.Context(), in)
	if err != nil {
		RespondError(w, err)
		return
	}
	SuccessCreated(w, "payment registered", outcome)
}

func (h *Handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "payment_id")
	if id == "" {
		ErrorBadRequest(w, "payment_id is required")
		return
	}

	outcome, err := h.deps.Processor.Verify(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "payment verified", outcome)
}

type rawRejectRequest struct {
	Note interface{} `json:"note"`
}

func (h *Handler) rejectPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "payment_id")
	if id == "" {
		ErrorBadRequest(w, "payment_id is required")
		return
	}

	var raw rawRejectRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		ErrorBadRequest(w, err.Error())
		return
	}
	note, err := toStringPtr(raw.Note)
	if err != nil {
		ErrorBadRequest(w, "note must be a string")
		return
	}

	reason := ""
	if note != nil {
		reason = *note
	}
	if err := h.deps.Processor.Reject(r.Context(), id, reason); err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "payment rejected", nil)
}

type rawBulkVerifyRequest struct {
	PaymentIDs []string `json:"payment_ids"`
}

// verifyPayments verifies a batch; individual failures are reported per
// payment, not as a request failure.
func (h *Handler) verifyPayments(w http.ResponseWriter, r *http.Request) {
	var raw rawBulkVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		ErrorBadRequest(w, err.Error())
		return
	}
	if len(raw.PaymentIDs) == 0 {
		ErrorBadRequest(w, "payment_ids is required and must be an array")
		return
	}

	outcomes := h.deps.Processor.VerifyMany(r.Context(), raw.PaymentIDs)
	Success(w, "payments processed", outcomes)
}
