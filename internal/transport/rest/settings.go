package rest

import (
	"encoding/json"
	"io"
	"net/http"

	"condoledger/internal/domain"
)

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.deps.Settings.Load(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "billing settings", settings)
}

type rawSettingsRequest struct {
	GenerationDay        interface{} `json:"generation_day"`
	GenerationHour       interface{} `json:"generation_hour"`
	ReminderDay          interface{} `json:"reminder_day"`
	ReminderHour         interface{} `json:"reminder_hour"`
	Active               interface{} `json:"active"`
	NewReceiptTemplate   interface{} `json:"new_receipt_template"`
	ReminderTemplate     interface{} `json:"reminder_template"`
	DelinquencyThreshold interface{} `json:"delinquency_threshold"`
}

func validateSettingsRequest(r *http.Request, current domain.BillingSettings) (domain.BillingSettings, error) {
	var raw rawSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return domain.BillingSettings{}, err
	}

	intField := func(v interface{}, field string, min, max int, dst *int) error {
		n, err := toInt64Ptr(v)
		if err != nil {
			return &ValidationError{Field: field, Message: field + " must be an integer"}
		}
		if n == nil {
			return nil
		}
		if *n < int64(min) || *n > int64(max) {
			return &ValidationError{Field: field, Message: field + " is out of range"}
		}
		*dst = int(*n)
		return nil
	}

	s := current
	if err := intField(raw.GenerationDay, "generation_day", 1, 28, &s.GenerationDay); err != nil {
		return domain.BillingSettings{}, err
	}
	if err := intField(raw.GenerationHour, "generation_hour", 0, 23, &s.GenerationHour); err != nil {
		return domain.BillingSettings{}, err
	}
	if err := intField(raw.ReminderDay, "reminder_day", 1, 28, &s.ReminderDay); err != nil {
		return domain.BillingSettings{}, err
	}
	if err := intField(raw.ReminderHour, "reminder_hour", 0, 23, &s.ReminderHour); err != nil {
		return domain.BillingSettings{}, err
	}
	if err := intField(raw.DelinquencyThreshold, "delinquency_threshold", 1, 1000, &s.DelinquencyThreshold); err != nil {
		return domain.BillingSettings{}, err
	}

	active, err := toBoolPtr(raw.Active)
	if err != nil {
		return domain.BillingSettings{}, &ValidationError{Field: "active", Message: "active must be a boolean"}
	}
	if active != nil {
		s.Active = *active
	}

	if tpl, err := toStringPtr(raw.NewReceiptTemplate); err != nil {
		return domain.BillingSettings{}, &ValidationError{Field: "new_receipt_template", Message: "new_receipt_template must be a string"}
	} else if tpl != nil {
		s.NewReceiptTemplate = *tpl
	}
	if tpl, err := toStringPtr(raw.ReminderTemplate); err != nil {
		return domain.BillingSettings{}, &ValidationError{Field: "reminder_template", Message: "reminder_template must be a string"}
	} else if tpl != nil {
		s.ReminderTemplate = *tpl
	}

	return s, nil
}

// updateSettings patches over the current row; omitted fields keep their
// stored values.
func (h *Handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	current, err := h.deps.Settings.Load(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}

	settings, err := validateSettingsRequest(r, current)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	if err := h.deps.Settings.Save(r.Context(), &settings); err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "billing settings updated", settings)
}

func (h *Handler) listRates(w http.ResponseWriter, r *http.Request) {
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

	rates, err := h.deps.Rates.List(r.Context(), start, end)
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "exchange rates", rates)
}

func (h *Handler) latestRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.deps.Rates.Latest(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "latest exchange rate", rate)
}

type rawRateRequest struct {
	Date interface{} `json:"date"`
	Rate interface{} `json:"rate"`
}

func (h *Handler) upsertRate(w http.ResponseWriter, r *http.Request) {
	var raw rawRateRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		ErrorBadRequest(w, err.Error())
		return
	}

	date, err := toDatePtr(raw.Date)
	if err != nil || date == nil {
		ErrorBadRequest(w, "date must be YYYY-MM-DD")
		return
	}
	rate, err := toDecimalPtr(raw.Rate)
	if err != nil || rate == nil {
		ErrorBadRequest(w, "rate is required")
		return
	}
	if rate.Sign() <= 0 {
		ErrorBadRequest(w, "rate must be positive")
		return
	}

	e := domain.ExchangeRate{Date: *date, Rate: *rate}
	if err := h.deps.Rates.Upsert(r.Context(), &e); err != nil {
		RespondError(w, err)
		return
	}
	Success(w, "exchange rate stored", e)
}
