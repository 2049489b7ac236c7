package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// urlParamID reads a positive integer chi route parameter.
func urlParamID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &ValidationError{Field: name, Message: name + " must be a positive integer"}
	}
	return id, nil
}

// queryInt64Ptr reads an optional integer query parameter.
func queryInt64Ptr(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, &ValidationError{Field: name, Message: name + " must be an integer"}
	}
	return &v, nil
}

func queryStringPtr(r *http.Request, name string) *string {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	return &raw
}

// queryMonthPtr reads an optional YYYY-MM query parameter as the first day
// of that month in UTC.
func queryMonthPtr(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01", raw)
	if err != nil {
		return nil, &ValidationError{Field: name, Message: name + " must be YYYY-MM"}
	}
	return &parsed, nil
}

func queryDatePtr(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, &ValidationError{Field: name, Message: name + " must be YYYY-MM-DD"}
	}
	return &parsed, nil
}

func toStringPtr(v interface{}) (*string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if t == "" {
			return nil, nil
		}
		return &t, nil
	case float64:
		i := int64(t)
		s := strconv.FormatInt(i, 10)
		return &s, nil
	default:
		return nil, &ValidationError{Message: "invalid type for string field"}
	}
}

func toInt64Ptr(v interface{}) (*int64, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case float64:
		i := int64(t)
		return &i, nil
	case string:
		if t == "" {
			return nil, nil
		}
		i, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return nil, err
		}
		return &i, nil
	default:
		return nil, &ValidationError{Message: "invalid type for int field"}
	}
}

func toDatePtr(v interface{}) (*time.Time, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if t == "" {
			return nil, nil
		}
		parsed, err := time.Parse("2006-01-02", t)
		if err != nil {
			return nil, err
		}
		return &parsed, nil
	default:
		return nil, &ValidationError{Message: "invalid type for date field"}
	}
}

// toMonthPtr accepts YYYY-MM and YYYY-MM-DD, returning the month start.
func toMonthPtr(v interface{}) (*time.Time, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if t == "" {
			return nil, nil
		}
		if parsed, err := time.Parse("2006-01", t); err == nil {
			return &parsed, nil
		}
		parsed, err := time.Parse("2006-01-02", t)
		if err != nil {
			return nil, err
		}
		month := time.Date(parsed.Year(), parsed.Month(), 1, 0, 0, 0, 0, time.UTC)
		return &month, nil
	default:
		return nil, &ValidationError{Message: "invalid type for month field"}
	}
}

// toDecimalPtr accepts JSON numbers and numeric strings. Strings are
// preferred by callers that care about exact cents.
func toDecimalPtr(v interface{}) (*decimal.Decimal, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case float64:
		d := decimal.NewFromFloat(t)
		return &d, nil
	case string:
		if t == "" {
			return nil, nil
		}
		d, err := decimal.NewFromString(t)
		if err != nil {
			return nil, err
		}
		return &d, nil
	default:
		return nil, &ValidationError{Message: "invalid type for decimal field"}
	}
}

func toBoolPtr(v interface{}) (*bool, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return &t, nil
	default:
		return nil, &ValidationError{Message: "invalid type for bool field"}
	}
}
