package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"condoledger/internal/domain"
)

func TestRespondErrorMapsDomainErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", fmt.Errorf("%w: amount must be positive", domain.ErrValidation), http.StatusBadRequest},
		{"division undefined", fmt.Errorf("movement 3: %w", domain.ErrDivisionUndefined), http.StatusBadRequest},
		{"not found", fmt.Errorf("%w: receipt 9", domain.ErrNotFound), http.StatusNotFound},
		{"duplicate reference", fmt.Errorf("%w: bank reference X1", domain.ErrDuplicateReference), http.StatusConflict},
		{"concurrency", fmt.Errorf("%w: owner 4 busy", domain.ErrConcurrencyConflict), http.StatusConflict},
		{"unknown", errors.New("sql: connection refused"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondError(rec, tc.err)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}

			var resp APIResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if resp.Status != "error" {
				t.Errorf("status field = %q", resp.Status)
			}
		})
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("pq: password authentication failed"))

	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Message != "internal error" {
		t.Fatalf("message = %q, internal detail leaked", resp.Message)
	}
}

func TestSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, "owners", []string{"a"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}

	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.ErrorCode != 0 || resp.Status != "success" || resp.Message != "owners" {
		t.Fatalf("envelope = %+v", resp)
	}
}
