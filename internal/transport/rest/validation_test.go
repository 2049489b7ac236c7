package rest

import (
	"testing"
	"time"
)

func TestToInt64Ptr(t *testing.T) {
	if v, err := toInt64Ptr(float64(42)); err != nil || v == nil || *v != 42 {
		t.Fatalf("number: v=%v err=%v", v, err)
	}
	if v, err := toInt64Ptr("17"); err != nil || v == nil || *v != 17 {
		t.Fatalf("numeric string: v=%v err=%v", v, err)
	}
	if v, err := toInt64Ptr(nil); err != nil || v != nil {
		t.Fatalf("nil: v=%v err=%v", v, err)
	}
	if v, err := toInt64Ptr(""); err != nil || v != nil {
		t.Fatalf("empty string: v=%v err=%v", v, err)
	}
	if _, err := toInt64Ptr(true); err == nil {
		t.Fatal("bool accepted")
	}
}

func TestToDecimalPtr(t *testing.T) {
	v, err := toDecimalPtr("150.13")
	if err != nil || v == nil {
		t.Fatalf("string: v=%v err=%v", v, err)
	}
	if v.StringFixed(2) != "150.13" {
		t.Fatalf("value = %s", v.StringFixed(2))
	}

	if v, err := toDecimalPtr(float64(99.5)); err != nil || v == nil {
		t.Fatalf("number: v=%v err=%v", v, err)
	}
	if _, err := toDecimalPtr("abc"); err == nil {
		t.Fatal("garbage accepted")
	}
	if v, err := toDecimalPtr(nil); err != nil || v != nil {
		t.Fatalf("nil: v=%v err=%v", v, err)
	}
}

func TestToMonthPtr(t *testing.T) {
	v, err := toMonthPtr("2026-03")
	if err != nil || v == nil {
		t.Fatalf("YYYY-MM: v=%v err=%v", v, err)
	}
	want := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	if !v.Equal(want) {
		t.Fatalf("month = %v, want %v", v, want)
	}

	// full dates collapse to the month start
	v, err = toMonthPtr("2026-03-17")
	if err != nil || v == nil || !v.Equal(want) {
		t.Fatalf("YYYY-MM-DD: v=%v err=%v", v, err)
	}

	if _, err := toMonthPtr("March 2026"); err == nil {
		t.Fatal("free text accepted")
	}
}

func TestToDatePtr(t *testing.T) {
	v, err := toDatePtr("2026-08-28")
	if err != nil || v == nil {
		t.Fatalf("date: v=%v err=%v", v, err)
	}
	if v.Year() != 2026 || v.Month() != time.August || v.Day() != 28 {
		t.Fatalf("date = %v", v)
	}
	if _, err := toDatePtr(float64(20260828)); err == nil {
		t.Fatal("number accepted")
	}
}

func TestToStringPtr(t *testing.T) {
	if v, err := toStringPtr("x"); err != nil || v == nil || *v != "x" {
		t.Fatalf("string: v=%v err=%v", v, err)
	}
	// numbers coerce for callers that send IDs either way
	if v, err := toStringPtr(float64(12)); err != nil || v == nil || *v != "12" {
		t.Fatalf("number: v=%v err=%v", v, err)
	}
	if v, err := toStringPtr(nil); err != nil || v != nil {
		t.Fatalf("nil: v=%v err=%v", v, err)
	}
}
