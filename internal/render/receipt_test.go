package render

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"condoledger/internal/domain"
)

func sampleReceipt() domain.Receipt {
	owner := "Ana Torres"
	building := "B-2"
	floor := "3"
	label := "A"
	return domain.Receipt{
		ID:           1,
		Number:       "REC-202603-00042",
		UnitID:       7,
		EmissionDate: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		CarriedDebt:  decimal.NewFromFloat(50),
		MonthCharges: decimal.NewFromFloat(100),
		Interest:     decimal.NewFromFloat(0.13),
		TotalDue:     decimal.NewFromFloat(150.13),
		Balance:      decimal.NewFromFloat(150.13),
		State:        domain.ReceiptPending,
		Details: []domain.ReceiptDetail{
			{Description: "Cleaning", CalcMethod: domain.CalcByShare, Amount: decimal.NewFromFloat(60)},
			{Description: "Security", CalcMethod: domain.CalcEqualSplit, Amount: decimal.NewFromFloat(40)},
		},
		OwnerName:      &owner,
		BuildingNumber: &building,
		UnitFloor:      &floor,
		UnitLabel:      &label,
	}
}

func TestReceiptDocument(t *testing.T) {
	data, err := ReceiptDocument(sampleReceipt())
	if err != nil {
		t.Fatalf("ReceiptDocument: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	number, err := f.GetCellValue("Receipt", "B1")
	if err != nil {
		t.Fatalf("read cell: %v", err)
	}
	if number != "REC-202603-00042" {
		t.Errorf("B1 = %q, want receipt number", number)
	}

	concept, err := f.GetCellValue("Receipt", "A8")
	if err != nil {
		t.Fatalf("read cell: %v", err)
	}
	if concept != "Cleaning" {
		t.Errorf("A8 = %q, want first detail description", concept)
	}
}

func TestReceiptListSelectsColumns(t *testing.T) {
	data, err := ReceiptList([]domain.Receipt{sampleReceipt()}, []string{"number", "balance", "bogus"})
	if err != nil {
		t.Fatalf("ReceiptList: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Receipts")
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}
	// the unknown key is dropped, not rendered
	if len(rows[0]) != 2 || rows[0][0] != "Number" || rows[0][1] != "Balance" {
		t.Fatalf("header = %v", rows[0])
	}
	if rows[1][0] != "REC-202603-00042" {
		t.Errorf("row value = %q", rows[1][0])
	}
}

func TestReceiptListDefaultsFields(t *testing.T) {
	data, err := ReceiptList([]domain.Receipt{sampleReceipt()}, nil)
	if err != nil {
		t.Fatalf("ReceiptList: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Receipts")
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows[0]) != len(DefaultReceiptFields) {
		t.Fatalf("header columns = %d, want %d", len(rows[0]), len(DefaultReceiptFields))
	}
}

func TestReceiptListRejectsAllUnknownFields(t *testing.T) {
	if _, err := ReceiptList(nil, []string{"nope", "also_nope"}); err == nil {
		t.Fatal("expected error for unknown fields only")
	}
}
