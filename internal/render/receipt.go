// Package render produces the xlsx documents handed to owners and admins.
package render

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"condoledger/internal/domain"
)

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// ReceiptDocument renders a single receipt as a printable workbook: the
// unit header, one line per expense detail and the carried-debt, interest
// and total summary rows.
func ReceiptDocument(rec domain.Receipt) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "Receipt"
	f.SetSheetName(f.GetSheetName(0), sheet)

	set := func(col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	set(1, 1, "Receipt")
	set(2, 1, rec.Number)
	set(1, 2, "Emission date")
	set(2, 2, rec.EmissionDate.Format("2006-01-02"))
	set(1, 3, "Owner")
	set(2, 3, deref(rec.OwnerName))
	set(1, 4, "Building")
	set(2, 4, deref(rec.BuildingNumber))
	set(1, 5, "Unit")
	set(2, 5, fmt.Sprintf("%s-%s", deref(rec.UnitFloor), deref(rec.UnitLabel)))

	row := 7
	set(1, row, "Concept")
	set(2, row, "Method")
	set(3, row, "Amount")
	row++

	for _, d := range rec.Details {
		set(1, row, d.Description)
		set(2, row, methodLabel(d.CalcMethod))
		set(3, row, d.Amount.InexactFloat64())
		row++
	}

	row++
	set(1, row, "Month charges")
	set(3, row, rec.MonthCharges.InexactFloat64())
	row++
	set(1, row, "Carried debt")
	set(3, row, rec.CarriedDebt.InexactFloat64())
	row++
	set(1, row, "Arrears interest")
	set(3, row, rec.Interest.InexactFloat64())
	row++
	set(1, row, "Total due")
	set(3, row, rec.TotalDue.InexactFloat64())
	row++
	set(1, row, "Balance")
	set(3, row, rec.Balance.InexactFloat64())

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func methodLabel(m domain.CalcMethod) string {
	switch m {
	case domain.CalcByShare:
		return "by share"
	case domain.CalcEqualSplit:
		return "equal split"
	default:
		return string(m)
	}
}

// DelinquentRow is one line of the delinquency export.
type DelinquentRow struct {
	OwnerName   string
	Phone       string
	OpenCount   int
	OldestSince time.Time
	TotalOwed   decimal.Decimal
}

// DelinquentsList renders the delinquency report workbook with a fixed
// column set, most indebted owner first as given.
func DelinquentsList(rows []DelinquentRow) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "Delinquents"
	f.SetSheetName(f.GetSheetName(0), sheet)

	headers := []string{"Owner", "Phone", "Open receipts", "Oldest since", "Total owed"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, r := range rows {
		values := []any{
			r.OwnerName,
			r.Phone,
			r.OpenCount,
			r.OldestSince.Format("2006-01-02"),
			r.TotalOwed.InexactFloat64(),
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReceiptColumn maps a selectable export field to its header and value.
type ReceiptColumn struct {
	Header string
	Value  func(r domain.Receipt) any
}

var receiptColumns = map[string]ReceiptColumn{
	"number": {
		Header: "Number",
		Value:  func(r domain.Receipt) any { return r.Number },
	},
	"owner.name": {
		Header: "Owner",
		Value:  func(r domain.Receipt) any { return deref(r.OwnerName) },
	},
	"building.number": {
		Header: "Building",
		Value:  func(r domain.Receipt) any { return deref(r.BuildingNumber) },
	},
	"unit": {
		Header: "Unit",
		Value: func(r domain.Receipt) any {
			return fmt.Sprintf("%s-%s", deref(r.UnitFloor), deref(r.UnitLabel))
		},
	},
	"emission_date": {
		Header: "Emission date",
		Value:  func(r domain.Receipt) any { return r.EmissionDate.Format("2006-01-02") },
	},
	"carried_debt": {
		Header: "Carried debt",
		Value:  func(r domain.Receipt) any { return r.CarriedDebt.InexactFloat64() },
	},
	"month_charges": {
		Header: "Month charges",
		Value:  func(r domain.Receipt) any { return r.MonthCharges.InexactFloat64() },
	},
	"interest": {
		Header: "Interest",
		Value:  func(r domain.Receipt) any { return r.Interest.InexactFloat64() },
	},
	"total_due": {
		Header: "Total due",
		Value:  func(r domain.Receipt) any { return r.TotalDue.InexactFloat64() },
	},
	"balance": {
		Header: "Balance",
		Value:  func(r domain.Receipt) any { return r.Balance.InexactFloat64() },
	},
	"state": {
		Header: "State",
		Value:  func(r domain.Receipt) any { return string(r.State) },
	},
}

// DefaultReceiptFields is the column set used when a caller selects none.
var DefaultReceiptFields = []string{
	"number", "owner.name", "building.number", "unit",
	"emission_date", "total_due", "balance", "state",
}

// ReceiptList renders a filtered receipt export, one row per receipt, with
// only the selected columns. Unknown field keys are skipped.
func ReceiptList(receipts []domain.Receipt, selected []string) ([]byte, error) {
	if len(selected) == 0 {
		selected = DefaultReceiptFields
	}

	var cols []ReceiptColumn
	for _, key := range selected {
		col, ok := receiptColumns[key]
		if !ok {
			continue
		}
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("no valid columns selected")
	}

	f := excelize.NewFile()
	sheet := "Receipts"
	f.SetSheetName(f.GetSheetName(0), sheet)

	for i, col := range cols {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, col.Header)
	}

	for rowIdx, r := range receipts {
		for colIdx, col := range cols {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			_ = f.SetCellValue(sheet, cell, col.Value(r))
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
