package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"condoledger/internal/domain"
)

type ReceiptsFilter struct {
	UnitID        *int64
	OwnerID       *int64
	EmissionMonth *time.Time
	State         *domain.ReceiptState
}

type ReceiptRepository struct {
	db DBTX
}

func NewReceiptRepository(db DBTX) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

func (r *ReceiptRepository) WithTx(tx *sql.Tx) *ReceiptRepository {
	return &ReceiptRepository{db: tx}
}

const receiptSelect = `
	SELECT
		r.id, r.number, r.unit_id, r.emission_date,
		r.carried_debt, r.month_charges, r.interest, r.total_due, r.balance, r.state,
		u.owner_id,
		o.first_name || ' ' || o.last_name AS owner_name,
		b.number AS building_number,
		u.floor, u.label
	FROM receipts r
	LEFT JOIN units     u ON u.id = r.unit_id
	LEFT JOIN owners    o ON o.id = u.owner_id
	LEFT JOIN buildings b ON b.id = u.building_id`

func scanReceipt(rows *sql.Rows) (domain.Receipt, error) {
	var rec domain.Receipt
	err := rows.Scan(
		&rec.ID, &rec.Number, &rec.UnitID, &rec.EmissionDate,
		&rec.CarriedDebt, &rec.MonthCharges, &rec.Interest, &rec.TotalDue, &rec.Balance, &rec.State,
		&rec.OwnerID, &rec.OwnerName, &rec.BuildingNumber, &rec.UnitFloor, &rec.UnitLabel,
	)
	return rec, err
}

func (r *ReceiptRepository) List(ctx context.Context, f ReceiptsFilter) ([]domain.Receipt, error) {
	where := []string{"1=1"}
	args := []any{}
	i := 1

	if f.UnitID != nil {
		where = append(where, fmt.Sprintf("r.unit_id = $%d", i))
		args = append(args, *f.UnitID)
		i++
	}
	if f.OwnerID != nil {
		where = append(where, fmt.Sprintf("u.owner_id = $%d", i))
		args = append(args, *f.OwnerID)
		i++
	}
	if f.EmissionMonth != nil {
		where = append(where, fmt.Sprintf("date_trunc('month', r.emission_date) = $%d", i))
		args = append(args, monthStart(*f.EmissionMonth))
		i++
	}
	if f.State != nil {
		where = append(where, fmt.Sprintf("r.state = $%d", i))
		args = append(args, *f.State)
		i++
	}

	query := receiptSelect + " WHERE " + strings.Join(where, " AND ") + " ORDER BY r.emission_date DESC, r.number DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Receipt
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *ReceiptRepository) GetByID(ctx context.Context, id int64) (domain.Receipt, error) {
	rows, err := r.db.QueryContext(ctx, receiptSelect+" WHERE r.id = $1", id)
	if err != nil {
		return domain.Receipt{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return domain.Receipt{}, err
		}
		return domain.Receipt{}, fmt.Errorf("%w: receipt %d", domain.ErrNotFound, id)
	}
	rec, err := scanReceipt(rows)
	if err != nil {
		return domain.Receipt{}, err
	}
	rows.Close()

	details, err := r.listDetails(ctx, rec.ID)
	if err != nil {
		return domain.Receipt{}, err
	}
	rec.Details = details
	return rec, nil
}

func (r *ReceiptRepository) listDetails(ctx context.Context, receiptID int64) ([]domain.ReceiptDetail, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, receipt_id, movement_id, description, calc_method, amount
		 FROM receipt_details WHERE receipt_id = $1 ORDER BY id`, receiptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ReceiptDetail
	for rows.Next() {
		var d domain.ReceiptDetail
		if err := rows.Scan(&d.ID, &d.ReceiptID, &d.MovementID, &d.Description, &d.CalcMethod, &d.Amount); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// NextNumber claims the next sequence value for a YYYYMM period. The upsert
// runs in the caller's transaction, so a rolled-back generation releases no
// gap only if it was the latest claim; gaps from failures are acceptable,
// duplicates are not.
func (r *ReceiptRepository) NextNumber(ctx context.Context, period string) (int64, error) {
	var seq int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO receipt_sequences (period, last) VALUES ($1, 1)
		 ON CONFLICT (period) DO UPDATE SET last = receipt_sequences.last + 1
		 RETURNING last`, period,
	).Scan(&seq)
	return seq, err
}

// ExistsForUnitMonth reports whether the unit already has a receipt emitted
// in the month. Generation checks it both before and inside the insert
// transaction.
func (r *ReceiptRepository) ExistsForUnitMonth(ctx context.Context, unitID int64, month time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM receipts
			WHERE unit_id = $1 AND date_trunc('month', emission_date) = $2
		)`, unitID, monthStart(month),
	).Scan(&exists)
	return exists, err
}

// SumOpenByUnit is the unit's carried debt: the sum of balances over its
// pending receipts.
func (r *ReceiptRepository) SumOpenByUnit(ctx context.Context, unitID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(balance), 0) FROM receipts WHERE unit_id = $1 AND balance > 0`,
		unitID,
	).Scan(&sum)
	return sum, err
}

// ListOpenByOwner returns the owner's balance-positive receipts oldest
// first, the order the payment allocator consumes them in.
func (r *ReceiptRepository) ListOpenByOwner(ctx context.Context, ownerID int64) ([]domain.Receipt, error) {
	rows, err := r.db.QueryContext(ctx,
		receiptSelect+` WHERE u.owner_id = $1 AND r.balance > 0 ORDER BY r.emission_date ASC, r.id ASC`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Receipt
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *ReceiptRepository) Create(ctx context.Context, rec *domain.Receipt) error {
	if err := r.db.QueryRowContext(ctx,
		`INSERT INTO receipts (number, unit_id, emission_date, carried_debt, month_charges, interest, total_due, balance, state)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		rec.Number, rec.UnitID, rec.EmissionDate,
		rec.CarriedDebt, rec.MonthCharges, rec.Interest, rec.TotalDue, rec.Balance, rec.State,
	).Scan(&rec.ID); err != nil {
		return err
	}

	for i := range rec.Details {
		d := &rec.Details[i]
		d.ReceiptID = rec.ID
		if err := r.db.QueryRowContext(ctx,
			`INSERT INTO receipt_details (receipt_id, movement_id, description, calc_method, amount)
			 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			d.ReceiptID, d.MovementID, d.Description, d.CalcMethod, d.Amount,
		).Scan(&d.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *ReceiptRepository) UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal, state domain.ReceiptState) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE receipts SET balance = $1, state = $2 WHERE id = $3`,
		balance, state, id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("%w: receipt %d", domain.ErrNotFound, id)
	}
	return err
}

// DeleteUnpaidByMonth removes pending, untouched receipts of a month ahead
// of regeneration. Receipts with any applied payment keep their rows.
func (r *ReceiptRepository) DeleteUnpaidByMonth(ctx context.Context, month time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM receipts r
		WHERE date_trunc('month', r.emission_date) = $1
		  AND r.state = $2
		  AND r.balance = r.total_due
		  AND NOT EXISTS (SELECT 1 FROM payments p WHERE p.receipt_id = r.id)`,
		monthStart(month), domain.ReceiptPending,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// OwnerOpenSummary aggregates an owner's open receipts.
type OwnerOpenSummary struct {
	OwnerID   int64
	OwnerName string
	Phone     string
	OpenCount int
	Oldest    time.Time
	Balance   decimal.Decimal
}

// SummarizeOpenByOwner groups balance-positive receipts per owner, most
// indebted first. Feeds the delinquency report and payment reminders.
func (r *ReceiptRepository) SummarizeOpenByOwner(ctx context.Context) ([]OwnerOpenSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			o.id,
			o.first_name || ' ' || o.last_name,
			o.phone,
			COUNT(*),
			MIN(r.emission_date),
			SUM(r.balance)
		FROM receipts r
		JOIN units  u ON u.id = r.unit_id
		JOIN owners o ON o.id = u.owner_id
		WHERE r.balance > 0
		GROUP BY o.id, o.first_name, o.last_name, o.phone
		ORDER BY SUM(r.balance) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OwnerOpenSummary
	for rows.Next() {
		var s OwnerOpenSummary
		if err := rows.Scan(&s.OwnerID, &s.OwnerName, &s.Phone, &s.OpenCount, &s.Oldest, &s.Balance); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RefreshStates realigns every receipt state with its balance and returns
// the number of rows that changed.
func (r *ReceiptRepository) RefreshStates(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE receipts SET state = CASE WHEN balance = 0 THEN $1::text ELSE $2::text END
		WHERE state <> CASE WHEN balance = 0 THEN $1::text ELSE $2::text END`,
		domain.ReceiptPaid, domain.ReceiptPending,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
