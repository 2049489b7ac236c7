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

type PaymentsFilter struct {
	ReceiptID    *int64
	OwnerID      *int64
	Verification *domain.VerificationState
	StartDate    *time.Time
	EndDate      *time.Time
}

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) WithTx(tx *sql.Tx) *PaymentRepository {
	return &PaymentRepository{db: tx}
}

const paymentSelect = `
	SELECT
		p.id, p.receipt_id, p.payment_date, p.amount, p.bank_reference, p.method,
		p.verification, p.note, p.created_at, p.updated_at,
		r.number AS receipt_number,
		o.first_name || ' ' || o.last_name AS owner_name
	FROM payments p
	LEFT JOIN receipts r ON r.id = p.receipt_id
	LEFT JOIN units    u ON u.id = r.unit_id
	LEFT JOIN owners   o ON o.id = u.owner_id`

func (r *PaymentRepository) List(ctx context.Context, f PaymentsFilter) ([]domain.Payment, error) {
	where := []string{"1=1"}
	args := []any{}
	i := 1

	if f.ReceiptID != nil {
		where = append(where, fmt.Sprintf("p.receipt_id = $%d", i))
		args = append(args, *f.ReceiptID)
		i++
	}
	if f.OwnerID != nil {
		where = append(where, fmt.Sprintf("u.owner_id = $%d", i))
		args = append(args, *f.OwnerID)
		i++
	}
	if f.Verification != nil {
		where = append(where, fmt.Sprintf("p.verification = $%d", i))
		args = append(args, *f.Verification)
		i++
	}
	if f.StartDate != nil {
		where = append(where, fmt.Sprintf("p.payment_date >= $%d", i))
		args = append(args, *f.StartDate)
		i++
	}
	if f.EndDate != nil {
		where = append(where, fmt.Sprintf("p.payment_date <= $%d", i))
		args = append(args, *f.EndDate)
		i++
	}

	query := paymentSelect + " WHERE " + strings.Join(where, " AND ") + " ORDER BY p.payment_date DESC, p.created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(
			&p.ID, &p.ReceiptID, &p.PaymentDate, &p.Amount, &p.BankReference, &p.Method,
			&p.Verification, &p.Note, &p.CreatedAt, &p.UpdatedAt,
			&p.ReceiptNumber, &p.OwnerName,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PaymentRepository) GetByID(ctx context.Context, id string) (domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx, paymentSelect+" WHERE p.id = $1", id)
	if err != nil {
		return domain.Payment{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return domain.Payment{}, err
		}
		return domain.Payment{}, fmt.Errorf("%w: payment %s", domain.ErrNotFound, id)
	}

	var p domain.Payment
	if err := rows.Scan(
		&p.ID, &p.ReceiptID, &p.PaymentDate, &p.Amount, &p.BankReference, &p.Method,
		&p.Verification, &p.Note, &p.CreatedAt, &p.UpdatedAt,
		&p.ReceiptNumber, &p.OwnerName,
	); err != nil {
		return domain.Payment{}, err
	}
	return p, nil
}

func (r *PaymentRepository) Create(ctx context.Context, p domain.Payment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (id, receipt_id, payment_date, amount, bank_reference, method, verification, note)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.ReceiptID, p.PaymentDate, p.Amount, p.BankReference, p.Method, p.Verification, p.Note,
	)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("%w: bank reference %s", domain.ErrDuplicateReference, p.BankReference)
	}
	return err
}

// ExistsVerifiedReference checks bank-reference uniqueness among verified
// payments. A rejected payment's reference may be reused.
func (r *PaymentRepository) ExistsVerifiedReference(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM payments WHERE bank_reference = $1 AND verification = $2)`,
		reference, domain.PaymentVerified,
	).Scan(&exists)
	return exists, err
}

func (r *PaymentRepository) UpdateVerification(ctx context.Context, id string, state domain.VerificationState, note string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET verification = $1, note = $2, updated_at = now() WHERE id = $3`,
		state, note, id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: payment %s", domain.ErrDuplicateReference, id)
		}
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("%w: payment %s", domain.ErrNotFound, id)
	}
	return err
}

// SumVerifiedByPeriod totals verified payment amounts between two dates,
// for the cash-flow report.
func (r *PaymentRepository) SumVerifiedByPeriod(ctx context.Context, start, end time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payments
		 WHERE verification = $1 AND payment_date >= $2 AND payment_date <= $3`,
		domain.PaymentVerified, start, end,
	).Scan(&sum)
	return sum, err
}

// isUniqueViolation matches the Postgres unique_violation SQLSTATE (23505)
// without binding the repository to a specific driver error type.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "23505") ||
		strings.Contains(err.Error(), "duplicate key value")
}
