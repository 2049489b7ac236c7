package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"condoledger/internal/domain"
)

type HistoryFilter struct {
	OwnerID   *int64
	ReceiptID *int64
	Kind      *domain.TransactionKind
	StartDate *time.Time
	EndDate   *time.Time
}

// HistoryRepository is append-only: allocation steps are written once and
// never updated.
type HistoryRepository struct {
	db DBTX
}

func NewHistoryRepository(db DBTX) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) WithTx(tx *sql.Tx) *HistoryRepository {
	return &HistoryRepository{db: tx}
}

func (r *HistoryRepository) Create(ctx context.Context, e *domain.PaymentHistoryEntry) error {
	return r.db.QueryRowContext(ctx,
		`INSERT INTO payment_history (receipt_id, owner_id, applied, credit_created, kind, bank_reference, note)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`,
		e.ReceiptID, e.OwnerID, e.Applied, e.CreditCreated, e.Kind, e.BankReference, e.Note,
	).Scan(&e.ID, &e.CreatedAt)
}

func (r *HistoryRepository) List(ctx context.Context, f HistoryFilter) ([]domain.PaymentHistoryEntry, error) {
	base := `
		SELECT
			h.id, h.receipt_id, h.owner_id, h.applied, h.credit_created,
			h.kind, h.bank_reference, h.note, h.created_at,
			r.number AS receipt_number
		FROM payment_history h
		LEFT JOIN receipts r ON r.id = h.receipt_id`

	where := []string{"1=1"}
	args := []any{}
	i := 1

	if f.OwnerID != nil {
		where = append(where, fmt.Sprintf("h.owner_id = $%d", i))
		args = append(args, *f.OwnerID)
		i++
	}
	if f.ReceiptID != nil {
		where = append(where, fmt.Sprintf("h.receipt_id = $%d", i))
		args = append(args, *f.ReceiptID)
		i++
	}
	if f.Kind != nil {
		where = append(where, fmt.Sprintf("h.kind = $%d", i))
		args = append(args, *f.Kind)
		i++
	}
	if f.StartDate != nil {
		where = append(where, fmt.Sprintf("h.created_at >= $%d", i))
		args = append(args, *f.StartDate)
		i++
	}
	if f.EndDate != nil {
		where = append(where, fmt.Sprintf("h.created_at <= $%d", i))
		args = append(args, *f.EndDate)
		i++
	}

	query := base + " WHERE " + strings.Join(where, " AND ") + " ORDER BY h.created_at, h.id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PaymentHistoryEntry
	for rows.Next() {
		var e domain.PaymentHistoryEntry
		if err := rows.Scan(
			&e.ID, &e.ReceiptID, &e.OwnerID, &e.Applied, &e.CreditCreated,
			&e.Kind, &e.BankReference, &e.Note, &e.CreatedAt,
			&e.ReceiptNumber,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
