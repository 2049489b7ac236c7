package repository

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"condoledger/internal/domain"
)

type CreditRepository struct {
	db DBTX
}

func NewCreditRepository(db DBTX) *CreditRepository {
	return &CreditRepository{db: db}
}

func (r *CreditRepository) WithTx(tx *sql.Tx) *CreditRepository {
	return &CreditRepository{db: tx}
}

// GetForUpdate reads the owner's credit row with a row lock, creating a
// zero-balance row on first touch. Must run inside a transaction.
func (r *CreditRepository) GetForUpdate(ctx context.Context, ownerID int64) (domain.OwnerCredit, error) {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO owner_credits (owner_id, balance) VALUES ($1, 0)
		 ON CONFLICT (owner_id) DO NOTHING`, ownerID,
	); err != nil {
		return domain.OwnerCredit{}, err
	}

	var c domain.OwnerCredit
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, balance, updated_at FROM owner_credits WHERE owner_id = $1 FOR UPDATE`,
		ownerID,
	).Scan(&c.ID, &c.OwnerID, &c.Balance, &c.UpdatedAt)
	return c, err
}

func (r *CreditRepository) Get(ctx context.Context, ownerID int64) (domain.OwnerCredit, error) {
	var c domain.OwnerCredit
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, balance, updated_at FROM owner_credits WHERE owner_id = $1`,
		ownerID,
	).Scan(&c.ID, &c.OwnerID, &c.Balance, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return domain.OwnerCredit{OwnerID: ownerID, Balance: decimal.Zero}, nil
	}
	return c, err
}

func (r *CreditRepository) SetBalance(ctx context.Context, ownerID int64, balance decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE owner_credits SET balance = $1, updated_at = now() WHERE owner_id = $2`,
		balance, ownerID,
	)
	return err
}

// ListPositive returns every owner holding credit, for the credits report.
func (r *CreditRepository) ListPositive(ctx context.Context) ([]domain.OwnerCredit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, balance, updated_at FROM owner_credits WHERE balance > 0 ORDER BY balance DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OwnerCredit
	for rows.Next() {
		var c domain.OwnerCredit
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Balance, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
