package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"condoledger/internal/domain"
)

type RateRepository struct {
	db DBTX
}

func NewRateRepository(db DBTX) *RateRepository {
	return &RateRepository{db: db}
}

func (r *RateRepository) List(ctx context.Context, start, end *time.Time) ([]domain.ExchangeRate, error) {
	query := `SELECT id, rate_date, rate FROM exchange_rates WHERE 1=1`
	args := []any{}
	i := 1

	if start != nil {
		query += fmt.Sprintf(" AND rate_date >= $%d", i)
		args = append(args, *start)
		i++
	}
	if end != nil {
		query += fmt.Sprintf(" AND rate_date <= $%d", i)
		args = append(args, *end)
		i++
	}
	query += " ORDER BY rate_date DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ExchangeRate
	for rows.Next() {
		var e domain.ExchangeRate
		if err := rows.Scan(&e.ID, &e.Date, &e.Rate); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *RateRepository) Latest(ctx context.Context) (domain.ExchangeRate, error) {
	var e domain.ExchangeRate
	err := r.db.QueryRowContext(ctx,
		`SELECT id, rate_date, rate FROM exchange_rates ORDER BY rate_date DESC LIMIT 1`,
	).Scan(&e.ID, &e.Date, &e.Rate)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ExchangeRate{}, fmt.Errorf("%w: no exchange rates recorded", domain.ErrNotFound)
	}
	return e, err
}

// Upsert stores one rate per day; a second write for the same day replaces
// the first.
func (r *RateRepository) Upsert(ctx context.Context, e *domain.ExchangeRate) error {
	return r.db.QueryRowContext(ctx,
		`INSERT INTO exchange_rates (rate_date, rate) VALUES ($1, $2)
		 ON CONFLICT (rate_date) DO UPDATE SET rate = EXCLUDED.rate
		 RETURNING id`,
		e.Date, e.Rate,
	).Scan(&e.ID)
}
