package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"condoledger/internal/domain"
)

type OwnersFilter struct {
	NationalID *string
	Search     *string
}

type OwnerRepository struct {
	db DBTX
}

func NewOwnerRepository(db DBTX) *OwnerRepository {
	return &OwnerRepository{db: db}
}

func (r *OwnerRepository) WithTx(tx *sql.Tx) *OwnerRepository {
	return &OwnerRepository{db: tx}
}

func (r *OwnerRepository) List(ctx context.Context, f OwnersFilter) ([]domain.Owner, error) {
	base := `SELECT o.id, o.first_name, o.last_name, o.national_id, o.phone, o.email FROM owners o`

	where := []string{"1=1"}
	args := []any{}
	i := 1

	if f.NationalID != nil {
		where = append(where, fmt.Sprintf("o.national_id = $%d", i))
		args = append(args, *f.NationalID)
		i++
	}
	if f.Search != nil && *f.Search != "" {
		where = append(where, fmt.Sprintf("(o.first_name ILIKE $%d OR o.last_name ILIKE $%d OR o.national_id ILIKE $%d)", i, i, i))
		args = append(args, "%"+*f.Search+"%")
		i++
	}

	query := base + " WHERE " + strings.Join(where, " AND ") + " ORDER BY o.last_name, o.first_name"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Owner
	for rows.Next() {
		var o domain.Owner
		if err := rows.Scan(&o.ID, &o.FirstName, &o.LastName, &o.NationalID, &o.Phone, &o.Email); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *OwnerRepository) GetByID(ctx context.Context, id int64) (domain.Owner, error) {
	var o domain.Owner
	err := r.db.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, national_id, phone, email FROM owners WHERE id = $1`, id,
	).Scan(&o.ID, &o.FirstName, &o.LastName, &o.NationalID, &o.Phone, &o.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Owner{}, fmt.Errorf("%w: owner %d", domain.ErrNotFound, id)
	}
	return o, err
}

func (r *OwnerRepository) Create(ctx context.Context, o *domain.Owner) error {
	return r.db.QueryRowContext(ctx,
		`INSERT INTO owners (first_name, last_name, national_id, phone, email)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		o.FirstName, o.LastName, o.NationalID, o.Phone, o.Email,
	).Scan(&o.ID)
}

func (r *OwnerRepository) Update(ctx context.Context, o domain.Owner) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE owners SET first_name = $1, last_name = $2, national_id = $3, phone = $4, email = $5 WHERE id = $6`,
		o.FirstName, o.LastName, o.NationalID, o.Phone, o.Email, o.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("%w: owner %d", domain.ErrNotFound, o.ID)
	}
	return err
}
