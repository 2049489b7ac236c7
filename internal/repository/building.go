package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"condoledger/internal/domain"
)

type BuildingsFilter struct {
	State *domain.EntityState
}

type BuildingRepository struct {
	db DBTX
}

func NewBuildingRepository(db DBTX) *BuildingRepository {
	return &BuildingRepository{db: db}
}

func (r *BuildingRepository) List(ctx context.Context, f BuildingsFilter) ([]domain.Building, error) {
	base := `SELECT b.id, b.number, b.description, b.state FROM buildings b`

	where := []string{"1=1"}
	args := []any{}
	i := 1

	if f.State != nil {
		where = append(where, fmt.Sprintf("b.state = $%d", i))
		args = append(args, *f.State)
		i++
	}

	query := base + " WHERE " + strings.Join(where, " AND ") + " ORDER BY b.number"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Building
	for rows.Next() {
		var b domain.Building
		if err := rows.Scan(&b.ID, &b.Number, &b.Description, &b.State); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *BuildingRepository) GetByID(ctx context.Context, id int64) (domain.Building, error) {
	var b domain.Building
	err := r.db.QueryRowContext(ctx,
		`SELECT id, number, description, state FROM buildings WHERE id = $1`, id,
	).Scan(&b.ID, &b.Number, &b.Description, &b.State)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Building{}, fmt.Errorf("%w: building %d", domain.ErrNotFound, id)
	}
	return b, err
}

func (r *BuildingRepository) Create(ctx context.Context, b *domain.Building) error {
	return r.db.QueryRowContext(ctx,
		`INSERT INTO buildings (number, description, state) VALUES ($1, $2, $3) RETURNING id`,
		b.Number, b.Description, b.State,
	).Scan(&b.ID)
}

func (r *BuildingRepository) Update(ctx context.Context, b domain.Building) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE buildings SET number = $1, description = $2, state = $3 WHERE id = $4`,
		b.Number, b.Description, b.State, b.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("%w: building %d", domain.ErrNotFound, b.ID)
	}
	return err
}
