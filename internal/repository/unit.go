package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"condoledger/internal/domain"
)

type UnitsFilter struct {
	BuildingID *int64
	OwnerID    *int64
}

type UnitRepository struct {
	db DBTX
}

func NewUnitRepository(db DBTX) *UnitRepository {
	return &UnitRepository{db: db}
}

func (r *UnitRepository) WithTx(tx *sql.Tx) *UnitRepository {
	return &UnitRepository{db: tx}
}

func (r *UnitRepository) List(ctx context.Context, f UnitsFilter) ([]domain.Unit, error) {
	base := `
		SELECT
			u.id, u.building_id, u.owner_id, u.floor, u.label, u.share,
			o.first_name || ' ' || o.last_name AS owner_name,
			b.number AS building_number
		FROM units u
		LEFT JOIN owners    o ON o.id = u.owner_id
		LEFT JOIN buildings b ON b.id = u.building_id`

	where := []string{"1=1"}
	args := []any{}
	i := 1

	if f.BuildingID != nil {
		where = append(where, fmt.Sprintf("u.building_id = $%d", i))
		args = append(args, *f.BuildingID)
		i++
	}
	if f.OwnerID != nil {
		where = append(where, fmt.Sprintf("u.owner_id = $%d", i))
		args = append(args, *f.OwnerID)
		i++
	}

	query := base + " WHERE " + strings.Join(where, " AND ") + " ORDER BY b.number, u.floor, u.label"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Unit
	for rows.Next() {
		var u domain.Unit
		if err := rows.Scan(&u.ID, &u.BuildingID, &u.OwnerID, &u.Floor, &u.Label, &u.Share, &u.OwnerName, &u.BuildingNumber); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *UnitRepository) GetByID(ctx context.Context, id int64) (domain.Unit, error) {
	var u domain.Unit
	err := r.db.QueryRowContext(ctx, `
		SELECT
			u.id, u.building_id, u.owner_id, u.floor, u.label, u.share,
			o.first_name || ' ' || o.last_name AS owner_name,
			b.number AS building_number
		FROM units u
		LEFT JOIN owners    o ON o.id = u.owner_id
		LEFT JOIN buildings b ON b.id = u.building_id
		WHERE u.id = $1`, id,
	).Scan(&u.ID, &u.BuildingID, &u.OwnerID, &u.Floor, &u.Label, &u.Share, &u.OwnerName, &u.BuildingNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Unit{}, fmt.Errorf("%w: unit %d", domain.ErrNotFound, id)
	}
	return u, err
}

func (r *UnitRepository) Create(ctx context.Context, u *domain.Unit) error {
	return r.db.QueryRowContext(ctx,
		`INSERT INTO units (building_id, owner_id, floor, label, share)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		u.BuildingID, u.OwnerID, u.Floor, u.Label, u.Share,
	).Scan(&u.ID)
}

func (r *UnitRepository) Update(ctx context.Context, u domain.Unit) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE units SET building_id = $1, owner_id = $2, floor = $3, label = $4, share = $5 WHERE id = $6`,
		u.BuildingID, u.OwnerID, u.Floor, u.Label, u.Share, u.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("%w: unit %d", domain.ErrNotFound, u.ID)
	}
	return err
}

// ShareSums returns, per building, the sum of unit shares. Used by the
// share audit report; shares summing away from 1 are flagged, not rejected.
func (r *UnitRepository) ShareSums(ctx context.Context) (map[int64]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT building_id, COALESCE(SUM(share), 0)::text FROM units GROUP BY building_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int64]string{}
	for rows.Next() {
		var id int64
		var sum string
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, err
		}
		out[id] = sum
	}
	return out, rows.Err()
}
