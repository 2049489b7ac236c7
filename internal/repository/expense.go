package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"condoledger/internal/domain"
)

type ExpenseInstancesFilter struct {
	ConceptID *int64
	Recurring *bool
	State     *domain.EntityState
}

type ExpenseRepository struct {
	db DBTX
}

func NewExpenseRepository(db DBTX) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

func (r *ExpenseRepository) WithTx(tx *sql.Tx) *ExpenseRepository {
	return &ExpenseRepository{db: tx}
}

const instanceSelect = `
	SELECT
		e.id, e.concept_id, e.base_amount, e.recurring, e.scope, e.state,
		c.description AS concept_description,
		t.calc_method,
		eb.building_ids
	FROM expense_instances e
	LEFT JOIN expense_concepts c ON c.id = e.concept_id
	LEFT JOIN expense_types    t ON t.id = c.expense_type_id

	LEFT JOIN (
		SELECT
			instance_id,
			string_agg(building_id::text, ',' ORDER BY building_id) AS building_ids
		FROM expense_instance_buildings
		GROUP BY instance_id
	) eb ON eb.instance_id = e.id`

func (r *ExpenseRepository) List(ctx context.Context, f ExpenseInstancesFilter) ([]domain.ExpenseInstance, error) {
	where := []string{"1=1"}
	args := []any{}
	i := 1

	if f.ConceptID != nil {
		where = append(where, fmt.Sprintf("e.concept_id = $%d", i))
		args = append(args, *f.ConceptID)
		i++
	}
	if f.Recurring != nil {
		where = append(where, fmt.Sprintf("e.recurring = $%d", i))
		args = append(args, *f.Recurring)
		i++
	}
	if f.State != nil {
		where = append(where, fmt.Sprintf("e.state = $%d", i))
		args = append(args, *f.State)
		i++
	}

	query := instanceSelect + " WHERE " + strings.Join(where, " AND ") + " ORDER BY e.id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ExpenseInstance
	for rows.Next() {
		e, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *ExpenseRepository) GetByID(ctx context.Context, id int64) (domain.ExpenseInstance, error) {
	rows, err := r.db.QueryContext(ctx, instanceSelect+" WHERE e.id = $1", id)
	if err != nil {
		return domain.ExpenseInstance{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return domain.ExpenseInstance{}, err
		}
		return domain.ExpenseInstance{}, fmt.Errorf("%w: expense instance %d", domain.ErrNotFound, id)
	}
	return scanInstance(rows)
}

func scanInstance(rows *sql.Rows) (domain.ExpenseInstance, error) {
	var e domain.ExpenseInstance
	var ids sql.NullString
	if err := rows.Scan(
		&e.ID, &e.ConceptID, &e.BaseAmount, &e.Recurring, &e.Scope, &e.State,
		&e.ConceptDescription, &e.CalcMethod, &ids,
	); err != nil {
		return domain.ExpenseInstance{}, err
	}
	bids, err := splitIDList(ids)
	if err != nil {
		return domain.ExpenseInstance{}, err
	}
	e.BuildingIDs = bids
	return e, nil
}

func splitIDList(s sql.NullString) ([]int64, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	parts := strings.Split(s.String, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse building id %q: %w", p, err)
		}
		out = append(out, id)
	}
	return out, nil
}

// Create inserts the instance and its building linkage rows. Specific scope
// with no buildings is rejected: such an instance could never reach a unit.
func (r *ExpenseRepository) Create(ctx context.Context, e *domain.ExpenseInstance) error {
	if e.Scope == domain.ScopeSpecificBuildings && len(e.BuildingIDs) == 0 {
		return fmt.Errorf("%w: specific-building scope requires at least one building", domain.ErrValidation)
	}

	if err := r.db.QueryRowContext(ctx,
		`INSERT INTO expense_instances (concept_id, base_amount, recurring, scope, state)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		e.ConceptID, e.BaseAmount, e.Recurring, e.Scope, e.State,
	).Scan(&e.ID); err != nil {
		return err
	}

	return r.replaceBuildings(ctx, e.ID, e.BuildingIDs)
}

func (r *ExpenseRepository) Update(ctx context.Context, e domain.ExpenseInstance) error {
	if e.Scope == domain.ScopeSpecificBuildings && len(e.BuildingIDs) == 0 {
		return fmt.Errorf("%w: specific-building scope requires at least one building", domain.ErrValidation)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE expense_instances SET concept_id = $1, base_amount = $2, recurring = $3, scope = $4, state = $5 WHERE id = $6`,
		e.ConceptID, e.BaseAmount, e.Recurring, e.Scope, e.State, e.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: expense instance %d", domain.ErrNotFound, e.ID)
	}

	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM expense_instance_buildings WHERE instance_id = $1`, e.ID,
	); err != nil {
		return err
	}
	return r.replaceBuildings(ctx, e.ID, e.BuildingIDs)
}

func (r *ExpenseRepository) replaceBuildings(ctx context.Context, instanceID int64, buildingIDs []int64) error {
	for _, bid := range buildingIDs {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO expense_instance_buildings (instance_id, building_id) VALUES ($1, $2)`,
			instanceID, bid,
		); err != nil {
			return err
		}
	}
	return nil
}
