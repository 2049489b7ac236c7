package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"condoledger/internal/domain"
)

type MovementsFilter struct {
	InstanceID       *int64
	ApplicationMonth *time.Time
	StartDate        *time.Time
	EndDate          *time.Time
}

type MovementRepository struct {
	db DBTX
}

func NewMovementRepository(db DBTX) *MovementRepository {
	return &MovementRepository{db: db}
}

func (r *MovementRepository) WithTx(tx *sql.Tx) *MovementRepository {
	return &MovementRepository{db: tx}
}

const movementSelect = `
	SELECT
		m.id, m.instance_id, m.actual_amount, m.expense_date, m.application_month, m.note,
		c.description AS concept_description,
		t.calc_method,
		e.scope,
		eb.building_ids
	FROM expense_movements m
	LEFT JOIN expense_instances e ON e.id = m.instance_id
	LEFT JOIN expense_concepts  c ON c.id = e.concept_id
	LEFT JOIN expense_types     t ON t.id = c.expense_type_id

	LEFT JOIN (
		SELECT
			instance_id,
			string_agg(building_id::text, ',' ORDER BY building_id) AS building_ids
		FROM expense_instance_buildings
		GROUP BY instance_id
	) eb ON eb.instance_id = e.id`

func (r *MovementRepository) List(ctx context.Context, f MovementsFilter) ([]domain.ExpenseMovement, error) {
	where := []string{"1=1"}
	args := []any{}
	i := 1

	if f.InstanceID != nil {
		where = append(where, fmt.Sprintf("m.instance_id = $%d", i))
		args = append(args, *f.InstanceID)
		i++
	}
	if f.ApplicationMonth != nil {
		where = append(where, fmt.Sprintf("m.application_month = $%d", i))
		args = append(args, monthStart(*f.ApplicationMonth))
		i++
	}
	if f.StartDate != nil {
		where = append(where, fmt.Sprintf("m.expense_date >= $%d", i))
		args = append(args, *f.StartDate)
		i++
	}
	if f.EndDate != nil {
		where = append(where, fmt.Sprintf("m.expense_date <= $%d", i))
		args = append(args, *f.EndDate)
		i++
	}

	query := movementSelect + " WHERE " + strings.Join(where, " AND ") + " ORDER BY m.expense_date, m.id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ExpenseMovement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MovementRepository) GetByID(ctx context.Context, id int64) (domain.ExpenseMovement, error) {
	rows, err := r.db.QueryContext(ctx, movementSelect+" WHERE m.id = $1", id)
	if err != nil {
		return domain.ExpenseMovement{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return domain.ExpenseMovement{}, err
		}
		return domain.ExpenseMovement{}, fmt.Errorf("%w: expense movement %d", domain.ErrNotFound, id)
	}
	return scanMovement(rows)
}

func scanMovement(rows *sql.Rows) (domain.ExpenseMovement, error) {
	var m domain.ExpenseMovement
	var ids sql.NullString
	if err := rows.Scan(
		&m.ID, &m.InstanceID, &m.ActualAmount, &m.ExpenseDate, &m.ApplicationMonth, &m.Note,
		&m.ConceptDescription, &m.CalcMethod, &m.Scope, &ids,
	); err != nil {
		return domain.ExpenseMovement{}, err
	}
	bids, err := splitIDList(ids)
	if err != nil {
		return domain.ExpenseMovement{}, err
	}
	m.BuildingIDs = bids
	return m, nil
}

func (r *MovementRepository) Create(ctx context.Context, m *domain.ExpenseMovement) error {
	return r.db.QueryRowContext(ctx,
		`INSERT INTO expense_movements (instance_id, actual_amount, expense_date, application_month, note)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		m.InstanceID, m.ActualAmount, m.ExpenseDate, monthStart(m.ApplicationMonth), m.Note,
	).Scan(&m.ID)
}

// ExistsForInstanceMonth reports whether the instance already has a movement
// in the given application month. Recurring materialization uses it to stay
// idempotent.
func (r *MovementRepository) ExistsForInstanceMonth(ctx context.Context, instanceID int64, month time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM expense_movements WHERE instance_id = $1 AND application_month = $2)`,
		instanceID, monthStart(month),
	).Scan(&exists)
	return exists, err
}

// monthStart truncates a date to the first day of its month, the canonical
// form for application_month columns.
func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
