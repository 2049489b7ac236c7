package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"condoledger/internal/domain"
)

type ExpenseTypesFilter struct {
	State      *domain.EntityState
	CalcMethod *domain.CalcMethod
}

// CatalogRepository holds the expense catalog: types (with their fixed calc
// method) and the concepts under them.
type CatalogRepository struct {
	db DBTX
}

func NewCatalogRepository(db DBTX) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) ListTypes(ctx context.Context, f ExpenseTypesFilter) ([]domain.ExpenseType, error) {
	base := `SELECT t.id, t.name, t.description, t.calc_method, t.state FROM expense_types t`

	where := []string{"1=1"}
	args := []any{}
	i := 1

	if f.State != nil {
		where = append(where, fmt.Sprintf("t.state = $%d", i))
		args = append(args, *f.State)
		i++
	}
	if f.CalcMethod != nil {
		where = append(where, fmt.Sprintf("t.calc_method = $%d", i))
		args = append(args, *f.CalcMethod)
		i++
	}

	query := base + " WHERE " + strings.Join(where, " AND ") + " ORDER BY t.name"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ExpenseType
	for rows.Next() {
		var t domain.ExpenseType
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.CalcMethod, &t.State); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *CatalogRepository) GetType(ctx context.Context, id int64) (domain.ExpenseType, error) {
	var t domain.ExpenseType
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, calc_method, state FROM expense_types WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.Description, &t.CalcMethod, &t.State)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ExpenseType{}, fmt.Errorf("%w: expense type %d", domain.ErrNotFound, id)
	}
	return t, err
}

func (r *CatalogRepository) CreateType(ctx context.Context, t *domain.ExpenseType) error {
	return r.db.QueryRowContext(ctx,
		`INSERT INTO expense_types (name, description, calc_method, state)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		t.Name, t.Description, t.CalcMethod, t.State,
	).Scan(&t.ID)
}

func (r *CatalogRepository) UpdateType(ctx context.Context, t domain.ExpenseType) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expense_types SET name = $1, description = $2, calc_method = $3, state = $4 WHERE id = $5`,
		t.Name, t.Description, t.CalcMethod, t.State, t.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("%w: expense type %d", domain.ErrNotFound, t.ID)
	}
	return err
}

func (r *CatalogRepository) ListConcepts(ctx context.Context, typeID *int64) ([]domain.ExpenseConcept, error) {
	base := `
		SELECT c.id, c.expense_type_id, c.description, t.name, t.calc_method
		FROM expense_concepts c
		LEFT JOIN expense_types t ON t.id = c.expense_type_id`

	where := []string{"1=1"}
	args := []any{}
	if typeID != nil {
		where = append(where, "c.expense_type_id = $1")
		args = append(args, *typeID)
	}

	query := base + " WHERE " + strings.Join(where, " AND ") + " ORDER BY c.description"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ExpenseConcept
	for rows.Next() {
		var c domain.ExpenseConcept
		if err := rows.Scan(&c.ID, &c.ExpenseTypeID, &c.Description, &c.TypeName, &c.CalcMethod); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CatalogRepository) GetConcept(ctx context.Context, id int64) (domain.ExpenseConcept, error) {
	var c domain.ExpenseConcept
	err := r.db.QueryRowContext(ctx, `
		SELECT c.id, c.expense_type_id, c.description, t.name, t.calc_method
		FROM expense_concepts c
		LEFT JOIN expense_types t ON t.id = c.expense_type_id
		WHERE c.id = $1`, id,
	).Scan(&c.ID, &c.ExpenseTypeID, &c.Description, &c.TypeName, &c.CalcMethod)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ExpenseConcept{}, fmt.Errorf("%w: expense concept %d", domain.ErrNotFound, id)
	}
	return c, err
}

func (r *CatalogRepository) CreateConcept(ctx context.Context, c *domain.ExpenseConcept) error {
	return r.db.QueryRowContext(ctx,
		`INSERT INTO expense_concepts (expense_type_id, description) VALUES ($1, $2) RETURNING id`,
		c.ExpenseTypeID, c.Description,
	).Scan(&c.ID)
}

func (r *CatalogRepository) UpdateConcept(ctx context.Context, c domain.ExpenseConcept) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expense_concepts SET expense_type_id = $1, description = $2 WHERE id = $3`,
		c.ExpenseTypeID, c.Description, c.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("%w: expense concept %d", domain.ErrNotFound, c.ID)
	}
	return err
}
