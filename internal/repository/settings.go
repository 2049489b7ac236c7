package repository

import (
	"context"
	"database/sql"
	"errors"

	"condoledger/internal/domain"
)

type SettingsRepository struct {
	db DBTX
}

func NewSettingsRepository(db DBTX) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Load returns the single settings row, falling back to defaults when none
// has been saved yet.
func (r *SettingsRepository) Load(ctx context.Context) (domain.BillingSettings, error) {
	var s domain.BillingSettings
	err := r.db.QueryRowContext(ctx, `
		SELECT id, generation_day, generation_hour, reminder_day, reminder_hour, active,
		       new_receipt_template, reminder_template, delinquency_threshold,
		       created_at, updated_at
		FROM billing_settings ORDER BY id LIMIT 1`,
	).Scan(
		&s.ID, &s.GenerationDay, &s.GenerationHour, &s.ReminderDay, &s.ReminderHour, &s.Active,
		&s.NewReceiptTemplate, &s.ReminderTemplate, &s.DelinquencyThreshold,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.BillingSettings{
			GenerationDay:        1,
			GenerationHour:       6,
			ReminderDay:          15,
			ReminderHour:         9,
			DelinquencyThreshold: domain.DefaultDelinquencyThreshold,
		}, nil
	}
	return s, err
}

func (r *SettingsRepository) Save(ctx context.Context, s *domain.BillingSettings) error {
	if s.ID == 0 {
		return r.db.QueryRowContext(ctx, `
			INSERT INTO billing_settings
				(generation_day, generation_hour, reminder_day, reminder_hour, active,
				 new_receipt_template, reminder_template, delinquency_threshold)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id, created_at, updated_at`,
			s.GenerationDay, s.GenerationHour, s.ReminderDay, s.ReminderHour, s.Active,
			s.NewReceiptTemplate, s.ReminderTemplate, s.DelinquencyThreshold,
		).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	}

	return r.db.QueryRowContext(ctx, `
		UPDATE billing_settings SET
			generation_day = $1, generation_hour = $2, reminder_day = $3, reminder_hour = $4,
			active = $5, new_receipt_template = $6, reminder_template = $7,
			delinquency_threshold = $8, updated_at = now()
		WHERE id = $9
		RETURNING updated_at`,
		s.GenerationDay, s.GenerationHour, s.ReminderDay, s.ReminderHour, s.Active,
		s.NewReceiptTemplate, s.ReminderTemplate, s.DelinquencyThreshold, s.ID,
	).Scan(&s.UpdatedAt)
}
