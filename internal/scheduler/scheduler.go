package scheduler

import (
	"context"
	"log/slog"
	"time"

	"condoledger/internal/domain"
	"condoledger/internal/service"
)

// BillingRunner is the slice of the billing service the scheduler drives.
type BillingRunner interface {
	GenerateMonth(ctx context.Context, month time.Time) (service.GenerationSummary, error)
	MaterializeRecurring(ctx context.Context, month time.Time) (int, error)
	SendReminders(ctx context.Context, delinquentsOnly bool) (int, error)
}

type SettingsSource interface {
	Load(ctx context.Context) (domain.BillingSettings, error)
}

// Scheduler fires monthly billing work based on the stored settings.
// Settings are re-read every tick, so day or hour changes apply without a
// restart. Month markers keep a matching day+hour from firing twice.
type Scheduler struct {
	billing  BillingRunner
	settings SettingsSource
	interval time.Duration
	log      *slog.Logger

	lastGeneration string
	lastReminder   string
}

func New(billing BillingRunner, settings SettingsSource, log *slog.Logger) *Scheduler {
	return &Scheduler{
		billing:  billing,
		settings: settings,
		interval: time.Minute,
		log:      log,
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Tick(ctx, now)
		}
	}
}

// Tick evaluates one clock reading against the schedule.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	settings, err := s.settings.Load(ctx)
	if err != nil {
		s.log.Error("scheduler settings load", "err", err)
		return
	}
	if !settings.Active {
		return
	}

	month := now.Format("2006-01")

	if now.Day() == settings.GenerationDay && now.Hour() == settings.GenerationHour && s.lastGeneration != month {
		s.lastGeneration = month

		if created, err := s.billing.MaterializeRecurring(ctx, now); err != nil {
			s.log.Error("scheduled materialization failed", "month", month, "err", err)
		} else if created > 0 {
			s.log.Info("scheduled materialization done", "month", month, "created", created)
		}

		summary, err := s.billing.GenerateMonth(ctx, now)
		if err != nil {
			s.log.Error("scheduled generation failed", "month", month, "err", err)
			return
		}
		s.log.Info("scheduled generation done",
			"month", month,
			"generated", summary.Generated,
			"skipped", summary.Skipped,
			"failed", len(summary.Failures))
	}

	if now.Day() == settings.ReminderDay && now.Hour() == settings.ReminderHour && s.lastReminder != month {
		s.lastReminder = month

		sent, err := s.billing.SendReminders(ctx, false)
		if err != nil {
			s.log.Error("scheduled reminders failed", "month", month, "err", err)
			return
		}
		s.log.Info("scheduled reminders queued", "month", month, "sent", sent)
	}
}
