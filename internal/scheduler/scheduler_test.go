package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"condoledger/internal/domain"
	"condoledger/internal/service"
)

type fakeBilling struct {
	generated    int
	materialized int
	reminded     int
}

func (f *fakeBilling) GenerateMonth(ctx context.Context, month time.Time) (service.GenerationSummary, error) {
	f.generated++
	return service.GenerationSummary{Month: month}, nil
}

func (f *fakeBilling) MaterializeRecurring(ctx context.Context, month time.Time) (int, error) {
	f.materialized++
	return 0, nil
}

func (f *fakeBilling) SendReminders(ctx context.Context, delinquentsOnly bool) (int, error) {
	f.reminded++
	return 0, nil
}

type fakeSettings struct {
	settings domain.BillingSettings
}

func (f *fakeSettings) Load(ctx context.Context) (domain.BillingSettings, error) {
	return f.settings, nil
}

func newTestScheduler(settings domain.BillingSettings) (*Scheduler, *fakeBilling) {
	billing := &fakeBilling{}
	s := New(billing, &fakeSettings{settings: settings}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return s, billing
}

func TestTickFiresGenerationOnSchedule(t *testing.T) {
	s, billing := newTestScheduler(domain.BillingSettings{
		GenerationDay:  5,
		GenerationHour: 6,
		ReminderDay:    15,
		ReminderHour:   9,
		Active:         true,
	})

	now := time.Date(2026, time.March, 5, 6, 0, 0, 0, time.UTC)
	s.Tick(context.Background(), now)

	if billing.generated != 1 {
		t.Fatalf("generated = %d, want 1", billing.generated)
	}
	if billing.materialized != 1 {
		t.Fatalf("materialized = %d, want 1", billing.materialized)
	}
	if billing.reminded != 0 {
		t.Fatalf("reminded = %d, want 0", billing.reminded)
	}
}

func TestTickRunsOncePerMonth(t *testing.T) {
	s, billing := newTestScheduler(domain.BillingSettings{
		GenerationDay:  5,
		GenerationHour: 6,
		Active:         true,
	})

	now := time.Date(2026, time.March, 5, 6, 0, 0, 0, time.UTC)
	s.Tick(context.Background(), now)
	s.Tick(context.Background(), now.Add(time.Minute))
	s.Tick(context.Background(), now.Add(30*time.Minute))

	if billing.generated != 1 {
		t.Fatalf("generated = %d, want 1", billing.generated)
	}

	// next month fires again
	s.Tick(context.Background(), time.Date(2026, time.April, 5, 6, 0, 0, 0, time.UTC))
	if billing.generated != 2 {
		t.Fatalf("generated = %d, want 2", billing.generated)
	}
}

func TestTickSkipsOffScheduleAndInactive(t *testing.T) {
	s, billing := newTestScheduler(domain.BillingSettings{
		GenerationDay:  5,
		GenerationHour: 6,
		ReminderDay:    15,
		ReminderHour:   9,
		Active:         true,
	})

	s.Tick(context.Background(), time.Date(2026, time.March, 5, 7, 0, 0, 0, time.UTC))
	s.Tick(context.Background(), time.Date(2026, time.March, 6, 6, 0, 0, 0, time.UTC))
	if billing.generated != 0 {
		t.Fatalf("generated = %d, want 0", billing.generated)
	}

	inactive, inactiveBilling := newTestScheduler(domain.BillingSettings{
		GenerationDay:  5,
		GenerationHour: 6,
		Active:         false,
	})
	inactive.Tick(context.Background(), time.Date(2026, time.March, 5, 6, 0, 0, 0, time.UTC))
	if inactiveBilling.generated != 0 {
		t.Fatalf("generated = %d, want 0 when inactive", inactiveBilling.generated)
	}
}

func TestTickFiresReminders(t *testing.T) {
	s, billing := newTestScheduler(domain.BillingSettings{
		GenerationDay:  5,
		GenerationHour: 6,
		ReminderDay:    15,
		ReminderHour:   9,
		Active:         true,
	})

	s.Tick(context.Background(), time.Date(2026, time.March, 15, 9, 30, 0, 0, time.UTC))
	if billing.reminded != 1 {
		t.Fatalf("reminded = %d, want 1", billing.reminded)
	}
	if billing.generated != 0 {
		t.Fatalf("generated = %d, want 0", billing.generated)
	}
}
