package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"condoledger/internal/billing"
	"condoledger/internal/domain"
	"condoledger/internal/notify"
	"condoledger/internal/repository"
)

// ReceiptNotifier is the slice of the broker publisher billing needs.
type ReceiptNotifier interface {
	ReceiptIssued(ctx context.Context, msg notify.ReceiptIssuedMessage)
	PaymentReminder(ctx context.Context, msg notify.PaymentReminderMessage)
}

// UnitSource is the unit surface billing reads.
type UnitSource interface {
	List(ctx context.Context, f repository.UnitsFilter) ([]domain.Unit, error)
	GetByID(ctx context.Context, id int64) (domain.Unit, error)
}

// OwnerSource resolves owners for notification delivery.
type OwnerSource interface {
	GetByID(ctx context.Context, id int64) (domain.Owner, error)
}

// MovementStore is the movement surface billing reads and extends.
type MovementStore interface {
	List(ctx context.Context, f repository.MovementsFilter) ([]domain.ExpenseMovement, error)
	ExistsForInstanceMonth(ctx context.Context, instanceID int64, month time.Time) (bool, error)
	Create(ctx context.Context, m *domain.ExpenseMovement) error
}

// ExpenseInstanceSource lists the instances recurring materialization scans.
type ExpenseInstanceSource interface {
	List(ctx context.Context, f repository.ExpenseInstancesFilter) ([]domain.ExpenseInstance, error)
}

// SettingsReader loads the billing settings row.
type SettingsReader interface {
	Load(ctx context.Context) (domain.BillingSettings, error)
}

// ReceiptLedger is the receipt surface billing depends on.
type ReceiptLedger interface {
	ExistsForUnitMonth(ctx context.Context, unitID int64, month time.Time) (bool, error)
	SumOpenByUnit(ctx context.Context, unitID int64) (decimal.Decimal, error)
	NextNumber(ctx context.Context, period string) (int64, error)
	Create(ctx context.Context, rec *domain.Receipt) error
	DeleteUnpaidByMonth(ctx context.Context, month time.Time) (int64, error)
	RefreshStates(ctx context.Context) (int64, error)
	SummarizeOpenByOwner(ctx context.Context) ([]repository.OwnerOpenSummary, error)
}

// ReceiptTx runs fn against a ReceiptLedger bound to one transaction; the
// whole fn commits or rolls back together.
type ReceiptTx func(ctx context.Context, fn func(ReceiptLedger) error) error

// NewReceiptTx binds the repository to a fresh database transaction per
// call.
func NewReceiptTx(db *sql.DB, receipts *repository.ReceiptRepository) ReceiptTx {
	return func(ctx context.Context, fn func(ReceiptLedger) error) error {
		return repository.WithTx(ctx, db, func(tx *sql.Tx) error {
			return fn(receipts.WithTx(tx))
		})
	}
}

// GenerationSummary reports one bulk run. Failures carry on per unit; one
// broken unit never aborts the cycle.
type GenerationSummary struct {
	Month     time.Time        `json:"month"`
	Generated int              `json:"generated"`
	Skipped   int              `json:"skipped"`
	Failures  []UnitFailure    `json:"failures"`
	Receipts  []domain.Receipt `json:"-"`
}

type UnitFailure struct {
	UnitID int64  `json:"unit_id"`
	Reason string `json:"reason"`
}

type BillingService struct {
	units     UnitSource
	owners    OwnerSource
	receipts  ReceiptLedger
	receiptTx ReceiptTx
	movements MovementStore
	expenses  ExpenseInstanceSource
	settings  SettingsReader

	notifier   ReceiptNotifier
	annualRate decimal.Decimal
	log        *slog.Logger
}

func NewBillingService(
	units UnitSource,
	owners OwnerSource,
	receipts ReceiptLedger,
	receiptTx ReceiptTx,
	movements MovementStore,
	expenses ExpenseInstanceSource,
	settings SettingsReader,
	notifier ReceiptNotifier,
	annualRate decimal.Decimal,
	log *slog.Logger,
) *BillingService {
	return &BillingService{
		units:      units,
		owners:     owners,
		receipts:   receipts,
		receiptTx:  receiptTx,
		movements:  movements,
		expenses:   expenses,
		settings:   settings,
		notifier:   notifier,
		annualRate: annualRate,
		log:        log,
	}
}

const generateWorkers = 4

// GenerateMonth emits a receipt for every unit that does not yet have one
// in the month. Units run in parallel; each unit commits alone, with the
// already-exists check repeated inside its transaction so a concurrent run
// cannot double-bill.
func (s *BillingService) GenerateMonth(ctx context.Context, month time.Time) (GenerationSummary, error) {
	month = time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	summary := GenerationSummary{Month: month}

	movements, err := s.movements.List(ctx, repository.MovementsFilter{ApplicationMonth: &month})
	if err != nil {
		return summary, fmt.Errorf("list movements: %w", err)
	}

	units, err := s.units.List(ctx, repository.UnitsFilter{})
	if err != nil {
		return summary, fmt.Errorf("list units: %w", err)
	}

	charges, err := resolveCharges(movements, units)
	if err != nil {
		return summary, err
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, generateWorkers)
	)

	for _, unit := range units {
		wg.Add(1)
		sem <- struct{}{}
		go func(u domain.Unit) {
			defer wg.Done()
			defer func() { <-sem }()

			rec, created, err := s.generateUnit(ctx, u, month, charges)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				s.log.Error("receipt generation failed", "unit", u.ID, "month", month.Format("2006-01"), "err", err)
				summary.Failures = append(summary.Failures, UnitFailure{UnitID: u.ID, Reason: err.Error()})
			case !created:
				summary.Skipped++
			default:
				summary.Generated++
				summary.Receipts = append(summary.Receipts, rec)
			}
		}(unit)
	}
	wg.Wait()

	s.log.Info("receipt generation finished",
		"month", month.Format("2006-01"),
		"generated", summary.Generated,
		"skipped", summary.Skipped,
		"failed", len(summary.Failures))

	// notifications go out only for committed receipts
	s.notifyNewReceipts(ctx, summary.Receipts)

	return summary, nil
}

// resolveCharges pairs each movement with its distribution context, with
// the affected-unit count precomputed over the full unit list.
func resolveCharges(movements []domain.ExpenseMovement, units []domain.Unit) ([]billing.MovementCharge, error) {
	charges := make([]billing.MovementCharge, 0, len(movements))
	for _, mv := range movements {
		probe, err := billing.ContextFor(mv, 0)
		if err != nil {
			return nil, fmt.Errorf("movement %d: %w", mv.ID, err)
		}

		affected := 0
		for _, u := range units {
			if probe.Affects(u) {
				affected++
			}
		}

		dctx, err := billing.ContextFor(mv, affected)
		if err != nil {
			return nil, fmt.Errorf("movement %d: %w", mv.ID, err)
		}
		charges = append(charges, billing.MovementCharge{Movement: mv, Context: dctx})
	}
	return charges, nil
}

func (s *BillingService) generateUnit(ctx context.Context, unit domain.Unit, month time.Time, charges []billing.MovementCharge) (domain.Receipt, bool, error) {
	exists, err := s.receipts.ExistsForUnitMonth(ctx, unit.ID, month)
	if err != nil {
		return domain.Receipt{}, false, err
	}
	if exists {
		return domain.Receipt{}, false, nil
	}

	var rec domain.Receipt
	created := false

	err = s.receiptTx(ctx, func(receipts ReceiptLedger) error {
		// re-check under the transaction: a concurrent run may have won
		exists, err := receipts.ExistsForUnitMonth(ctx, unit.ID, month)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		carried, err := receipts.SumOpenByUnit(ctx, unit.ID)
		if err != nil {
			return err
		}

		seq, err := receipts.NextNumber(ctx, month.Format("200601"))
		if err != nil {
			return err
		}

		rec, err = billing.BuildReceipt(billing.ReceiptInput{
			Unit:         unit,
			Number:       billing.ReceiptNumber(month, seq),
			EmissionDate: month,
			CarriedDebt:  carried,
			AnnualRate:   s.annualRate,
			Charges:      charges,
		})
		if err != nil {
			return err
		}

		if err := receipts.Create(ctx, &rec); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return domain.Receipt{}, false, err
	}
	return rec, created, nil
}

func (s *BillingService) notifyNewReceipts(ctx context.Context, receipts []domain.Receipt) {
	if s.notifier == nil || len(receipts) == 0 {
		return
	}

	settings, err := s.settings.Load(ctx)
	if err != nil {
		s.log.Error("load settings for notifications", "err", err)
		return
	}

	for _, rec := range receipts {
		unit, err := s.units.GetByID(ctx, rec.UnitID)
		if err != nil {
			s.log.Error("resolve unit for notification", "receipt", rec.Number, "err", err)
			continue
		}
		owner, err := s.owners.GetByID(ctx, unit.OwnerID)
		if err != nil {
			s.log.Error("resolve owner for notification", "receipt", rec.Number, "err", err)
			continue
		}

		body := notify.RenderTemplate(settings.NewReceiptTemplate, map[string]string{
			"name":    owner.FullName(),
			"receipt": rec.Number,
			"total":   rec.TotalDue.StringFixed(2),
			"month":   rec.EmissionDate.Format("2006-01"),
		})

		s.notifier.ReceiptIssued(ctx, notify.ReceiptIssuedMessage{
			ReceiptID: rec.ID,
			Number:    rec.Number,
			OwnerID:   owner.ID,
			Phone:     owner.Phone,
			Body:      body,
		})
	}
}

// RegenerateMonth drops the month's pending, untouched receipts and runs a
// fresh generation. Paid or partially paid receipts survive.
func (s *BillingService) RegenerateMonth(ctx context.Context, month time.Time) (GenerationSummary, error) {
	removed, err := s.receipts.DeleteUnpaidByMonth(ctx, month)
	if err != nil {
		return GenerationSummary{}, fmt.Errorf("drop pending receipts: %w", err)
	}
	s.log.Info("pending receipts dropped for regeneration", "month", month.Format("2006-01"), "removed", removed)

	return s.GenerateMonth(ctx, month)
}

// RefreshStates realigns receipt states with balances.
func (s *BillingService) RefreshStates(ctx context.Context) (int64, error) {
	changed, err := s.receipts.RefreshStates(ctx)
	if err != nil {
		return 0, err
	}
	if changed > 0 {
		s.log.Info("receipt states refreshed", "changed", changed)
	}
	return changed, nil
}

// MaterializeRecurring creates a movement for every active recurring
// expense instance missing one in the month, at the instance base amount.
func (s *BillingService) MaterializeRecurring(ctx context.Context, month time.Time) (int, error) {
	month = time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)

	recurring := true
	active := domain.StateActive
	instances, err := s.expenses.List(ctx, repository.ExpenseInstancesFilter{Recurring: &recurring, State: &active})
	if err != nil {
		return 0, fmt.Errorf("list recurring instances: %w", err)
	}

	created := 0
	for _, inst := range instances {
		exists, err := s.movements.ExistsForInstanceMonth(ctx, inst.ID, month)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}

		mv := domain.ExpenseMovement{
			InstanceID:       inst.ID,
			ActualAmount:     inst.BaseAmount,
			ExpenseDate:      month,
			ApplicationMonth: month,
			Note:             "recurring charge",
		}
		if err := s.movements.Create(ctx, &mv); err != nil {
			return created, fmt.Errorf("materialize instance %d: %w", inst.ID, err)
		}
		created++
	}

	if created > 0 {
		s.log.Info("recurring movements materialized", "month", month.Format("2006-01"), "created", created)
	}
	return created, nil
}

// SendReminders queues a payment reminder for every owner with open
// receipts, rendered from the settings template. With delinquentsOnly set,
// only owners above the delinquency threshold are reminded.
func (s *BillingService) SendReminders(ctx context.Context, delinquentsOnly bool) (int, error) {
	if s.notifier == nil {
		return 0, nil
	}

	settings, err := s.settings.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load settings: %w", err)
	}
	threshold := settings.DelinquencyThreshold
	if threshold <= 0 {
		threshold = domain.DefaultDelinquencyThreshold
	}

	summaries, err := s.receipts.SummarizeOpenByOwner(ctx)
	if err != nil {
		return 0, fmt.Errorf("summarize open receipts: %w", err)
	}

	sent := 0
	for _, sum := range summaries {
		if delinquentsOnly && sum.OpenCount <= threshold {
			continue
		}
		body := notify.RenderTemplate(settings.ReminderTemplate, map[string]string{
			"name":    sum.OwnerName,
			"count":   fmt.Sprintf("%d", sum.OpenCount),
			"balance": sum.Balance.StringFixed(2),
		})
		s.notifier.PaymentReminder(ctx, notify.PaymentReminderMessage{
			OwnerID:   sum.OwnerID,
			Phone:     sum.Phone,
			Body:      body,
			OpenCount: sum.OpenCount,
		})
		sent++
	}

	return sent, nil
}
