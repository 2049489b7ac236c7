package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"condoledger/internal/clients"
	"condoledger/internal/domain"
	"condoledger/internal/repository"
)

const delinquentsCacheKey = "reports:delinquents"
const delinquentsCacheTTL = 5 * time.Minute

// Delinquent is an owner whose open-receipt count crossed the configured
// threshold.
type Delinquent struct {
	OwnerID     int64           `json:"owner_id"`
	OwnerName   string          `json:"owner_name"`
	Phone       string          `json:"phone"`
	OpenCount   int             `json:"open_count"`
	OldestSince time.Time       `json:"oldest_since"`
	TotalOwed   decimal.Decimal `json:"total_owed"`
}

type CashFlowReport struct {
	Start    time.Time       `json:"start"`
	End      time.Time       `json:"end"`
	Incoming decimal.Decimal `json:"incoming"`
	Expenses decimal.Decimal `json:"expenses"`
	Net      decimal.Decimal `json:"net"`
}

// ShareAuditEntry flags a building whose unit shares do not sum to 1.
// The invariant is audited, never enforced at write time.
type ShareAuditEntry struct {
	BuildingID     int64  `json:"building_id"`
	BuildingNumber string `json:"building_number"`
	ShareSum       string `json:"share_sum"`
	Balanced       bool   `json:"balanced"`
}

type CreditEntry struct {
	OwnerID   int64           `json:"owner_id"`
	OwnerName string          `json:"owner_name"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type ReportService struct {
	receipts  *repository.ReceiptRepository
	payments  *repository.PaymentRepository
	movements *repository.MovementRepository
	units     *repository.UnitRepository
	buildings *repository.BuildingRepository
	owners    *repository.OwnerRepository
	credits   *repository.CreditRepository
	history   *repository.HistoryRepository
	settings  *repository.SettingsRepository

	cache *clients.RedisClient
	log   *slog.Logger
}

func NewReportService(
	receipts *repository.ReceiptRepository,
	payments *repository.PaymentRepository,
	movements *repository.MovementRepository,
	units *repository.UnitRepository,
	buildings *repository.BuildingRepository,
	owners *repository.OwnerRepository,
	credits *repository.CreditRepository,
	history *repository.HistoryRepository,
	settings *repository.SettingsRepository,
	cache *clients.RedisClient,
	log *slog.Logger,
) *ReportService {
	return &ReportService{
		receipts:  receipts,
		payments:  payments,
		movements: movements,
		units:     units,
		buildings: buildings,
		owners:    owners,
		credits:   credits,
		history:   history,
		settings:  settings,
		cache:     cache,
		log:       log,
	}
}

// Delinquents lists owners above the open-receipt threshold, cached
// briefly since the report backs a dashboard widget.
func (s *ReportService) Delinquents(ctx context.Context) ([]Delinquent, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, delinquentsCacheKey); err == nil && cached != "" {
			var out []Delinquent
			if err := json.Unmarshal([]byte(cached), &out); err == nil {
				return out, nil
			}
		}
	}

	settings, err := s.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	threshold := settings.DelinquencyThreshold
	if threshold <= 0 {
		threshold = domain.DefaultDelinquencyThreshold
	}

	summaries, err := s.receipts.SummarizeOpenByOwner(ctx)
	if err != nil {
		return nil, err
	}

	out := []Delinquent{}
	for _, sum := range summaries {
		if sum.OpenCount <= threshold {
			continue
		}
		out = append(out, Delinquent{
			OwnerID:     sum.OwnerID,
			OwnerName:   sum.OwnerName,
			Phone:       sum.Phone,
			OpenCount:   sum.OpenCount,
			OldestSince: sum.Oldest,
			TotalOwed:   sum.Balance,
		})
	}

	if s.cache != nil {
		if data, err := json.Marshal(out); err == nil {
			if err := s.cache.Set(ctx, delinquentsCacheKey, string(data), delinquentsCacheTTL); err != nil {
				s.log.Debug("cache delinquents report", "err", err)
			}
		}
	}

	return out, nil
}

// CashFlow totals verified payments against expense movements in a period.
func (s *ReportService) CashFlow(ctx context.Context, start, end time.Time) (CashFlowReport, error) {
	incoming, err := s.payments.SumVerifiedByPeriod(ctx, start, end)
	if err != nil {
		return CashFlowReport{}, err
	}

	movements, err := s.movements.List(ctx, repository.MovementsFilter{StartDate: &start, EndDate: &end})
	if err != nil {
		return CashFlowReport{}, err
	}

	expenses := decimal.Zero
	for _, mv := range movements {
		expenses = expenses.Add(mv.ActualAmount)
	}

	return CashFlowReport{
		Start:    start,
		End:      end,
		Incoming: incoming,
		Expenses: expenses,
		Net:      incoming.Sub(expenses),
	}, nil
}

// PaymentHistory returns the allocation audit trail for an owner.
func (s *ReportService) PaymentHistory(ctx context.Context, ownerID int64) ([]domain.PaymentHistoryEntry, error) {
	if _, err := s.owners.GetByID(ctx, ownerID); err != nil {
		return nil, err
	}
	return s.history.List(ctx, repository.HistoryFilter{OwnerID: &ownerID})
}

// Credits lists owners currently holding overpayment credit.
func (s *ReportService) Credits(ctx context.Context) ([]CreditEntry, error) {
	credits, err := s.credits.ListPositive(ctx)
	if err != nil {
		return nil, err
	}

	out := []CreditEntry{}
	for _, c := range credits {
		owner, err := s.owners.GetByID(ctx, c.OwnerID)
		if err != nil {
			return nil, err
		}
		out = append(out, CreditEntry{
			OwnerID:   c.OwnerID,
			OwnerName: owner.FullName(),
			Balance:   c.Balance,
			UpdatedAt: c.UpdatedAt,
		})
	}
	return out, nil
}

// ShareAudit compares each building's share sum against 1.
func (s *ReportService) ShareAudit(ctx context.Context) ([]ShareAuditEntry, error) {
	sums, err := s.units.ShareSums(ctx)
	if err != nil {
		return nil, err
	}

	buildings, err := s.buildings.List(ctx, repository.BuildingsFilter{})
	if err != nil {
		return nil, err
	}

	one := decimal.NewFromInt(1)
	out := []ShareAuditEntry{}
	for _, b := range buildings {
		raw, ok := sums[b.ID]
		if !ok {
			raw = "0"
		}
		sum, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parse share sum for building %d: %w", b.ID, err)
		}
		out = append(out, ShareAuditEntry{
			BuildingID:     b.ID,
			BuildingNumber: b.Number,
			ShareSum:       sum.String(),
			Balanced:       sum.Equal(one),
		})
	}
	return out, nil
}
