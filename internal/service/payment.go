package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"condoledger/internal/billing"
	"condoledger/internal/clients"
	"condoledger/internal/domain"
	"condoledger/internal/repository"
)

// ownerLockTTL bounds how long a crashed allocation can block an owner's
// payments.
const ownerLockTTL = 30 * time.Second

type PaymentInput struct {
	ReceiptID     int64           `json:"receipt_id"`
	PaymentDate   time.Time       `json:"payment_date"`
	Amount        decimal.Decimal `json:"amount"`
	BankReference string          `json:"bank_reference"`
	Method        string          `json:"method"`
	Note          string          `json:"note"`
}

// AllocationOutcome reports what one verified payment did.
type AllocationOutcome struct {
	PaymentID       string                       `json:"payment_id"`
	Applications    []billing.ReceiptApplication `json:"applications"`
	TotalApplied    decimal.Decimal              `json:"total_applied"`
	RemainingCredit decimal.Decimal              `json:"remaining_credit"`
}

type PaymentService struct {
	db       *sql.DB
	payments *repository.PaymentRepository
	receipts *repository.ReceiptRepository
	history  *repository.HistoryRepository
	credits  *repository.CreditRepository

	locks *clients.RedisClient
	log   *slog.Logger
}

func NewPaymentService(
	db *sql.DB,
	payments *repository.PaymentRepository,
	receipts *repository.ReceiptRepository,
	history *repository.HistoryRepository,
	credits *repository.CreditRepository,
	locks *clients.RedisClient,
	log *slog.Logger,
) *PaymentService {
	return &PaymentService{
		db:       db,
		payments: payments,
		receipts: receipts,
		history:  history,
		credits:  credits,
		locks:    locks,
		log:      log,
	}
}

func validatePayment(in PaymentInput) error {
	if in.Amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	if in.BankReference == "" {
		return fmt.Errorf("%w: bank reference is required", domain.ErrValidation)
	}
	if in.PaymentDate.IsZero() {
		return fmt.Errorf("%w: payment date is required", domain.ErrValidation)
	}
	return nil
}

// Intake records an owner-reported payment awaiting verification. No money
// moves until an admin verifies it.
func (s *PaymentService) Intake(ctx context.Context, in PaymentInput) (domain.Payment, error) {
	if err := validatePayment(in); err != nil {
		return domain.Payment{}, err
	}
	if _, err := s.receipts.GetByID(ctx, in.ReceiptID); err != nil {
		return domain.Payment{}, err
	}

	p := domain.Payment{
		ID:            uuid.NewString(),
		ReceiptID:     in.ReceiptID,
		PaymentDate:   in.PaymentDate,
		Amount:        in.Amount,
		BankReference: in.BankReference,
		Method:        in.Method,
		Verification:  domain.PaymentPendingReview,
		Note:          in.Note,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return domain.Payment{}, err
	}

	s.log.Info("payment received for review", "payment", p.ID, "receipt", in.ReceiptID, "amount", in.Amount.StringFixed(2))
	return p, nil
}

// Register records an admin-entered payment and allocates it immediately.
func (s *PaymentService) Register(ctx context.Context, in PaymentInput) (AllocationOutcome, error) {
	if err := validatePayment(in); err != nil {
		return AllocationOutcome{}, err
	}

	p := domain.Payment{
		ID:            uuid.NewString(),
		ReceiptID:     in.ReceiptID,
		PaymentDate:   in.PaymentDate,
		Amount:        in.Amount,
		BankReference: in.BankReference,
		Method:        in.Method,
		Verification:  domain.PaymentVerified,
		Note:          in.Note,
	}

	return s.allocate(ctx, p, true)
}

// Verify promotes a pending payment and allocates it.
func (s *PaymentService) Verify(ctx context.Context, paymentID string) (AllocationOutcome, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return AllocationOutcome{}, err
	}
	if p.Verification != domain.PaymentPendingReview {
		return AllocationOutcome{}, fmt.Errorf("%w: payment %s is %s, not pending review", domain.ErrValidation, paymentID, p.Verification)
	}

	p.Verification = domain.PaymentVerified
	return s.allocate(ctx, p, false)
}

// Reject marks a pending payment as rejected, releasing its bank reference
// for reuse.
func (s *PaymentService) Reject(ctx context.Context, paymentID, note string) error {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return err
	}
	if p.Verification != domain.PaymentPendingReview {
		return fmt.Errorf("%w: payment %s is %s, not pending review", domain.ErrValidation, paymentID, p.Verification)
	}
	if err := s.payments.UpdateVerification(ctx, paymentID, domain.PaymentRejected, note); err != nil {
		return err
	}
	s.log.Info("payment rejected", "payment", paymentID)
	return nil
}

// VerifyOutcome pairs one payment of a bulk verification with its result.
type VerifyOutcome struct {
	PaymentID string             `json:"payment_id"`
	Outcome   *AllocationOutcome `json:"outcome,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// VerifyMany verifies a batch one by one; a failure skips that payment and
// carries on.
func (s *PaymentService) VerifyMany(ctx context.Context, paymentIDs []string) []VerifyOutcome {
	out := make([]VerifyOutcome, 0, len(paymentIDs))
	for _, id := range paymentIDs {
		res, err := s.Verify(ctx, id)
		if err != nil {
			out = append(out, VerifyOutcome{PaymentID: id, Error: err.Error()})
			continue
		}
		out = append(out, VerifyOutcome{PaymentID: id, Outcome: &res})
	}
	return out
}

// allocate runs the money movement for a verified payment: one owner lock,
// one transaction, FIFO application, credit update, history. createRow
// distinguishes fresh admin payments from promoted pending ones.
func (s *PaymentService) allocate(ctx context.Context, p domain.Payment, createRow bool) (AllocationOutcome, error) {
	target, err := s.receipts.GetByID(ctx, p.ReceiptID)
	if err != nil {
		return AllocationOutcome{}, err
	}
	if target.OwnerID == nil {
		return AllocationOutcome{}, fmt.Errorf("receipt %d has no resolvable owner", p.ReceiptID)
	}
	ownerID := *target.OwnerID

	// one allocation per owner at a time
	lockKey := fmt.Sprintf("payment_lock:owner:%d", ownerID)
	acquired, err := s.locks.AcquireLock(ctx, lockKey, ownerLockTTL)
	if err != nil {
		return AllocationOutcome{}, fmt.Errorf("acquire owner lock: %w", err)
	}
	if !acquired {
		return AllocationOutcome{}, fmt.Errorf("%w: another payment for owner %d is being processed", domain.ErrConcurrencyConflict, ownerID)
	}
	defer func() {
		if err := s.locks.ReleaseLock(ctx, lockKey); err != nil {
			s.log.Error("release owner lock", "owner", ownerID, "err", err)
		}
	}()

	exists, err := s.payments.ExistsVerifiedReference(ctx, p.BankReference)
	if err != nil {
		return AllocationOutcome{}, err
	}
	if exists {
		return AllocationOutcome{}, fmt.Errorf("%w: bank reference %s", domain.ErrDuplicateReference, p.BankReference)
	}

	var outcome AllocationOutcome

	err = repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		receipts := s.receipts.WithTx(tx)
		payments := s.payments.WithTx(tx)
		history := s.history.WithTx(tx)
		credits := s.credits.WithTx(tx)

		credit, err := credits.GetForUpdate(ctx, ownerID)
		if err != nil {
			return err
		}

		open, err := receipts.ListOpenByOwner(ctx, ownerID)
		if err != nil {
			return err
		}

		res, err := billing.ApplyPayment(billing.PaymentInput{
			OwnerID:         ownerID,
			TargetReceiptID: p.ReceiptID,
			Amount:          p.Amount,
			PriorCredit:     credit.Balance,
			BankReference:   p.BankReference,
			OpenReceipts:    open,
		})
		if err != nil {
			return err
		}

		if createRow {
			if err := payments.Create(ctx, p); err != nil {
				return err
			}
		} else {
			if err := payments.UpdateVerification(ctx, p.ID, domain.PaymentVerified, p.Note); err != nil {
				return err
			}
		}

		for _, app := range res.Applications {
			if err := receipts.UpdateBalance(ctx, app.ReceiptID, app.NewBalance, app.NewState); err != nil {
				return err
			}
		}
		for i := range res.History {
			if err := history.Create(ctx, &res.History[i]); err != nil {
				return err
			}
		}

		if err := credits.SetBalance(ctx, ownerID, res.RemainingCredit); err != nil {
			return err
		}

		outcome = AllocationOutcome{
			PaymentID:       p.ID,
			Applications:    res.Applications,
			TotalApplied:    res.TotalApplied,
			RemainingCredit: res.RemainingCredit,
		}
		return nil
	})
	if err != nil {
		return AllocationOutcome{}, err
	}

	s.log.Info("payment allocated",
		"payment", p.ID,
		"owner", ownerID,
		"applied", outcome.TotalApplied.StringFixed(2),
		"credit", outcome.RemainingCredit.StringFixed(2))

	return outcome, nil
}
