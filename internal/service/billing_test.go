package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"condoledger/internal/domain"
	"condoledger/internal/repository"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fakeUnits struct{ units []domain.Unit }

func (f *fakeUnits) List(_ context.Context, _ repository.UnitsFilter) ([]domain.Unit, error) {
	return f.units, nil
}

func (f *fakeUnits) GetByID(_ context.Context, id int64) (domain.Unit, error) {
	for _, u := range f.units {
		if u.ID == id {
			return u, nil
		}
	}
	return domain.Unit{}, fmt.Errorf("%w: unit %d", domain.ErrNotFound, id)
}

type fakeOwners struct{}

func (fakeOwners) GetByID(_ context.Context, id int64) (domain.Owner, error) {
	return domain.Owner{ID: id}, nil
}

type fakeMovements struct {
	movements []domain.ExpenseMovement
	created   []domain.ExpenseMovement
}

func (f *fakeMovements) List(_ context.Context, _ repository.MovementsFilter) ([]domain.ExpenseMovement, error) {
	return f.movements, nil
}

func (f *fakeMovements) ExistsForInstanceMonth(_ context.Context, _ int64, _ time.Time) (bool, error) {
	return false, nil
}

func (f *fakeMovements) Create(_ context.Context, m *domain.ExpenseMovement) error {
	m.ID = int64(len(f.created) + 1)
	f.created = append(f.created, *m)
	return nil
}

type fakeExpenses struct{ instances []domain.ExpenseInstance }

func (f *fakeExpenses) List(_ context.Context, _ repository.ExpenseInstancesFilter) ([]domain.ExpenseInstance, error) {
	return f.instances, nil
}

type fakeSettings struct{ settings domain.BillingSettings }

func (f fakeSettings) Load(_ context.Context) (domain.BillingSettings, error) {
	return f.settings, nil
}

// fakeReceipts keeps receipts keyed by unit and emission month, the same
// uniqueness the receipts table carries. With lateArrival set, the first
// existence check per key misses and later ones hit, reproducing a
// concurrent run that commits between the pre-check and the transaction.
type fakeReceipts struct {
	mu          sync.Mutex
	seq         int64
	rows        map[string]domain.Receipt
	checks      map[string]int
	lateArrival bool
}

func newFakeReceipts() *fakeReceipts {
	return &fakeReceipts{
		rows:   map[string]domain.Receipt{},
		checks: map[string]int{},
	}
}

func unitMonthKey(unitID int64, month time.Time) string {
	return fmt.Sprintf("%d/%s", unitID, month.Format("2006-01"))
}

func (f *fakeReceipts) ExistsForUnitMonth(_ context.Context, unitID int64, month time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := unitMonthKey(unitID, month)
	f.checks[k]++
	if _, ok := f.rows[k]; ok {
		return true, nil
	}
	if f.lateArrival && f.checks[k] > 1 {
		return true, nil
	}
	return false, nil
}

func (f *fakeReceipts) SumOpenByUnit(_ context.Context, _ int64) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (f *fakeReceipts) NextNumber(_ context.Context, _ string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return f.seq, nil
}

func (f *fakeReceipts) Create(_ context.Context, rec *domain.Receipt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := unitMonthKey(rec.UnitID, rec.EmissionDate)
	if _, ok := f.rows[k]; ok {
		return fmt.Errorf("duplicate receipt for unit %d in %s", rec.UnitID, rec.EmissionDate.Format("2006-01"))
	}
	rec.ID = f.seq
	f.rows[k] = *rec
	return nil
}

func (f *fakeReceipts) DeleteUnpaidByMonth(_ context.Context, month time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	for k, r := range f.rows {
		if r.EmissionDate.Format("2006-01") == month.Format("2006-01") && r.State == domain.ReceiptPending {
			delete(f.rows, k)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeReceipts) RefreshStates(_ context.Context) (int64, error) { return 0, nil }

func (f *fakeReceipts) SummarizeOpenByOwner(_ context.Context) ([]repository.OwnerOpenSummary, error) {
	return nil, nil
}

// tx satisfies ReceiptTx; the fake has no transaction boundary to bind.
func (f *fakeReceipts) tx(_ context.Context, fn func(ReceiptLedger) error) error {
	return fn(f)
}

func (f *fakeReceipts) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func newBillingFixture(units []domain.Unit, movements []domain.ExpenseMovement, receipts *fakeReceipts) *BillingService {
	return NewBillingService(
		&fakeUnits{units: units},
		fakeOwners{},
		receipts,
		receipts.tx,
		&fakeMovements{movements: movements},
		&fakeExpenses{},
		fakeSettings{},
		nil,
		dec("0.03"),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func sharedExpenseMovement(month time.Time) domain.ExpenseMovement {
	method := domain.CalcByShare
	scope := domain.ScopeAllUnits
	return domain.ExpenseMovement{
		ID:               1,
		InstanceID:       1,
		ActualAmount:     dec("100.00"),
		ExpenseDate:      month,
		ApplicationMonth: month,
		CalcMethod:       &method,
		Scope:            &scope,
	}
}

func TestGenerateMonthSecondRunSkips(t *testing.T) {
	month := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	units := []domain.Unit{
		{ID: 1, BuildingID: 1, OwnerID: 1, Share: dec("0.40")},
		{ID: 2, BuildingID: 1, OwnerID: 2, Share: dec("0.60")},
	}
	receipts := newFakeReceipts()
	svc := newBillingFixture(units, []domain.ExpenseMovement{sharedExpenseMovement(month)}, receipts)

	first, err := svc.GenerateMonth(context.Background(), month)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Generated != 2 || first.Skipped != 0 || len(first.Failures) != 0 {
		t.Fatalf("first run summary wrong: %+v", first)
	}
	if receipts.count() != 2 {
		t.Fatalf("expected 2 receipts stored; got %d", receipts.count())
	}

	second, err := svc.GenerateMonth(context.Background(), month)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Generated != 0 {
		t.Fatalf("second run must generate nothing; got %d", second.Generated)
	}
	if second.Skipped != 2 || len(second.Failures) != 0 {
		t.Fatalf("second run summary wrong: %+v", second)
	}
	if receipts.count() != 2 {
		t.Fatalf("second run must not add receipts; got %d", receipts.count())
	}
}

func TestGenerateMonthTransactionRecheck(t *testing.T) {
	month := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	units := []domain.Unit{{ID: 1, BuildingID: 1, OwnerID: 1, Share: dec("1.00")}}
	receipts := newFakeReceipts()
	receipts.lateArrival = true
	svc := newBillingFixture(units, []domain.ExpenseMovement{sharedExpenseMovement(month)}, receipts)

	sum, err := svc.GenerateMonth(context.Background(), month)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if sum.Generated != 0 || sum.Skipped != 1 || len(sum.Failures) != 0 {
		t.Fatalf("a late-arriving receipt must count as skipped: %+v", sum)
	}
	if receipts.count() != 0 {
		t.Fatalf("no receipt may be created after the re-check hits; got %d", receipts.count())
	}
	if got := receipts.checks[unitMonthKey(1, month)]; got != 2 {
		t.Fatalf("expected the existence check before and inside the transaction; got %d checks", got)
	}
}

func TestGenerateMonthProratesByShare(t *testing.T) {
	month := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	units := []domain.Unit{
		{ID: 1, BuildingID: 1, OwnerID: 1, Share: dec("0.40")},
		{ID: 2, BuildingID: 1, OwnerID: 2, Share: dec("0.60")},
	}
	receipts := newFakeReceipts()
	svc := newBillingFixture(units, []domain.ExpenseMovement{sharedExpenseMovement(month)}, receipts)

	if _, err := svc.GenerateMonth(context.Background(), month); err != nil {
		t.Fatalf("generate: %v", err)
	}

	want := map[int64]string{1: "40.00", 2: "60.00"}
	for unitID, total := range want {
		rec, ok := receipts.rows[unitMonthKey(unitID, month)]
		if !ok {
			t.Fatalf("no receipt for unit %d", unitID)
		}
		if rec.TotalDue.StringFixed(2) != total {
			t.Fatalf("unit %d total: expected %s; got %s", unitID, total, rec.TotalDue.StringFixed(2))
		}
		if rec.State != domain.ReceiptPending {
			t.Fatalf("new receipt must start pending; got %s", rec.State)
		}
	}
}
