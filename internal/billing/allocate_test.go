package billing

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"condoledger/internal/domain"
)

func openReceipt(id int64, number string, emission time.Time, balance string) domain.Receipt {
	b := dec(balance)
	return domain.Receipt{
		ID:           id,
		Number:       number,
		EmissionDate: emission,
		Balance:      b,
		State:        domain.ReceiptPending,
	}
}

func TestApplyPayment_FIFO(t *testing.T) {
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	// ordered by emission date ascending, as the store returns them
	in := PaymentInput{
		OwnerID:         1,
		TargetReceiptID: 1,
		Amount:          dec("60.00"),
		PriorCredit:     decimal.Zero,
		BankReference:   "REF-001",
		OpenReceipts: []domain.Receipt{
			openReceipt(1, "202401-0001", jan, "50.00"),
			openReceipt(2, "202402-0001", feb, "20.00"),
			openReceipt(3, "202403-0001", mar, "30.00"),
		},
	}

	res, err := ApplyPayment(in)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if len(res.Applications) != 2 {
		t.Fatalf("expected 2 applications; got %d", len(res.Applications))
	}

	first := res.Applications[0]
	if first.ReceiptID != 1 || first.Applied.StringFixed(2) != "50.00" || !first.NewBalance.IsZero() {
		t.Fatalf("oldest receipt not fully paid: %+v", first)
	}
	if first.NewState != domain.ReceiptPaid {
		t.Fatalf("zero balance must transition to paid; got %s", first.NewState)
	}

	second := res.Applications[1]
	if second.ReceiptID != 2 || second.Applied.StringFixed(2) != "10.00" || second.NewBalance.StringFixed(2) != "10.00" {
		t.Fatalf("second-oldest receipt mispaid: %+v", second)
	}
	if second.NewState != domain.ReceiptPending {
		t.Fatalf("partially paid receipt must stay pending; got %s", second.NewState)
	}

	// March receipt untouched
	for _, a := range res.Applications {
		if a.ReceiptID == 3 {
			t.Fatal("newest receipt must not receive funds")
		}
	}

	if res.RemainingCredit.Sign() != 0 {
		t.Fatalf("no credit expected; got %s", res.RemainingCredit)
	}
	if res.History[0].Kind != domain.TxFull || res.History[1].Kind != domain.TxPartial {
		t.Fatalf("history kinds wrong: %+v", res.History)
	}
}

func TestApplyPayment_Conservation(t *testing.T) {
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	in := PaymentInput{
		OwnerID:         1,
		TargetReceiptID: 1,
		Amount:          dec("77.13"),
		PriorCredit:     dec("12.87"),
		BankReference:   "REF-002",
		OpenReceipts: []domain.Receipt{
			openReceipt(1, "202401-0001", jan, "33.33"),
			openReceipt(2, "202402-0001", feb, "19.99"),
		},
	}

	res, err := ApplyPayment(in)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	sum := decimal.Zero
	for _, a := range res.Applications {
		sum = sum.Add(a.Applied)
	}
	available := in.Amount.Add(in.PriorCredit)
	if !sum.Add(res.RemainingCredit).Equal(available) {
		t.Fatalf("conservation violated: applied %s + credit %s != available %s",
			sum, res.RemainingCredit, available)
	}
	if !res.TotalApplied.Equal(sum) {
		t.Fatalf("TotalApplied %s != sum of applications %s", res.TotalApplied, sum)
	}
}

func TestApplyPayment_OverpaymentCreditRoundTrip(t *testing.T) {
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// first payment: 100 against a single 40 receipt -> credit 60
	first, err := ApplyPayment(PaymentInput{
		OwnerID:         1,
		TargetReceiptID: 1,
		Amount:          dec("100.00"),
		PriorCredit:     decimal.Zero,
		BankReference:   "REF-A",
		OpenReceipts:    []domain.Receipt{openReceipt(1, "202401-0001", jan, "40.00")},
	})
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if first.Applications[0].NewState != domain.ReceiptPaid {
		t.Fatal("receipt should be paid")
	}
	if first.RemainingCredit.StringFixed(2) != "60.00" {
		t.Fatalf("expected credit 60.00; got %s", first.RemainingCredit.StringFixed(2))
	}

	last := first.History[len(first.History)-1]
	if last.Kind != domain.TxOverpayment || last.CreditCreated.StringFixed(2) != "60.00" {
		t.Fatalf("overpayment history entry wrong: %+v", last)
	}

	// second payment of 10 consumes credit first: available = 70
	feb := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	second, err := ApplyPayment(PaymentInput{
		OwnerID:         1,
		TargetReceiptID: 2,
		Amount:          dec("10.00"),
		PriorCredit:     first.RemainingCredit,
		BankReference:   "REF-B",
		OpenReceipts:    []domain.Receipt{openReceipt(2, "202402-0001", feb, "70.00")},
	})
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if second.TotalApplied.StringFixed(2) != "70.00" {
		t.Fatalf("expected 70.00 applied; got %s", second.TotalApplied.StringFixed(2))
	}
	if second.RemainingCredit.Sign() != 0 {
		t.Fatalf("credit should be drained; got %s", second.RemainingCredit)
	}
	if second.History[0].Kind != domain.TxCreditApplication {
		t.Fatalf("expected leading credit-application entry; got %+v", second.History[0])
	}
}

func TestApplyPayment_CreditTrailMatchesConsumption(t *testing.T) {
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// credit 50 + payment 30 against a single 20 receipt: only 20 of the
	// credit reaches a receipt, the other 30 survives through the
	// overpayment entry
	res, err := ApplyPayment(PaymentInput{
		OwnerID:         1,
		TargetReceiptID: 1,
		Amount:          dec("30.00"),
		PriorCredit:     dec("50.00"),
		BankReference:   "REF-D",
		OpenReceipts:    []domain.Receipt{openReceipt(1, "202401-0001", jan, "20.00")},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	lead := res.History[0]
	if lead.Kind != domain.TxCreditApplication {
		t.Fatalf("expected leading credit-application entry; got %+v", lead)
	}
	if lead.Applied.StringFixed(2) != "20.00" {
		t.Fatalf("credit entry must record the consumed portion only; got %s", lead.Applied.StringFixed(2))
	}

	last := res.History[len(res.History)-1]
	if last.Kind != domain.TxOverpayment || last.CreditCreated.StringFixed(2) != "60.00" {
		t.Fatalf("overpayment entry wrong: %+v", last)
	}
	if res.RemainingCredit.StringFixed(2) != "60.00" {
		t.Fatalf("expected credit 60.00; got %s", res.RemainingCredit.StringFixed(2))
	}

	// consumed plus recreated credit accounts for every cent available
	available := dec("30.00").Add(dec("50.00"))
	if !lead.Applied.Add(res.RemainingCredit).Equal(available) {
		t.Fatalf("trail overstates credit: consumed %s + recreated %s != available %s",
			lead.Applied, res.RemainingCredit, available)
	}
}

func TestApplyPayment_UnconsumedCreditHasNoTrailEntry(t *testing.T) {
	// nothing open: the prior credit never reaches a receipt and must not
	// be recorded as applied
	res, err := ApplyPayment(PaymentInput{
		OwnerID:         3,
		TargetReceiptID: 7,
		Amount:          dec("10.00"),
		PriorCredit:     dec("25.00"),
		BankReference:   "REF-E",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	for _, h := range res.History {
		if h.Kind == domain.TxCreditApplication {
			t.Fatalf("no credit was consumed, entry is wrong: %+v", h)
		}
	}
	if len(res.History) != 1 || res.History[0].Kind != domain.TxOverpayment {
		t.Fatalf("expected a single overpayment entry; got %+v", res.History)
	}
	if res.RemainingCredit.StringFixed(2) != "35.00" {
		t.Fatalf("expected credit 35.00; got %s", res.RemainingCredit.StringFixed(2))
	}
}

func TestApplyPayment_NoOpenReceipts(t *testing.T) {
	res, err := ApplyPayment(PaymentInput{
		OwnerID:         2,
		TargetReceiptID: 9,
		Amount:          dec("25.00"),
		PriorCredit:     decimal.Zero,
		BankReference:   "REF-C",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(res.Applications) != 0 {
		t.Fatalf("expected no applications; got %d", len(res.Applications))
	}
	if res.RemainingCredit.StringFixed(2) != "25.00" {
		t.Fatalf("whole amount should become credit; got %s", res.RemainingCredit.StringFixed(2))
	}
}

func TestApplyPayment_Validation(t *testing.T) {
	_, err := ApplyPayment(PaymentInput{OwnerID: 1, Amount: dec("10.00")})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("missing reference: expected ErrValidation; got %v", err)
	}

	_, err = ApplyPayment(PaymentInput{OwnerID: 1, Amount: decimal.Zero, BankReference: "R"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("zero amount: expected ErrValidation; got %v", err)
	}
}
