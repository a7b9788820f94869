// internal/fees/implementation_test.go
package fees

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"hanumantlibrary/internal/activity"
	"hanumantlibrary/pkg/realtimestore"
)

var receiptPattern = regexp.MustCompile(`^RCP-\d+$`)

func newTestEngine(now time.Time) (*service, *realtimestore.MemoryStore, *time.Time) {
	store := realtimestore.NewMemoryStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := NewService(store, activity.NewLog(store, log), log).(*service)

	clock := now
	engine.now = func() time.Time { return clock }
	return engine, store, &clock
}

func TestCreateInitialFee(t *testing.T) {
	engine, _, _ := newTestEngine(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	rec, err := engine.CreateInitialFee(ctx, "m1", "Alice", 500, "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", rec.PeriodStart)
	assert.Equal(t, "2024-01-31", rec.PeriodEnd)
	assert.Equal(t, "2024-01-31", rec.DueDate)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, 500, rec.Amount)
	assert.Equal(t, RecordKey("m1", "2024-01-01"), rec.ID)

	_, err = engine.CreateInitialFee(ctx, "m1", "Alice", 500, "2024-01-01")
	assert.ErrorIs(t, err, ErrDuplicatePeriod)
}

func TestSettlePaymentChainsNextCycle(t *testing.T) {
	engine, store, _ := newTestEngine(time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	initial, err := engine.CreateInitialFee(ctx, "m1", "Alice", 500, "2024-01-01")
	require.NoError(t, err)

	paid, err := engine.RecordPayment(ctx, PaymentInput{DueID: initial.ID, ChainNext: true})
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, paid.Status)
	assert.NotEmpty(t, paid.PaidDate)
	assert.Regexp(t, receiptPattern, paid.ReceiptNumber)

	// The chain extended: a pending cycle tiles onto the paid one.
	dues, err := engine.MemberDues(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, dues, 2)

	sort.Slice(dues, func(i, j int) bool { return dues[i].PeriodStart < dues[j].PeriodStart })
	assert.Equal(t, dues[0].PeriodEnd, dues[1].PeriodStart)
	assert.Equal(t, "2024-03-01", dues[1].PeriodEnd)
	assert.Equal(t, StatusPending, dues[1].Status)

	// Settling an already-paid record is rejected.
	_, err = engine.RecordPayment(ctx, PaymentInput{DueID: initial.ID})
	assert.ErrorIs(t, err, ErrAlreadyPaid)

	// Paying again cannot duplicate the chained cycle.
	_, created, err := engine.CreateNextCycleFee(ctx, "m1", "Alice", 500, "2024-01-31")
	require.NoError(t, err)
	assert.False(t, created)

	snap, err := store.Get(ctx, realtimestore.CollectionDues)
	require.NoError(t, err)
	assert.Len(t, snap, 2)
}

func TestStandalonePayment(t *testing.T) {
	engine, _, _ := newTestEngine(time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	rec, err := engine.RecordPayment(ctx, PaymentInput{
		MemberID:    "m2",
		MemberName:  "Bob",
		PeriodStart: "2024-02-01",
		PeriodEnd:   "2024-03-02",
		Amount:      600,
		PaymentDate: "2024-02-05",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, rec.Status)
	assert.Regexp(t, receiptPattern, rec.ReceiptNumber)
	assert.Contains(t, rec.PaidDate, "2024-02-05")

	// Same period twice is a conflict, not a second ledger entry.
	_, err = engine.RecordPayment(ctx, PaymentInput{
		MemberID:    "m2",
		MemberName:  "Bob",
		PeriodStart: "2024-02-01",
		PeriodEnd:   "2024-03-02",
		Amount:      600,
	})
	assert.ErrorIs(t, err, ErrDuplicatePeriod)

	_, err = engine.RecordPayment(ctx, PaymentInput{MemberID: "m2"})
	assert.ErrorIs(t, err, ErrInvalidPayment)
}

func TestReconcile(t *testing.T) {
	engine, _, clock := newTestEngine(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	rec, err := engine.CreateInitialFee(ctx, "m1", "Alice", 500, "2024-01-01")
	require.NoError(t, err)

	// Still within the period: nothing to correct.
	corrected, err := engine.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, corrected)

	// Viewed past the due date, the pending record flips to overdue.
	*clock = time.Date(2024, 2, 5, 9, 0, 0, 0, time.UTC)
	corrected, err = engine.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, corrected)

	dues, err := engine.MemberDues(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, dues, 1)
	assert.Equal(t, StatusOverdue, dues[0].Status)

	// Reconciliation is idempotent.
	corrected, err = engine.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, corrected)

	// Overdue records still settle.
	paid, err := engine.RecordPayment(ctx, PaymentInput{DueID: rec.ID})
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, paid.Status)

	corrected, err = engine.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, corrected)
}

func TestPendingDues(t *testing.T) {
	engine, _, clock := newTestEngine(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	first, err := engine.CreateInitialFee(ctx, "m1", "Alice", 500, "2024-01-01")
	require.NoError(t, err)
	_, err = engine.CreateInitialFee(ctx, "m2", "Bob", 600, "2024-01-10")
	require.NoError(t, err)

	*clock = time.Date(2024, 2, 5, 9, 0, 0, 0, time.UTC)
	_, err = engine.Reconcile(ctx)
	require.NoError(t, err)

	_, err = engine.RecordPayment(ctx, PaymentInput{DueID: first.ID})
	require.NoError(t, err)

	pending, err := engine.PendingDues(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "m2", pending[0].MemberID)
}

func TestDeletePayment(t *testing.T) {
	engine, _, _ := newTestEngine(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	rec, err := engine.CreateInitialFee(ctx, "m1", "Alice", 500, "2024-01-01")
	require.NoError(t, err)

	require.NoError(t, engine.DeletePayment(ctx, rec.ID))
	dues, err := engine.MemberDues(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, dues)

	assert.ErrorIs(t, engine.DeletePayment(ctx, rec.ID), ErrDueNotFound)
}

// Chained cycles must tile the calendar: no gaps, no overlaps, every period
// exactly thirty days.
func TestFeeChainTilesCalendar(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
		engine, _, clock := newTestEngine(start)
		ctx := context.Background()

		joinDay := rapid.IntRange(0, 60).Draw(t, "joinDay")
		joinDate := start.AddDate(0, 0, joinDay).Format("2006-01-02")
		amount := rapid.IntRange(100, 2000).Draw(t, "amount")

		rec, err := engine.CreateInitialFee(ctx, "m1", "Alice", amount, joinDate)
		if err != nil {
			t.Fatalf("create initial fee: %v", err)
		}

		payments := rapid.IntRange(1, 8).Draw(t, "payments")
		for i := 0; i < payments; i++ {
			*clock = clock.AddDate(0, 0, rapid.IntRange(0, 45).Draw(t, "advance"))
			paid, err := engine.RecordPayment(ctx, PaymentInput{DueID: rec.ID, ChainNext: true})
			if err != nil {
				t.Fatalf("record payment %d: %v", i, err)
			}
			next, err := engine.MemberDues(ctx, "m1")
			if err != nil {
				t.Fatalf("member dues: %v", err)
			}
			rec = findByStart(next, paid.PeriodEnd)
			if rec == nil {
				t.Fatalf("chained cycle starting %s not found", paid.PeriodEnd)
			}
		}

		dues, err := engine.MemberDues(ctx, "m1")
		if err != nil {
			t.Fatalf("member dues: %v", err)
		}
		sort.Slice(dues, func(i, j int) bool { return dues[i].PeriodStart < dues[j].PeriodStart })

		for i, due := range dues {
			end, err := AddDays(due.PeriodStart, CycleDays)
			if err != nil || end != due.PeriodEnd {
				t.Fatalf("cycle %d is not thirty days: %s -> %s", i, due.PeriodStart, due.PeriodEnd)
			}
			if i > 0 && dues[i-1].PeriodEnd != due.PeriodStart {
				t.Fatalf("gap or overlap between %s and %s", dues[i-1].PeriodEnd, due.PeriodStart)
			}
		}
	})
}

func findByStart(dues []FeeRecord, periodStart string) *FeeRecord {
	for i := range dues {
		if dues[i].PeriodStart == periodStart {
			return &dues[i]
		}
	}
	return nil
}
