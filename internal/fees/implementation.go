// internal/fees/implementation.go
package fees

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"hanumantlibrary/internal/activity"
	"hanumantlibrary/pkg/realtimestore"
)

// service implements the Service interface.
type service struct {
	store      realtimestore.Store
	activities *activity.Log
	log        *slog.Logger
	now        func() time.Time
}

// NewService creates a new fee cycle engine.
func NewService(store realtimestore.Store, activities *activity.Log, log *slog.Logger) Service {
	return &service{
		store:      store,
		activities: activities,
		log:        log,
		now:        time.Now,
	}
}

func (s *service) CreateInitialFee(ctx context.Context, memberID, memberName string, amount int, joinDate string) (*FeeRecord, error) {
	rec, created, err := s.createCycle(ctx, memberID, memberName, amount, joinDate)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, ErrDuplicatePeriod
	}
	return rec, nil
}

func (s *service) CreateNextCycleFee(ctx context.Context, memberID, memberName string, amount int, prevPeriodEnd string) (*FeeRecord, bool, error) {
	return s.createCycle(ctx, memberID, memberName, amount, prevPeriodEnd)
}

// createCycle writes the period starting at periodStart. The deterministic
// key makes the duplicate check and the create a single conditional write.
func (s *service) createCycle(ctx context.Context, memberID, memberName string, amount int, periodStart string) (*FeeRecord, bool, error) {
	if memberID == "" || amount <= 0 {
		return nil, false, ErrInvalidPayment
	}
	periodEnd, err := AddDays(periodStart, CycleDays)
	if err != nil {
		return nil, false, err
	}

	rec := FeeRecord{
		MemberID:    memberID,
		MemberName:  memberName,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Amount:      amount,
		DueDate:     periodEnd,
		Status:      StatusPending,
		CreatedAt:   s.now().Format(time.RFC3339),
	}

	key := RecordKey(memberID, periodStart)
	created, err := s.store.SetIfAbsent(ctx, realtimestore.CollectionDues, key, rec)
	if err != nil {
		return nil, false, fmt.Errorf("create fee cycle: %w", err)
	}
	if !created {
		return nil, false, nil
	}
	rec.ID = key
	return &rec, true, nil
}

func (s *service) RecordPayment(ctx context.Context, in PaymentInput) (*FeeRecord, error) {
	if in.DueID != "" {
		return s.settleExisting(ctx, in)
	}
	return s.recordStandalone(ctx, in)
}

// settleExisting marks a pending or overdue record paid and issues a receipt.
func (s *service) settleExisting(ctx context.Context, in PaymentInput) (*FeeRecord, error) {
	rec, err := s.getDue(ctx, in.DueID)
	if err != nil {
		return nil, err
	}
	if rec.Status == StatusPaid {
		return nil, ErrAlreadyPaid
	}

	receipt := s.receiptNumber()
	paidDate, err := s.paidDate(in.PaymentDate)
	if err != nil {
		return nil, err
	}

	err = s.store.Update(ctx, realtimestore.CollectionDues, in.DueID, map[string]any{
		"status":        StatusPaid,
		"paidDate":      paidDate,
		"receiptNumber": receipt,
	})
	if err != nil {
		return nil, fmt.Errorf("mark fee record paid: %w", err)
	}

	rec.Status = StatusPaid
	rec.PaidDate = paidDate
	rec.ReceiptNumber = receipt

	s.activities.Append(ctx, activity.Activity{
		Type:       activity.TypePayment,
		MemberID:   rec.MemberID,
		MemberName: rec.MemberName,
		Details:    fmt.Sprintf("Payment of ₹%d received from %s", rec.Amount, rec.MemberName),
	})

	if in.ChainNext {
		if _, _, err := s.CreateNextCycleFee(ctx, rec.MemberID, rec.MemberName, rec.Amount, rec.PeriodEnd); err != nil {
			// The payment itself stands; the chain can be repaired by the
			// next payment or a manual cycle creation.
			s.log.Error("chain next fee cycle", "member", rec.MemberID, "periodEnd", rec.PeriodEnd, "err", err)
		}
	}
	return rec, nil
}

// recordStandalone records an out-of-band payment as an already-paid cycle.
func (s *service) recordStandalone(ctx context.Context, in PaymentInput) (*FeeRecord, error) {
	if in.MemberID == "" || in.PeriodStart == "" || in.PeriodEnd == "" || in.Amount <= 0 {
		return nil, ErrInvalidPayment
	}

	receipt := s.receiptNumber()
	paidDate, err := s.paidDate(in.PaymentDate)
	if err != nil {
		return nil, err
	}

	rec := FeeRecord{
		MemberID:      in.MemberID,
		MemberName:    in.MemberName,
		PeriodStart:   in.PeriodStart,
		PeriodEnd:     in.PeriodEnd,
		Amount:        in.Amount,
		DueDate:       in.PeriodEnd,
		Status:        StatusPaid,
		PaidDate:      paidDate,
		ReceiptNumber: receipt,
		CreatedAt:     s.now().Format(time.RFC3339),
	}

	key := RecordKey(in.MemberID, in.PeriodStart)
	created, err := s.store.SetIfAbsent(ctx, realtimestore.CollectionDues, key, rec)
	if err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}
	if !created {
		return nil, ErrDuplicatePeriod
	}
	rec.ID = key

	s.activities.Append(ctx, activity.Activity{
		Type:       activity.TypePayment,
		MemberID:   in.MemberID,
		MemberName: in.MemberName,
		Details:    fmt.Sprintf("Payment of ₹%d received from %s", in.Amount, in.MemberName),
	})

	if in.ChainNext {
		if _, _, err := s.CreateNextCycleFee(ctx, in.MemberID, in.MemberName, in.Amount, in.PeriodEnd); err != nil {
			s.log.Error("chain next fee cycle", "member", in.MemberID, "periodEnd", in.PeriodEnd, "err", err)
		}
	}
	return &rec, nil
}

func (s *service) DeletePayment(ctx context.Context, dueID string) error {
	rec, err := s.getDue(ctx, dueID)
	if err != nil {
		return err
	}
	if err := s.store.Remove(ctx, realtimestore.CollectionDues, dueID); err != nil {
		return fmt.Errorf("delete fee record: %w", err)
	}
	// No compensating activity and no un-chaining of spawned cycles.
	s.log.Warn("fee record deleted", "due", dueID, "member", rec.MemberID, "period", rec.PeriodStart)
	return nil
}

func (s *service) Reconcile(ctx context.Context) (int, error) {
	records, err := s.AllDues(ctx)
	if err != nil {
		return 0, err
	}

	today := s.today()
	corrected := 0
	for _, rec := range records {
		next := NextStatus(rec, today)
		if next == rec.Status {
			continue
		}
		err := s.store.Update(ctx, realtimestore.CollectionDues, rec.ID, map[string]any{"status": next})
		if err != nil {
			// Another reader may have reconciled the same record; the write
			// is idempotent, so only surface real store failures.
			if err == realtimestore.ErrNotFound {
				continue
			}
			return corrected, fmt.Errorf("reconcile fee record %s: %w", rec.ID, err)
		}
		corrected++
	}
	return corrected, nil
}

func (s *service) AllDues(ctx context.Context) ([]FeeRecord, error) {
	snap, err := s.store.Get(ctx, realtimestore.CollectionDues)
	if err != nil {
		return nil, fmt.Errorf("load dues: %w", err)
	}

	records := make([]FeeRecord, 0, len(snap))
	for key := range snap {
		var rec FeeRecord
		if err := snap.Decode(key, &rec); err != nil {
			s.log.Warn("skip malformed fee record", "key", key, "err", err)
			continue
		}
		rec.ID = key
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return displayDate(records[i]) > displayDate(records[j])
	})
	return records, nil
}

func (s *service) MemberDues(ctx context.Context, memberID string) ([]FeeRecord, error) {
	records, err := s.AllDues(ctx)
	if err != nil {
		return nil, err
	}
	out := records[:0:0]
	for _, rec := range records {
		if rec.MemberID == memberID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *service) PendingDues(ctx context.Context) ([]FeeRecord, error) {
	records, err := s.AllDues(ctx)
	if err != nil {
		return nil, err
	}
	out := records[:0:0]
	for _, rec := range records {
		if rec.Status == StatusPending || rec.Status == StatusOverdue {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *service) getDue(ctx context.Context, dueID string) (*FeeRecord, error) {
	raw, err := s.store.GetOne(ctx, realtimestore.CollectionDues, dueID)
	if err != nil {
		if err == realtimestore.ErrNotFound {
			return nil, ErrDueNotFound
		}
		return nil, fmt.Errorf("load fee record: %w", err)
	}
	var rec FeeRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode fee record: %w", err)
	}
	rec.ID = dueID
	return &rec, nil
}

func (s *service) receiptNumber() string {
	return fmt.Sprintf("RCP-%d", s.now().UnixMilli())
}

// paidDate converts an optional YYYY-MM-DD override into a paid timestamp;
// manual dates are anchored at noon to stay on the chosen calendar day.
func (s *service) paidDate(override string) (string, error) {
	if override == "" {
		return s.now().Format(time.RFC3339), nil
	}
	t, err := time.Parse(dateLayout, override)
	if err != nil {
		return "", fmt.Errorf("%w: bad payment date %q", ErrInvalidPayment, override)
	}
	return t.Add(12 * time.Hour).Format(time.RFC3339), nil
}

func (s *service) today() string {
	return s.now().Format(dateLayout)
}

// displayDate orders records the way the dues dashboard lists them: most
// recent payment first, unpaid records by creation time.
func displayDate(rec FeeRecord) string {
	if rec.PaidDate != "" {
		return rec.PaidDate
	}
	return rec.CreatedAt
}

