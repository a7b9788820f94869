// internal/attendance/implementation.go
package attendance

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

	// allowMultipleOpen skips the open-session claim, restoring the original
	// tolerate-duplicates behaviour.
	allowMultipleOpen bool
}

// NewService creates a new attendance tracker.
func NewService(store realtimestore.Store, activities *activity.Log, log *slog.Logger, allowMultipleOpen bool) Service {
	return &service{
		store:             store,
		activities:        activities,
		log:               log,
		now:               time.Now,
		allowMultipleOpen: allowMultipleOpen,
	}
}

func (s *service) MarkEntry(ctx context.Context, memberID, memberName string) (string, error) {
	if memberID == "" {
		return "", fmt.Errorf("member id is required")
	}

	now := s.now()
	today := now.Format(dateLayout)
	rec := Record{
		MemberID:   memberID,
		MemberName: memberName,
		Date:       today,
		EntryTime:  now.Format(clockLayout),
	}

	recordID, err := s.store.Push(ctx, realtimestore.CollectionAttendance, rec)
	if err != nil {
		return "", fmt.Errorf("create attendance record: %w", err)
	}

	if !s.allowMultipleOpen {
		if err := s.claimOpenSession(ctx, memberID, recordID, today); err != nil {
			// Lost the claim: compensate by removing the record we pushed.
			if rmErr := s.store.Remove(ctx, realtimestore.CollectionAttendance, recordID); rmErr != nil {
				s.log.Error("roll back attendance record after lost claim", "record", recordID, "err", rmErr)
			}
			return "", err
		}
	}

	s.activities.Append(ctx, activity.Activity{
		Type:       activity.TypeEntry,
		MemberID:   memberID,
		MemberName: memberName,
		Details:    fmt.Sprintf("%s entered the library", memberName),
	})
	return recordID, nil
}

// claimOpenSession takes the member's open-session slot for today. A stale
// claim left over from a previous day (a session never closed) is replaced.
func (s *service) claimOpenSession(ctx context.Context, memberID, recordID, today string) error {
	claim := openClaim{RecordID: recordID, Date: today}

	claimed, err := s.store.SetIfAbsent(ctx, realtimestore.CollectionAttendanceOpen, memberID, claim)
	if err != nil {
		return fmt.Errorf("claim open session: %w", err)
	}
	if claimed {
		return nil
	}

	raw, err := s.store.GetOne(ctx, realtimestore.CollectionAttendanceOpen, memberID)
	if err != nil && err != realtimestore.ErrNotFound {
		return fmt.Errorf("inspect open session claim: %w", err)
	}
	if err == nil {
		var existing openClaim
		if jsonErr := json.Unmarshal(raw, &existing); jsonErr == nil && existing.Date == today {
			return ErrOpenSession
		}
	}

	// Claim vanished or belongs to an earlier day; take it over.
	if err := s.store.Set(ctx, realtimestore.CollectionAttendanceOpen, memberID, claim); err != nil {
		return fmt.Errorf("replace stale open session claim: %w", err)
	}
	return nil
}

func (s *service) MarkExit(ctx context.Context, recordID string) (*Record, error) {
	rec, err := s.getRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if !rec.Open() {
		return nil, ErrSessionClosed
	}

	exitTime := s.now().Format(clockLayout)
	minutes, err := DurationMinutes(rec.EntryTime, exitTime)
	if err != nil {
		return nil, err
	}

	err = s.store.Update(ctx, realtimestore.CollectionAttendance, recordID, map[string]any{
		"exitTime": exitTime,
		"duration": minutes,
	})
	if err != nil {
		return nil, fmt.Errorf("close attendance record: %w", err)
	}

	s.releaseClaim(ctx, rec.MemberID, recordID)

	rec.ExitTime = exitTime
	rec.Duration = &minutes

	s.activities.Append(ctx, activity.Activity{
		Type:       activity.TypeExit,
		MemberID:   rec.MemberID,
		MemberName: rec.MemberName,
		Details:    fmt.Sprintf("%s left the library (Duration: %d mins)", rec.MemberName, minutes),
	})
	return rec, nil
}

// releaseClaim frees the member's open-session slot, but only when it still
// points at the record being closed. Closing a dangling record from an earlier
// day must not free a claim held by a newer session.
func (s *service) releaseClaim(ctx context.Context, memberID, recordID string) {
	raw, err := s.store.GetOne(ctx, realtimestore.CollectionAttendanceOpen, memberID)
	if err != nil {
		if err != realtimestore.ErrNotFound {
			s.log.Warn("inspect open session claim", "member", memberID, "err", err)
		}
		return
	}

	var claim openClaim
	if err := json.Unmarshal(raw, &claim); err != nil || claim.RecordID != recordID {
		return
	}
	if err := s.store.Remove(ctx, realtimestore.CollectionAttendanceOpen, memberID); err != nil {
		s.log.Warn("release open session claim", "member", memberID, "err", err)
	}
}

func (s *service) CurrentSession(ctx context.Context, memberID string) (*Record, error) {
	records, err := s.allRecords(ctx)
	if err != nil {
		return nil, err
	}

	today := s.now().Format(dateLayout)
	var open []Record
	for _, rec := range records {
		if rec.MemberID == memberID && rec.Date == today && rec.Open() {
			open = append(open, rec)
		}
	}
	if len(open) == 0 {
		return nil, nil
	}
	// More than one open record is a data anomaly; the latest entry wins.
	sort.Slice(open, func(i, j int) bool { return open[i].EntryTime < open[j].EntryTime })
	latest := open[len(open)-1]
	return &latest, nil
}

func (s *service) TodayAttendance(ctx context.Context) ([]Record, error) {
	today := s.now().Format(dateLayout)
	return s.filter(ctx, func(rec Record) bool { return rec.Date == today })
}

func (s *service) MemberAttendance(ctx context.Context, memberID string) ([]Record, error) {
	return s.filter(ctx, func(rec Record) bool { return rec.MemberID == memberID })
}

func (s *service) MonthlyAttendance(ctx context.Context, year, month int) ([]Record, error) {
	prefix := fmt.Sprintf("%04d-%02d", year, month)
	return s.filter(ctx, func(rec Record) bool {
		return len(rec.Date) >= len(prefix) && rec.Date[:len(prefix)] == prefix
	})
}

func (s *service) filter(ctx context.Context, keep func(Record) bool) ([]Record, error) {
	records, err := s.allRecords(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// allRecords loads the collection sorted newest first by date and entry time,
// the order every attendance view renders in.
func (s *service) allRecords(ctx context.Context) ([]Record, error) {
	snap, err := s.store.Get(ctx, realtimestore.CollectionAttendance)
	if err != nil {
		return nil, fmt.Errorf("load attendance: %w", err)
	}

	records := make([]Record, 0, len(snap))
	for key := range snap {
		var rec Record
		if err := snap.Decode(key, &rec); err != nil {
			s.log.Warn("skip malformed attendance record", "key", key, "err", err)
			continue
		}
		rec.ID = key
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Date != records[j].Date {
			return records[i].Date > records[j].Date
		}
		return records[i].EntryTime > records[j].EntryTime
	})
	return records, nil
}

func (s *service) getRecord(ctx context.Context, recordID string) (*Record, error) {
	raw, err := s.store.GetOne(ctx, realtimestore.CollectionAttendance, recordID)
	if err != nil {
		if err == realtimestore.ErrNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("load attendance record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode attendance record: %w", err)
	}
	rec.ID = recordID
	return &rec, nil
}
