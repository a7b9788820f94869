// internal/attendance/service.go
package attendance

import "context"

// Service defines the interface for the attendance tracker.
type Service interface {
	// MarkEntry opens a presence session and returns the new record id.
	// Unless configured otherwise, a second entry while a session is open
	// fails with ErrOpenSession.
	MarkEntry(ctx context.Context, memberID, memberName string) (string, error)

	// MarkExit closes a session, computing its duration.
	MarkExit(ctx context.Context, recordID string) (*Record, error)

	// CurrentSession returns the member's open record for today, or nil.
	CurrentSession(ctx context.Context, memberID string) (*Record, error)

	TodayAttendance(ctx context.Context) ([]Record, error)
	MemberAttendance(ctx context.Context, memberID string) ([]Record, error)
	MonthlyAttendance(ctx context.Context, year, month int) ([]Record, error)
}
