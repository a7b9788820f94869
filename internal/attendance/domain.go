// internal/attendance/domain.go
package attendance

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrRecordNotFound = errors.New("attendance record not found")
	ErrSessionClosed  = errors.New("attendance session is already closed")
	ErrOpenSession    = errors.New("member already has an open session today")
)

// Record is one presence session. ExitTime and Duration are set exactly once
// when the session closes; an absent ExitTime marks the session open.
type Record struct {
	ID         string `json:"-"`
	MemberID   string `json:"memberId"`
	MemberName string `json:"memberName"`
	Date       string `json:"date"`      // local calendar date, YYYY-MM-DD
	EntryTime  string `json:"entryTime"` // 24h local clock, HH:MM:SS
	ExitTime   string `json:"exitTime,omitempty"`
	Duration   *int   `json:"duration,omitempty"` // minutes
}

// Open reports whether the session has no exit recorded yet.
func (r Record) Open() bool { return r.ExitTime == "" }

// openClaim marks a member's open session for one day. It lives under the
// member id so claiming it is a single conditional write.
type openClaim struct {
	RecordID string `json:"recordId"`
	Date     string `json:"date"`
}

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04:05"
)

// DurationMinutes reconstructs entry and exit as same-day clock values and
// returns their difference in minutes, clamped at zero. The clamp is a lossy
// policy: a session spanning midnight reads as zero, not as elapsed time.
func DurationMinutes(entryTime, exitTime string) (int, error) {
	entry, err := parseClock(entryTime)
	if err != nil {
		return 0, err
	}
	exit, err := parseClock(exitTime)
	if err != nil {
		return 0, err
	}
	minutes := int(exit.Sub(entry).Minutes())
	if minutes < 0 {
		minutes = 0
	}
	return minutes, nil
}

func parseClock(value string) (time.Time, error) {
	t, err := time.Parse(clockLayout, value)
	if err != nil {
		// Entry times written by older clients omit seconds.
		t, err = time.Parse("15:04", value)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse clock value %q: %w", value, err)
		}
	}
	return t, nil
}
