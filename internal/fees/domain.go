// internal/fees/domain.go
package fees

import (
	"errors"
	"fmt"
	"time"
)

// Status is the billing state of one fee cycle.
type Status string

const (
	StatusPending Status = "pending"
	StatusOverdue Status = "overdue"
	StatusPaid    Status = "paid"
)

// CycleDays is the fixed length of a billing period.
const CycleDays = 30

var (
	ErrDueNotFound     = errors.New("fee record not found")
	ErrAlreadyPaid     = errors.New("fee record is already paid")
	ErrDuplicatePeriod = errors.New("fee record for this period already exists")
	ErrInvalidPayment  = errors.New("invalid payment input")
)

// FeeRecord is one 30-day billing period for a member. Consecutive records
// for a member tile the calendar: periodStart of cycle N+1 equals periodEnd
// of cycle N.
type FeeRecord struct {
	ID            string `json:"-"`
	MemberID      string `json:"memberId"`
	MemberName    string `json:"memberName"`
	PeriodStart   string `json:"periodStart"`
	PeriodEnd     string `json:"periodEnd"`
	Amount        int    `json:"amount"`
	DueDate       string `json:"dueDate"`
	Status        Status `json:"status"`
	PaidDate      string `json:"paidDate,omitempty"`
	ReceiptNumber string `json:"receiptNumber,omitempty"`
	CreatedAt     string `json:"createdAt"`
}

// PaymentInput is the single payment entry point. DueID settles an existing
// pending or overdue record; when empty, a standalone paid record is created
// for the given period. ChainNext extends the member's cycle chain.
type PaymentInput struct {
	DueID       string
	MemberID    string
	MemberName  string
	PeriodStart string
	PeriodEnd   string
	Amount      int
	PaymentDate string // optional YYYY-MM-DD; defaults to now
	ChainNext   bool
}

// RecordKey is the deterministic store key for a member's cycle. Creating a
// record through SetIfAbsent on this key is what makes "at most one record
// per (member, periodStart)" hold under concurrent writers.
func RecordKey(memberID, periodStart string) string {
	return memberID + ":" + periodStart
}

const dateLayout = "2006-01-02"

// AddDays shifts a YYYY-MM-DD date by n calendar days.
func AddDays(date string, n int) (string, error) {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return "", fmt.Errorf("parse date %q: %w", date, err)
	}
	return t.AddDate(0, 0, n).Format(dateLayout), nil
}
