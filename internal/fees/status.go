// internal/fees/status.go
package fees

// NextStatus is the pure transition function for a fee record's status given
// the current calendar date (YYYY-MM-DD, compared lexicographically).
//
// pending -> overdue once dueDate < today; paid is terminal; overdue never
// reverts while unpaid even if the clock moves backwards.
func NextStatus(r FeeRecord, today string) Status {
	switch r.Status {
	case StatusPaid:
		return StatusPaid
	case StatusOverdue:
		return StatusOverdue
	default:
		if r.DueDate != "" && r.DueDate < today {
			return StatusOverdue
		}
		return StatusPending
	}
}
