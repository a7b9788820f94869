// internal/fees/service.go
package fees

import "context"

// Service defines the interface for the fee cycle engine.
type Service interface {
	// CreateInitialFee opens a member's first billing period at joinDate.
	CreateInitialFee(ctx context.Context, memberID, memberName string, amount int, joinDate string) (*FeeRecord, error)

	// CreateNextCycleFee chains the period starting at prevPeriodEnd. It
	// reports false when that cycle already exists.
	CreateNextCycleFee(ctx context.Context, memberID, memberName string, amount int, prevPeriodEnd string) (*FeeRecord, bool, error)

	// RecordPayment settles an existing record or records an out-of-band
	// payment, optionally chaining the next cycle. The returned record
	// carries the issued receipt number.
	RecordPayment(ctx context.Context, in PaymentInput) (*FeeRecord, error)

	// DeletePayment removes a fee record outright.
	DeletePayment(ctx context.Context, dueID string) error

	// Reconcile applies the lazy pending -> overdue correction and returns
	// how many records were reclassified.
	Reconcile(ctx context.Context) (int, error)

	AllDues(ctx context.Context) ([]FeeRecord, error)
	MemberDues(ctx context.Context, memberID string) ([]FeeRecord, error)
	PendingDues(ctx context.Context) ([]FeeRecord, error)
}
