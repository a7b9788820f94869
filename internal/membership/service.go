// internal/membership/service.go
package membership

import "context"

// Service defines the interface for the membership service.
type Service interface {
	// AddMember provisions a member, their credential and the first fee
	// cycle starting at the join date.
	AddMember(ctx context.Context, in AddMemberInput) (*Member, error)

	// Authenticate verifies email and password and returns the member.
	Authenticate(ctx context.Context, email, password string) (*Member, error)

	GetMember(ctx context.Context, id string) (*Member, error)
	ListMembers(ctx context.Context) ([]Member, error)
	UpdateMember(ctx context.Context, id string, in UpdateMemberInput) error

	// RemoveMember deletes the member record. Attendance and fee history
	// stay behind, referencing the removed id.
	RemoveMember(ctx context.Context, id string) error

	// CreateResetToken issues a short-lived password reset token.
	CreateResetToken(ctx context.Context, email string) (string, error)

	// ResetPassword consumes a reset token and installs a new credential.
	ResetPassword(ctx context.Context, token, newPassword string) error
}
