// internal/membership/domain.go
package membership

import "errors"

var (
	ErrMemberNotFound     = errors.New("member not found")
	ErrInvalidMember      = errors.New("invalid member input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrResetTokenInvalid  = errors.New("reset token is invalid or expired")
	ErrRateLimited        = errors.New("too many attempts, slow down")
)

// Member status values.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Member is a library member's identity and billing profile.
type Member struct {
	ID           string `json:"-"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Address      string `json:"address,omitempty"`
	JoinDate     string `json:"joinDate"` // YYYY-MM-DD
	SeatNumber   string `json:"seatNumber,omitempty"`
	LockerNumber string `json:"lockerNumber,omitempty"`
	Shift        string `json:"shift,omitempty"`
	MonthlyFee   int    `json:"monthlyFee"`
	Status       string `json:"status"`
	CreatedAt    string `json:"createdAt"`
	ProfilePic   string `json:"profilePic,omitempty"`
}

// Credential is a member's one-way login credential. It lives in its own
// collection; the member record never carries a password.
type Credential struct {
	PasswordHash string `json:"passwordHash"`
	Salt         string `json:"salt"`
	ResetToken   string `json:"resetToken,omitempty"`
	ResetExpires string `json:"resetExpires,omitempty"`
}

// AddMemberInput carries everything needed to provision a member.
type AddMemberInput struct {
	Name         string
	Email        string
	Phone        string
	Address      string
	JoinDate     string
	SeatNumber   string
	LockerNumber string
	Shift        string
	MonthlyFee   int
	ProfilePic   string
	Password     string
}

// UpdateMemberInput holds optional field updates; nil means unchanged.
type UpdateMemberInput struct {
	Name         *string
	Email        *string
	Phone        *string
	Address      *string
	SeatNumber   *string
	LockerNumber *string
	Shift        *string
	MonthlyFee   *int
	Status       *string
	ProfilePic   *string
}
