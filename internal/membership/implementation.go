// internal/membership/implementation.go
package membership

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"hanumantlibrary/internal/activity"
	"hanumantlibrary/internal/fees"
	"hanumantlibrary/pkg/realtimestore"
)

const resetTokenTTL = time.Hour

// service implements the Service interface.
type service struct {
	store      realtimestore.Store
	fees       fees.Service
	activities *activity.Log
	log        *slog.Logger
	now        func() time.Time

	loginLimiter *rate.Limiter
}

// NewService creates a new membership service instance.
func NewService(store realtimestore.Store, feeEngine fees.Service, activities *activity.Log, log *slog.Logger, loginPerMinute int) Service {
	return &service{
		store:        store,
		fees:         feeEngine,
		activities:   activities,
		log:          log,
		now:          time.Now,
		loginLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(loginPerMinute)), loginPerMinute),
	}
}

func (s *service) AddMember(ctx context.Context, in AddMemberInput) (*Member, error) {
	if err := validateAddMember(in); err != nil {
		return nil, err
	}

	member := Member{
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:        strings.TrimSpace(in.Phone),
		Address:      in.Address,
		JoinDate:     in.JoinDate,
		SeatNumber:   in.SeatNumber,
		LockerNumber: in.LockerNumber,
		Shift:        in.Shift,
		MonthlyFee:   in.MonthlyFee,
		Status:       StatusActive,
		CreatedAt:    s.now().Format(time.RFC3339),
		ProfilePic:   in.ProfilePic,
	}

	id, err := s.store.Push(ctx, realtimestore.CollectionMembers, member)
	if err != nil {
		return nil, fmt.Errorf("create member: %w", err)
	}
	member.ID = id

	hash, salt, err := hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	cred := Credential{PasswordHash: hash, Salt: salt}
	if err := s.store.Set(ctx, realtimestore.CollectionCredentials, id, cred); err != nil {
		return nil, fmt.Errorf("store credential: %w", err)
	}

	s.activities.Append(ctx, activity.Activity{
		Type:       activity.TypeMemberAdded,
		MemberID:   id,
		MemberName: member.Name,
		Details:    fmt.Sprintf("New member %s added", member.Name),
	})

	if _, err := s.fees.CreateInitialFee(ctx, id, member.Name, member.MonthlyFee, member.JoinDate); err != nil {
		// The member exists; the first cycle can be created manually.
		s.log.Error("create initial fee cycle", "member", id, "err", err)
	}

	return &member, nil
}

func (s *service) Authenticate(ctx context.Context, email, password string) (*Member, error) {
	if !s.loginLimiter.Allow() {
		return nil, ErrRateLimited
	}

	member, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	cred, err := s.getCredential(ctx, member.ID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	ok, err := verifyPassword(password, cred.Salt, cred.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}
	return member, nil
}

func (s *service) GetMember(ctx context.Context, id string) (*Member, error) {
	raw, err := s.store.GetOne(ctx, realtimestore.CollectionMembers, id)
	if err != nil {
		if err == realtimestore.ErrNotFound {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("load member: %w", err)
	}
	var member Member
	if err := json.Unmarshal(raw, &member); err != nil {
		return nil, fmt.Errorf("decode member: %w", err)
	}
	member.ID = id
	return &member, nil
}

func (s *service) ListMembers(ctx context.Context) ([]Member, error) {
	snap, err := s.store.Get(ctx, realtimestore.CollectionMembers)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}

	members := make([]Member, 0, len(snap))
	for key := range snap {
		var m Member
		if err := snap.Decode(key, &m); err != nil {
			s.log.Warn("skip malformed member", "key", key, "err", err)
			continue
		}
		m.ID = key
		members = append(members, m)
	}
	return members, nil
}

func (s *service) UpdateMember(ctx context.Context, id string, in UpdateMemberInput) error {
	fields := make(map[string]any)
	setString := func(key string, v *string) {
		if v != nil {
			fields[key] = *v
		}
	}
	setString("name", in.Name)
	setString("email", in.Email)
	setString("phone", in.Phone)
	setString("address", in.Address)
	setString("seatNumber", in.SeatNumber)
	setString("lockerNumber", in.LockerNumber)
	setString("shift", in.Shift)
	setString("profilePic", in.ProfilePic)
	if in.MonthlyFee != nil {
		if *in.MonthlyFee <= 0 {
			return fmt.Errorf("%w: monthly fee must be positive", ErrInvalidMember)
		}
		fields["monthlyFee"] = *in.MonthlyFee
	}
	if in.Status != nil {
		if *in.Status != StatusActive && *in.Status != StatusInactive {
			return fmt.Errorf("%w: unknown status %q", ErrInvalidMember, *in.Status)
		}
		fields["status"] = *in.Status
	}
	if len(fields) == 0 {
		return nil
	}

	err := s.store.Update(ctx, realtimestore.CollectionMembers, id, fields)
	if err == realtimestore.ErrNotFound {
		return ErrMemberNotFound
	}
	return err
}

func (s *service) RemoveMember(ctx context.Context, id string) error {
	member, err := s.GetMember(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.Remove(ctx, realtimestore.CollectionMembers, id); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if err := s.store.Remove(ctx, realtimestore.CollectionCredentials, id); err != nil {
		s.log.Warn("remove credential", "member", id, "err", err)
	}

	s.activities.Append(ctx, activity.Activity{
		Type:       activity.TypeMemberRemoved,
		MemberID:   id,
		MemberName: member.Name,
		Details:    fmt.Sprintf("Member %s removed", member.Name),
	})
	return nil
}

func (s *service) CreateResetToken(ctx context.Context, email string) (string, error) {
	member, err := s.findByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	token := uuid.NewString()
	expires := s.now().Add(resetTokenTTL).Format(time.RFC3339)
	err = s.store.Update(ctx, realtimestore.CollectionCredentials, member.ID, map[string]any{
		"resetToken":   token,
		"resetExpires": expires,
	})
	if err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}
	return token, nil
}

func (s *service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" || len(newPassword) < 6 {
		return ErrResetTokenInvalid
	}

	snap, err := s.store.Get(ctx, realtimestore.CollectionCredentials)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}

	for memberID := range snap {
		var cred Credential
		if err := snap.Decode(memberID, &cred); err != nil {
			continue
		}
		if cred.ResetToken != token {
			continue
		}
		expires, err := time.Parse(time.RFC3339, cred.ResetExpires)
		if err != nil || s.now().After(expires) {
			return ErrResetTokenInvalid
		}

		hash, salt, err := hashPassword(newPassword)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		return s.store.Set(ctx, realtimestore.CollectionCredentials, memberID, Credential{
			PasswordHash: hash,
			Salt:         salt,
		})
	}
	return ErrResetTokenInvalid
}

func (s *service) findByEmail(ctx context.Context, email string) (*Member, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	members, err := s.ListMembers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range members {
		if members[i].Email == email {
			return &members[i], nil
		}
	}
	return nil, ErrMemberNotFound
}

func (s *service) getCredential(ctx context.Context, memberID string) (*Credential, error) {
	raw, err := s.store.GetOne(ctx, realtimestore.CollectionCredentials, memberID)
	if err != nil {
		return nil, err
	}
	var cred Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

func validateAddMember(in AddMemberInput) error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidMember)
	case strings.TrimSpace(in.Email) == "" || !strings.Contains(in.Email, "@"):
		return fmt.Errorf("%w: a valid email is required", ErrInvalidMember)
	case in.MonthlyFee <= 0:
		return fmt.Errorf("%w: monthly fee must be positive", ErrInvalidMember)
	case len(in.Password) < 6:
		return fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidMember)
	}
	if _, err := time.Parse("2006-01-02", in.JoinDate); err != nil {
		return fmt.Errorf("%w: join date must be YYYY-MM-DD", ErrInvalidMember)
	}
	return nil
}
