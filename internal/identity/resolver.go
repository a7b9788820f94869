// internal/identity/resolver.go
package identity

import (
	"context"
	"fmt"
	"time"

	"hanumantlibrary/pkg/realtimestore"
)

// Role is what an authenticated principal is allowed to see.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "user"
	RoleNone   Role = "none"
)

// Resolver maps an authenticated identity to a role. The admin registry is
// checked before the member registry, so an id present in both resolves as
// admin.
type Resolver struct {
	store realtimestore.Store

	// restoreTimeout caps the wait for an externally restored session.
	restoreTimeout time.Duration
}

func NewResolver(store realtimestore.Store, restoreTimeout time.Duration) *Resolver {
	return &Resolver{store: store, restoreTimeout: restoreTimeout}
}

func (r *Resolver) Resolve(ctx context.Context, uid string) (Role, error) {
	if uid == "" {
		return RoleNone, nil
	}

	if _, err := r.store.GetOne(ctx, realtimestore.CollectionAdmins, uid); err == nil {
		return RoleAdmin, nil
	} else if err != realtimestore.ErrNotFound {
		return RoleNone, fmt.Errorf("check admin registry: %w", err)
	}

	if _, err := r.store.GetOne(ctx, realtimestore.CollectionMembers, uid); err == nil {
		return RoleMember, nil
	} else if err != realtimestore.ErrNotFound {
		return RoleNone, fmt.Errorf("check member registry: %w", err)
	}

	return RoleNone, nil
}

// RestoreSession waits for the auth provider to confirm a restored session,
// up to the configured cap. Expiry means logged out, not an error.
func (r *Resolver) RestoreSession(ctx context.Context, restore func(context.Context) (string, error)) (string, Role, error) {
	ctx, cancel := context.WithTimeout(ctx, r.restoreTimeout)
	defer cancel()

	uid, err := restore(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", RoleNone, nil
		}
		return "", RoleNone, fmt.Errorf("restore session: %w", err)
	}

	role, err := r.Resolve(ctx, uid)
	if err != nil {
		return "", RoleNone, err
	}
	return uid, role, nil
}
