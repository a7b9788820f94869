// internal/identity/resolver_test.go
package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hanumantlibrary/pkg/realtimestore"
)

func TestResolve(t *testing.T) {
	store := realtimestore.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, realtimestore.CollectionAdmins, "a1", map[string]any{"email": "admin@example.com"}))
	require.NoError(t, store.Set(ctx, realtimestore.CollectionMembers, "m1", map[string]any{"name": "Alice"}))
	// Present in both registries: admin wins.
	require.NoError(t, store.Set(ctx, realtimestore.CollectionMembers, "a1", map[string]any{"name": "Admin"}))

	resolver := NewResolver(store, time.Second)

	role, err := resolver.Resolve(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)

	role, err = resolver.Resolve(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, RoleMember, role)

	role, err = resolver.Resolve(ctx, "stranger")
	require.NoError(t, err)
	assert.Equal(t, RoleNone, role)

	role, err = resolver.Resolve(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, RoleNone, role)
}

func TestRestoreSession(t *testing.T) {
	store := realtimestore.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, realtimestore.CollectionMembers, "m1", map[string]any{"name": "Alice"}))

	t.Run("restored member", func(t *testing.T) {
		resolver := NewResolver(store, time.Second)
		uid, role, err := resolver.RestoreSession(ctx, func(context.Context) (string, error) {
			return "m1", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "m1", uid)
		assert.Equal(t, RoleMember, role)
	})

	t.Run("timeout means logged out", func(t *testing.T) {
		resolver := NewResolver(store, 10*time.Millisecond)
		uid, role, err := resolver.RestoreSession(ctx, func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})
		require.NoError(t, err)
		assert.Empty(t, uid)
		assert.Equal(t, RoleNone, role)
	})

	t.Run("provider failure surfaces", func(t *testing.T) {
		resolver := NewResolver(store, time.Second)
		boom := errors.New("provider unreachable")
		_, _, err := resolver.RestoreSession(ctx, func(context.Context) (string, error) {
			return "", boom
		})
		assert.ErrorIs(t, err, boom)
	})
}
