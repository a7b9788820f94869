// pkg/realtimestore/store.go
package realtimestore

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrKeyExists = errors.New("document key already exists")
)

// Collection paths. These must match the existing deployment's data layout.
const (
	CollectionMembers       = "members"
	CollectionAttendance    = "attendance"
	CollectionDues          = "dues"
	CollectionActivities    = "activities"
	CollectionNotifications = "notifications"
	CollectionSettings      = "settings"
	CollectionAdmins        = "admins"
	CollectionChatGroup     = "chat/group"

	// Extensions over the original layout.
	CollectionCredentials    = "credentials"
	CollectionAttendanceOpen = "attendance_open"
)

// ChatPrivatePath returns the collection path for a private chat room.
// Room ids are the two member ids joined in lexicographic order.
func ChatPrivatePath(roomID string) string {
	return "chat/private/" + roomID
}

// Snapshot is a full-collection view keyed by document key.
type Snapshot map[string]json.RawMessage

// Decode unmarshals the document stored under key into dst.
func (s Snapshot) Decode(key string, dst any) error {
	raw, ok := s[key]
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(raw, dst)
}

// Store is the realtime document store the application is built against.
// Writes fan out to subscribers as whole-collection snapshots; there is no
// incremental diffing. SetIfAbsent is the only conditional primitive and is
// what multi-step flows use instead of check-then-create.
type Store interface {
	// Push appends doc under a freshly generated key and returns the key.
	Push(ctx context.Context, path string, doc any) (string, error)

	// Set writes doc under key, creating or replacing it.
	Set(ctx context.Context, path, key string, doc any) error

	// SetIfAbsent writes doc under key only when the key is free. It reports
	// whether the write happened; false means another writer holds the key.
	SetIfAbsent(ctx context.Context, path, key string, doc any) (bool, error)

	// Update merges fields into the document under key.
	Update(ctx context.Context, path, key string, fields map[string]any) error

	// Remove deletes the document under key. Removing a missing key is not
	// an error.
	Remove(ctx context.Context, path, key string) error

	// Get returns a one-shot snapshot of the collection.
	Get(ctx context.Context, path string) (Snapshot, error)

	// GetOne returns the raw document under key, or ErrNotFound.
	GetOne(ctx context.Context, path, key string) (json.RawMessage, error)

	// Subscribe streams collection snapshots. The first snapshot arrives
	// after the next write; callers needing current state call Get first.
	// Slow consumers see coalesced snapshots, never stale ordering.
	Subscribe(path string) (<-chan Snapshot, func())
}
