// internal/chat/relay_test.go
package chat

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hanumantlibrary/pkg/realtimestore"
)

func newTestRelay() (*Relay, *realtimestore.MemoryStore, *time.Time) {
	store := realtimestore.NewMemoryStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	relay := NewRelay(store, log)

	clock := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	relay.now = func() time.Time { return clock }
	return relay, store, &clock
}

func TestPrivateRoomID(t *testing.T) {
	assert.Equal(t, "abc_xyz", PrivateRoomID("abc", "xyz"))
	assert.Equal(t, "abc_xyz", PrivateRoomID("xyz", "abc"))
	assert.Equal(t, "abc_abc", PrivateRoomID("abc", "abc"))
}

func TestSendGroupMessage(t *testing.T) {
	relay, _, clock := newTestRelay()
	ctx := context.Background()

	sent, err := relay.SendGroupMessage(ctx, Message{SenderID: "m1", SenderName: "Alice", Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, RoomGroup, sent.RoomID)
	assert.Equal(t, "text", sent.Type)
	assert.NotEmpty(t, sent.ID)

	*clock = clock.Add(time.Minute)
	_, err = relay.SendGroupMessage(ctx, Message{SenderID: "m2", SenderName: "Bob", Content: "hi", Type: "emoji"})
	require.NoError(t, err)

	msgs, err := relay.GroupMessages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	// Oldest first.
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "hi", msgs[1].Content)
	assert.Equal(t, "emoji", msgs[1].Type)

	_, err = relay.SendGroupMessage(ctx, Message{SenderID: "m1", Content: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestPrivateMessagesShareRoom(t *testing.T) {
	relay, _, clock := newTestRelay()
	ctx := context.Background()

	_, err := relay.SendPrivateMessage(ctx, "m2", "m1", Message{SenderID: "m2", Content: "ping"})
	require.NoError(t, err)
	*clock = clock.Add(time.Minute)
	_, err = relay.SendPrivateMessage(ctx, "m1", "m2", Message{SenderID: "m1", Content: "pong"})
	require.NoError(t, err)

	// Both orderings of the pair resolve to the same conversation.
	msgs, err := relay.PrivateMessages(ctx, "m1", "m2")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "ping", msgs[0].Content)
	assert.Equal(t, "m1_m2", msgs[0].RoomID)

	other, err := relay.PrivateMessages(ctx, "m1", "m3")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestChatDisabledGate(t *testing.T) {
	relay, store, _ := newTestRelay()
	ctx := context.Background()

	// No settings document: chat is on.
	_, err := relay.SendGroupMessage(ctx, Message{SenderID: "m1", Content: "ok"})
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, realtimestore.CollectionSettings, "library", map[string]any{"chatEnabled": false}))
	_, err = relay.SendGroupMessage(ctx, Message{SenderID: "m1", Content: "blocked"})
	assert.ErrorIs(t, err, ErrChatDisabled)
	_, err = relay.SendPrivateMessage(ctx, "m1", "m2", Message{SenderID: "m1", Content: "blocked"})
	assert.ErrorIs(t, err, ErrChatDisabled)

	// A settings document without the flag leaves chat on.
	require.NoError(t, store.Set(ctx, realtimestore.CollectionSettings, "library", map[string]any{"libraryName": "Shri Hanumant"}))
	_, err = relay.SendGroupMessage(ctx, Message{SenderID: "m1", Content: "ok again"})
	require.NoError(t, err)
}

func TestNotifications(t *testing.T) {
	relay, _, clock := newTestRelay()
	ctx := context.Background()

	direct, err := relay.PublishNotification(ctx, Notification{Title: "Fee due", Message: "Pay up", RecipientID: "m1"})
	require.NoError(t, err)

	*clock = clock.Add(time.Minute)
	_, err = relay.PublishNotification(ctx, Notification{Title: "Holiday", Message: "Closed Monday", RecipientID: "all"})
	require.NoError(t, err)

	_, err = relay.PublishNotification(ctx, Notification{Title: "Nowhere"})
	assert.ErrorIs(t, err, ErrMissingRecipient)

	mine, err := relay.NotificationsFor(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	// Newest first.
	assert.Equal(t, "Holiday", mine[0].Title)
	assert.Equal(t, "Fee due", mine[1].Title)

	others, err := relay.NotificationsFor(ctx, "m2")
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, "Holiday", others[0].Title)

	require.NoError(t, relay.MarkNotificationRead(ctx, direct.ID, "m1"))
	require.NoError(t, relay.MarkNotificationRead(ctx, direct.ID, "m9"))

	mine, err = relay.NotificationsFor(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, mine[1].ReadBy["m1"])
	assert.True(t, mine[1].ReadBy["m9"])
	assert.False(t, mine[1].ReadBy["m2"])
}
