// internal/chat/relay.go
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"hanumantlibrary/pkg/realtimestore"
)

// Relay fans chat messages and notifications through the store. It is
// independent of the attendance and fee flows.
type Relay struct {
	store realtimestore.Store
	log   *slog.Logger
	now   func() time.Time
}

func NewRelay(store realtimestore.Store, log *slog.Logger) *Relay {
	return &Relay{store: store, log: log, now: time.Now}
}

func (r *Relay) SendGroupMessage(ctx context.Context, msg Message) (*Message, error) {
	return r.send(ctx, realtimestore.CollectionChatGroup, RoomGroup, msg)
}

func (r *Relay) SendPrivateMessage(ctx context.Context, peerA, peerB string, msg Message) (*Message, error) {
	roomID := PrivateRoomID(peerA, peerB)
	return r.send(ctx, realtimestore.ChatPrivatePath(roomID), roomID, msg)
}

func (r *Relay) send(ctx context.Context, path, roomID string, msg Message) (*Message, error) {
	if strings.TrimSpace(msg.Content) == "" {
		return nil, ErrEmptyMessage
	}
	enabled, err := r.chatEnabled(ctx)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, ErrChatDisabled
	}

	msg.RoomID = roomID
	msg.Timestamp = r.now().Format(time.RFC3339)
	if msg.Type == "" {
		msg.Type = "text"
	}

	key, err := r.store.Push(ctx, path, msg)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	msg.ID = key
	return &msg, nil
}

func (r *Relay) GroupMessages(ctx context.Context) ([]Message, error) {
	return r.messages(ctx, realtimestore.CollectionChatGroup)
}

func (r *Relay) PrivateMessages(ctx context.Context, peerA, peerB string) ([]Message, error) {
	return r.messages(ctx, realtimestore.ChatPrivatePath(PrivateRoomID(peerA, peerB)))
}

func (r *Relay) messages(ctx context.Context, path string) ([]Message, error) {
	snap, err := r.store.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	msgs := make([]Message, 0, len(snap))
	for key := range snap {
		var m Message
		if err := snap.Decode(key, &m); err != nil {
			r.log.Warn("skip malformed message", "key", key, "err", err)
			continue
		}
		m.ID = key
		msgs = append(msgs, m)
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Timestamp < msgs[j].Timestamp })
	return msgs, nil
}

func (r *Relay) PublishNotification(ctx context.Context, n Notification) (*Notification, error) {
	if n.RecipientID == "" {
		return nil, ErrMissingRecipient
	}
	n.CreatedAt = r.now().Format(time.RFC3339)

	key, err := r.store.Push(ctx, realtimestore.CollectionNotifications, n)
	if err != nil {
		return nil, fmt.Errorf("publish notification: %w", err)
	}
	n.ID = key
	return &n, nil
}

// MarkNotificationRead records that memberID has seen the notification.
func (r *Relay) MarkNotificationRead(ctx context.Context, notificationID, memberID string) error {
	raw, err := r.store.GetOne(ctx, realtimestore.CollectionNotifications, notificationID)
	if err != nil {
		return fmt.Errorf("load notification: %w", err)
	}
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return fmt.Errorf("decode notification: %w", err)
	}
	if n.ReadBy == nil {
		n.ReadBy = make(map[string]bool)
	}
	n.ReadBy[memberID] = true

	err = r.store.Update(ctx, realtimestore.CollectionNotifications, notificationID, map[string]any{
		"readBy": n.ReadBy,
	})
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// NotificationsFor returns notifications addressed to memberID or broadcast.
func (r *Relay) NotificationsFor(ctx context.Context, memberID string) ([]Notification, error) {
	snap, err := r.store.Get(ctx, realtimestore.CollectionNotifications)
	if err != nil {
		return nil, fmt.Errorf("load notifications: %w", err)
	}

	out := make([]Notification, 0, len(snap))
	for key := range snap {
		var n Notification
		if err := snap.Decode(key, &n); err != nil {
			r.log.Warn("skip malformed notification", "key", key, "err", err)
			continue
		}
		if n.RecipientID != "all" && n.RecipientID != memberID {
			continue
		}
		n.ID = key
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

// chatEnabled reads the settings gate; a missing settings document means
// chat is on.
func (r *Relay) chatEnabled(ctx context.Context) (bool, error) {
	raw, err := r.store.GetOne(ctx, realtimestore.CollectionSettings, "library")
	if err == realtimestore.ErrNotFound {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("load settings: %w", err)
	}
	var settings struct {
		ChatEnabled *bool `json:"chatEnabled"`
	}
	if err := json.Unmarshal(raw, &settings); err != nil {
		return false, fmt.Errorf("decode settings: %w", err)
	}
	if settings.ChatEnabled == nil {
		return true, nil
	}
	return *settings.ChatEnabled, nil
}
