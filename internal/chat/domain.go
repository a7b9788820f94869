// internal/chat/domain.go
package chat

import "errors"

var (
	ErrChatDisabled     = errors.New("chat is disabled")
	ErrEmptyMessage     = errors.New("message content is empty")
	ErrMissingRecipient = errors.New("notification recipient is required")
)

// Message is one chat message, group or private.
type Message struct {
	ID         string `json:"-"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Content    string `json:"content"`
	Timestamp  string `json:"timestamp"`
	Type       string `json:"type"` // text, emoji or gif
	RoomID     string `json:"roomId"`
}

// Notification is a staff notice delivered to one member or broadcast to all.
// ReadBy tracks which members have seen it.
type Notification struct {
	ID          string          `json:"-"`
	Title       string          `json:"title"`
	Message     string          `json:"message"`
	RecipientID string          `json:"recipientId"` // member id or "all"
	CreatedAt   string          `json:"createdAt"`
	ReadBy      map[string]bool `json:"readBy,omitempty"`
}

// RoomGroup is the shared room every member can post to.
const RoomGroup = "group"

// PrivateRoomID builds the room id for a member pair. Ids are joined in
// lexicographic order so both participants derive the same room.
func PrivateRoomID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}
