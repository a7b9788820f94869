// internal/chat/handler.go
package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	relay *Relay
}

func NewHandler(relay *Relay) *Handler {
	return &Handler{relay: relay}
}

// ChatRoutes mounts group and private chat endpoints.
func (h *Handler) ChatRoutes(r chi.Router) {
	r.Get("/group", h.handleGroupMessages)
	r.Post("/group", h.handleSendGroup)
	r.Get("/private/{peerA}/{peerB}", h.handlePrivateMessages)
	r.Post("/private/{peerA}/{peerB}", h.handleSendPrivate)
}

// NotificationRoutes mounts the notification endpoints.
func (h *Handler) NotificationRoutes(r chi.Router) {
	r.Post("/", h.handlePublish)
	r.Get("/member/{memberID}", h.handleListFor)
	r.Post("/{notificationID}/read", h.handleMarkRead)
}

type messageRequest struct {
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Content    string `json:"content"`
	Type       string `json:"type"`
}

func (h *Handler) handleSendGroup(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	msg, err := h.relay.SendGroupMessage(r.Context(), Message{
		SenderID:   req.SenderID,
		SenderName: req.SenderName,
		Content:    req.Content,
		Type:       req.Type,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeMessage(w, msg)
}

func (h *Handler) handleSendPrivate(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	msg, err := h.relay.SendPrivateMessage(r.Context(),
		chi.URLParam(r, "peerA"), chi.URLParam(r, "peerB"),
		Message{
			SenderID:   req.SenderID,
			SenderName: req.SenderName,
			Content:    req.Content,
			Type:       req.Type,
		})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeMessage(w, msg)
}

func (h *Handler) handleGroupMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.relay.GroupMessages(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessages(w, msgs)
}

func (h *Handler) handlePrivateMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.relay.PrivateMessages(r.Context(), chi.URLParam(r, "peerA"), chi.URLParam(r, "peerB"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessages(w, msgs)
}

func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Message     string `json:"message"`
		RecipientID string `json:"recipientId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n, err := h.relay.PublishNotification(r.Context(), Notification{
		Title:       req.Title,
		Message:     req.Message,
		RecipientID: req.RecipientID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	type out struct {
		ID string `json:"id"`
		Notification
	}
	json.NewEncoder(w).Encode(out{ID: n.ID, Notification: *n})
}

func (h *Handler) handleListFor(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.relay.NotificationsFor(r.Context(), chi.URLParam(r, "memberID"))
	if err != nil {
		writeError(w, err)
		return
	}

	type out struct {
		ID string `json:"id"`
		Notification
	}
	payload := make([]out, 0, len(notifications))
	for _, n := range notifications {
		payload = append(payload, out{ID: n.ID, Notification: n})
	}
	json.NewEncoder(w).Encode(payload)
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID string `json:"memberId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.relay.MarkNotificationRead(r.Context(), chi.URLParam(r, "notificationID"), req.MemberID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeMessage(w http.ResponseWriter, msg *Message) {
	type out struct {
		ID string `json:"id"`
		Message
	}
	json.NewEncoder(w).Encode(out{ID: msg.ID, Message: *msg})
}

func writeMessages(w http.ResponseWriter, msgs []Message) {
	type out struct {
		ID string `json:"id"`
		Message
	}
	payload := make([]out, 0, len(msgs))
	for _, m := range msgs {
		payload = append(payload, out{ID: m.ID, Message: m})
	}
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrChatDisabled):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrMissingRecipient):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
