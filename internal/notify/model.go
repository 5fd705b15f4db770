package notify

import "time"

const (
	TypeMessage      = "message"
	TypeChatRequest  = "chat_request"
	TypeChatAccepted = "chat_accepted"
	TypeMention      = "mention"
	TypeGroupInvite  = "group_invite"
)

// Event is what producers hand to the dispatcher.
type Event struct {
	UserID         int    `json:"user_id"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	Type           string `json:"type"`
	ConversationID int    `json:"conversation_id,omitempty"`
	GroupID        int    `json:"group_id,omitempty"`
	MessageID      int    `json:"message_id,omitempty"`
}

// Notification is the persisted row a user can list and mark read.
type Notification struct {
	ID             int       `json:"id"`
	UserID         int       `json:"user_id"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	Type           string    `json:"type"`
	ConversationID int       `json:"conversation_id,omitempty"`
	GroupID        int       `json:"group_id,omitempty"`
	MessageID      int       `json:"message_id,omitempty"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}
