package chat

import "time"

const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

const (
	DeliverySent      = "sent"
	DeliveryDelivered = "delivered"
	DeliveryRead      = "read"
)

const (
	ContentText = "text"
	ContentFile = "file"
)

// DeletedPlaceholder irreversibly replaces the content of a message
// deleted for everyone.
const DeletedPlaceholder = "This message was deleted"

// EditWindow bounds how long after creation a sender may edit a message
// or delete it for everyone.
const EditWindow = 30 * time.Minute

// MaxAttachmentSize caps chat file uploads at 50 MB.
const MaxAttachmentSize = 50 << 20

// Conversation is a 1:1 channel. The participant pair is stored normalized
// (lower id first) so uniqueness is symmetric in the two users.
type Conversation struct {
	ID          int        `json:"id"`
	UserLowID   int        `json:"-"`
	UserHighID  int        `json:"-"`
	RequesterID int        `json:"requester_id"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID int) bool {
	return userID == c.UserLowID || userID == c.UserHighID
}

// Other returns the participant that is not userID.
func (c *Conversation) Other(userID int) int {
	if userID == c.UserLowID {
		return c.UserHighID
	}
	return c.UserLowID
}

type Message struct {
	ID             int        `json:"id"`
	ConversationID int        `json:"conversation_id"`
	SenderID       int        `json:"sender_id"`
	RecipientID    int        `json:"recipient_id"`
	Content        string     `json:"content"`
	ContentType    string     `json:"content_type"`
	FileName       string     `json:"file_name,omitempty"`
	FileSize       int64      `json:"file_size,omitempty"`
	StorageKey     string     `json:"storage_key,omitempty"`
	ReplyToID      *int       `json:"reply_to_id,omitempty"`
	DeliveryStatus string     `json:"delivery_status"`
	IsRead         bool       `json:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	IsEdited       bool       `json:"is_edited"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`

	// Per-viewer hide flags never leave the server; fetch filters on them.
	DeletedBySender    bool `json:"-"`
	DeletedByRecipient bool `json:"-"`
	DeletedForAll      bool `json:"deleted_for_all"`
}

type Reaction struct {
	ID        int       `json:"id"`
	MessageID int       `json:"message_id"`
	UserID    int       `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationSummary is one entry of the conversation list: the other
// participant's public profile, the unread count for the caller, and a
// preview of the latest message the caller can still see.
type ConversationSummary struct {
	Conversation
	OtherID     int    `json:"other_id"`
	OtherName   string `json:"other_name"`
	OtherEmail  string `json:"other_email"`
	UnreadCount int    `json:"unread_count"`
	LastMessage string `json:"last_message,omitempty"`
}
