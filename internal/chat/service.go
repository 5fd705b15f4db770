package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/workhub/workhub/internal/apperr"
	"github.com/workhub/workhub/internal/notify"
	"github.com/workhub/workhub/internal/user"
)

// ErrConversationNotAccepted signals that the status precondition failed
// at write time; the repository re-checks it inside the insert.
var ErrConversationNotAccepted = errors.New("conversation is not accepted")

// Store is what the service needs from persistence. *Repository satisfies
// it; tests substitute an in-memory fake.
type Store interface {
	GetConversation(ctx context.Context, id int) (*Conversation, error)
	FindConversationByPair(ctx context.Context, lowID, highID int) (*Conversation, error)
	CreateConversation(ctx context.Context, c *Conversation) error
	UpdateConversationStatus(ctx context.Context, id int, status string, acceptedAt *time.Time) error
	DeleteConversation(ctx context.Context, id int) error
	ListConversations(ctx context.Context, userID int) ([]ConversationSummary, error)

	GetMessage(ctx context.Context, id int) (*Message, error)
	CreateMessage(ctx context.Context, m *Message) error
	UpdateMessageContent(ctx context.Context, id int, content string, editedAt time.Time) error
	SetDeliveryStatus(ctx context.Context, id int, status string, readAt *time.Time) error
	MarkConversationRead(ctx context.Context, conversationID, userID int, at time.Time) error
	SetHideFlag(ctx context.Context, id int, forSender bool) error
	WipeMessage(ctx context.Context, id int) error
	ListMessages(ctx context.Context, conversationID, viewerID int) ([]*Message, error)

	GetReaction(ctx context.Context, messageID, userID int, emoji string) (*Reaction, error)
	GetReactionByID(ctx context.Context, id int) (*Reaction, error)
	InsertReaction(ctx context.Context, re *Reaction) (bool, error)
	DeleteReaction(ctx context.Context, id int) error
	ListReactions(ctx context.Context, messageID int) ([]Reaction, error)
}

// UserFinder is what we need from the user service.
type UserFinder interface {
	GetByID(ctx context.Context, id int) (*user.User, error)
}

// Notifier dispatches fire-and-forget notification events.
type Notifier interface {
	Dispatch(ev notify.Event)
}

// BlobStore is the file-storage collaborator for attachments.
type BlobStore interface {
	Save(r io.Reader, name string) (string, error)
	Open(key string) (io.ReadCloser, error)
}

type Service struct {
	store    Store
	users    UserFinder
	notifier Notifier
	blobs    BlobStore

	now func() time.Time
}

func NewService(store Store, users UserFinder, notifier Notifier, blobs BlobStore) *Service {
	return &Service{
		store:    store,
		users:    users,
		notifier: notifier,
		blobs:    blobs,
		now:      time.Now,
	}
}

func normalizePair(a, b int) (low, high int) {
	if a < b {
		return a, b
	}
	return b, a
}

// RequestConversation creates (or idempotently returns) the single
// conversation for the unordered pair. The bool reports whether a new
// conversation was created.
func (s *Service) RequestConversation(ctx context.Context, requesterID, otherID int) (*Conversation, bool, error) {
	if otherID == requesterID {
		return nil, false, apperr.InvalidInput("cannot start a conversation with yourself")
	}
	other, err := s.users.GetByID(ctx, otherID)
	if err != nil {
		return nil, false, err
	}
	if other == nil {
		return nil, false, apperr.NotFound("user not found")
	}

	low, high := normalizePair(requesterID, otherID)
	existing, err := s.store.FindConversationByPair(ctx, low, high)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if existing.Status != StatusRejected {
			// Double submission from a client is not an error.
			return existing, false, nil
		}
		// A rejected conversation may be replaced by a fresh request.
		if err := s.store.DeleteConversation(ctx, existing.ID); err != nil {
			return nil, false, err
		}
	}

	c := &Conversation{
		UserLowID:   low,
		UserHighID:  high,
		RequesterID: requesterID,
		Status:      StatusPending,
	}
	if err := s.store.CreateConversation(ctx, c); err != nil {
		return nil, false, err
	}

	s.notifier.Dispatch(notify.Event{
		UserID:         otherID,
		Title:          "New chat request",
		Body:           fmt.Sprintf("%s wants to start a conversation", requesterName(ctx, s.users, requesterID)),
		Type:           notify.TypeChatRequest,
		ConversationID: c.ID,
	})
	return c, true, nil
}

func requesterName(ctx context.Context, users UserFinder, id int) string {
	if u, err := users.GetByID(ctx, id); err == nil && u != nil {
		return u.Name
	}
	return "Someone"
}

func (s *Service) AcceptConversation(ctx context.Context, conversationID, actorID int) (*Conversation, error) {
	c, err := s.conversationForParticipant(ctx, conversationID, actorID)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusPending {
		return nil, apperr.InvalidState("conversation is not pending")
	}
	if c.RequesterID == actorID {
		return nil, apperr.InvalidState("cannot accept your own chat request")
	}

	at := s.now()
	if err := s.store.UpdateConversationStatus(ctx, c.ID, StatusAccepted, &at); err != nil {
		return nil, err
	}
	c.Status = StatusAccepted
	c.AcceptedAt = &at

	s.notifier.Dispatch(notify.Event{
		UserID:         c.Other(actorID),
		Title:          "Chat request accepted",
		Body:           "Your chat request was accepted",
		Type:           notify.TypeChatAccepted,
		ConversationID: c.ID,
	})
	return c, nil
}

// RejectConversation succeeds for a participant regardless of current
// status; rejecting twice is allowed.
func (s *Service) RejectConversation(ctx context.Context, conversationID, actorID int) (*Conversation, error) {
	c, err := s.conversationForParticipant(ctx, conversationID, actorID)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateConversationStatus(ctx, c.ID, StatusRejected, nil); err != nil {
		return nil, err
	}
	c.Status = StatusRejected
	return c, nil
}

func (s *Service) ListConversations(ctx context.Context, userID int) ([]ConversationSummary, error) {
	return s.store.ListConversations(ctx, userID)
}

func (s *Service) conversationForParticipant(ctx context.Context, conversationID, actorID int) (*Conversation, error) {
	c, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("conversation not found")
	}
	if !c.HasParticipant(actorID) {
		return nil, apperr.Forbidden("not a participant of this conversation")
	}
	return c, nil
}

// IsParticipant is consumed by the presence handler to gate typing routes.
func (s *Service) IsParticipant(ctx context.Context, conversationID, userID int) (bool, error) {
	c, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return false, err
	}
	return c != nil && c.HasParticipant(userID), nil
}

func (s *Service) SendMessage(ctx context.Context, conversationID, senderID int, content string, replyToID *int) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.InvalidInput("message content is required")
	}
	return s.send(ctx, conversationID, senderID, &Message{
		Content:     content,
		ContentType: ContentText,
		ReplyToID:   replyToID,
	})
}

// SendAttachment checks the size cap before any blob write, stores the
// blob, then appends a file message referencing the storage key.
func (s *Service) SendAttachment(ctx context.Context, conversationID, senderID int, name string, size int64, r io.Reader) (*Message, error) {
	if name == "" {
		return nil, apperr.InvalidInput("file name is required")
	}
	if size <= 0 || size > MaxAttachmentSize {
		return nil, apperr.InvalidInput("file exceeds the 50MB limit")
	}
	// Validate the conversation before touching blob storage.
	c, err := s.conversationForParticipant(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusAccepted {
		return nil, apperr.InvalidState("conversation is not accepted")
	}

	key, err := s.blobs.Save(io.LimitReader(r, MaxAttachmentSize), name)
	if err != nil {
		return nil, err
	}
	return s.send(ctx, conversationID, senderID, &Message{
		Content:     name,
		ContentType: ContentFile,
		FileName:    name,
		FileSize:    size,
		StorageKey:  key,
	})
}

func (s *Service) send(ctx context.Context, conversationID, senderID int, m *Message) (*Message, error) {
	c, err := s.conversationForParticipant(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusAccepted {
		return nil, apperr.InvalidState("conversation is not accepted")
	}
	if m.ReplyToID != nil {
		parent, err := s.store.GetMessage(ctx, *m.ReplyToID)
		if err != nil {
			return nil, err
		}
		if parent == nil || parent.ConversationID != conversationID {
			return nil, apperr.InvalidInput("reply target is not in this conversation")
		}
	}

	m.ConversationID = conversationID
	m.SenderID = senderID
	m.RecipientID = c.Other(senderID)
	m.DeliveryStatus = DeliverySent

	if err := s.store.CreateMessage(ctx, m); err != nil {
		if errors.Is(err, ErrConversationNotAccepted) {
			return nil, apperr.InvalidState("conversation is not accepted")
		}
		return nil, err
	}

	s.notifier.Dispatch(notify.Event{
		UserID:         m.RecipientID,
		Title:          "New message",
		Body:           preview(m),
		Type:           notify.TypeMessage,
		ConversationID: conversationID,
		MessageID:      m.ID,
	})
	return m, nil
}

func preview(m *Message) string {
	if m.ContentType == ContentFile {
		return "Sent a file: " + m.FileName
	}
	if utf8.RuneCountInString(m.Content) > 80 {
		runes := []rune(m.Content)
		return string(runes[:80])
	}
	return m.Content
}

func (s *Service) messageForActor(ctx context.Context, messageID, actorID int) (*Message, error) {
	m, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperr.NotFound("message not found")
	}
	if m.SenderID != actorID && m.RecipientID != actorID {
		return nil, apperr.Forbidden("not a participant of this message")
	}
	return m, nil
}

// MarkDelivered transitions sent -> delivered; only the recipient may do it.
func (s *Service) MarkDelivered(ctx context.Context, messageID, actorID int) (*Message, error) {
	m, err := s.messageForActor(ctx, messageID, actorID)
	if err != nil {
		return nil, err
	}
	if m.RecipientID != actorID {
		return nil, apperr.Forbidden("only the recipient can confirm delivery")
	}
	if m.DeliveryStatus == DeliverySent {
		if err := s.store.SetDeliveryStatus(ctx, m.ID, DeliveryDelivered, nil); err != nil {
			return nil, err
		}
		m.DeliveryStatus = DeliveryDelivered
	}
	return m, nil
}

// MarkRead implies delivered.
func (s *Service) MarkRead(ctx context.Context, messageID, actorID int) (*Message, error) {
	m, err := s.messageForActor(ctx, messageID, actorID)
	if err != nil {
		return nil, err
	}
	if m.RecipientID != actorID {
		return nil, apperr.Forbidden("only the recipient can mark a message read")
	}
	if !m.IsRead {
		at := s.now()
		if err := s.store.SetDeliveryStatus(ctx, m.ID, DeliveryRead, &at); err != nil {
			return nil, err
		}
		m.DeliveryStatus = DeliveryRead
		m.IsRead = true
		m.ReadAt = &at
	}
	return m, nil
}

func (s *Service) MarkConversationRead(ctx context.Context, conversationID, actorID int) error {
	if _, err := s.conversationForParticipant(ctx, conversationID, actorID); err != nil {
		return err
	}
	return s.store.MarkConversationRead(ctx, conversationID, actorID, s.now())
}

func (s *Service) EditMessage(ctx context.Context, messageID, actorID int, newContent string) (*Message, error) {
	newContent = strings.TrimSpace(newContent)
	if newContent == "" {
		return nil, apperr.InvalidInput("message content is required")
	}
	m, err := s.messageForActor(ctx, messageID, actorID)
	if err != nil {
		return nil, err
	}
	if m.SenderID != actorID {
		return nil, apperr.Forbidden("only the sender can edit a message")
	}
	if m.DeletedForAll {
		return nil, apperr.InvalidState("message was deleted")
	}
	at := s.now()
	if at.Sub(m.CreatedAt) > EditWindow {
		return nil, apperr.InvalidState("messages can only be edited within 30 minutes")
	}

	if err := s.store.UpdateMessageContent(ctx, m.ID, newContent, at); err != nil {
		return nil, err
	}
	m.Content = newContent
	m.IsEdited = true
	m.UpdatedAt = &at
	return m, nil
}

// DeleteForMe hides the message from the actor's own view only.
func (s *Service) DeleteForMe(ctx context.Context, messageID, actorID int) error {
	m, err := s.messageForActor(ctx, messageID, actorID)
	if err != nil {
		return err
	}
	return s.store.SetHideFlag(ctx, m.ID, m.SenderID == actorID)
}

// DeleteForEveryone is content-destructive and irreversible.
func (s *Service) DeleteForEveryone(ctx context.Context, messageID, actorID int) (*Message, error) {
	m, err := s.messageForActor(ctx, messageID, actorID)
	if err != nil {
		return nil, err
	}
	if m.SenderID != actorID {
		return nil, apperr.Forbidden("only the sender can delete for everyone")
	}
	if m.DeletedForAll {
		return nil, apperr.InvalidState("message is already deleted")
	}
	if s.now().Sub(m.CreatedAt) > EditWindow {
		return nil, apperr.InvalidState("messages can only be deleted for everyone within 30 minutes")
	}

	if err := s.store.WipeMessage(ctx, m.ID); err != nil {
		return nil, err
	}
	m.Content = DeletedPlaceholder
	m.DeletedForAll = true
	return m, nil
}

// OpenAttachment resolves a file message back to its blob stream for a
// participant. Globally deleted messages no longer resolve.
func (s *Service) OpenAttachment(ctx context.Context, messageID, actorID int) (io.ReadCloser, *Message, error) {
	m, err := s.messageForActor(ctx, messageID, actorID)
	if err != nil {
		return nil, nil, err
	}
	if m.ContentType != ContentFile || m.DeletedForAll || m.StorageKey == "" {
		return nil, nil, apperr.NotFound("no file attached to this message")
	}
	rc, err := s.blobs.Open(m.StorageKey)
	if err != nil {
		return nil, nil, err
	}
	return rc, m, nil
}

func (s *Service) ListMessages(ctx context.Context, conversationID, viewerID int) ([]*Message, error) {
	c, err := s.conversationForParticipant(ctx, conversationID, viewerID)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusAccepted {
		return []*Message{}, nil
	}
	msgs, err := s.store.ListMessages(ctx, conversationID, viewerID)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []*Message{}
	}
	return msgs, nil
}

func validEmoji(emoji string) bool {
	if emoji == "" || !utf8.ValidString(emoji) {
		return false
	}
	// Null bytes and replacement characters indicate client-side encoding
	// failure, not a real emoji.
	if strings.ContainsRune(emoji, 0) || strings.ContainsRune(emoji, utf8.RuneError) {
		return false
	}
	return utf8.RuneCountInString(emoji) <= 8
}

// ToggleReaction adds the reaction, or removes it when the same
// (message, user, emoji) triple already exists. A concurrent duplicate
// insert is treated as "already present" and toggled off.
func (s *Service) ToggleReaction(ctx context.Context, messageID, actorID int, emoji string) (*Reaction, bool, error) {
	if !validEmoji(emoji) {
		return nil, false, apperr.InvalidInput("invalid emoji")
	}
	m, err := s.messageForActor(ctx, messageID, actorID)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.store.GetReaction(ctx, m.ID, actorID, emoji)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if err := s.store.DeleteReaction(ctx, existing.ID); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}

	re := &Reaction{MessageID: m.ID, UserID: actorID, Emoji: emoji}
	inserted, err := s.store.InsertReaction(ctx, re)
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		// Lost the race against an identical concurrent request; the row
		// exists, so the intent of this call is toggle-off.
		winner, err := s.store.GetReaction(ctx, m.ID, actorID, emoji)
		if err != nil {
			return nil, false, err
		}
		if winner != nil {
			if err := s.store.DeleteReaction(ctx, winner.ID); err != nil {
				return nil, false, err
			}
		}
		return nil, false, nil
	}
	return re, true, nil
}

func (s *Service) RemoveReaction(ctx context.Context, messageID, reactionID, actorID int) error {
	re, err := s.store.GetReactionByID(ctx, reactionID)
	if err != nil {
		return err
	}
	if re == nil || re.MessageID != messageID {
		return apperr.NotFound("reaction not found")
	}
	if re.UserID != actorID {
		return apperr.Forbidden("only the reactor can remove a reaction")
	}
	return s.store.DeleteReaction(ctx, re.ID)
}

func (s *Service) ListReactions(ctx context.Context, messageID, actorID int) ([]Reaction, error) {
	if _, err := s.messageForActor(ctx, messageID, actorID); err != nil {
		return nil, err
	}
	res, err := s.store.ListReactions(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = []Reaction{}
	}
	return res, nil
}
