package chat

import (
	"context"
	"database/sql"
	"time"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const conversationCols = `id, user_low_id, user_high_id, requester_id, status, created_at, accepted_at`

func scanConversation(row *sql.Row) (*Conversation, error) {
	c := &Conversation{}
	err := row.Scan(&c.ID, &c.UserLowID, &c.UserHighID, &c.RequesterID, &c.Status, &c.CreatedAt, &c.AcceptedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func (r *Repository) GetConversation(ctx context.Context, id int) (*Conversation, error) {
	query := `SELECT ` + conversationCols + ` FROM conversations WHERE id = $1`
	return scanConversation(r.db.QueryRowContext(ctx, query, id))
}

func (r *Repository) FindConversationByPair(ctx context.Context, lowID, highID int) (*Conversation, error) {
	query := `SELECT ` + conversationCols + ` FROM conversations WHERE user_low_id = $1 AND user_high_id = $2`
	return scanConversation(r.db.QueryRowContext(ctx, query, lowID, highID))
}

func (r *Repository) CreateConversation(ctx context.Context, c *Conversation) error {
	query := `INSERT INTO conversations (user_low_id, user_high_id, requester_id, status)
              VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query, c.UserLowID, c.UserHighID, c.RequesterID, c.Status).
		Scan(&c.ID, &c.CreatedAt)
}

func (r *Repository) UpdateConversationStatus(ctx context.Context, id int, status string, acceptedAt *time.Time) error {
	query := `UPDATE conversations SET status = $2, accepted_at = COALESCE($3, accepted_at) WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, status, acceptedAt)
	return err
}

func (r *Repository) DeleteConversation(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	return err
}

// ListConversations annotates each conversation with the other side's
// profile, the caller's unread count, and the latest message still visible
// to the caller (their own hide flag respected).
func (r *Repository) ListConversations(ctx context.Context, userID int) ([]ConversationSummary, error) {
	query := `
        SELECT c.id, c.user_low_id, c.user_high_id, c.requester_id, c.status, c.created_at, c.accepted_at,
               u.id, u.name, u.email,
               (SELECT COUNT(*) FROM messages m
                WHERE m.conversation_id = c.id AND m.recipient_id = $1 AND NOT m.is_read
                  AND NOT m.deleted_for_all AND NOT m.deleted_by_recipient),
               COALESCE((SELECT m.content FROM messages m
                WHERE m.conversation_id = c.id
                  AND NOT ((m.sender_id = $1 AND m.deleted_by_sender) OR
                           (m.recipient_id = $1 AND m.deleted_by_recipient))
                ORDER BY m.created_at DESC LIMIT 1), '')
        FROM conversations c
        JOIN users u ON u.id = CASE WHEN c.user_low_id = $1 THEN c.user_high_id ELSE c.user_low_id END
        WHERE c.user_low_id = $1 OR c.user_high_id = $1
        ORDER BY c.created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ConversationSummary
	for rows.Next() {
		var s ConversationSummary
		if err := rows.Scan(&s.ID, &s.UserLowID, &s.UserHighID, &s.RequesterID, &s.Status, &s.CreatedAt, &s.AcceptedAt,
			&s.OtherID, &s.OtherName, &s.OtherEmail, &s.UnreadCount, &s.LastMessage); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const messageCols = `id, conversation_id, sender_id, recipient_id, content, content_type,
    COALESCE(file_name, ''), COALESCE(file_size, 0), COALESCE(storage_key, ''),
    reply_to_id, delivery_status, is_read, read_at, is_edited, updated_at,
    deleted_by_sender, deleted_by_recipient, deleted_for_all, created_at`

func scanMessage(scan func(dest ...any) error) (*Message, error) {
	m := &Message{}
	err := scan(&m.ID, &m.ConversationID, &m.SenderID, &m.RecipientID, &m.Content, &m.ContentType,
		&m.FileName, &m.FileSize, &m.StorageKey,
		&m.ReplyToID, &m.DeliveryStatus, &m.IsRead, &m.ReadAt, &m.IsEdited, &m.UpdatedAt,
		&m.DeletedBySender, &m.DeletedByRecipient, &m.DeletedForAll, &m.CreatedAt)
	return m, err
}

func (r *Repository) GetMessage(ctx context.Context, id int) (*Message, error) {
	query := `SELECT ` + messageCols + ` FROM messages WHERE id = $1`
	m, err := scanMessage(r.db.QueryRowContext(ctx, query, id).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// CreateMessage re-checks the conversation status inside the insert so a
// concurrent reject between the service's precondition check and this
// write cannot slip a message into a non-accepted conversation.
func (r *Repository) CreateMessage(ctx context.Context, m *Message) error {
	query := `
        INSERT INTO messages (conversation_id, sender_id, recipient_id, content, content_type,
                              file_name, file_size, storage_key, reply_to_id, delivery_status)
        SELECT $1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, 0), NULLIF($8, ''), $9, $10
        WHERE EXISTS (SELECT 1 FROM conversations WHERE id = $1 AND status = 'accepted')
        RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		m.ConversationID, m.SenderID, m.RecipientID, m.Content, m.ContentType,
		m.FileName, m.FileSize, m.StorageKey, m.ReplyToID, m.DeliveryStatus).
		Scan(&m.ID, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return ErrConversationNotAccepted
	}
	return err
}

func (r *Repository) UpdateMessageContent(ctx context.Context, id int, content string, editedAt time.Time) error {
	query := `UPDATE messages SET content = $2, is_edited = TRUE, updated_at = $3 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, content, editedAt)
	return err
}

func (r *Repository) SetDeliveryStatus(ctx context.Context, id int, status string, readAt *time.Time) error {
	query := `UPDATE messages SET delivery_status = $2,
                  is_read = is_read OR $2 = 'read',
                  read_at = COALESCE($3, read_at)
              WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, status, readAt)
	return err
}

func (r *Repository) MarkConversationRead(ctx context.Context, conversationID, userID int, at time.Time) error {
	query := `UPDATE messages SET delivery_status = 'read', is_read = TRUE, read_at = $3
              WHERE conversation_id = $1 AND recipient_id = $2 AND NOT is_read`
	_, err := r.db.ExecContext(ctx, query, conversationID, userID, at)
	return err
}

func (r *Repository) SetHideFlag(ctx context.Context, id int, forSender bool) error {
	col := "deleted_by_recipient"
	if forSender {
		col = "deleted_by_sender"
	}
	_, err := r.db.ExecContext(ctx, `UPDATE messages SET `+col+` = TRUE WHERE id = $1`, id)
	return err
}

// WipeMessage performs the content-destructive delete-for-everyone.
func (r *Repository) WipeMessage(ctx context.Context, id int) error {
	query := `UPDATE messages SET content = $2, deleted_for_all = TRUE,
                  content_type = 'text', file_name = NULL, file_size = NULL, storage_key = NULL
              WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, DeletedPlaceholder)
	return err
}

// ListMessages returns the conversation log the viewer may see, oldest
// first. Messages hidden by the viewer's own flag are excluded; the other
// side's flag is never consulted and never exposed.
func (r *Repository) ListMessages(ctx context.Context, conversationID, viewerID int) ([]*Message, error) {
	query := `SELECT ` + messageCols + ` FROM messages
              WHERE conversation_id = $1
                AND NOT ((sender_id = $2 AND deleted_by_sender) OR
                         (recipient_id = $2 AND deleted_by_recipient))
              ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, conversationID, viewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		m, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repository) GetReaction(ctx context.Context, messageID, userID int, emoji string) (*Reaction, error) {
	re := &Reaction{}
	query := `SELECT id, message_id, user_id, emoji, created_at FROM message_reactions
              WHERE message_id = $1 AND user_id = $2 AND emoji = $3`
	err := r.db.QueryRowContext(ctx, query, messageID, userID, emoji).
		Scan(&re.ID, &re.MessageID, &re.UserID, &re.Emoji, &re.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return re, nil
}

func (r *Repository) GetReactionByID(ctx context.Context, id int) (*Reaction, error) {
	re := &Reaction{}
	query := `SELECT id, message_id, user_id, emoji, created_at FROM message_reactions WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&re.ID, &re.MessageID, &re.UserID, &re.Emoji, &re.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return re, nil
}

// InsertReaction is an idempotent upsert: a concurrent duplicate insert
// lands on the unique (message, user, emoji) constraint and reports
// inserted=false instead of failing.
func (r *Repository) InsertReaction(ctx context.Context, re *Reaction) (bool, error) {
	query := `INSERT INTO message_reactions (message_id, user_id, emoji)
              VALUES ($1, $2, $3)
              ON CONFLICT (message_id, user_id, emoji) DO NOTHING
              RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, re.MessageID, re.UserID, re.Emoji).
		Scan(&re.ID, &re.CreatedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repository) DeleteReaction(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM message_reactions WHERE id = $1`, id)
	return err
}

func (r *Repository) ListReactions(ctx context.Context, messageID int) ([]Reaction, error) {
	query := `SELECT id, message_id, user_id, emoji, created_at FROM message_reactions
              WHERE message_id = $1 ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reaction
	for rows.Next() {
		var re Reaction
		if err := rows.Scan(&re.ID, &re.MessageID, &re.UserID, &re.Emoji, &re.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, rows.Err()
}
