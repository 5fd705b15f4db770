package notify

import (
	"context"
	"database/sql"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, ev Event) error {
	query := `INSERT INTO notifications (user_id, title, body, type, conversation_id, group_id, message_id)
              VALUES ($1, $2, $3, $4, NULLIF($5, 0), NULLIF($6, 0), NULLIF($7, 0))`
	_, err := r.db.ExecContext(ctx, query,
		ev.UserID, ev.Title, ev.Body, ev.Type, ev.ConversationID, ev.GroupID, ev.MessageID)
	return err
}

func (r *Repository) ListForUser(ctx context.Context, userID int) ([]Notification, error) {
	query := `
        SELECT id, user_id, title, body, type,
               COALESCE(conversation_id, 0), COALESCE(group_id, 0), COALESCE(message_id, 0),
               is_read, created_at
        FROM notifications
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT 100`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.Type,
			&n.ConversationID, &n.GroupID, &n.MessageID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *Repository) MarkRead(ctx context.Context, userID, notificationID int) error {
	query := `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`
	_, err := r.db.ExecContext(ctx, query, notificationID, userID)
	return err
}
