package group

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

// CreateGroup inserts the group and its initial member rows in one
// transaction, so a failed member insert never leaves a half-created group.
func (r *Repository) CreateGroup(ctx context.Context, g *Group, members []Member) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO groups (name, creator_id) VALUES ($1, $2) RETURNING id, created_at`,
		g.Name, g.CreatorID).Scan(&g.ID, &g.CreatedAt)
	if err != nil {
		return err
	}

	for i := range members {
		members[i].GroupID = g.ID
		_, err = tx.ExecContext(ctx,
			`INSERT INTO group_members (group_id, user_id, role) VALUES ($1, $2, $3)`,
			g.ID, members[i].UserID, members[i].Role)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repository) GetGroup(ctx context.Context, id int) (*Group, error) {
	g := &Group{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, creator_id, created_at FROM groups WHERE id = $1`, id).
		Scan(&g.ID, &g.Name, &g.CreatorID, &g.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return g, nil
}

func (r *Repository) ListGroupsForUser(ctx context.Context, userID int) ([]Group, error) {
	query := `
        SELECT g.id, g.name, g.creator_id, g.created_at
        FROM groups g
        JOIN group_members gm ON gm.group_id = g.id
        WHERE gm.user_id = $1
        ORDER BY g.created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatorID, &g.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *Repository) GetMember(ctx context.Context, groupID, userID int) (*Member, error) {
	m := &Member{}
	err := r.db.QueryRowContext(ctx,
		`SELECT group_id, user_id, role, joined_at FROM group_members WHERE group_id = $1 AND user_id = $2`,
		groupID, userID).Scan(&m.GroupID, &m.UserID, &m.Role, &m.JoinedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

func (r *Repository) ListMembers(ctx context.Context, groupID int) ([]Member, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT group_id, user_id, role, joined_at FROM group_members WHERE group_id = $1 ORDER BY joined_at ASC`,
		groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.GroupID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AddMember tolerates an existing row: re-adding a member is a no-op.
func (r *Repository) AddMember(ctx context.Context, m Member) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id, role) VALUES ($1, $2, $3)
         ON CONFLICT (group_id, user_id) DO NOTHING`,
		m.GroupID, m.UserID, m.Role)
	return err
}

func (r *Repository) RemoveMember(ctx context.Context, groupID, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	return err
}

func (r *Repository) UpdateMemberRole(ctx context.Context, groupID, userID int, role string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE group_members SET role = $3 WHERE group_id = $1 AND user_id = $2`, groupID, userID, role)
	return err
}

func (r *Repository) CreateMessage(ctx context.Context, m *Message) error {
	return r.db.QueryRowContext(ctx,
		`INSERT INTO group_messages (group_id, sender_id, content, reply_to_id)
         VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		m.GroupID, m.SenderID, m.Content, m.ReplyToID).Scan(&m.ID, &m.CreatedAt)
}

func (r *Repository) GetMessage(ctx context.Context, id int) (*Message, error) {
	m := &Message{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, group_id, sender_id, content, reply_to_id, created_at FROM group_messages WHERE id = $1`, id).
		Scan(&m.ID, &m.GroupID, &m.SenderID, &m.Content, &m.ReplyToID, &m.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

func (r *Repository) ListMessages(ctx context.Context, groupID int) ([]*Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, group_id, sender_id, content, reply_to_id, created_at
         FROM group_messages WHERE group_id = $1 ORDER BY created_at ASC`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		m := &Message{}
		if err := rows.Scan(&m.ID, &m.GroupID, &m.SenderID, &m.Content, &m.ReplyToID, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// InsertReadReceipts marks every message in the group read for userID in
// one statement. ON CONFLICT DO NOTHING makes the call safely re-runnable:
// receipts that already exist are skipped, never an error.
func (r *Repository) InsertReadReceipts(ctx context.Context, groupID, userID int, at time.Time) error {
	query := `
        INSERT INTO group_message_reads (message_id, user_id, read_at)
        SELECT id, $2, $3 FROM group_messages WHERE group_id = $1
        ON CONFLICT (message_id, user_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, groupID, userID, at)
	return err
}

func (r *Repository) ListReadReceipts(ctx context.Context, messageID int) ([]ReadReceipt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT message_id, user_id, read_at FROM group_message_reads WHERE message_id = $1 ORDER BY read_at ASC`,
		messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReadReceipt
	for rows.Next() {
		var rr ReadReceipt
		if err := rows.Scan(&rr.MessageID, &rr.UserID, &rr.ReadAt); err != nil {
			return nil, err
		}
		out = append(out, rr)
	}
	return out, rows.Err()
}
