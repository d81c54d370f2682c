package archive

import (
	"time"

	"chatlink/internal/store"
)

// UpsertChat inserts or updates a chat record.
func (db *DB) UpsertChat(c *store.Chat) error {
	preview := ""
	lastAt := int64(0)
	if c.LastMessage != nil {
		preview = c.LastMessage.Content
		lastAt = c.LastMessage.CreatedAt
	}
	_, err := db.Exec(`
		INSERT INTO chats (id, kind, name, unread_count, last_message_preview, last_message_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			name = excluded.name,
			unread_count = excluded.unread_count,
			last_message_preview = excluded.last_message_preview,
			last_message_at = excluded.last_message_at,
			updated_at = excluded.updated_at`,
		c.ID, string(c.Kind), c.Name, c.Unread, preview, lastAt, time.Now().UnixMilli())
	return err
}

// SetChatUnread overwrites a chat's mirrored unread counter.
func (db *DB) SetChatUnread(chatID string, unread int) error {
	_, err := db.Exec(`UPDATE chats SET unread_count = ?, updated_at = ? WHERE id = ?`,
		unread, time.Now().UnixMilli(), chatID)
	return err
}

// ListChats returns mirrored chats sorted by last message timestamp
// descending, shaped for store seeding.
func (db *DB) ListChats(limit int) ([]store.Chat, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, kind, name, unread_count, last_message_preview, last_message_at
		FROM chats
		ORDER BY last_message_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chats []store.Chat
	for rows.Next() {
		var (
			c       store.Chat
			kind    string
			preview string
			lastAt  int64
		)
		if err := rows.Scan(&c.ID, &kind, &c.Name, &c.Unread, &preview, &lastAt); err != nil {
			return nil, err
		}
		c.Kind = store.ChatKind(kind)
		if preview != "" || lastAt != 0 {
			c.LastMessage = &store.Message{ChatID: c.ID, Content: preview, CreatedAt: lastAt}
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}
