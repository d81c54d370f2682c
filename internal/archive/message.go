package archive

import (
	"chatlink/internal/store"
)

// UpsertMessage inserts or updates a message, idempotent on (chat_id,
// msg_id). Provisional entries without a server id are skipped; they reach
// the mirror once confirmed.
func (db *DB) UpsertMessage(m *store.Message) error {
	if m.ID == "" {
		return nil
	}
	_, err := db.Exec(`
		INSERT INTO messages (chat_id, msg_id, sender_id, sender_name, body, message_type, deleted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id, msg_id) DO UPDATE SET
			sender_name = excluded.sender_name,
			body = excluded.body,
			deleted = excluded.deleted`,
		m.ChatID, m.ID, m.Sender.ID, m.Sender.Name, m.Content, string(m.Kind), m.Deleted, m.CreatedAt)
	return err
}

// DeleteMessage removes a mirrored message.
func (db *DB) DeleteMessage(chatID, msgID string) error {
	_, err := db.Exec(`DELETE FROM messages WHERE chat_id = ? AND msg_id = ?`, chatID, msgID)
	return err
}

// ListMessages returns mirrored messages for a chat, oldest first.
func (db *DB) ListMessages(chatID string, limit int) ([]store.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT chat_id, msg_id, sender_id, sender_name, body, message_type, deleted, created_at
		FROM messages
		WHERE chat_id = ?
		ORDER BY created_at ASC
		LIMIT ?`, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []store.Message
	for rows.Next() {
		var (
			m    store.Message
			kind string
		)
		if err := rows.Scan(&m.ChatID, &m.ID, &m.Sender.ID, &m.Sender.Name, &m.Content, &kind, &m.Deleted, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Kind = store.MessageKind(kind)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
