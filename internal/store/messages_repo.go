package store

import (
	"context"
	"database/sql"

	"github.com/therenovatio/teleton/internal/domain"
	"github.com/therenovatio/teleton/internal/errkind"
)

// AppendMessage inserts one transcript message and bumps the owning
// session's message_count and updated_at in the same transaction.
func (s *Store) AppendMessage(ctx context.Context, msg domain.Message) (string, error) {
	if msg.ID == "" {
		msg.ID = newID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now()
	}
	var embedding []byte
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO tg_messages
			(id, chat_id, sender_id, role, text, tool_calls, tool_result_for, embedding, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			msg.ID, msg.ChatID, msg.Sender, string(msg.Role), msg.Text, msg.ToolCalls,
			msg.ToolResultFor, embedding, msg.Timestamp)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE sessions SET message_count = message_count + 1,
			updated_at = ? WHERE chat_id = ?`, now(), msg.ChatID)
		return err
	})
	if err != nil {
		return "", errkind.New(errkind.Storage, "append message", err)
	}
	return msg.ID, nil
}

// GetHistory returns the most recent limit messages for a chat in
// chronological order (oldest first), the shape the turn loop needs
// for context hydration.
func (s *Store) GetHistory(ctx context.Context, chatID string, limit int) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, chat_id, sender_id, role, text, tool_calls,
		tool_result_for, timestamp FROM tg_messages WHERE chat_id = ?
		ORDER BY timestamp DESC LIMIT ?`, chatID, limit)
	if err != nil {
		return nil, errkind.New(errkind.Storage, "query history", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		var role string
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Sender, &role, &m.Text, &m.ToolCalls,
			&m.ToolResultFor, &m.Timestamp); err != nil {
			return nil, errkind.New(errkind.Storage, "scan message", err)
		}
		m.Role = domain.Role(role)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errkind.New(errkind.Storage, "iterate history", err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// SearchMessages runs a BM25 full-text query over a chat's transcript,
// used by the retrieval layer to pull relevant prior turns into
// context beyond the raw recency window.
func (s *Store) SearchMessages(ctx context.Context, chatID, query string, limit int) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT m.id, m.chat_id, m.sender_id, m.role, m.text,
		m.tool_calls, m.tool_result_for, m.timestamp
		FROM tg_messages_fts f
		JOIN tg_messages m ON m.rowid = f.rowid
		WHERE f.tg_messages_fts MATCH ? AND m.chat_id = ?
		ORDER BY bm25(f.tg_messages_fts) LIMIT ?`, query, chatID, limit)
	if err != nil {
		return nil, errkind.New(errkind.Storage, "search messages", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		var role string
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Sender, &role, &m.Text, &m.ToolCalls,
			&m.ToolResultFor, &m.Timestamp); err != nil {
			return nil, errkind.New(errkind.Storage, "scan message", err)
		}
		m.Role = domain.Role(role)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
