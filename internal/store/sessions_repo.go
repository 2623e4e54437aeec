package store

import (
	"context"
	"database/sql"

	"github.com/therenovatio/teleton/internal/domain"
	"github.com/therenovatio/teleton/internal/errkind"
)

// GetOrCreateSession returns the session for chatID, creating an empty
// one if none exists yet.
func (s *Store) GetOrCreateSession(ctx context.Context, chatID string) (domain.Session, error) {
	sess, err := s.GetSessionByChatID(ctx, chatID)
	if err == nil {
		return sess, nil
	}
	if err != sql.ErrNoRows {
		return domain.Session{}, errkind.New(errkind.Storage, "lookup session", err)
	}

	now := now()
	sess = domain.Session{
		ID:        newID(),
		ChatID:    chatID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.withWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO sessions
			(id, chat_id, created_at, updated_at, message_count, context_tokens, model, provider, last_reset_date, summary)
			VALUES (?, ?, ?, ?, 0, 0, '', '', '', '')
			ON CONFLICT(chat_id) DO NOTHING`,
			sess.ID, sess.ChatID, sess.CreatedAt, sess.UpdatedAt)
		return err
	})
	if err != nil {
		return domain.Session{}, errkind.New(errkind.Storage, "create session", err)
	}
	return s.GetSessionByChatID(ctx, chatID)
}

// GetSessionByChatID looks up a session by its external chat key.
func (s *Store) GetSessionByChatID(ctx context.Context, chatID string) (domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, chat_id, created_at, updated_at, message_count,
		context_tokens, model, provider, last_reset_date, summary
		FROM sessions WHERE chat_id = ?`, chatID)
	return scanSession(row)
}

func scanSession(row *sql.Row) (domain.Session, error) {
	var sess domain.Session
	err := row.Scan(&sess.ID, &sess.ChatID, &sess.CreatedAt, &sess.UpdatedAt, &sess.MessageCount,
		&sess.ContextTokens, &sess.Model, &sess.Provider, &sess.LastResetDate, &sess.Summary)
	if err == sql.ErrNoRows {
		return domain.Session{}, err
	}
	if err != nil {
		return domain.Session{}, errkind.New(errkind.Storage, "scan session", err)
	}
	return sess, nil
}

// UpdateSession persists mutable session fields (counts, model,
// summary, reset date). ID and ChatID are not changed.
func (s *Store) UpdateSession(ctx context.Context, sess domain.Session) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at = ?, message_count = ?,
			context_tokens = ?, model = ?, provider = ?, last_reset_date = ?, summary = ?
			WHERE id = ?`,
			now(), sess.MessageCount, sess.ContextTokens, sess.Model, sess.Provider,
			sess.LastResetDate, sess.Summary, sess.ID)
		return err
	})
}

// DeleteSession removes a session and its messages.
func (s *Store) DeleteSession(ctx context.Context, chatID string) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tg_messages WHERE chat_id = ?`, chatID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE chat_id = ?`, chatID)
		return err
	})
}
