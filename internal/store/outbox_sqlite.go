package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/estudiodigital/contabot/internal/util"
)

func (s *SQLiteStore) EnqueueOutbox(msg OutboxMessage) (string, error) {
	id := util.GenerateOutboxID()
	now := time.Now()

	_, err := s.db.Exec(
		`INSERT INTO outbox_messages (id, conversation_id, message_id, phone, kind, text, payload_json, status, tries, idempotency_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 'pending', 0, ?, ?)`,
		id, msg.ConversationID, nilIfEmpty(msg.MessageID), msg.Phone, msg.Kind,
		nilIfEmpty(msg.Text), nilIfEmpty(msg.PayloadJSON), nilIfEmpty(msg.IdempotencyKey), now,
	)
	if err != nil {
		return "", fmt.Errorf("enqueue outbox failed: %w", err)
	}
	slog.Debug("SQLiteStore.EnqueueOutbox", "id", id, "conversationID", msg.ConversationID, "kind", msg.Kind)
	return id, nil
}

func (s *SQLiteStore) ListPendingOutbox(limit int) ([]OutboxMessage, error) {
	rows, err := s.db.Query(
		`SELECT id, conversation_id, message_id, phone, kind, text, payload_json, status, tries, idempotency_key, next_attempt_at, remote_id, last_error, created_at, sent_at
		 FROM outbox_messages WHERE status = 'pending' AND tries < ?
		 ORDER BY created_at ASC LIMIT ?`,
		OutboxMaxTries, limitOrMax(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list pending outbox failed: %w", err)
	}
	defer rows.Close()

	var msgs []OutboxMessage
	for rows.Next() {
		m, err := scanOutboxMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending outbox iteration failed: %w", err)
	}
	return msgs, nil
}

func (s *SQLiteStore) FindSentByIdempotencyKey(conversationID, key string) (*OutboxMessage, error) {
	if key == "" {
		return nil, nil
	}
	rows, err := s.db.Query(
		`SELECT id, conversation_id, message_id, phone, kind, text, payload_json, status, tries, idempotency_key, next_attempt_at, remote_id, last_error, created_at, sent_at
		 FROM outbox_messages WHERE conversation_id = ? AND idempotency_key = ? AND status = 'sent' LIMIT 1`,
		conversationID, key,
	)
	if err != nil {
		return nil, fmt.Errorf("find sent by idempotency key failed: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("find sent iteration failed: %w", err)
		}
		return nil, nil
	}
	m, err := scanOutboxMessage(rows)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *SQLiteStore) MarkOutboxSent(id, remoteID string) error {
	now := time.Now()
	_, err := s.db.Exec(
		`UPDATE outbox_messages SET status = 'sent', remote_id = ?, sent_at = ? WHERE id = ?`,
		nilIfEmpty(remoteID), now, id,
	)
	if err != nil {
		return fmt.Errorf("mark outbox sent failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) MarkOutboxFailed(id, errMsg string, tries int, nextAttemptAt time.Time, terminal bool) error {
	status := string(OutboxStatusPending)
	if terminal {
		status = string(OutboxStatusFailed)
	}
	_, err := s.db.Exec(
		`UPDATE outbox_messages SET status = ?, tries = ?, last_error = ?, next_attempt_at = ? WHERE id = ?`,
		status, tries, errMsg, nextAttemptAt, id,
	)
	if err != nil {
		return fmt.Errorf("mark outbox failed failed: %w", err)
	}
	return nil
}

// GetOutboxByID returns a single outbox record (used by tests and inspection tooling).
func (s *SQLiteStore) GetOutboxByID(id string) (*OutboxMessage, error) {
	rows, err := s.db.Query(
		`SELECT id, conversation_id, message_id, phone, kind, text, payload_json, status, tries, idempotency_key, next_attempt_at, remote_id, last_error, created_at, sent_at
		 FROM outbox_messages WHERE id = ?`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("get outbox by id failed: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, sql.ErrNoRows
	}
	m, err := scanOutboxMessage(rows)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
