// Package store provides the OutboxRepo interface and model for restart-safe outgoing sends.
package store

import (
	"time"
)

// OutboxStatus represents the lifecycle state of an outbox record.
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	OutboxStatusSent    OutboxStatus = "sent"
	OutboxStatusFailed  OutboxStatus = "failed"
)

// OutboxMaxTries is the number of delivery attempts before a record is
// marked failed (terminal).
const OutboxMaxTries = 5

// Outbox message kinds.
const (
	OutboxKindText = "text"
	OutboxKindMenu = "menu"
)

// OutboxMessage represents a durable outgoing message record. Records are
// never deleted; they transition pending -> sent or pending -> failed and
// remain as an audit trail.
type OutboxMessage struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversation_id"`
	MessageID      string       `json:"message_id,omitempty"` // originating conversation message row
	Phone          string       `json:"phone"`
	Kind           string       `json:"kind"` // text | menu
	Text           string       `json:"text,omitempty"`
	PayloadJSON    string       `json:"payload_json,omitempty"` // interactive payload for menu kind
	Status         OutboxStatus `json:"status"`
	Tries          int          `json:"tries"`
	IdempotencyKey string       `json:"idempotency_key,omitempty"`
	NextAttemptAt  *time.Time   `json:"next_attempt_at,omitempty"`
	RemoteID       string       `json:"remote_id,omitempty"`
	LastError      string       `json:"last_error,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	SentAt         *time.Time   `json:"sent_at,omitempty"`
}

// OutboxRepo defines the interface for durable outbox persistence.
type OutboxRepo interface {
	// EnqueueOutbox inserts a new pending outbox record and returns its id.
	// ID, Status, Tries and CreatedAt are filled by the repository.
	EnqueueOutbox(msg OutboxMessage) (string, error)

	// ListPendingOutbox returns up to limit records with status pending and
	// tries < OutboxMaxTries, oldest created_at first. Records whose
	// next_attempt_at is still in the future are included; the worker skips
	// them until due.
	ListPendingOutbox(limit int) ([]OutboxMessage, error)

	// FindSentByIdempotencyKey returns a sent record matching the
	// (conversationID, key) pair, or nil if none exists.
	FindSentByIdempotencyKey(conversationID, key string) (*OutboxMessage, error)

	// MarkOutboxSent marks a record as sent, recording the remote id and
	// the sent timestamp.
	MarkOutboxSent(id, remoteID string) error

	// MarkOutboxFailed records a failed attempt. tries is the new attempt
	// count; when terminal is true the record transitions to failed and is
	// never retried, otherwise it stays pending with nextAttemptAt gating
	// the earliest retry.
	MarkOutboxFailed(id, errMsg string, tries int, nextAttemptAt time.Time, terminal bool) error
}
