// Package store provides storage backends for contabot.
//
// It includes an in-memory store for tests and development, and SQLite and
// PostgreSQL backed stores for deployment. All backends persist conversations,
// their messages, the client directory and the outbox queue.
package store

import (
	"time"

	"github.com/estudiodigital/contabot/internal/models"
)

// Message direction constants.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Conversation is a per-phone conversation record.
type Conversation struct {
	ID            string    `json:"id"`
	Phone         string    `json:"phone"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// Message is a single persisted conversation message.
type Message struct {
	ID             string                `json:"id"`
	ConversationID string                `json:"conversation_id"`
	Direction      string                `json:"direction"` // in | out
	Body           string                `json:"body"`
	Status         models.DeliveryStatus `json:"status,omitempty"` // outbound only
	RemoteID       string                `json:"remote_id,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
}

// ConversationRepo persists conversations and their messages.
type ConversationRepo interface {
	// GetConversationByPhone returns the conversation for a phone number,
	// or nil if none exists.
	GetConversationByPhone(phone string) (*Conversation, error)

	// CreateConversation creates a new conversation for a phone number.
	CreateConversation(phone string) (*Conversation, error)

	// AppendMessage appends a message to a conversation and refreshes the
	// conversation's last-message timestamp.
	AppendMessage(msg Message) error

	// UpdateMessageDelivery updates the delivery status (and remote id, if
	// non-empty) of an outbound message row.
	UpdateMessageDelivery(id string, status models.DeliveryStatus, remoteID string) error

	// ListMessages returns up to limit messages of a conversation, oldest first.
	ListMessages(conversationID string, limit int) ([]Message, error)
}

// ClienteRepo is the client directory lookup.
type ClienteRepo interface {
	// GetClienteByCuit looks up a client record by CUIT (digits only).
	GetClienteByCuit(cuit string) (models.ClienteLookup, error)

	// UpsertCliente inserts or replaces a client directory record.
	UpsertCliente(c models.Cliente) error
}

// Store combines every repository contract plus lifecycle management.
type Store interface {
	ConversationRepo
	ClienteRepo
	OutboxRepo
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database connection string (file path for SQLite,
// connection URL for PostgreSQL).
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}
