// Package store provides storage backends for contabot.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/estudiodigital/contabot/internal/models"
	"github.com/estudiodigital/contabot/internal/util"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore is a Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open PostgreSQL database", "error", err)
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres database: %w", err)
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		db.Close()
		slog.Error("Failed to apply PostgreSQL migrations", "error", err)
		return nil, fmt.Errorf("failed to apply postgres migrations: %w", err)
	}

	slog.Info("PostgresStore initialized")
	return &PostgresStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) GetConversationByPhone(phone string) (*Conversation, error) {
	row := s.db.QueryRow(
		`SELECT id, phone, created_at, last_message_at FROM conversations WHERE phone = $1`,
		phone,
	)
	var c Conversation
	err := row.Scan(&c.ID, &c.Phone, &c.CreatedAt, &c.LastMessageAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation by phone failed: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) CreateConversation(phone string) (*Conversation, error) {
	if existing, err := s.GetConversationByPhone(phone); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}
	now := time.Now()
	c := Conversation{ID: uuid.NewString(), Phone: phone, CreatedAt: now, LastMessageAt: now}
	_, err := s.db.Exec(
		`INSERT INTO conversations (id, phone, created_at, last_message_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (phone) DO NOTHING`,
		c.ID, c.Phone, c.CreatedAt, c.LastMessageAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create conversation failed: %w", err)
	}
	// Re-read in case a concurrent insert won the conflict.
	return s.GetConversationByPhone(phone)
}

func (s *PostgresStore) AppendMessage(msg Message) error {
	if msg.ID == "" {
		msg.ID = util.GenerateMessageID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO messages (id, conversation_id, direction, body, status, remote_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, msg.ConversationID, msg.Direction, msg.Body,
		nilIfEmpty(string(msg.Status)), nilIfEmpty(msg.RemoteID), msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append message failed: %w", err)
	}
	_, err = s.db.Exec(
		`UPDATE conversations SET last_message_at = $1 WHERE id = $2`,
		msg.CreatedAt, msg.ConversationID,
	)
	if err != nil {
		return fmt.Errorf("update conversation timestamp failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateMessageDelivery(id string, status models.DeliveryStatus, remoteID string) error {
	_, err := s.db.Exec(
		`UPDATE messages SET status = $1, remote_id = COALESCE($2, remote_id) WHERE id = $3`,
		string(status), nilIfEmpty(remoteID), id,
	)
	if err != nil {
		return fmt.Errorf("update message delivery failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListMessages(conversationID string, limit int) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT id, conversation_id, direction, body, status, remote_id, created_at
		 FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC LIMIT $2`,
		conversationID, limitOrMax(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list messages failed: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages iteration failed: %w", err)
	}
	return msgs, nil
}

func (s *PostgresStore) GetClienteByCuit(cuit string) (models.ClienteLookup, error) {
	row := s.db.QueryRow(
		`SELECT cuit, nombre, categoria_fiscal, deuda_honorarios, plan_pagos, estado_general
		 FROM clientes WHERE cuit = $1`,
		cuit,
	)
	c, err := scanCliente(row)
	if err == sql.ErrNoRows {
		return models.ClienteLookup{Exists: false}, nil
	}
	if err != nil {
		return models.ClienteLookup{}, fmt.Errorf("get cliente by cuit failed: %w", err)
	}
	return models.ClienteLookup{Exists: true, Data: &c}, nil
}

func (s *PostgresStore) UpsertCliente(c models.Cliente) error {
	_, err := s.db.Exec(
		`INSERT INTO clientes (cuit, nombre, categoria_fiscal, deuda_honorarios, plan_pagos, estado_general)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (cuit) DO UPDATE SET
		   nombre = EXCLUDED.nombre,
		   categoria_fiscal = EXCLUDED.categoria_fiscal,
		   deuda_honorarios = EXCLUDED.deuda_honorarios,
		   plan_pagos = EXCLUDED.plan_pagos,
		   estado_general = EXCLUDED.estado_general`,
		c.Cuit, c.Nombre, nilIfEmpty(c.CategoriaFiscal), c.DeudaHonorarios,
		nilIfEmpty(c.PlanPagos), nilIfEmpty(c.EstadoGeneral),
	)
	if err != nil {
		return fmt.Errorf("upsert cliente failed: %w", err)
	}
	return nil
}
