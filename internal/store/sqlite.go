// Package store provides storage backends for contabot.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/estudiodigital/contabot/internal/models"
	"github.com/estudiodigital/contabot/internal/util"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is a Store backed by a local SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite database", "error", err)
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		db.Close()
		slog.Error("Failed to apply SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to apply sqlite migrations: %w", err)
	}

	slog.Info("SQLiteStore initialized", "dsn", dsn)
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetConversationByPhone(phone string) (*Conversation, error) {
	row := s.db.QueryRow(
		`SELECT id, phone, created_at, last_message_at FROM conversations WHERE phone = ?`,
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

func (s *SQLiteStore) CreateConversation(phone string) (*Conversation, error) {
	if existing, err := s.GetConversationByPhone(phone); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}
	now := time.Now()
	c := Conversation{ID: uuid.NewString(), Phone: phone, CreatedAt: now, LastMessageAt: now}
	_, err := s.db.Exec(
		`INSERT INTO conversations (id, phone, created_at, last_message_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Phone, c.CreatedAt, c.LastMessageAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create conversation failed: %w", err)
	}
	slog.Debug("SQLiteStore.CreateConversation", "id", c.ID, "phone", phone)
	return &c, nil
}

func (s *SQLiteStore) AppendMessage(msg Message) error {
	if msg.ID == "" {
		msg.ID = util.GenerateMessageID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO messages (id, conversation_id, direction, body, status, remote_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.Direction, msg.Body,
		nilIfEmpty(string(msg.Status)), nilIfEmpty(msg.RemoteID), msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append message failed: %w", err)
	}
	_, err = s.db.Exec(
		`UPDATE conversations SET last_message_at = ? WHERE id = ?`,
		msg.CreatedAt, msg.ConversationID,
	)
	if err != nil {
		return fmt.Errorf("update conversation timestamp failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateMessageDelivery(id string, status models.DeliveryStatus, remoteID string) error {
	_, err := s.db.Exec(
		`UPDATE messages SET status = ?, remote_id = COALESCE(?, remote_id) WHERE id = ?`,
		string(status), nilIfEmpty(remoteID), id,
	)
	if err != nil {
		return fmt.Errorf("update message delivery failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListMessages(conversationID string, limit int) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT id, conversation_id, direction, body, status, remote_id, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY created_at ASC LIMIT ?`,
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

func (s *SQLiteStore) GetClienteByCuit(cuit string) (models.ClienteLookup, error) {
	row := s.db.QueryRow(
		`SELECT cuit, nombre, categoria_fiscal, deuda_honorarios, plan_pagos, estado_general
		 FROM clientes WHERE cuit = ?`,
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

func (s *SQLiteStore) UpsertCliente(c models.Cliente) error {
	_, err := s.db.Exec(
		`INSERT INTO clientes (cuit, nombre, categoria_fiscal, deuda_honorarios, plan_pagos, estado_general)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (cuit) DO UPDATE SET
		   nombre = excluded.nombre,
		   categoria_fiscal = excluded.categoria_fiscal,
		   deuda_honorarios = excluded.deuda_honorarios,
		   plan_pagos = excluded.plan_pagos,
		   estado_general = excluded.estado_general`,
		c.Cuit, c.Nombre, nilIfEmpty(c.CategoriaFiscal), c.DeudaHonorarios,
		nilIfEmpty(c.PlanPagos), nilIfEmpty(c.EstadoGeneral),
	)
	if err != nil {
		return fmt.Errorf("upsert cliente failed: %w", err)
	}
	return nil
}
