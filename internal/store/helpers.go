package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/estudiodigital/contabot/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// limitOrMax maps a non-positive limit to a large cap for LIMIT clauses.
func limitOrMax(limit int) int {
	if limit <= 0 {
		return 1000
	}
	return limit
}

// DetectDSNType reports "postgres" for PostgreSQL connection strings and
// "sqlite" otherwise (file paths).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// scanMessage scans a Message from sql.Rows.
func scanMessage(rows *sql.Rows) (Message, error) {
	var m Message
	var status, remoteID sql.NullString
	err := rows.Scan(&m.ID, &m.ConversationID, &m.Direction, &m.Body, &status, &remoteID, &m.CreatedAt)
	if err != nil {
		return m, fmt.Errorf("scan message failed: %w", err)
	}
	m.Status = models.DeliveryStatus(status.String)
	m.RemoteID = remoteID.String
	return m, nil
}

// scanCliente scans a Cliente from a single sql.Row.
func scanCliente(row *sql.Row) (models.Cliente, error) {
	var c models.Cliente
	var categoria, plan, estado sql.NullString
	err := row.Scan(&c.Cuit, &c.Nombre, &categoria, &c.DeudaHonorarios, &plan, &estado)
	if err != nil {
		return c, err
	}
	c.CategoriaFiscal = categoria.String
	c.PlanPagos = plan.String
	c.EstadoGeneral = estado.String
	return c, nil
}

// scanOutboxMessage scans an OutboxMessage from sql.Rows.
func scanOutboxMessage(rows *sql.Rows) (OutboxMessage, error) {
	var m OutboxMessage
	var messageID, text, payloadJSON, idempotencyKey, remoteID, lastError sql.NullString
	var nextAttemptAt, sentAt sql.NullTime
	err := rows.Scan(
		&m.ID, &m.ConversationID, &messageID, &m.Phone, &m.Kind, &text, &payloadJSON,
		&m.Status, &m.Tries, &idempotencyKey, &nextAttemptAt, &remoteID, &lastError,
		&m.CreatedAt, &sentAt,
	)
	if err != nil {
		return m, fmt.Errorf("scan outbox message failed: %w", err)
	}
	m.MessageID = messageID.String
	m.Text = text.String
	m.PayloadJSON = payloadJSON.String
	m.IdempotencyKey = idempotencyKey.String
	m.RemoteID = remoteID.String
	m.LastError = lastError.String
	if nextAttemptAt.Valid {
		m.NextAttemptAt = &nextAttemptAt.Time
	}
	if sentAt.Valid {
		m.SentAt = &sentAt.Time
	}
	return m, nil
}
