// Package messaging defines the pluggable channel driver abstraction and the
// internal escalation notifier used to reach human operators.
package messaging

import (
	"context"

	"github.com/estudiodigital/contabot/internal/models"
)

// SendTextInput is the request for a single text delivery.
type SendTextInput struct {
	Phone          string `json:"phone"`
	Text           string `json:"text"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// SendTextResult is the driver-reported delivery outcome.
type SendTextResult struct {
	OK       bool   `json:"ok"`
	RemoteID string `json:"remote_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Sender is a pluggable channel driver (mock, whatsmeow, twilio).
type Sender interface {
	// SendText delivers a plain-text message. A driver-reported failure is
	// returned as a SendTextResult with OK false; an error return means the
	// attempt itself blew up. The worker treats both identically.
	SendText(ctx context.Context, in SendTextInput) (SendTextResult, error)

	// SendMenu delivers an interactive menu payload.
	SendMenu(ctx context.Context, phone string, menu models.Menu) (SendTextResult, error)
}
