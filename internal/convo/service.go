// Package convo is the conversation service: it persists inbound and outbound
// messages against per-phone conversations and enqueues outbound deliveries
// on the outbox for the delivery worker.
package convo

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/estudiodigital/contabot/internal/models"
	"github.com/estudiodigital/contabot/internal/store"
	"github.com/estudiodigital/contabot/internal/util"
)

// Service wraps the persistence repos consumed by the FSM engine and main loop.
type Service struct {
	store store.Store
}

// NewService creates a conversation service on top of a Store.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// EnsureConversation returns the conversation for a phone number, creating
// it if needed.
func (s *Service) EnsureConversation(phone string) (*store.Conversation, error) {
	conv, err := s.store.GetConversationByPhone(phone)
	if err != nil {
		return nil, fmt.Errorf("conversation lookup failed: %w", err)
	}
	if conv != nil {
		return conv, nil
	}
	conv, err = s.store.CreateConversation(phone)
	if err != nil {
		return nil, fmt.Errorf("conversation create failed: %w", err)
	}
	return conv, nil
}

// RecordInbound appends an inbound message row and returns its id.
func (s *Service) RecordInbound(conversationID, body string) (string, error) {
	msg := store.Message{
		ID:             util.GenerateMessageID(),
		ConversationID: conversationID,
		Direction:      store.DirectionIn,
		Body:           body,
	}
	if err := s.store.AppendMessage(msg); err != nil {
		return "", fmt.Errorf("record inbound failed: %w", err)
	}
	return msg.ID, nil
}

// Enqueue creates an outbound message row plus a pending outbox record and
// returns the outbox id. The worker updates the message row's delivery
// status once the channel driver reports an outcome.
func (s *Service) Enqueue(conversationID, phone, text, idempotencyKey string) (string, error) {
	return s.enqueue(conversationID, phone, store.OutboxKindText, text, "", idempotencyKey)
}

// EnqueueMenu serializes an interactive menu payload and enqueues it for
// delivery. The payload structure is opaque to everything but the drivers.
func (s *Service) EnqueueMenu(conversationID, phone string, m models.Menu, idempotencyKey string) (string, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal menu payload failed: %w", err)
	}
	return s.enqueue(conversationID, phone, store.OutboxKindMenu, m.Body, string(payload), idempotencyKey)
}

func (s *Service) enqueue(conversationID, phone, kind, text, payloadJSON, idempotencyKey string) (string, error) {
	row := store.Message{
		ID:             util.GenerateMessageID(),
		ConversationID: conversationID,
		Direction:      store.DirectionOut,
		Body:           text,
		Status:         models.DeliveryStatusQueued,
	}
	if err := s.store.AppendMessage(row); err != nil {
		return "", fmt.Errorf("record outbound failed: %w", err)
	}

	outboxID, err := s.store.EnqueueOutbox(store.OutboxMessage{
		ConversationID: conversationID,
		MessageID:      row.ID,
		Phone:          phone,
		Kind:           kind,
		Text:           text,
		PayloadJSON:    payloadJSON,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return "", fmt.Errorf("enqueue outbox failed: %w", err)
	}
	slog.Debug("Convo.enqueue: outbound queued", "conversationID", conversationID, "outboxID", outboxID, "kind", kind)
	return outboxID, nil
}
