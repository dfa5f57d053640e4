package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/estudiodigital/contabot/internal/models"
	"github.com/estudiodigital/contabot/internal/util"
	"github.com/google/uuid"
)

// Compile-time check that InMemoryStore implements Store.
var _ Store = (*InMemoryStore)(nil)

// InMemoryStore is a mutex-guarded in-memory Store used by tests and
// development mode. Contents are lost on restart.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation // by id
	byPhone       map[string]string        // phone -> conversation id
	messages      map[string][]*Message    // conversation id -> messages, in order
	messageIndex  map[string]*Message      // message id -> message
	clientes      map[string]models.Cliente
	outbox        map[string]*OutboxMessage
	outboxOrder   []string
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[string]*Conversation),
		byPhone:       make(map[string]string),
		messages:      make(map[string][]*Message),
		messageIndex:  make(map[string]*Message),
		clientes:      make(map[string]models.Cliente),
		outbox:        make(map[string]*OutboxMessage),
	}
}

func (s *InMemoryStore) GetConversationByPhone(phone string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPhone[phone]
	if !ok {
		return nil, nil
	}
	c := *s.conversations[id]
	return &c, nil
}

func (s *InMemoryStore) CreateConversation(phone string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byPhone[phone]; ok {
		c := *s.conversations[id]
		return &c, nil
	}
	now := time.Now()
	c := &Conversation{
		ID:            uuid.NewString(),
		Phone:         phone,
		CreatedAt:     now,
		LastMessageAt: now,
	}
	s.conversations[c.ID] = c
	s.byPhone[phone] = c.ID
	out := *c
	return &out, nil
}

func (s *InMemoryStore) AppendMessage(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[msg.ConversationID]
	if !ok {
		return fmt.Errorf("conversation %s not found", msg.ConversationID)
	}
	if msg.ID == "" {
		msg.ID = util.GenerateMessageID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	// The index and the per-conversation ordering share the same pointer so
	// delivery updates stay visible no matter how the conversation grows.
	stored := &msg
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], stored)
	s.messageIndex[msg.ID] = stored
	conv.LastMessageAt = msg.CreatedAt
	return nil
}

func (s *InMemoryStore) UpdateMessageDelivery(id string, status models.DeliveryStatus, remoteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messageIndex[id]
	if !ok {
		return fmt.Errorf("message %s not found", id)
	}
	msg.Status = status
	if remoteID != "" {
		msg.RemoteID = remoteID
	}
	return nil
}

func (s *InMemoryStore) ListMessages(conversationID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = *m
	}
	return out, nil
}

func (s *InMemoryStore) GetClienteByCuit(cuit string) (models.ClienteLookup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clientes[cuit]
	if !ok {
		return models.ClienteLookup{Exists: false}, nil
	}
	data := c
	return models.ClienteLookup{Exists: true, Data: &data}, nil
}

func (s *InMemoryStore) UpsertCliente(c models.Cliente) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientes[c.Cuit] = c
	return nil
}

func (s *InMemoryStore) EnqueueOutbox(msg OutboxMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.ID = util.GenerateOutboxID()
	msg.Status = OutboxStatusPending
	msg.Tries = 0
	msg.CreatedAt = time.Now()
	s.outbox[msg.ID] = &msg
	s.outboxOrder = append(s.outboxOrder, msg.ID)
	return msg.ID, nil
}

func (s *InMemoryStore) ListPendingOutbox(limit int) ([]OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []OutboxMessage
	for _, id := range s.outboxOrder {
		m := s.outbox[id]
		if m.Status != OutboxStatusPending || m.Tries >= OutboxMaxTries {
			continue
		}
		out = append(out, *m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) FindSentByIdempotencyKey(conversationID, key string) (*OutboxMessage, error) {
	if key == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.outboxOrder {
		m := s.outbox[id]
		if m.Status == OutboxStatusSent && m.ConversationID == conversationID && m.IdempotencyKey == key {
			out := *m
			return &out, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) MarkOutboxSent(id, remoteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.outbox[id]
	if !ok {
		return fmt.Errorf("outbox record %s not found", id)
	}
	now := time.Now()
	m.Status = OutboxStatusSent
	m.RemoteID = remoteID
	m.SentAt = &now
	return nil
}

func (s *InMemoryStore) MarkOutboxFailed(id, errMsg string, tries int, nextAttemptAt time.Time, terminal bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.outbox[id]
	if !ok {
		return fmt.Errorf("outbox record %s not found", id)
	}
	m.Tries = tries
	m.LastError = errMsg
	m.NextAttemptAt = &nextAttemptAt
	if terminal {
		m.Status = OutboxStatusFailed
	}
	return nil
}

// GetOutbox returns a copy of an outbox record by id (test helper).
func (s *InMemoryStore) GetOutbox(id string) (*OutboxMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.outbox[id]
	if !ok {
		return nil, false
	}
	out := *m
	return &out, true
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
