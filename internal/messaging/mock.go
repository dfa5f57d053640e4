package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/estudiodigital/contabot/internal/models"
	"github.com/estudiodigital/contabot/internal/util"
)

// Compile-time check that MockSender implements Sender.
var _ Sender = (*MockSender)(nil)

// MockSender is an in-memory channel driver for tests and development.
// It records every delivery and can be told to fail.
type MockSender struct {
	mu sync.Mutex

	// Sent records every successful text delivery in order.
	Sent []SendTextInput
	// Menus records every successful menu delivery in order.
	Menus []models.Menu

	// FailNext makes the next N SendText calls report a driver failure.
	FailNext int
	// Err, when set, is returned as a thrown error instead of a
	// driver-reported failure.
	Err error
}

// NewMockSender creates an empty mock driver.
func NewMockSender() *MockSender {
	return &MockSender{}
}

func (m *MockSender) SendText(ctx context.Context, in SendTextInput) (SendTextResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return SendTextResult{}, m.Err
	}
	if m.FailNext > 0 {
		m.FailNext--
		slog.Debug("MockSender.SendText: simulated failure", "phone", in.Phone)
		return SendTextResult{OK: false, Error: "simulated delivery failure"}, nil
	}

	m.Sent = append(m.Sent, in)
	remoteID := util.GenerateRandomID("wamid_", 24)
	slog.Debug("MockSender.SendText", "phone", in.Phone, "remoteID", remoteID, "text_length", len(in.Text))
	return SendTextResult{OK: true, RemoteID: remoteID}, nil
}

func (m *MockSender) SendMenu(ctx context.Context, phone string, menu models.Menu) (SendTextResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return SendTextResult{}, m.Err
	}
	m.Menus = append(m.Menus, menu)
	remoteID := util.GenerateRandomID("wamid_", 24)
	slog.Debug("MockSender.SendMenu", "phone", phone, "kind", menu.Kind, "remoteID", remoteID)
	return SendTextResult{OK: true, RemoteID: remoteID}, nil
}

// SentCount returns the number of successful text deliveries.
func (m *MockSender) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// LastSent returns the most recent text delivery, or an error if none happened.
func (m *MockSender) LastSent() (SendTextInput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return SendTextInput{}, fmt.Errorf("no messages sent")
	}
	return m.Sent[len(m.Sent)-1], nil
}
