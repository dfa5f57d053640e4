package whatsapp

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/estudiodigital/contabot/internal/messaging"
	"github.com/estudiodigital/contabot/internal/models"
	"go.mau.fi/whatsmeow/types/events"
)

// Constants for Service configuration
const (
	// DefaultChannelBufferSize defines the buffer size of the inbound channel
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the timeout for non-blocking channel sends
	DefaultChannelTimeout = 1 * time.Second
)

// Service adapts the whatsmeow client to the messaging.Sender contract and
// turns WhatsApp events into classified inbound messages.
type Service struct {
	client   MessageSender
	waClient *Client // full client for event handling, nil for mocks
	inbound  chan models.Inbound
	done     chan struct{}
}

var _ messaging.Sender = (*Service)(nil)

// NewService creates a Service wrapping the given MessageSender.
func NewService(client MessageSender) *Service {
	s := &Service{
		client:  client,
		inbound: make(chan models.Inbound, DefaultChannelBufferSize),
		done:    make(chan struct{}),
	}
	if waClient, ok := client.(*Client); ok {
		s.waClient = waClient
		slog.Debug("Service.NewService: full client available for event handling")
	} else {
		slog.Debug("Service.NewService: interface client, event handling disabled")
	}
	return s
}

// Start registers the WhatsApp event handler. It is a no-op without a full
// client (tests pass a mock sender).
func (s *Service) Start(ctx context.Context) error {
	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Debug("Service.Start: no full client, skipping event handling")
		return nil
	}

	s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		if v, ok := evt.(*events.Message); ok {
			s.handleIncomingMessage(v)
		}
	})
	slog.Debug("Service.Start: event handler registered")

	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
		}
		s.waClient.Disconnect()
	}()
	return nil
}

// Stop disconnects and closes the inbound channel.
func (s *Service) Stop() error {
	slog.Info("Service.Stop: stopping WhatsApp service")
	close(s.done)
	close(s.inbound)
	return nil
}

// Inbound returns the channel of classified inbound messages.
func (s *Service) Inbound() <-chan models.Inbound {
	return s.inbound
}

// SendText delivers a plain-text message through the WhatsApp client.
func (s *Service) SendText(ctx context.Context, in messaging.SendTextInput) (messaging.SendTextResult, error) {
	remoteID, err := s.client.SendMessage(ctx, in.Phone, in.Text)
	if err != nil {
		slog.Error("Service.SendText: send failed", "to", in.Phone, "error", err)
		return messaging.SendTextResult{OK: false, Error: err.Error()}, err
	}
	return messaging.SendTextResult{OK: true, RemoteID: remoteID}, nil
}

// SendMenu delivers an interactive menu. WhatsApp list messages are not
// reliably available outside business accounts, so menus render as numbered
// text and the engine accepts numeric selections.
func (s *Service) SendMenu(ctx context.Context, phone string, menu models.Menu) (messaging.SendTextResult, error) {
	return s.SendText(ctx, messaging.SendTextInput{Phone: phone, Text: FormatMenu(menu)})
}

// FormatMenu renders a menu payload as numbered WhatsApp text.
func FormatMenu(m models.Menu) string {
	var b strings.Builder
	b.WriteString(m.Body)
	for i, opt := range m.Options {
		b.WriteString("\n" + strconv.Itoa(i+1) + ") " + opt.Title)
		if opt.Description != "" {
			b.WriteString(" — " + opt.Description)
		}
	}
	return b.String()
}

// handleIncomingMessage classifies an incoming WhatsApp message and forwards
// it on the inbound channel.
func (s *Service) handleIncomingMessage(evt *events.Message) {
	if evt.Message == nil || evt.Info.IsFromMe {
		return
	}

	text, msgType := ClassifyMessage(evt)
	if msgType == models.MessageTypeUndefined {
		slog.Debug("Service.handleIncomingMessage: ignoring unsupported message", "from", evt.Info.Sender.User)
		return
	}

	in := models.Inbound{
		From:      evt.Info.Sender.User,
		Text:      text,
		MessageID: evt.Info.ID,
		Type:      msgType,
		Timestamp: evt.Info.Timestamp.Unix(),
	}

	select {
	case s.inbound <- in:
		slog.Debug("Service.handleIncomingMessage: forwarded", "from", in.From, "type", in.Type)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("Service.handleIncomingMessage: inbound channel blocked, dropping message", "from", in.From, "timeout", DefaultChannelTimeout)
	}
}

// ClassifyMessage extracts the text content (caption for media) and tags the
// message type used by the media interceptor.
func ClassifyMessage(evt *events.Message) (string, models.MessageType) {
	msg := evt.Message
	switch {
	case msg.Conversation != nil:
		return msg.GetConversation(), models.MessageTypeText
	case msg.ExtendedTextMessage != nil:
		return msg.ExtendedTextMessage.GetText(), models.MessageTypeText
	case msg.ImageMessage != nil:
		return msg.ImageMessage.GetCaption(), models.MessageTypeImage
	case msg.VideoMessage != nil:
		return msg.VideoMessage.GetCaption(), models.MessageTypeVideo
	case msg.DocumentMessage != nil:
		return msg.DocumentMessage.GetCaption(), models.MessageTypeDocument
	case msg.AudioMessage != nil:
		if msg.AudioMessage.GetPTT() {
			return "", models.MessageTypeVoice
		}
		return "", models.MessageTypeAudio
	case msg.StickerMessage != nil:
		return "", models.MessageTypeSticker
	default:
		return "", models.MessageTypeUndefined
	}
}
