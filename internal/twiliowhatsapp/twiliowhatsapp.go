// Package twiliowhatsapp wraps the Twilio API for the WhatsApp channel of
// contabot. It is the fallback driver for deployments without a linked
// whatsmeow device.
package twiliowhatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/estudiodigital/contabot/internal/messaging"
	"github.com/estudiodigital/contabot/internal/models"
	"github.com/estudiodigital/contabot/internal/whatsapp"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// DefaultChannelTimeout bounds non-blocking channel sends.
const DefaultChannelTimeout = 1 * time.Second

// Opts holds configuration options for the Twilio WhatsApp client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromWhats  string
}

// Option defines a configuration option for the Twilio WhatsApp client.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromWhats sets the sending WhatsApp number ("whatsapp:+549..." format).
func WithFromWhats(from string) Option {
	return func(o *Opts) { o.FromWhats = from }
}

// Client wraps the Twilio REST API for WhatsApp and implements
// messaging.Sender. Inbound messages arrive over the Twilio webhook.
type Client struct {
	client    *twilio.RestClient
	fromWhats string

	inbound chan models.Inbound
	mu      sync.RWMutex
	stopped bool
}

var _ messaging.Sender = (*Client)(nil)

// NewClient creates a Twilio WhatsApp client. Options missing at call time
// fall back to the TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and
// TWILIO_FROM_NUMBER environment variables.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromWhats == "" {
		cfg.FromWhats = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Twilio client config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromWhats_set", cfg.FromWhats != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromWhats == "" {
		return nil, fmt.Errorf("fromWhats number must be provided")
	}

	client := twilio.NewRestClientWithParams(
		twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		},
	)

	return &Client{
		client:    client,
		fromWhats: cfg.FromWhats,
		inbound:   make(chan models.Inbound, 100),
	}, nil
}

// SendText sends a WhatsApp message through the Twilio API.
func (c *Client) SendText(ctx context.Context, in messaging.SendTextInput) (messaging.SendTextResult, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo("whatsapp:+" + in.Phone)
	params.SetFrom(c.fromWhats)
	params.SetBody(in.Text)

	resp, err := c.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("Twilio SendText failed", "to", in.Phone, "error", err)
		return messaging.SendTextResult{OK: false, Error: err.Error()}, fmt.Errorf("failed to send message to %s: %w", in.Phone, err)
	}

	var remoteID string
	if resp.Sid != nil {
		remoteID = *resp.Sid
	}
	slog.Debug("Twilio message sent", "to", in.Phone, "sid", remoteID)
	return messaging.SendTextResult{OK: true, RemoteID: remoteID}, nil
}

// SendMenu renders the menu as numbered text; the Twilio Go SDK has no
// WhatsApp interactive message support.
func (c *Client) SendMenu(ctx context.Context, phone string, menu models.Menu) (messaging.SendTextResult, error) {
	return c.SendText(ctx, messaging.SendTextInput{Phone: phone, Text: whatsapp.FormatMenu(menu)})
}

// Inbound returns the channel fed by the webhook handler.
func (c *Client) Inbound() <-chan models.Inbound {
	return c.inbound
}

// Stop marks the client stopped; subsequent webhook deliveries are dropped.
func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return nil
	}
	c.stopped = true
	close(c.inbound)
	return nil
}

// WebhookHandler handles inbound Twilio webhook requests, classifying media
// by the NumMedia/MediaContentType0 form fields.
func (c *Client) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Error("Twilio webhook: failed to parse form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	from := normalizePhone(r.FormValue("From"))
	body := r.FormValue("Body")
	msgType := classifyWebhook(r)

	if from == "" || (body == "" && !msgType.IsAttachment()) {
		slog.Warn("Twilio webhook: missing fields", "from", from)
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	in := models.Inbound{
		From:      from,
		Text:      body,
		MessageID: r.FormValue("MessageSid"),
		Type:      msgType,
		Timestamp: time.Now().Unix(),
	}

	c.emit(in)
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (c *Client) emit(in models.Inbound) {
	c.mu.RLock()
	stopped := c.stopped
	c.mu.RUnlock()
	if stopped {
		slog.Warn("Twilio webhook: dropping inbound (client stopped)", "from", in.From)
		return
	}

	select {
	case c.inbound <- in:
		slog.Debug("Twilio webhook: inbound forwarded", "from", in.From, "type", in.Type)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("Twilio webhook: inbound channel blocked, dropping message", "from", in.From)
	}
}

// normalizePhone strips the "whatsapp:" prefix and leading "+" so phone
// numbers match the digits-only format the engine keys sessions on.
func normalizePhone(raw string) string {
	for _, prefix := range []string{"whatsapp:", "+"} {
		if len(raw) >= len(prefix) && raw[:len(prefix)] == prefix {
			raw = raw[len(prefix):]
		}
	}
	return raw
}

func classifyWebhook(r *http.Request) models.MessageType {
	if r.FormValue("NumMedia") == "" || r.FormValue("NumMedia") == "0" {
		return models.MessageTypeText
	}
	ct := r.FormValue("MediaContentType0")
	switch {
	case len(ct) >= 5 && ct[:5] == "image":
		return models.MessageTypeImage
	case len(ct) >= 5 && ct[:5] == "video":
		return models.MessageTypeVideo
	case len(ct) >= 5 && ct[:5] == "audio":
		return models.MessageTypeAudio
	default:
		return models.MessageTypeDocument
	}
}
