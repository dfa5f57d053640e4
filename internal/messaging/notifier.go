package messaging

import (
	"context"
	"log/slog"
)

// Notifier is the internal escalation channel to the firm's human operators.
// Notifications are fire-and-forget: failures are logged, never propagated.
type Notifier interface {
	SendInternalToBelen(ctx context.Context, text string)
	SendInternalToIvan(ctx context.Context, text string)
}

// OperatorNotifier sends internal notifications through a channel driver to
// fixed operator phone numbers.
type OperatorNotifier struct {
	sender     Sender
	belenPhone string
	ivanPhone  string
}

// Compile-time check that OperatorNotifier implements Notifier.
var _ Notifier = (*OperatorNotifier)(nil)

// NewOperatorNotifier creates a Notifier delivering to the given operator numbers.
func NewOperatorNotifier(sender Sender, belenPhone, ivanPhone string) *OperatorNotifier {
	return &OperatorNotifier{sender: sender, belenPhone: belenPhone, ivanPhone: ivanPhone}
}

func (n *OperatorNotifier) SendInternalToBelen(ctx context.Context, text string) {
	n.send(ctx, "Belen", n.belenPhone, text)
}

func (n *OperatorNotifier) SendInternalToIvan(ctx context.Context, text string) {
	n.send(ctx, "Ivan", n.ivanPhone, text)
}

func (n *OperatorNotifier) send(ctx context.Context, operator, phone, text string) {
	if phone == "" {
		slog.Warn("OperatorNotifier.send: no phone configured, dropping notification", "operator", operator)
		return
	}
	res, err := n.sender.SendText(ctx, SendTextInput{Phone: phone, Text: text})
	if err != nil {
		slog.Error("OperatorNotifier.send: delivery error", "operator", operator, "error", err)
		return
	}
	if !res.OK {
		slog.Error("OperatorNotifier.send: driver rejected delivery", "operator", operator, "driver_error", res.Error)
		return
	}
	slog.Debug("OperatorNotifier.send: delivered", "operator", operator, "remoteID", res.RemoteID)
}
