// Package outbox implements the delivery worker that drains the outbox queue
// through a channel driver with idempotent, at-least-once semantics.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/estudiodigital/contabot/internal/messaging"
	"github.com/estudiodigital/contabot/internal/models"
	"github.com/estudiodigital/contabot/internal/store"
)

// Defaults for the polling loop.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultBatchSize    = 10
)

// backoffSchedule gates retries by attempt count; clamped at the last value.
var backoffSchedule = []time.Duration{
	30 * time.Second,
	60 * time.Second,
	120 * time.Second,
	300 * time.Second,
	600 * time.Second,
}

// BackoffFor returns the retry delay after the given attempt count (1-based).
func BackoffFor(tries int) time.Duration {
	if tries < 1 {
		tries = 1
	}
	if tries > len(backoffSchedule) {
		tries = len(backoffSchedule)
	}
	return backoffSchedule[tries-1]
}

// Worker polls the outbox for pending records and attempts delivery.
// Records within a batch are dispatched concurrently; one record's failure
// never aborts the batch.
type Worker struct {
	repo          store.OutboxRepo
	conversations store.ConversationRepo
	sender        messaging.Sender
	pollInterval  time.Duration
	batchSize     int
	now           func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Opts holds configuration options for the Worker.
type Opts struct {
	PollInterval time.Duration
	BatchSize    int
}

// Option defines a configuration option for the Worker.
type Option func(*Opts)

// WithPollInterval overrides the fixed poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(o *Opts) { o.PollInterval = d }
}

// WithBatchSize overrides the per-pass claim limit.
func WithBatchSize(n int) Option {
	return func(o *Opts) { o.BatchSize = n }
}

// NewWorker creates a delivery worker over the given repos and channel driver.
func NewWorker(repo store.OutboxRepo, conversations store.ConversationRepo, sender messaging.Sender, opts ...Option) *Worker {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Worker{
		repo:          repo,
		conversations: conversations,
		sender:        sender,
		pollInterval:  cfg.PollInterval,
		batchSize:     cfg.BatchSize,
		now:           time.Now,
	}
}

// Start begins an immediate pass plus the fixed-interval poll loop.
// It is a no-op if the worker is already running.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})

	slog.Info("OutboxWorker.Start: starting", "pollInterval", w.pollInterval, "batchSize", w.batchSize)
	go func() {
		defer close(w.done)
		w.ProcessPass(ctx)

		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Info("OutboxWorker: stopping poll loop")
				return
			case <-ticker.C:
				w.ProcessPass(ctx)
			}
		}
	}()
}

// Stop cancels future poll ticks. In-flight sends are allowed to complete;
// Stop blocks until the loop has exited.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	done := w.done
	w.cancel = nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	slog.Info("OutboxWorker.Stop: stopped")
}

// ProcessPass runs one delivery pass: list due pending records and dispatch
// them concurrently.
func (w *Worker) ProcessPass(ctx context.Context) {
	msgs, err := w.repo.ListPendingOutbox(w.batchSize)
	if err != nil {
		slog.Error("OutboxWorker.ProcessPass: list pending failed", "error", err)
		return
	}
	if len(msgs) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, msg := range msgs {
		wg.Add(1)
		go func(m store.OutboxMessage) {
			defer wg.Done()
			w.processRecord(ctx, m)
		}(msg)
	}
	wg.Wait()
}

func (w *Worker) processRecord(ctx context.Context, msg store.OutboxMessage) {
	// Idempotency short-circuit: a prior sent record for the same
	// (conversation, key) pair means this one is a duplicate.
	if msg.IdempotencyKey != "" {
		prior, err := w.repo.FindSentByIdempotencyKey(msg.ConversationID, msg.IdempotencyKey)
		if err != nil {
			slog.Error("OutboxWorker.processRecord: idempotency check failed", "id", msg.ID, "error", err)
			return
		}
		if prior != nil && prior.ID != msg.ID {
			slog.Info("OutboxWorker.processRecord: idempotency collision, marking sent without delivery",
				"id", msg.ID, "priorID", prior.ID, "conversationID", msg.ConversationID)
			if err := w.repo.MarkOutboxSent(msg.ID, prior.RemoteID); err != nil {
				slog.Error("OutboxWorker.processRecord: mark sent error", "id", msg.ID, "error", err)
				return
			}
			w.propagate(msg.MessageID, models.DeliveryStatusSent, prior.RemoteID)
			return
		}
	}

	// Not yet due for retry.
	if msg.NextAttemptAt != nil && msg.NextAttemptAt.After(w.now()) {
		return
	}

	res, err := w.deliver(ctx, msg)
	if err == nil && res.OK {
		if err := w.repo.MarkOutboxSent(msg.ID, res.RemoteID); err != nil {
			slog.Error("OutboxWorker.processRecord: mark sent error", "id", msg.ID, "error", err)
			return
		}
		w.propagate(msg.MessageID, models.DeliveryStatusSent, res.RemoteID)
		slog.Debug("OutboxWorker.processRecord: delivered", "id", msg.ID, "remoteID", res.RemoteID)
		return
	}

	// Driver rejection and thrown errors get identical bookkeeping.
	reason := res.Error
	if err != nil {
		reason = err.Error()
	}
	if reason == "" {
		reason = "delivery failed"
	}

	tries := msg.Tries + 1
	nextAttempt := w.now().Add(BackoffFor(tries))
	terminal := tries >= store.OutboxMaxTries
	if err := w.repo.MarkOutboxFailed(msg.ID, reason, tries, nextAttempt, terminal); err != nil {
		slog.Error("OutboxWorker.processRecord: mark failed error", "id", msg.ID, "error", err)
		return
	}
	if terminal {
		w.propagate(msg.MessageID, models.DeliveryStatusFailed, "")
		slog.Error("OutboxWorker.processRecord: delivery failed terminally", "id", msg.ID, "tries", tries, "reason", reason)
		return
	}
	slog.Warn("OutboxWorker.processRecord: delivery failed, retry scheduled",
		"id", msg.ID, "tries", tries, "nextAttemptAt", nextAttempt, "reason", reason)
}

func (w *Worker) deliver(ctx context.Context, msg store.OutboxMessage) (messaging.SendTextResult, error) {
	switch msg.Kind {
	case store.OutboxKindMenu:
		var m models.Menu
		if err := json.Unmarshal([]byte(msg.PayloadJSON), &m); err != nil {
			return messaging.SendTextResult{}, fmt.Errorf("decode menu payload: %w", err)
		}
		return w.sender.SendMenu(ctx, msg.Phone, m)
	default:
		return w.sender.SendText(ctx, messaging.SendTextInput{
			Phone:          msg.Phone,
			Text:           msg.Text,
			IdempotencyKey: msg.IdempotencyKey,
		})
	}
}

// propagate reports the delivery outcome back to the originating
// conversation message row. Best effort: failures are logged only.
func (w *Worker) propagate(messageID string, status models.DeliveryStatus, remoteID string) {
	if messageID == "" || w.conversations == nil {
		return
	}
	if err := w.conversations.UpdateMessageDelivery(messageID, status, remoteID); err != nil {
		slog.Error("OutboxWorker.propagate: message status update failed", "messageID", messageID, "error", err)
	}
}
