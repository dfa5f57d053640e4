// Package app boots contabot: it wires the storage backend, the session
// engine, the outbox delivery worker and the selected WhatsApp channel
// driver, then pumps inbound messages until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/estudiodigital/contabot/internal/convo"
	"github.com/estudiodigital/contabot/internal/fsm"
	"github.com/estudiodigital/contabot/internal/messaging"
	"github.com/estudiodigital/contabot/internal/models"
	"github.com/estudiodigital/contabot/internal/outbox"
	"github.com/estudiodigital/contabot/internal/session"
	"github.com/estudiodigital/contabot/internal/store"
	"github.com/estudiodigital/contabot/internal/twiliowhatsapp"
	"github.com/estudiodigital/contabot/internal/whatsapp"
)

// Channel driver names accepted by Opts.Driver.
const (
	DriverWhatsmeow = "whatsmeow"
	DriverTwilio    = "twilio"
	DriverMock      = "mock"
)

// Opts holds the assembled runtime configuration.
type Opts struct {
	// DSN selects the storage backend: a SQLite file path or a PostgreSQL URL.
	DSN string

	// Driver selects the channel: whatsmeow, twilio or mock.
	Driver string

	// Whatsmeow settings.
	WhatsAppDSN string
	QRPath      string
	NumericCode bool

	// Twilio webhook listen address, e.g. ":8080".
	WebhookAddr string

	// Operator phone numbers.
	OperatorPhone string
	BelenPhone    string
	IvanPhone     string

	// Worker and sweeper tuning; zero values keep the package defaults.
	PollInterval  time.Duration
	BatchSize     int
	SweepInterval time.Duration
}

// Run wires every module and blocks until SIGINT/SIGTERM.
func Run(opts Opts) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(opts.DSN)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	sessions := session.NewStore()
	go sessions.RunSweeper(ctx, opts.SweepInterval)

	conversations := convo.NewService(st)

	sender, inbound, cleanup, err := openDriver(ctx, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	notifier := messaging.NewOperatorNotifier(sender, opts.BelenPhone, opts.IvanPhone)

	engineOpts := []fsm.Option{}
	if opts.OperatorPhone != "" {
		engineOpts = append(engineOpts, fsm.WithOperatorPhone(opts.OperatorPhone))
	}
	engine := fsm.NewEngine(sessions, st, conversations, notifier, engineOpts...)

	workerOpts := []outbox.Option{}
	if opts.PollInterval > 0 {
		workerOpts = append(workerOpts, outbox.WithPollInterval(opts.PollInterval))
	}
	if opts.BatchSize > 0 {
		workerOpts = append(workerOpts, outbox.WithBatchSize(opts.BatchSize))
	}
	worker := outbox.NewWorker(st, st, sender, workerOpts...)
	worker.Start()
	defer worker.Stop()

	slog.Info("contabot running", "driver", opts.Driver, "store", store.DetectDSNType(opts.DSN))

	for {
		select {
		case <-ctx.Done():
			slog.Info("contabot shutting down")
			return nil
		case in, ok := <-inbound:
			if !ok {
				slog.Info("contabot inbound channel closed")
				return nil
			}
			handleInbound(ctx, conversations, engine, in)
		}
	}
}

// handleInbound persists one inbound message, runs it through the session
// engine and enqueues the replies for the delivery worker. Errors degrade:
// the engine still runs without persistence so the user is never ignored.
func handleInbound(ctx context.Context, conversations *convo.Service, engine *fsm.Engine, in models.Inbound) {
	conv, err := conversations.EnsureConversation(in.From)
	if err != nil {
		slog.Error("handleInbound: conversation resolution failed", "from", in.From, "error", err)
	} else {
		in.ConversationID = conv.ID
		if _, err := conversations.RecordInbound(conv.ID, in.Text); err != nil {
			slog.Error("handleInbound: record inbound failed", "from", in.From, "error", err)
		}
	}

	res, err := engine.ProcessMessage(ctx, in)
	if err != nil {
		slog.Error("handleInbound: engine failed", "from", in.From, "error", err)
		return
	}

	if in.ConversationID == "" {
		if len(res.Replies) > 0 {
			slog.Error("handleInbound: dropping replies, no conversation", "from", in.From, "replies", len(res.Replies))
		}
		return
	}

	// One idempotency key per reply position, derived from the inbound
	// message id, so redelivered webhooks cannot double-send.
	for i, reply := range res.Replies {
		key := ""
		if in.MessageID != "" {
			key = in.MessageID + ":" + strconv.Itoa(i)
		}
		if _, err := conversations.Enqueue(in.ConversationID, in.From, reply, key); err != nil {
			slog.Error("handleInbound: enqueue reply failed", "from", in.From, "error", err)
		}
	}
}

func openStore(dsn string) (store.Store, error) {
	if dsn == "" {
		slog.Warn("app.openStore: no DSN configured, using in-memory store (state is lost on restart)")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(dsn) == "postgres" {
		return store.NewPostgresStore(store.WithDSN(dsn))
	}
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

// openDriver builds the channel driver selected by opts.Driver and returns
// the sender, the inbound stream and a cleanup func.
func openDriver(ctx context.Context, opts Opts) (messaging.Sender, <-chan models.Inbound, func(), error) {
	switch opts.Driver {
	case DriverTwilio:
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create twilio client: %w", err)
		}

		addr := opts.WebhookAddr
		if addr == "" {
			addr = ":8080"
		}
		mux := http.NewServeMux()
		mux.HandleFunc("/webhook/twilio", client.WebhookHandler)
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			slog.Info("app.openDriver: twilio webhook listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("app.openDriver: webhook server failed", "error", err)
			}
		}()

		cleanup := func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			_ = client.Stop()
		}
		return client, client.Inbound(), cleanup, nil

	case DriverMock:
		sender := &messaging.MockSender{}
		inbound := make(chan models.Inbound)
		slog.Warn("app.openDriver: mock driver selected, no messages will be delivered")
		return sender, inbound, func() {}, nil

	default:
		waOpts := []whatsapp.Option{}
		if opts.WhatsAppDSN != "" {
			waOpts = append(waOpts, whatsapp.WithDBDSN(opts.WhatsAppDSN))
		}
		if opts.QRPath != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(opts.QRPath))
		}
		if opts.NumericCode {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}

		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create whatsapp client: %w", err)
		}
		svc := whatsapp.NewService(client)
		if err := svc.Start(ctx); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to start whatsapp service: %w", err)
		}
		return svc, svc.Inbound(), func() { _ = svc.Stop() }, nil
	}
}
