package fsm

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/estudiodigital/contabot/internal/menu"
	"github.com/estudiodigital/contabot/internal/messaging"
	"github.com/estudiodigital/contabot/internal/models"
	"github.com/estudiodigital/contabot/internal/session"
	"github.com/estudiodigital/contabot/internal/store"
)

// DefaultOperatorPhone is the hardcoded operator number allowed to issue the
// reset command.
const DefaultOperatorPhone = "5491122334455"

// Directory is the client directory lookup collaborator.
type Directory interface {
	GetClienteByCuit(cuit string) (models.ClienteLookup, error)
}

// ConversationService is the narrow slice of the conversation collaborator
// the engine needs: resolving a conversation and enqueueing interactive menus.
type ConversationService interface {
	EnsureConversation(phone string) (*store.Conversation, error)
	EnqueueMenu(conversationID, phone string, m models.Menu, idempotencyKey string) (string, error)
}

// Outcome is what an interceptor or state handler produced for one message.
type Outcome struct {
	Replies              []string
	HandledByInteractive bool
}

// Request bundles everything an interceptor or handler needs for one message.
type Request struct {
	Ctx     context.Context
	Session *models.Session
	In      models.Inbound
	Norm    string // normalized text
}

// HandlerFunc is the per-state business logic.
type HandlerFunc func(r *Request) *Outcome

// Engine is the FSM session engine. It composes the session store, the
// interceptor chain and the per-state handler registry.
type Engine struct {
	sessions      *session.Store
	directory     Directory
	convos        ConversationService
	notifier      messaging.Notifier
	operatorPhone string
	now           func() time.Time

	chain    []Interceptor
	handlers map[models.SessionState]HandlerFunc
}

// Opts holds configuration options for the Engine.
type Opts struct {
	OperatorPhone string
	Now           func() time.Time
}

// Option defines a configuration option for the Engine.
type Option func(*Opts)

// WithOperatorPhone overrides the operator phone allowed to reset sessions.
func WithOperatorPhone(phone string) Option {
	return func(o *Opts) { o.OperatorPhone = phone }
}

// WithClock overrides the engine clock (used by tests for the ack throttle).
func WithClock(now func() time.Time) Option {
	return func(o *Opts) { o.Now = now }
}

// NewEngine creates the session engine with its interceptor chain and
// handler registry wired.
func NewEngine(sessions *session.Store, directory Directory, convos ConversationService, notifier messaging.Notifier, opts ...Option) *Engine {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.OperatorPhone == "" {
		cfg.OperatorPhone = DefaultOperatorPhone
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	e := &Engine{
		sessions:      sessions,
		directory:     directory,
		convos:        convos,
		notifier:      notifier,
		operatorPhone: cfg.OperatorPhone,
		now:           cfg.Now,
	}
	e.chain = []Interceptor{
		&resetInterceptor{engine: e},
		&paymentInterceptor{engine: e},
		&handoffInterceptor{engine: e},
		&mediaInterceptor{engine: e},
	}
	e.handlers = e.buildRegistry()
	return e
}

// ProcessMessage routes one inbound message through the interceptor chain
// and the per-state dispatch, returning the replies to deliver.
func (e *Engine) ProcessMessage(ctx context.Context, in models.Inbound) (*models.Result, error) {
	sess := e.sessions.GetOrCreate(in.From)

	// Technical echo fields, refreshed on every message.
	if in.MessageID != "" {
		sess.Data.InboundMessageID = in.MessageID
	}
	if in.ConversationID != "" {
		sess.Data.ConversationID = in.ConversationID
	}

	r := &Request{
		Ctx:     ctx,
		Session: sess,
		In:      in,
		Norm:    Normalize(in.Text),
	}

	slog.Debug("Engine.ProcessMessage", "from", in.From, "state", sess.State, "type", in.Type, "text_length", len(in.Text))

	for _, ic := range e.chain {
		if !ic.Applies(r) {
			continue
		}
		out := ic.Handle(r)
		if out != nil {
			slog.Debug("Engine.ProcessMessage: intercepted", "from", in.From, "interceptor", ic.Name(), "newState", sess.State)
			return e.result(sess, out), nil
		}
		// An applying interceptor that returns nil decided the message
		// belongs to the per-state handler; stop intercepting.
		break
	}

	handler, ok := e.handlers[sess.State]
	if !ok {
		// Corrupted or stale state value: recover to ROOT.
		slog.Warn("Engine.ProcessMessage: unknown state, resetting to ROOT", "from", in.From, "state", sess.State)
		sess.State = models.StateRoot
		handler = e.handlers[models.StateRoot]
	}

	out := handler(r)
	slog.Debug("Engine.ProcessMessage: handled", "from", in.From, "newState", sess.State, "replies", len(out.Replies), "interactive", out.HandledByInteractive)
	return e.result(sess, out), nil
}

func (e *Engine) result(sess *models.Session, out *Outcome) *models.Result {
	return &models.Result{
		Session:              sess,
		Replies:              out.Replies,
		HandledByInteractive: out.HandledByInteractive,
	}
}

// showMenu enqueues an interactive menu for the session and records it as
// the last menu shown. When the enqueue fails the menu degrades to a
// numbered plain-text reply so the user is never left without options.
func (e *Engine) showMenu(r *Request, m models.Menu) *Outcome {
	r.Session.Data.LastMenu = m.Kind

	conversationID := r.Session.Data.ConversationID
	if conversationID == "" {
		conv, err := e.convos.EnsureConversation(r.Session.ID)
		if err != nil {
			slog.Error("Engine.showMenu: conversation resolution failed", "from", r.Session.ID, "error", err)
			return &Outcome{Replies: []string{renderMenuAsText(m)}}
		}
		conversationID = conv.ID
		r.Session.Data.ConversationID = conversationID
	}

	if _, err := e.convos.EnqueueMenu(conversationID, r.Session.ID, m, ""); err != nil {
		slog.Error("Engine.showMenu: menu enqueue failed", "from", r.Session.ID, "kind", m.Kind, "error", err)
		return &Outcome{Replies: []string{renderMenuAsText(m)}}
	}
	return &Outcome{HandledByInteractive: true}
}

// showMenuWith prepends plain-text replies to a menu outcome.
func (e *Engine) showMenuWith(r *Request, m models.Menu, replies ...string) *Outcome {
	out := e.showMenu(r, m)
	out.Replies = append(replies, out.Replies...)
	return out
}

func renderMenuAsText(m models.Menu) string {
	var b strings.Builder
	b.WriteString(m.Body)
	for i, opt := range m.Options {
		b.WriteString("\n")
		b.WriteString(strconv.Itoa(i+1) + ") " + opt.Title)
	}
	return b.String()
}

// lookupCliente wraps the directory so failures degrade instead of
// propagating. ok is false when the lookup could not be performed at all.
func (e *Engine) lookupCliente(cuit string) (lookup models.ClienteLookup, ok bool) {
	lookup, err := e.directory.GetClienteByCuit(cuit)
	if err != nil {
		slog.Error("Engine.lookupCliente: directory lookup failed", "error", err)
		return models.ClienteLookup{}, false
	}
	return lookup, true
}

// contextMenu picks the menu matching what the user was last doing: the
// client menu for identified clients, otherwise the last non-client menu
// shown, falling back to the root menu.
func (e *Engine) contextMenu(r *Request, body string) models.Menu {
	if r.Session.Data.CuitRaw != "" {
		return menu.Cliente(r.Session.ID, body)
	}
	switch r.Session.Data.LastMenu {
	case models.MenuNoCliente, models.MenuNCAlta, models.MenuNCPlan, models.MenuNCRI:
		return menu.ByKind(r.Session.Data.LastMenu, r.Session.ID, body)
	default:
		return menu.Root(r.Session.ID, body)
	}
}
