package fsm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/estudiodigital/contabot/internal/messaging"
	"github.com/estudiodigital/contabot/internal/models"
	"github.com/estudiodigital/contabot/internal/session"
	"github.com/estudiodigital/contabot/internal/store"
)

// fakeConvos records enqueued menus and can be told to fail so menu
// degradation paths get exercised.
type fakeConvos struct {
	menus []models.Menu
	fail  bool
}

func (f *fakeConvos) EnsureConversation(phone string) (*store.Conversation, error) {
	if f.fail {
		return nil, errors.New("store unavailable")
	}
	return &store.Conversation{ID: "conv-" + phone, Phone: phone}, nil
}

func (f *fakeConvos) EnqueueMenu(conversationID, phone string, m models.Menu, idempotencyKey string) (string, error) {
	if f.fail {
		return "", errors.New("store unavailable")
	}
	f.menus = append(f.menus, m)
	return "out_test", nil
}

func (f *fakeConvos) lastMenu(t *testing.T) models.Menu {
	t.Helper()
	if len(f.menus) == 0 {
		t.Fatal("no menu was enqueued")
	}
	return f.menus[len(f.menus)-1]
}

// fakeNotifier records internal escalations per operator.
type fakeNotifier struct {
	belen []string
	ivan  []string
}

func (f *fakeNotifier) SendInternalToBelen(ctx context.Context, text string) {
	f.belen = append(f.belen, text)
}

func (f *fakeNotifier) SendInternalToIvan(ctx context.Context, text string) {
	f.ivan = append(f.ivan, text)
}

var _ messaging.Notifier = (*fakeNotifier)(nil)

type testHarness struct {
	engine    *Engine
	sessions  *session.Store
	directory *store.InMemoryStore
	convos    *fakeConvos
	notifier  *fakeNotifier
	now       time.Time
}

func newTestHarness(t *testing.T, opts ...Option) *testHarness {
	t.Helper()
	h := &testHarness{
		sessions:  session.NewStore(),
		directory: store.NewInMemoryStore(),
		convos:    &fakeConvos{},
		notifier:  &fakeNotifier{},
		now:       time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
	}
	opts = append([]Option{WithClock(func() time.Time { return h.now })}, opts...)
	h.engine = NewEngine(h.sessions, h.directory, h.convos, h.notifier, opts...)
	return h
}

func (h *testHarness) send(t *testing.T, from, text string) *models.Result {
	t.Helper()
	res, err := h.engine.ProcessMessage(context.Background(), models.Inbound{
		From: from,
		Text: text,
		Type: models.MessageTypeText,
	})
	if err != nil {
		t.Fatalf("ProcessMessage(%q) returned error: %v", text, err)
	}
	return res
}

func (h *testHarness) sendAttachment(t *testing.T, from string, typ models.MessageType) *models.Result {
	t.Helper()
	res, err := h.engine.ProcessMessage(context.Background(), models.Inbound{
		From: from,
		Type: typ,
	})
	if err != nil {
		t.Fatalf("ProcessMessage(attachment) returned error: %v", err)
	}
	return res
}

func (h *testHarness) sendCaptioned(t *testing.T, from string, typ models.MessageType, caption string) *models.Result {
	t.Helper()
	res, err := h.engine.ProcessMessage(context.Background(), models.Inbound{
		From: from,
		Text: caption,
		Type: typ,
	})
	if err != nil {
		t.Fatalf("ProcessMessage(captioned attachment) returned error: %v", err)
	}
	return res
}

func repliesContain(res *models.Result, substr string) bool {
	for _, r := range res.Replies {
		if strings.Contains(r, substr) {
			return true
		}
	}
	return false
}

func TestProcessMessageNewSessionShowsRootMenu(t *testing.T) {
	h := newTestHarness(t)

	res := h.send(t, "5491155550001", "hola")
	if !res.HandledByInteractive {
		t.Error("expected the root menu to be enqueued as an interactive payload")
	}
	if res.Session.State != models.StateRoot {
		t.Errorf("state = %s, expected ROOT", res.Session.State)
	}
	if got := h.convos.lastMenu(t).Kind; got != models.MenuRoot {
		t.Errorf("menu kind = %s, expected root", got)
	}
}

func TestOperatorResetWipesSession(t *testing.T) {
	h := newTestHarness(t)

	sess := h.sessions.GetOrCreate(DefaultOperatorPhone)
	sess.State = models.StateClienteMenu
	sess.Data.CuitRaw = "20123456789"
	sess.Data.NombreCliente = "Carla"

	res := h.send(t, DefaultOperatorPhone, "RESET")
	if !repliesContain(res, "Sesión reiniciada") {
		t.Errorf("replies = %v, expected reset confirmation", res.Replies)
	}
	if res.Session.State != models.StateRoot {
		t.Errorf("state = %s, expected ROOT after reset", res.Session.State)
	}
	if res.Session.Data.CuitRaw != "" || res.Session.Data.NombreCliente != "" {
		t.Errorf("session data not cleared: %+v", res.Session.Data)
	}
}

func TestResetPreservesEchoFields(t *testing.T) {
	h := newTestHarness(t)

	sess := h.sessions.GetOrCreate(DefaultOperatorPhone)
	sess.Data.ConversationID = "conv-keep"
	sess.Data.CuitRaw = "20123456789"

	h.send(t, DefaultOperatorPhone, "reset")

	sess = h.sessions.Get(DefaultOperatorPhone)
	if sess.Data.ConversationID != "conv-keep" {
		t.Errorf("ConversationID = %q, expected echo field to survive reset", sess.Data.ConversationID)
	}
	if sess.Data.CuitRaw != "" {
		t.Error("CuitRaw should be cleared by reset")
	}
}

func TestResetIgnoredFromRegularUser(t *testing.T) {
	h := newTestHarness(t)

	res := h.send(t, "5491155550003", "reset")
	if repliesContain(res, "Sesión reiniciada") {
		t.Error("reset must only be honored from the operator phone")
	}
	if !res.HandledByInteractive {
		t.Error("unmatched ROOT input should re-show the root menu")
	}
}

func TestPaymentIntentWithoutCuitAsksForIt(t *testing.T) {
	h := newTestHarness(t)

	res := h.send(t, "5491155550004", "quiero pagar")
	if res.Session.State != models.StateClientePedirCuit {
		t.Errorf("state = %s, expected CLIENTE_PEDIR_CUIT", res.Session.State)
	}
	if !res.Session.Data.PendingBalance {
		t.Error("PendingBalance should be latched for resolution after the CUIT lookup")
	}
	if !repliesContain(res, "CUIT") {
		t.Errorf("replies = %v, expected a CUIT prompt", res.Replies)
	}
}

func TestSaldoCommandWithIdentifiedClient(t *testing.T) {
	h := newTestHarness(t)
	phone := "5491155550005"

	if err := h.directory.UpsertCliente(models.Cliente{
		Cuit:            "20123456789",
		Nombre:          "Marta",
		DeudaHonorarios: 1500.5,
	}); err != nil {
		t.Fatalf("UpsertCliente: %v", err)
	}

	sess := h.sessions.GetOrCreate(phone)
	sess.State = models.StateClienteMenu
	sess.Data.CuitRaw = "20123456789"
	sess.Data.NombreCliente = "Marta"

	res := h.send(t, phone, "saldo")
	if !repliesContain(res, "1.500,50") {
		t.Errorf("replies = %v, expected the formatted balance 1.500,50", res.Replies)
	}
	if res.Session.State != models.StateClienteMenu {
		t.Errorf("state = %s, balance query must not move the session", res.Session.State)
	}
}

func TestSaldoDegradesWhenDirectoryEmpty(t *testing.T) {
	h := newTestHarness(t)
	phone := "5491155550006"

	sess := h.sessions.GetOrCreate(phone)
	sess.State = models.StateClienteMenu
	sess.Data.CuitRaw = "20999999999" // not in the directory

	res := h.send(t, phone, "importe")
	if !repliesContain(res, "No disponible en este momento") {
		t.Errorf("replies = %v, expected degraded unavailable reply", res.Replies)
	}
}

func TestPaymentIntentReturnsInstructions(t *testing.T) {
	h := newTestHarness(t)
	phone := "5491155550007"

	sess := h.sessions.GetOrCreate(phone)
	sess.State = models.StateClienteMenu
	sess.Data.CuitRaw = "20123456789"

	res := h.send(t, phone, "pasame el cbu")
	if !repliesContain(res, "estudio.honorarios") {
		t.Errorf("replies = %v, expected transfer instructions with the alias", res.Replies)
	}
	if res.Session.State != models.StateClienteMenu {
		t.Errorf("state = %s, payment instructions must not move the session", res.Session.State)
	}
}

func TestHandoffInterceptorRemembersReturnState(t *testing.T) {
	h := newTestHarness(t)
	phone := "5491155550008"

	sess := h.sessions.GetOrCreate(phone)
	sess.State = models.StateClienteMenu

	res := h.send(t, phone, "quiero hablar con alguien")
	if res.Session.State != models.StateClienteHablarAlguien {
		t.Errorf("state = %s, expected CLIENTE_HABLAR_CON_ALGUIEN", res.Session.State)
	}
	if res.Session.Data.ReturnState != models.StateClienteMenu {
		t.Errorf("ReturnState = %s, expected CLIENTE_MENU", res.Session.Data.ReturnState)
	}
	if got := h.convos.lastMenu(t).Kind; got != models.MenuPersonas {
		t.Errorf("menu kind = %s, expected personas", got)
	}
}

func TestHandoffNotInterceptedWhileCollectingData(t *testing.T) {
	h := newTestHarness(t)
	phone := "5491155550009"

	sess := h.sessions.GetOrCreate(phone)
	sess.State = models.StateClienteFacturaDatos
	sess.Data.Invoice = &models.InvoiceDraft{}

	res := h.send(t, phone, "hablar con alguien")
	if res.Session.State != models.StateClienteFacturaDatos {
		t.Errorf("state = %s, handoff phrases inside data collection belong to the flow", res.Session.State)
	}
	draft := res.Session.Data.Invoice
	if len(draft.Lines) != 1 {
		t.Errorf("invoice lines = %d, expected the text to be accumulated", len(draft.Lines))
	}
}

func TestUnknownStateRecoversToRoot(t *testing.T) {
	h := newTestHarness(t)
	phone := "5491155550010"

	sess := h.sessions.GetOrCreate(phone)
	sess.State = "DOES_NOT_EXIST"

	res := h.send(t, phone, "hola")
	if res.Session.State != models.StateRoot {
		t.Errorf("state = %s, expected recovery to ROOT", res.Session.State)
	}
	if !res.HandledByInteractive {
		t.Error("expected the root menu after recovery")
	}
}

func TestMenuDegradesToTextWhenEnqueueFails(t *testing.T) {
	h := newTestHarness(t)
	h.convos.fail = true

	res := h.send(t, "5491155550011", "hola")
	if res.HandledByInteractive {
		t.Error("interactive flag must be false when the menu could not be enqueued")
	}
	if !repliesContain(res, "1)") {
		t.Errorf("replies = %v, expected numbered plain-text fallback", res.Replies)
	}
}

func TestAttachmentInIdleStateGetsApologyAndMenu(t *testing.T) {
	h := newTestHarness(t)
	phone := "5491155550012"

	res := h.sendAttachment(t, phone, models.MessageTypeImage)
	if !repliesContain(res, "no puedo procesar archivos") {
		t.Errorf("replies = %v, expected the apology", res.Replies)
	}
	if res.Session.State != models.StateRoot {
		t.Errorf("state = %s, expected the root menu context", res.Session.State)
	}
}

func TestAttachmentInFacturaStateIsAcknowledged(t *testing.T) {
	h := newTestHarness(t)
	phone := "5491155550013"

	sess := h.sessions.GetOrCreate(phone)
	sess.State = models.StateClienteFacturaDatos
	sess.Data.Invoice = &models.InvoiceDraft{}

	res := h.sendAttachment(t, phone, models.MessageTypeDocument)
	if !repliesContain(res, "LISTO") {
		t.Errorf("replies = %v, expected the receipt ack pointing at LISTO", res.Replies)
	}
	if res.Session.State != models.StateClienteFacturaDatos {
		t.Errorf("state = %s, attachment must not move the session", res.Session.State)
	}
}

func TestAttachmentCaptionJoinsInvoiceLines(t *testing.T) {
	h := newTestHarness(t)
	phone := "5491155550014"

	sess := h.sessions.GetOrCreate(phone)
	sess.State = models.StateClienteFacturaDatos
	sess.Data.Invoice = &models.InvoiceDraft{}

	res := h.sendCaptioned(t, phone, models.MessageTypeImage, "concepto: pintura de oficina")
	if !repliesContain(res, "LISTO") {
		t.Errorf("replies = %v, expected the receipt ack pointing at LISTO", res.Replies)
	}

	draft := res.Session.Data.Invoice
	if len(draft.Lines) != 1 || draft.Lines[0] != "concepto: pintura de oficina" {
		t.Errorf("invoice lines = %v, expected the caption accumulated as invoice data", draft.Lines)
	}

	h.sendAttachment(t, phone, models.MessageTypeDocument)
	if len(draft.Lines) != 1 {
		t.Errorf("invoice lines = %v, an uncaptioned attachment must not add an empty line", draft.Lines)
	}
}
