package fsm

import (
	"log/slog"

	"github.com/estudiodigital/contabot/internal/menu"
	"github.com/estudiodigital/contabot/internal/models"
)

// Interceptor is a cross-cutting guard evaluated before per-state dispatch.
// The chain is ordered; the first applying interceptor decides the message.
// Handle returning nil means "this message belongs to the per-state handler":
// the chain stops and dispatch proceeds.
type Interceptor interface {
	Name() string
	Applies(r *Request) bool
	Handle(r *Request) *Outcome
}

// State allow-lists driving the interceptor chain.
var (
	// paymentIdleStates are the idle/menu states where payment intent is
	// intercepted; in data-collection states the text belongs to the flow.
	paymentIdleStates = stateSet(
		models.StateRoot,
		models.StateClienteTipoSelector,
		models.StateClienteMenu,
		models.StateNoClienteMenu,
		models.StateNCAltaMenu,
		models.StateNCPlanMenu,
		models.StateNCRIMenu,
		models.StateFinaliza,
		models.StateDerivaIvan,
	)

	// handoffStates are the states where the human-handoff command is honored.
	handoffStates = stateSet(
		models.StateRoot,
		models.StateClienteTipoSelector,
		models.StateClienteMenu,
		models.StateClienteEstadoGeneral,
		models.StateClienteVentasInfo,
		models.StateClienteHablarAlguien,
		models.StateNoClienteMenu,
		models.StateNCAltaMenu,
		models.StateNCAltaRequisitos,
		models.StateNCPlanMenu,
		models.StateNCPlanRequisitos,
		models.StateNCRIMenu,
		models.StateFinaliza,
		models.StateDerivaIvan,
	)

	// waitingStates expect specific input; a handoff phrase there is handled
	// by the state's own logic, not the interceptor.
	waitingStates = stateSet(
		models.StateClientePedirCuit,
		models.StateClienteFacturaDatos,
		models.StateClienteFacturaConfirm,
		models.StateClienteFacturaEdit,
		models.StateClienteRIConsultaLibre,
		models.StateClienteOtroConsulta,
		models.StateNCDerivaIvanTexto,
		models.StateNCEstadoConsulta,
	)

	// mediaStates accept attachments as part of their data collection.
	mediaStates = stateSet(
		models.StateClienteFacturaDatos,
		models.StateClienteRIConsultaLibre,
		models.StateClienteOtroConsulta,
	)

	// freeConsultStates manage media themselves in their handlers.
	freeConsultStates = stateSet(
		models.StateClienteRIConsultaLibre,
		models.StateClienteOtroConsulta,
	)
)

func stateSet(states ...models.SessionState) map[models.SessionState]struct{} {
	set := make(map[models.SessionState]struct{}, len(states))
	for _, s := range states {
		set[s] = struct{}{}
	}
	return set
}

func inSet(set map[models.SessionState]struct{}, s models.SessionState) bool {
	_, ok := set[s]
	return ok
}

// resetInterceptor is the administrative escape hatch: the exact text
// "reset" from the operator phone wipes the session, bypassing every other
// rule.
type resetInterceptor struct {
	engine *Engine
}

func (i *resetInterceptor) Name() string { return "reset" }

func (i *resetInterceptor) Applies(r *Request) bool {
	return r.In.From == i.engine.operatorPhone && r.Norm == "reset"
}

func (i *resetInterceptor) Handle(r *Request) *Outcome {
	r.Session.Data.Reset()
	r.Session.State = models.StateRoot
	slog.Info("resetInterceptor: session reset by operator", "from", r.In.From)
	return &Outcome{Replies: []string{"Sesión reiniciada."}}
}

// paymentInterceptor catches balance requests and payment intent in
// idle/menu states.
type paymentInterceptor struct {
	engine *Engine
}

func (i *paymentInterceptor) Name() string { return "payment" }

func (i *paymentInterceptor) Applies(r *Request) bool {
	if !inSet(paymentIdleStates, r.Session.State) || r.In.Type.IsAttachment() {
		return false
	}
	return IsAmountCommand(r.Norm) || HasPaymentIntent(r.Norm)
}

func (i *paymentInterceptor) Handle(r *Request) *Outcome {
	sess := r.Session

	if sess.Data.CuitRaw == "" {
		// Not identified yet: capture the intent and ask for the CUIT.
		sess.Data.PendingBalance = true
		sess.State = models.StateClientePedirCuit
		return &Outcome{Replies: []string{
			"Para darte esa información necesito identificarte. Pasame tu CUIT (solo números).",
		}}
	}

	if IsAmountCommand(r.Norm) {
		lookup, ok := i.engine.lookupCliente(sess.Data.CuitRaw)
		if !ok || !lookup.Exists || lookup.Data == nil {
			return &Outcome{Replies: []string{"No disponible en este momento. Probá de nuevo en un rato."}}
		}
		return &Outcome{Replies: []string{
			lookup.Data.Nombre + ", tu saldo pendiente de honorarios es $ " + FormatMoney(lookup.Data.DeudaHonorarios) + ".",
		}}
	}

	// Broader payment intent: fixed instructions, state unchanged.
	return &Outcome{Replies: []string{
		"Para pagar honorarios podés hacer una transferencia al alias *estudio.honorarios*. Mandanos el comprobante por acá así lo registramos 🙌",
	}}
}

// handoffInterceptor routes an explicit request for a human to the
// choose-a-person menu, remembering where to come back.
type handoffInterceptor struct {
	engine *Engine
}

func (i *handoffInterceptor) Name() string { return "handoff" }

func (i *handoffInterceptor) Applies(r *Request) bool {
	if r.In.Type.IsAttachment() {
		return false
	}
	if !inSet(handoffStates, r.Session.State) || inSet(waitingStates, r.Session.State) {
		return false
	}
	return IsHandoffPhrase(r.Norm)
}

func (i *handoffInterceptor) Handle(r *Request) *Outcome {
	sess := r.Session
	if sess.State != models.StateClienteHablarAlguien {
		sess.Data.ReturnState = sess.State
	}
	sess.State = models.StateClienteHablarAlguien
	return i.engine.showMenu(r, menu.Personas(sess.ID, ""))
}

// mediaInterceptor classifies attachments. Text matching the done keyword in
// a media-collecting state falls through so the handler can finalize.
type mediaInterceptor struct {
	engine *Engine
}

func (i *mediaInterceptor) Name() string { return "media" }

func (i *mediaInterceptor) Applies(r *Request) bool {
	// LISTO pre-handling: plain text, including the done keyword closing a
	// media-collecting flow, is the handler's business. Only genuine
	// attachments are classified here.
	return r.In.Type.IsAttachment()
}

func (i *mediaInterceptor) Handle(r *Request) *Outcome {
	sess := r.Session

	// The free-consultation handlers manage media themselves.
	if inSet(freeConsultStates, sess.State) {
		return nil
	}

	if inSet(mediaStates, sess.State) {
		// Only the invoice flow reaches here; a caption travels as the
		// attachment's text and still counts as invoice data.
		if r.In.Text != "" {
			draft := sess.Data.Invoice
			if draft == nil {
				draft = &models.InvoiceDraft{}
				sess.Data.Invoice = draft
			}
			draft.Lines = append(draft.Lines, r.In.Text)
		}
		return &Outcome{Replies: []string{
			"Recibido 👍 Cuando hayas terminado de mandar todo escribí *LISTO*.",
		}}
	}

	// Attachment where none is expected: apologize and re-anchor the user
	// on a context-appropriate menu.
	m := i.engine.contextMenu(r, "")
	sess.State = menu.StateFor(m.Kind)
	return i.engine.showMenuWith(r, m,
		"Perdón, por este medio no puedo procesar archivos en este momento 🙏 Elegí una opción:",
	)
}
