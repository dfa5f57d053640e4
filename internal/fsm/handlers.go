package fsm

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/estudiodigital/contabot/internal/menu"
	"github.com/estudiodigital/contabot/internal/models"
)

// AckThrottle is the minimum gap between acknowledgment replies in the
// free-consultation states.
const AckThrottle = 12 * time.Second

// buildRegistry wires one handler per FSM state. Terminal-ish states loop
// back to the ROOT handler on the next message.
func (e *Engine) buildRegistry() map[models.SessionState]HandlerFunc {
	restart := func(r *Request) *Outcome {
		r.Session.State = models.StateRoot
		return e.handleRoot(r)
	}

	return map[models.SessionState]HandlerFunc{
		models.StateRoot:                   e.handleRoot,
		models.StateClienteTipoSelector:    e.handleTipoSelector,
		models.StateClientePedirCuit:       e.handlePedirCuit,
		models.StateClienteMenu:            e.handleClienteMenu,
		models.StateClienteEstadoGeneral:   e.handleBackToClienteMenu,
		models.StateClienteVentasInfo:      e.handleBackToClienteMenu,
		models.StateClienteFacturaDatos:    e.handleFacturaDatos,
		models.StateClienteFacturaConfirm:  e.handleFacturaConfirm,
		models.StateClienteFacturaEdit:     e.handleFacturaEdit,
		models.StateClienteReunion:         e.handleReunion,
		models.StateClienteHablarAlguien:   e.handleHablarAlguien,
		models.StateClienteRIConsultaLibre: e.handleConsultaRI,
		models.StateClienteOtroConsulta:    e.handleConsultaOtro,
		models.StateNoClienteMenu:          e.handleNoClienteMenu,
		models.StateNCAltaMenu:             e.handleNCAltaMenu,
		models.StateNCAltaRequisitos:       e.handleNCAltaRequisitos,
		models.StateNCPlanMenu:             e.handleNCPlanMenu,
		models.StateNCPlanRequisitos:       e.handleNCPlanRequisitos,
		models.StateNCRIMenu:               e.handleNCRIMenu,
		models.StateNCEstadoConsulta:       e.handleNCEstadoConsulta,
		models.StateNCDerivaIvanTexto:      e.handleNCDerivaIvanTexto,
		models.StateFinaliza:               restart,
		models.StateDerivaIvan:             restart,
	}
}

// matches reports whether normalized input selects a menu option: by id, by
// 1-based position or by one of the extra aliases.
func matches(norm, id string, position int, aliases ...string) bool {
	if norm == id || norm == Normalize(id) {
		return true
	}
	if position > 0 && norm == strconv.Itoa(position) {
		return true
	}
	for _, a := range aliases {
		if norm == Normalize(a) {
			return true
		}
	}
	return false
}

func (e *Engine) handleRoot(r *Request) *Outcome {
	sess := r.Session
	switch {
	case matches(r.Norm, menu.OptCliente, 1, "soy cliente", "si soy cliente"):
		sess.State = models.StateClienteTipoSelector
		return e.showMenu(r, menu.TipoSelector(sess.ID, ""))
	case matches(r.Norm, menu.OptNoCliente, 2, "no soy cliente"):
		sess.State = models.StateNoClienteMenu
		return e.showMenu(r, menu.NoCliente(sess.ID, ""))
	default:
		sess.State = models.StateRoot
		return e.showMenu(r, menu.Root(sess.ID, ""))
	}
}

func (e *Engine) handleTipoSelector(r *Request) *Outcome {
	sess := r.Session
	switch {
	case matches(r.Norm, menu.OptTipoMono, 1, "monotributista", "monotributo"):
		sess.State = models.StateClientePedirCuit
		return &Outcome{Replies: []string{"Perfecto. Pasame tu CUIT (solo números)."}}
	case matches(r.Norm, menu.OptTipoRI, 2, "responsable inscripto"):
		sess.State = models.StateClienteRIConsultaLibre
		sess.Data.Consulta = &models.ConsultaDraft{}
		return &Outcome{Replies: []string{
			"Contame tu consulta con todo el detalle que puedas. Podés mandar texto, fotos o archivos. Cuando termines escribí *LISTO*.",
		}}
	case matches(r.Norm, menu.OptTipoOtro, 3, "otro", "otra"):
		sess.State = models.StateClienteOtroConsulta
		sess.Data.Consulta = &models.ConsultaDraft{}
		return &Outcome{Replies: []string{
			"Contame en qué te podemos ayudar. Podés mandar texto, fotos o archivos. Cuando termines escribí *LISTO*.",
		}}
	default:
		return e.showMenu(r, menu.TipoSelector(sess.ID, ""))
	}
}

func (e *Engine) handlePedirCuit(r *Request) *Outcome {
	sess := r.Session
	digits := DigitsOnly(r.In.Text)
	if len(digits) != 11 {
		return &Outcome{Replies: []string{
			"No pude leer el CUIT 🤔 Mandámelo de nuevo, son 11 números (por ejemplo 20123456789).",
		}}
	}

	lookup, ok := e.lookupCliente(digits)
	if !ok {
		return &Outcome{Replies: []string{
			"No disponible en este momento. Probá mandarme el CUIT de nuevo en un rato.",
		}}
	}
	if !lookup.Exists || lookup.Data == nil {
		return &Outcome{Replies: []string{
			"No encontré un cliente con ese CUIT. Fijate que esté bien escrito y mandámelo de nuevo.",
		}}
	}

	sess.Data.CuitRaw = digits
	sess.Data.NombreCliente = lookup.Data.Nombre

	replies := []string{"¡Hola " + lookup.Data.Nombre + "! 👋"}
	if sess.Data.PendingBalance {
		sess.Data.PendingBalance = false
		replies = append(replies,
			"Tu saldo pendiente de honorarios es $ "+FormatMoney(lookup.Data.DeudaHonorarios)+".")
	}

	sess.State = models.StateClienteMenu
	return e.showMenuWith(r, menu.Cliente(sess.ID, ""), replies...)
}

func (e *Engine) handleClienteMenu(r *Request) *Outcome {
	sess := r.Session
	switch {
	case matches(r.Norm, menu.OptEstado, 1, "estado general", "estado"):
		sess.State = models.StateClienteEstadoGeneral
		return &Outcome{Replies: []string{e.renderEstadoGeneral(sess)}}
	case matches(r.Norm, menu.OptFactura, 2, "pedir una factura", "factura"):
		sess.State = models.StateClienteFacturaDatos
		sess.Data.Invoice = &models.InvoiceDraft{}
		return &Outcome{Replies: []string{
			"Dale. Pasame los datos de la factura: CUIT del destinatario, concepto, importe y fecha. " +
				"Podés mandarlo en varios mensajes o adjuntar archivos. Cuando termines escribí *LISTO*.",
		}}
	case matches(r.Norm, menu.OptVentas, 3, "informar ventas", "ventas"):
		sess.State = models.StateClienteVentasInfo
		return &Outcome{Replies: []string{
			"Para informar tus ventas del mes mandanos el detalle por mail a ventas@estudio.com.ar " +
				"o traé la documentación a la oficina. Escribí lo que sea para volver al menú.",
		}}
	case matches(r.Norm, menu.OptReunion, 4, "pedir una reunion", "reunion"):
		sess.State = models.StateClienteReunion
		return &Outcome{Replies: []string{
			"Dale. Decime qué días y horarios te quedan cómodos y coordinamos.",
		}}
	case matches(r.Norm, menu.OptHablar, 5, "hablar con alguien"):
		sess.Data.ReturnState = models.StateClienteMenu
		sess.State = models.StateClienteHablarAlguien
		return e.showMenu(r, menu.Personas(sess.ID, ""))
	case matches(r.Norm, menu.OptFin, 6, "finalizar", "chau", "gracias"):
		sess.State = models.StateFinaliza
		return &Outcome{Replies: []string{"¡Gracias por escribirnos! Cualquier cosa estamos por acá 👋"}}
	default:
		return e.showMenu(r, menu.Cliente(sess.ID, ""))
	}
}

func (e *Engine) renderEstadoGeneral(sess *models.Session) string {
	lookup, ok := e.lookupCliente(sess.Data.CuitRaw)
	if !ok || !lookup.Exists || lookup.Data == nil {
		return "No disponible en este momento. Probá de nuevo en un rato."
	}
	c := lookup.Data
	var b strings.Builder
	b.WriteString("Tu estado general:\n")
	if c.CategoriaFiscal != "" {
		b.WriteString("• Categoría: " + c.CategoriaFiscal + "\n")
	}
	if c.PlanPagos != "" {
		b.WriteString("• Plan de pagos: " + c.PlanPagos + "\n")
	}
	if c.EstadoGeneral != "" {
		b.WriteString("• Situación: " + c.EstadoGeneral + "\n")
	}
	b.WriteString("• Honorarios pendientes: $ " + FormatMoney(c.DeudaHonorarios) + "\n")
	b.WriteString("\nEscribí lo que sea para volver al menú.")
	return b.String()
}

// handleBackToClienteMenu serves the informational states: any input returns
// to the client menu.
func (e *Engine) handleBackToClienteMenu(r *Request) *Outcome {
	r.Session.State = models.StateClienteMenu
	return e.showMenu(r, menu.Cliente(r.Session.ID, ""))
}

func (e *Engine) handleFacturaDatos(r *Request) *Outcome {
	sess := r.Session
	draft := sess.Data.Invoice
	if draft == nil {
		draft = &models.InvoiceDraft{}
		sess.Data.Invoice = draft
	}

	if IsListo(r.Norm) {
		if len(draft.Lines) == 0 {
			return &Outcome{Replies: []string{
				"Todavía no me pasaste ningún dato. Mandame el detalle de la factura y después escribí *LISTO*.",
			}}
		}
		draft.Fields = ExtractInvoiceFields(strings.Join(draft.Lines, "\n"))
		sess.State = models.StateClienteFacturaConfirm
		return &Outcome{Replies: []string{RenderInvoiceSummary(draft.Fields)}}
	}

	draft.Lines = append(draft.Lines, r.In.Text)
	// Accumulate silently; the closing LISTO drives the next step.
	return &Outcome{}
}

func (e *Engine) handleFacturaConfirm(r *Request) *Outcome {
	sess := r.Session
	draft := sess.Data.Invoice
	if draft == nil {
		sess.State = models.StateClienteMenu
		return e.showMenu(r, menu.Cliente(sess.ID, ""))
	}

	switch {
	case r.Norm == "confirmar" || r.Norm == "si" || r.Norm == "ok":
		summary := "Pedido de factura de " + sess.Data.NombreCliente + " (" + sess.ID + "):\n" +
			RenderInvoiceSummary(draft.Fields)
		e.notifier.SendInternalToBelen(r.Ctx, summary)
		sess.Data.Invoice = nil
		sess.State = models.StateFinaliza
		return &Outcome{Replies: []string{
			"¡Listo! Le pasé el pedido a Belén, te va a confirmar la factura por acá 🧾",
		}}
	case r.Norm == "editar" || r.Norm == "no":
		draft.EditingField = ""
		sess.State = models.StateClienteFacturaEdit
		return &Outcome{Replies: []string{invoiceFieldPrompt}}
	default:
		if field := invoiceFieldFor(r.Norm); field != "" {
			draft.EditingField = field
			sess.State = models.StateClienteFacturaEdit
			return &Outcome{Replies: []string{"Pasame el nuevo valor para *" + field + "*."}}
		}
		return &Outcome{Replies: []string{RenderInvoiceSummary(draft.Fields)}}
	}
}

const invoiceFieldPrompt = "¿Qué campo querés corregir?\n1) CUIT\n2) Concepto\n3) Importe total\n4) Fecha\n5) Destinatario"

// invoiceFieldFor maps a selection (number or name) to a field label.
func invoiceFieldFor(norm string) string {
	switch norm {
	case "1", "cuit":
		return "cuit"
	case "2", "concepto":
		return "concepto"
	case "3", "importe", "importe total", "monto":
		return "importe"
	case "4", "fecha":
		return "fecha"
	case "5", "destinatario":
		return "destinatario"
	}
	return ""
}

func (e *Engine) handleFacturaEdit(r *Request) *Outcome {
	sess := r.Session
	draft := sess.Data.Invoice
	if draft == nil {
		sess.State = models.StateClienteMenu
		return e.showMenu(r, menu.Cliente(sess.ID, ""))
	}

	if draft.EditingField == "" {
		field := invoiceFieldFor(r.Norm)
		if field == "" {
			return &Outcome{Replies: []string{invoiceFieldPrompt}}
		}
		draft.EditingField = field
		return &Outcome{Replies: []string{"Pasame el nuevo valor para *" + field + "*."}}
	}

	value := strings.TrimSpace(r.In.Text)
	switch draft.EditingField {
	case "cuit":
		draft.Fields.Cuit = DigitsOnly(value)
	case "concepto":
		draft.Fields.Concepto = value
	case "importe":
		draft.Fields.ImporteTotal = value
	case "fecha":
		draft.Fields.Fecha = value
	case "destinatario":
		draft.Fields.Destinatario = value
	}
	draft.EditingField = ""
	sess.State = models.StateClienteFacturaConfirm
	return &Outcome{Replies: []string{RenderInvoiceSummary(draft.Fields)}}
}

func (e *Engine) handleReunion(r *Request) *Outcome {
	sess := r.Session
	who := sess.Data.NombreCliente
	if who == "" {
		who = sess.ID
	}
	e.notifier.SendInternalToBelen(r.Ctx, "Pedido de reunión de "+who+" ("+sess.ID+"): "+r.In.Text)
	sess.State = models.StateFinaliza
	return &Outcome{Replies: []string{
		"¡Anotado! Belén te va a escribir por acá para confirmar día y horario 📅",
	}}
}

func (e *Engine) handleHablarAlguien(r *Request) *Outcome {
	sess := r.Session
	switch {
	case matches(r.Norm, menu.OptBelen, 1, "belen"):
		e.notifier.SendInternalToBelen(r.Ctx, "Derivación: "+sess.ID+" pide hablar con vos.")
		sess.State = models.StateFinaliza
		return &Outcome{Replies: []string{GetFraseDerivacion("belen")}}
	case matches(r.Norm, menu.OptIvan, 2, "ivan"):
		e.notifier.SendInternalToIvan(r.Ctx, "Derivación: "+sess.ID+" pide hablar con vos.")
		sess.State = models.StateFinaliza
		return &Outcome{Replies: []string{GetFraseDerivacion("ivan")}}
	case matches(r.Norm, menu.OptVolver, 3, "volver"):
		return e.returnFromHandoff(r)
	default:
		return e.showMenu(r, menu.Personas(sess.ID, ""))
	}
}

func (e *Engine) returnFromHandoff(r *Request) *Outcome {
	sess := r.Session
	back := sess.Data.ReturnState
	sess.Data.ReturnState = ""
	switch {
	case back != "" && back != models.StateClienteHablarAlguien:
		sess.State = back
	case sess.Data.CuitRaw != "":
		sess.State = models.StateClienteMenu
	default:
		sess.State = models.StateRoot
	}

	switch sess.State {
	case models.StateClienteMenu:
		return e.showMenu(r, menu.Cliente(sess.ID, ""))
	case models.StateNoClienteMenu:
		return e.showMenu(r, menu.NoCliente(sess.ID, ""))
	default:
		sess.State = models.StateRoot
		return e.showMenu(r, menu.Root(sess.ID, ""))
	}
}

func (e *Engine) handleConsultaRI(r *Request) *Outcome {
	return e.handleConsultaLibre(r, "ivan")
}

func (e *Engine) handleConsultaOtro(r *Request) *Outcome {
	return e.handleConsultaLibre(r, "belen")
}

// handleConsultaLibre implements the open-ended intake states: accumulate
// text and media references, throttle acknowledgments, and on LISTO forward
// a structured summary to the assigned operator.
func (e *Engine) handleConsultaLibre(r *Request, operator string) *Outcome {
	sess := r.Session
	draft := sess.Data.Consulta
	if draft == nil {
		draft = &models.ConsultaDraft{}
		sess.Data.Consulta = draft
	}

	if r.In.Type.IsAttachment() {
		ref := string(r.In.Type)
		if r.In.MessageID != "" {
			ref += ":" + r.In.MessageID
		}
		draft.Media = append(draft.Media, ref)
		// Captions travel as the attachment's text.
		if r.In.Text != "" {
			draft.Texts = append(draft.Texts, r.In.Text)
		}
		return e.throttledAck(draft, "Recibido 👍 Cuando termines escribí *LISTO*.")
	}

	if IsListo(r.Norm) {
		if len(draft.Texts) == 0 && len(draft.Media) == 0 {
			return &Outcome{Replies: []string{"Todavía no me contaste nada 🙂 Escribime tu consulta y después *LISTO*."}}
		}
		summary := e.renderConsultaSummary(sess, draft)
		if operator == "ivan" {
			e.notifier.SendInternalToIvan(r.Ctx, summary)
		} else {
			e.notifier.SendInternalToBelen(r.Ctx, summary)
		}
		sess.Data.Consulta = nil
		sess.State = models.StateRoot
		return &Outcome{Replies: []string{
			"¡Gracias! Ya derivé tu consulta, te van a responder por acá a la brevedad 🙌",
		}}
	}

	draft.Texts = append(draft.Texts, r.In.Text)
	return e.throttledAck(draft, "Anotado 👍 Seguí contándome y escribí *LISTO* cuando termines.")
}

// throttledAck replies at most once per AckThrottle window; inside the
// window the message is accumulated silently.
func (e *Engine) throttledAck(draft *models.ConsultaDraft, ack string) *Outcome {
	now := e.now()
	if !draft.LastAckAt.IsZero() && now.Sub(draft.LastAckAt) < AckThrottle {
		return &Outcome{}
	}
	draft.LastAckAt = now
	return &Outcome{Replies: []string{ack}}
}

func (e *Engine) renderConsultaSummary(sess *models.Session, draft *models.ConsultaDraft) string {
	who := sess.Data.NombreCliente
	if who == "" {
		who = sess.ID
	}
	var b strings.Builder
	b.WriteString("Consulta de " + who + " (" + sess.ID + "):\n\n")
	b.WriteString(strings.Join(draft.Texts, "\n\n"))
	if len(draft.Media) > 0 {
		b.WriteString("\n\nAdjuntos: " + strings.Join(draft.Media, ", "))
	}
	return b.String()
}

func (e *Engine) handleNoClienteMenu(r *Request) *Outcome {
	sess := r.Session
	switch {
	case matches(r.Norm, menu.OptNCAlta, 1, "alta de monotributo", "monotributo"):
		sess.State = models.StateNCAltaMenu
		return e.showMenu(r, menu.NCAlta(sess.ID, ""))
	case matches(r.Norm, menu.OptNCPlan, 2, "plan de pagos"):
		sess.State = models.StateNCPlanMenu
		return e.showMenu(r, menu.NCPlan(sess.ID, ""))
	case matches(r.Norm, menu.OptNCRI, 3, "responsable inscripto"):
		sess.State = models.StateNCRIMenu
		return e.showMenu(r, menu.NCRI(sess.ID, ""))
	case matches(r.Norm, menu.OptNCTramite, 4, "estado de un tramite", "tramite"):
		sess.State = models.StateNCEstadoConsulta
		return &Outcome{Replies: []string{
			"Decime el número de trámite o contame de qué trámite se trata y lo reviso.",
		}}
	case matches(r.Norm, menu.OptNCOtra, 5, "otra consulta", "otra"):
		sess.State = models.StateNCDerivaIvanTexto
		return &Outcome{Replies: []string{"Contame brevemente tu consulta y te derivo con quien corresponda."}}
	default:
		return e.showMenu(r, menu.NoCliente(sess.ID, ""))
	}
}

const requisitosAlta = "Para el alta de monotributo necesitás:\n" +
	"• DNI (frente y dorso)\n" +
	"• Número de CUIT o CUIL\n" +
	"• Clave fiscal nivel 2 o superior\n" +
	"• Actividad y facturación estimada\n\n" +
	"Escribí lo que sea para volver."

const requisitosPlan = "Para armar un plan de pagos necesitás:\n" +
	"• CUIT y clave fiscal\n" +
	"• Detalle de la deuda a regularizar\n" +
	"• CBU de la cuenta para débito\n\n" +
	"Escribí lo que sea para volver."

func (e *Engine) handleNCAltaMenu(r *Request) *Outcome {
	sess := r.Session
	switch {
	case matches(r.Norm, menu.OptRequisitos, 1, "ver requisitos", "requisitos"):
		sess.State = models.StateNCAltaRequisitos
		return &Outcome{Replies: []string{requisitosAlta}}
	case matches(r.Norm, menu.OptIniciar, 2, "iniciar el alta", "iniciar"):
		sess.State = models.StateNCDerivaIvanTexto
		return &Outcome{Replies: []string{
			"¡Genial! Contame tu actividad y desde cuándo querés el alta, y te derivo con Iván.",
		}}
	case matches(r.Norm, menu.OptVolver, 3, "volver"):
		sess.State = models.StateNoClienteMenu
		return e.showMenu(r, menu.NoCliente(sess.ID, ""))
	default:
		return e.showMenu(r, menu.NCAlta(sess.ID, ""))
	}
}

func (e *Engine) handleNCAltaRequisitos(r *Request) *Outcome {
	r.Session.State = models.StateNCAltaMenu
	return e.showMenu(r, menu.NCAlta(r.Session.ID, ""))
}

func (e *Engine) handleNCPlanMenu(r *Request) *Outcome {
	sess := r.Session
	switch {
	case matches(r.Norm, menu.OptRequisitos, 1, "ver requisitos", "requisitos"):
		sess.State = models.StateNCPlanRequisitos
		return &Outcome{Replies: []string{requisitosPlan}}
	case matches(r.Norm, menu.OptIniciar, 2, "iniciar un plan", "iniciar"):
		sess.State = models.StateNCDerivaIvanTexto
		return &Outcome{Replies: []string{
			"Dale. Contame qué deuda querés regularizar y te derivo con Iván.",
		}}
	case matches(r.Norm, menu.OptVolver, 3, "volver"):
		sess.State = models.StateNoClienteMenu
		return e.showMenu(r, menu.NoCliente(sess.ID, ""))
	default:
		return e.showMenu(r, menu.NCPlan(sess.ID, ""))
	}
}

func (e *Engine) handleNCPlanRequisitos(r *Request) *Outcome {
	r.Session.State = models.StateNCPlanMenu
	return e.showMenu(r, menu.NCPlan(r.Session.ID, ""))
}

func (e *Engine) handleNCRIMenu(r *Request) *Outcome {
	sess := r.Session
	switch {
	case matches(r.Norm, menu.OptInfo, 1, "informacion de servicios", "informacion", "info"):
		return &Outcome{Replies: []string{
			"Trabajamos con Responsables Inscriptos: liquidación de IVA, ganancias, sueldos y asesoramiento impositivo. " +
				"Si querés te derivo con Iván para una propuesta.",
		}}
	case matches(r.Norm, menu.OptHablar, 2, "hablar con ivan"):
		sess.State = models.StateNCDerivaIvanTexto
		return &Outcome{Replies: []string{"Contame brevemente tu situación y te derivo con Iván."}}
	case matches(r.Norm, menu.OptVolver, 3, "volver"):
		sess.State = models.StateNoClienteMenu
		return e.showMenu(r, menu.NoCliente(sess.ID, ""))
	default:
		return e.showMenu(r, menu.NCRI(sess.ID, ""))
	}
}

func (e *Engine) handleNCEstadoConsulta(r *Request) *Outcome {
	sess := r.Session
	if strings.TrimSpace(r.In.Text) == "" {
		return &Outcome{Replies: []string{"Decime el número de trámite o contame de qué trámite se trata."}}
	}
	e.notifier.SendInternalToIvan(r.Ctx, "Consulta de estado de trámite de "+sess.ID+": "+r.In.Text)
	sess.State = models.StateFinaliza
	return &Outcome{Replies: []string{"¡Gracias! En breve te respondemos con el estado del trámite."}}
}

func (e *Engine) handleNCDerivaIvanTexto(r *Request) *Outcome {
	sess := r.Session
	if strings.TrimSpace(r.In.Text) == "" {
		return &Outcome{Replies: []string{"Contame brevemente tu consulta así te derivo."}}
	}
	e.notifier.SendInternalToIvan(r.Ctx, "Consulta de "+sess.ID+": "+r.In.Text)
	sess.State = models.StateDerivaIvan
	slog.Debug("handleNCDerivaIvanTexto: derived to operator", "from", sess.ID)
	return &Outcome{Replies: []string{GetFraseDerivacion("ivan")}}
}
