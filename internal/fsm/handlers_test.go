package fsm

import (
	"strings"
	"testing"
	"time"

	"github.com/estudiodigital/contabot/internal/models"
)

func TestCuitIdentificationFlow(t *testing.T) {
	h := newTestHarness(t)
	phone := "5491166660001"

	if err := h.directory.UpsertCliente(models.Cliente{
		Cuit:            "20123456789",
		Nombre:          "Jorge",
		DeudaHonorarios: 200,
	}); err != nil {
		t.Fatalf("UpsertCliente: %v", err)
	}

	// ROOT -> tipo selector.
	res := h.send(t, phone, "cliente")
	if res.Session.State != models.StateClienteTipoSelector {
		t.Fatalf("state = %s, expected CLIENTE_TIPO_SELECTOR", res.Session.State)
	}

	// Monotributista -> CUIT prompt.
	res = h.send(t, phone, "mono")
	if res.Session.State != models.StateClientePedirCuit {
		t.Fatalf("state = %s, expected CLIENTE_PEDIR_CUIT", res.Session.State)
	}

	// Wrong length re-prompts without moving.
	res = h.send(t, phone, "12345")
	if res.Session.State != models.StateClientePedirCuit {
		t.Errorf("state = %s, malformed CUIT must re-prompt in place", res.Session.State)
	}
	if !repliesContain(res, "11 números") {
		t.Errorf("replies = %v, expected format hint", res.Replies)
	}

	// Valid but unknown CUIT re-prompts.
	res = h.send(t, phone, "27999999994")
	if !repliesContain(res, "No encontré") {
		t.Errorf("replies = %v, expected not-found reply", res.Replies)
	}
	if res.Session.State != models.StateClientePedirCuit {
		t.Errorf("state = %s, unknown CUIT must stay in CLIENTE_PEDIR_CUIT", res.Session.State)
	}

	// Known CUIT, punctuation tolerated.
	res = h.send(t, phone, "20-12345678-9")
	if res.Session.State != models.StateClienteMenu {
		t.Fatalf("state = %s, expected CLIENTE_MENU", res.Session.State)
	}
	if res.Session.Data.CuitRaw != "20123456789" {
		t.Errorf("CuitRaw = %q, expected digits-only CUIT", res.Session.Data.CuitRaw)
	}
	if !repliesContain(res, "Jorge") {
		t.Errorf("replies = %v, expected greeting by name", res.Replies)
	}
}

func TestPendingBalanceResolvedAfterIdentification(t *testing.T) {
	h := newTestHarness(t)
	phone := "5491166660002"

	if err := h.directory.UpsertCliente(models.Cliente{
		Cuit:            "20123456789",
		Nombre:          "Lucía",
		DeudaHonorarios: 1500.5,
	}); err != nil {
		t.Fatalf("UpsertCliente: %v", err)
	}

	h.send(t, phone, "cuanto debo")
	res := h.send(t, phone, "20123456789")

	if !repliesContain(res, "1.500,50") {
		t.Errorf("replies = %v, expected the deferred balance answer", res.Replies)
	}
	if res.Session.Data.PendingBalance {
		t.Error("PendingBalance must be cleared once answered")
	}
	if res.Session.State != models.StateClienteMenu {
		t.Errorf("state = %s, expected CLIENTE_MENU", res.Session.State)
	}
}

func identifiedSession(h *testHarness, phone string) *models.Session {
	sess := h.sessions.GetOrCreate(phone)
	sess.State = models.StateClienteMenu
	sess.Data.CuitRaw = "20123456789"
	sess.Data.NombreCliente = "Jorge"
	return sess
}

func TestInvoiceRequestFlow(t *testing.T) {
	h := newTestHarness(t)
	phone := "5491166660003"
	identifiedSession(h, phone)

	res := h.send(t, phone, "factura")
	if res.Session.State != models.StateClienteFacturaDatos {
		t.Fatalf("state = %s, expected CLIENTE_FACTURA_PEDIR_DATOS", res.Session.State)
	}

	// Lines accumulate silently.
	res = h.send(t, phone, "Concepto: Servicio de consultoría $2.000 10/04/2025")
	if len(res.Replies) != 0 {
		t.Errorf("replies = %v, accumulation must be silent", res.Replies)
	}
	h.send(t, phone, "CUIT 20-98765432-1")

	res = h.send(t, phone, "listo")
	if res.Session.State != models.StateClienteFacturaConfirm {
		t.Fatalf("state = %s, expected CLIENTE_FACTURA_CONFIRM", res.Session.State)
	}
	if !repliesContain(res, "Servicio de consultoría") {
		t.Errorf("replies = %v, expected the extracted concept in the summary", res.Replies)
	}
	if !repliesContain(res, "20987654321") {
		t.Errorf("replies = %v, expected the extracted CUIT in the summary", res.Replies)
	}

	res = h.send(t, phone, "confirmar")
	if res.Session.State != models.StateFinaliza {
		t.Errorf("state = %s, expected FINALIZA after confirmation", res.Session.State)
	}
	if len(h.notifier.belen) != 1 {
		t.Fatalf("belen notifications = %d, expected 1", len(h.notifier.belen))
	}
	if !strings.Contains(h.notifier.belen[0], "Jorge") {
		t.Errorf("notification = %q, expected the client name", h.notifier.belen[0])
	}
	if res.Session.Data.Invoice != nil {
		t.Error("invoice draft must be cleared after confirmation")
	}
}

func TestInvoiceListoWithoutData(t *testing.T) {
	h := newTestHarness(t)
	phone := "5491166660004"
	identifiedSession(h, phone)

	h.send(t, phone, "factura")
	res := h.send(t, phone, "listo")
	if res.Session.State != models.StateClienteFacturaDatos {
		t.Errorf("state = %s, LISTO with no data must not advance", res.Session.State)
	}
	if !repliesContain(res, "Todavía no me pasaste") {
		t.Errorf("replies = %v, expected no-data hint", res.Replies)
	}
}

func TestInvoiceEditField(t *testing.T) {
	h := newTestHarness(t)
	phone := "5491166660005"
	identifiedSession(h, phone)

	h.send(t, phone, "factura")
	h.send(t, phone, "factura por $500")
	h.send(t, phone, "listo")

	// Pick field 3 (importe) straight from the summary screen.
	res := h.send(t, phone, "3")
	if res.Session.State != models.StateClienteFacturaEdit {
		t.Fatalf("state = %s, expected CLIENTE_FACTURA_EDIT_FIELD", res.Session.State)
	}

	res = h.send(t, phone, "750,00")
	if res.Session.State != models.StateClienteFacturaConfirm {
		t.Fatalf("state = %s, expected return to CLIENTE_FACTURA_CONFIRM", res.Session.State)
	}
	if !repliesContain(res, "750,00") {
		t.Errorf("replies = %v, expected the corrected amount in the re-rendered summary", res.Replies)
	}
}

func TestConsultaLibreAccumulatesAndThrottlesAcks(t *testing.T) {
	h := newTestHarness(t)
	phone := "5491166660006"

	h.send(t, phone, "cliente")
	res := h.send(t, phone, "ri")
	if res.Session.State != models.StateClienteRIConsultaLibre {
		t.Fatalf("state = %s, expected CLIENTE_RI_CONSULTA_LIBRE", res.Session.State)
	}

	res = h.send(t, phone, "Tengo una duda con el IVA de marzo")
	if len(res.Replies) != 1 {
		t.Fatalf("replies = %v, expected one ack for the first message", res.Replies)
	}

	// Inside the throttle window: silent accumulation.
	h.now = h.now.Add(5 * time.Second)
	res = h.send(t, phone, "Las facturas son de un proveedor del exterior")
	if len(res.Replies) != 0 {
		t.Errorf("replies = %v, acks must be throttled inside the window", res.Replies)
	}

	// Past the window: acked again.
	h.now = h.now.Add(13 * time.Second)
	res = h.send(t, phone, "Y no sé cómo declararlas")
	if len(res.Replies) != 1 {
		t.Errorf("replies = %v, expected a fresh ack after the throttle window", res.Replies)
	}

	res = h.send(t, phone, "LISTO")
	if res.Session.State != models.StateRoot {
		t.Errorf("state = %s, expected ROOT after closing the consultation", res.Session.State)
	}
	if len(h.notifier.ivan) != 1 {
		t.Fatalf("ivan notifications = %d, expected 1", len(h.notifier.ivan))
	}
	summary := h.notifier.ivan[0]
	if !strings.Contains(summary, "Tengo una duda con el IVA de marzo\n\nLas facturas son de un proveedor del exterior") {
		t.Errorf("summary = %q, expected texts joined by blank lines", summary)
	}
	if res.Session.Data.Consulta != nil {
		t.Error("consultation draft must be cleared after LISTO")
	}
}

func TestConsultaLibreCollectsMedia(t *testing.T) {
	h := newTestHarness(t)
	phone := "5491166660007"

	sess := h.sessions.GetOrCreate(phone)
	sess.State = models.StateClienteOtroConsulta
	sess.Data.Consulta = &models.ConsultaDraft{}

	h.send(t, phone, "Les mando el comprobante")
	h.sendAttachment(t, phone, models.MessageTypeImage)

	res := h.send(t, phone, "listo")
	if len(h.notifier.belen) != 1 {
		t.Fatalf("belen notifications = %d, expected the otro-flow summary to go to Belén", len(h.notifier.belen))
	}
	if !strings.Contains(h.notifier.belen[0], "Adjuntos: image") {
		t.Errorf("summary = %q, expected the media reference", h.notifier.belen[0])
	}
	if res.Session.State != models.StateRoot {
		t.Errorf("state = %s, expected ROOT", res.Session.State)
	}
}

func TestConsultaLibreKeepsAttachmentCaption(t *testing.T) {
	h := newTestHarness(t)
	phone := "5491166660008"

	sess := h.sessions.GetOrCreate(phone)
	sess.State = models.StateClienteOtroConsulta
	sess.Data.Consulta = &models.ConsultaDraft{}

	h.sendCaptioned(t, phone, models.MessageTypeImage, "Comprobante de la transferencia de marzo")
	h.sendAttachment(t, phone, models.MessageTypeDocument)

	draft := h.sessions.Get(phone).Data.Consulta
	if len(draft.Texts) != 1 {
		t.Fatalf("texts = %v, expected only the caption accumulated", draft.Texts)
	}
	if len(draft.Media) != 2 {
		t.Fatalf("media = %v, expected both attachment references", draft.Media)
	}

	h.send(t, phone, "listo")
	if len(h.notifier.belen) != 1 {
		t.Fatalf("belen notifications = %d, expected 1", len(h.notifier.belen))
	}
	if !strings.Contains(h.notifier.belen[0], "Comprobante de la transferencia de marzo") {
		t.Errorf("summary = %q, expected the caption text forwarded", h.notifier.belen[0])
	}
}

func TestConsultaLibreListoWithoutContent(t *testing.T) {
	h := newTestHarness(t)
	phone := "5491166660008"

	sess := h.sessions.GetOrCreate(phone)
	sess.State = models.StateClienteRIConsultaLibre
	sess.Data.Consulta = &models.ConsultaDraft{}

	res := h.send(t, phone, "listo")
	if res.Session.State != models.StateClienteRIConsultaLibre {
		t.Errorf("state = %s, empty LISTO must not close the consultation", res.Session.State)
	}
	if len(h.notifier.ivan) != 0 {
		t.Error("no notification should go out for an empty consultation")
	}
}

func TestHablarAlguienChoosesOperator(t *testing.T) {
	h := newTestHarness(t)
	phone := "5491166660009"

	sess := h.sessions.GetOrCreate(phone)
	sess.State = models.StateClienteHablarAlguien

	res := h.send(t, phone, "belen")
	if res.Session.State != models.StateFinaliza {
		t.Errorf("state = %s, expected FINALIZA", res.Session.State)
	}
	if !repliesContain(res, "Belén") {
		t.Errorf("replies = %v, expected the Belén handoff phrase", res.Replies)
	}
	if len(h.notifier.belen) != 1 {
		t.Errorf("belen notifications = %d, expected 1", len(h.notifier.belen))
	}
}

func TestHablarAlguienVolverRestoresReturnState(t *testing.T) {
	h := newTestHarness(t)
	phone := "5491166660010"

	sess := identifiedSession(h, phone)
	sess.State = models.StateClienteHablarAlguien
	sess.Data.ReturnState = models.StateClienteMenu

	res := h.send(t, phone, "volver")
	if res.Session.State != models.StateClienteMenu {
		t.Errorf("state = %s, expected return to CLIENTE_MENU", res.Session.State)
	}
	if res.Session.Data.ReturnState != "" {
		t.Error("ReturnState must be consumed on return")
	}
	if got := h.convos.lastMenu(t).Kind; got != models.MenuCliente {
		t.Errorf("menu kind = %s, expected cliente", got)
	}
}

func TestFinalizaRestartsOnNextMessage(t *testing.T) {
	h := newTestHarness(t)
	phone := "5491166660011"

	sess := h.sessions.GetOrCreate(phone)
	sess.State = models.StateFinaliza

	res := h.send(t, phone, "hola de nuevo")
	if res.Session.State != models.StateRoot {
		t.Errorf("state = %s, expected ROOT restart", res.Session.State)
	}
	if !res.HandledByInteractive {
		t.Error("expected the root menu on restart")
	}
}

func TestNoClienteAltaFlow(t *testing.T) {
	h := newTestHarness(t)
	phone := "5491166660012"

	h.send(t, phone, "no_cliente")
	res := h.send(t, phone, "alta")
	if res.Session.State != models.StateNCAltaMenu {
		t.Fatalf("state = %s, expected NC_ALTA_MENU", res.Session.State)
	}

	res = h.send(t, phone, "requisitos")
	if res.Session.State != models.StateNCAltaRequisitos {
		t.Fatalf("state = %s, expected NC_ALTA_REQUISITOS", res.Session.State)
	}
	if !repliesContain(res, "DNI") {
		t.Errorf("replies = %v, expected the requirements list", res.Replies)
	}

	// Any input returns to the sub-menu.
	res = h.send(t, phone, "ok")
	if res.Session.State != models.StateNCAltaMenu {
		t.Errorf("state = %s, expected return to NC_ALTA_MENU", res.Session.State)
	}

	h.send(t, phone, "iniciar")
	res = h.send(t, phone, "Soy programador freelance, quiero facturar desde julio")
	if res.Session.State != models.StateDerivaIvan {
		t.Errorf("state = %s, expected DERIVA_IVAN", res.Session.State)
	}
	if len(h.notifier.ivan) != 1 {
		t.Fatalf("ivan notifications = %d, expected 1", len(h.notifier.ivan))
	}
	if !strings.Contains(h.notifier.ivan[0], "programador freelance") {
		t.Errorf("notification = %q, expected the user's text", h.notifier.ivan[0])
	}
	if !repliesContain(res, "Iván") {
		t.Errorf("replies = %v, expected the Iván handoff phrase", res.Replies)
	}
}

func TestNoClienteTramiteFlow(t *testing.T) {
	h := newTestHarness(t)
	phone := "5491166660013"

	h.send(t, phone, "no_cliente")
	res := h.send(t, phone, "tramite")
	if res.Session.State != models.StateNCEstadoConsulta {
		t.Fatalf("state = %s, expected NC_ESTADO_CONSULTA", res.Session.State)
	}

	res = h.send(t, phone, "Expediente 4431/2025 de AFIP")
	if res.Session.State != models.StateFinaliza {
		t.Errorf("state = %s, expected FINALIZA", res.Session.State)
	}
	if len(h.notifier.ivan) != 1 || !strings.Contains(h.notifier.ivan[0], "4431/2025") {
		t.Errorf("ivan notifications = %v, expected the forwarded query", h.notifier.ivan)
	}
}

func TestEstadoGeneralShowsDirectoryData(t *testing.T) {
	h := newTestHarness(t)
	phone := "5491166660014"

	if err := h.directory.UpsertCliente(models.Cliente{
		Cuit:            "20123456789",
		Nombre:          "Jorge",
		CategoriaFiscal: "Monotributo B",
		DeudaHonorarios: 320,
		EstadoGeneral:   "Al día",
	}); err != nil {
		t.Fatalf("UpsertCliente: %v", err)
	}
	identifiedSession(h, phone)

	res := h.send(t, phone, "estado")
	if res.Session.State != models.StateClienteEstadoGeneral {
		t.Fatalf("state = %s, expected CLIENTE_ESTADO_GENERAL", res.Session.State)
	}
	if !repliesContain(res, "Monotributo B") || !repliesContain(res, "320,00") {
		t.Errorf("replies = %v, expected category and formatted debt", res.Replies)
	}

	// Anything returns to the client menu.
	res = h.send(t, phone, "gracias")
	if res.Session.State != models.StateClienteMenu {
		t.Errorf("state = %s, expected CLIENTE_MENU", res.Session.State)
	}
}

func TestReunionForwardsToBelen(t *testing.T) {
	h := newTestHarness(t)
	phone := "5491166660015"
	identifiedSession(h, phone)

	h.send(t, phone, "reunion")
	res := h.send(t, phone, "Martes o jueves a la tarde")
	if res.Session.State != models.StateFinaliza {
		t.Errorf("state = %s, expected FINALIZA", res.Session.State)
	}
	if len(h.notifier.belen) != 1 || !strings.Contains(h.notifier.belen[0], "Martes o jueves") {
		t.Errorf("belen notifications = %v, expected the availability text", h.notifier.belen)
	}
}
