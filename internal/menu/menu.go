// Package menu builds the interactive selection payloads shown to users.
//
// Builders are pure functions: given a session id and optional body text they
// return a models.Menu. The FSM engine never inspects the payload beyond
// passing it to the enqueue operation.
package menu

import "github.com/estudiodigital/contabot/internal/models"

// Stable selection ids. State handlers match on these, so they must not change.
const (
	OptCliente   = "cliente"
	OptNoCliente = "no_cliente"

	OptTipoMono = "mono"
	OptTipoRI   = "ri"
	OptTipoOtro = "otro"

	OptEstado  = "estado"
	OptFactura = "factura"
	OptVentas  = "ventas"
	OptReunion = "reunion"
	OptHablar  = "hablar"
	OptFin     = "fin"

	OptNCAlta    = "alta"
	OptNCPlan    = "plan"
	OptNCRI      = "ri"
	OptNCTramite = "tramite"
	OptNCOtra    = "otra"

	OptRequisitos = "requisitos"
	OptIniciar    = "iniciar"
	OptInfo       = "info"
	OptVolver     = "volver"

	OptBelen = "belen"
	OptIvan  = "ivan"
)

const defaultRootBody = "Hola! Soy el asistente del estudio. ¿En qué te puedo ayudar?"

// Root builds the initial cliente / no-cliente selector.
func Root(sessionID, body string) models.Menu {
	if body == "" {
		body = defaultRootBody
	}
	return models.Menu{
		SessionID: sessionID,
		Kind:      models.MenuRoot,
		Body:      body,
		Options: []models.MenuOption{
			{ID: OptCliente, Title: "Soy cliente"},
			{ID: OptNoCliente, Title: "No soy cliente"},
		},
	}
}

// TipoSelector builds the client-type selector shown after "Soy cliente".
func TipoSelector(sessionID, body string) models.Menu {
	if body == "" {
		body = "¿Qué tipo de cliente sos?"
	}
	return models.Menu{
		SessionID: sessionID,
		Kind:      models.MenuTipo,
		Body:      body,
		Options: []models.MenuOption{
			{ID: OptTipoMono, Title: "Monotributista"},
			{ID: OptTipoRI, Title: "Responsable Inscripto"},
			{ID: OptTipoOtro, Title: "Otro"},
		},
	}
}

// Cliente builds the main menu for an identified client.
func Cliente(sessionID, body string) models.Menu {
	if body == "" {
		body = "¿Qué necesitás?"
	}
	return models.Menu{
		SessionID: sessionID,
		Kind:      models.MenuCliente,
		Body:      body,
		Options: []models.MenuOption{
			{ID: OptEstado, Title: "Estado general", Description: "Situación fiscal y deuda"},
			{ID: OptFactura, Title: "Pedir una factura"},
			{ID: OptVentas, Title: "Informar ventas"},
			{ID: OptReunion, Title: "Pedir una reunión"},
			{ID: OptHablar, Title: "Hablar con alguien"},
			{ID: OptFin, Title: "Finalizar"},
		},
	}
}

// NoCliente builds the menu for people who are not clients of the firm.
func NoCliente(sessionID, body string) models.Menu {
	if body == "" {
		body = "Contanos qué necesitás:"
	}
	return models.Menu{
		SessionID: sessionID,
		Kind:      models.MenuNoCliente,
		Body:      body,
		Options: []models.MenuOption{
			{ID: OptNCAlta, Title: "Alta de monotributo"},
			{ID: OptNCPlan, Title: "Plan de pagos"},
			{ID: OptNCRI, Title: "Responsable Inscripto"},
			{ID: OptNCTramite, Title: "Estado de un trámite"},
			{ID: OptNCOtra, Title: "Otra consulta"},
		},
	}
}

// NCAlta builds the monotributo registration sub-menu.
func NCAlta(sessionID, body string) models.Menu {
	if body == "" {
		body = "Alta de monotributo:"
	}
	return models.Menu{
		SessionID: sessionID,
		Kind:      models.MenuNCAlta,
		Body:      body,
		Options: []models.MenuOption{
			{ID: OptRequisitos, Title: "Ver requisitos"},
			{ID: OptIniciar, Title: "Iniciar el alta"},
			{ID: OptVolver, Title: "Volver"},
		},
	}
}

// NCPlan builds the payment-plan sub-menu.
func NCPlan(sessionID, body string) models.Menu {
	if body == "" {
		body = "Plan de pagos:"
	}
	return models.Menu{
		SessionID: sessionID,
		Kind:      models.MenuNCPlan,
		Body:      body,
		Options: []models.MenuOption{
			{ID: OptRequisitos, Title: "Ver requisitos"},
			{ID: OptIniciar, Title: "Iniciar un plan"},
			{ID: OptVolver, Title: "Volver"},
		},
	}
}

// NCRI builds the Responsable Inscripto sub-menu for non-clients.
func NCRI(sessionID, body string) models.Menu {
	if body == "" {
		body = "Responsable Inscripto:"
	}
	return models.Menu{
		SessionID: sessionID,
		Kind:      models.MenuNCRI,
		Body:      body,
		Options: []models.MenuOption{
			{ID: OptInfo, Title: "Información de servicios"},
			{ID: OptHablar, Title: "Hablar con Iván"},
			{ID: OptVolver, Title: "Volver"},
		},
	}
}

// Personas builds the "choose a person" handoff menu.
func Personas(sessionID, body string) models.Menu {
	if body == "" {
		body = "¿Con quién querés hablar?"
	}
	return models.Menu{
		SessionID: sessionID,
		Kind:      models.MenuPersonas,
		Body:      body,
		Options: []models.MenuOption{
			{ID: OptBelen, Title: "Belén", Description: "Facturación y reuniones"},
			{ID: OptIvan, Title: "Iván", Description: "Altas, planes y trámites"},
			{ID: OptVolver, Title: "Volver"},
		},
	}
}

// ByKind returns the builder output for a recorded menu kind. Used when the
// engine needs to re-show "the last menu" without knowing which one it was.
func ByKind(kind models.MenuKind, sessionID, body string) models.Menu {
	switch kind {
	case models.MenuTipo:
		return TipoSelector(sessionID, body)
	case models.MenuCliente:
		return Cliente(sessionID, body)
	case models.MenuNoCliente:
		return NoCliente(sessionID, body)
	case models.MenuNCAlta:
		return NCAlta(sessionID, body)
	case models.MenuNCPlan:
		return NCPlan(sessionID, body)
	case models.MenuNCRI:
		return NCRI(sessionID, body)
	case models.MenuPersonas:
		return Personas(sessionID, body)
	default:
		return Root(sessionID, body)
	}
}

// StateFor maps a menu kind to the FSM state that handles its selections.
func StateFor(kind models.MenuKind) models.SessionState {
	switch kind {
	case models.MenuTipo:
		return models.StateClienteTipoSelector
	case models.MenuCliente:
		return models.StateClienteMenu
	case models.MenuNoCliente:
		return models.StateNoClienteMenu
	case models.MenuNCAlta:
		return models.StateNCAltaMenu
	case models.MenuNCPlan:
		return models.StateNCPlanMenu
	case models.MenuNCRI:
		return models.StateNCRIMenu
	case models.MenuPersonas:
		return models.StateClienteHablarAlguien
	default:
		return models.StateRoot
	}
}
