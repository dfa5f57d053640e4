package models

// MenuKind identifies which interactive menu a payload renders.
type MenuKind string

const (
	MenuRoot      MenuKind = "root"
	MenuTipo      MenuKind = "tipo"
	MenuCliente   MenuKind = "cliente"
	MenuNoCliente MenuKind = "no_cliente"
	MenuNCAlta    MenuKind = "nc_alta"
	MenuNCPlan    MenuKind = "nc_plan"
	MenuNCRI      MenuKind = "nc_ri"
	MenuPersonas  MenuKind = "personas"
)

// MenuOption is a single selectable row of an interactive menu.
type MenuOption struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Menu is an interactive selection payload delivered through the channel.
// The FSM engine treats it as opaque beyond handing it to the enqueue
// operation; only the channel drivers interpret its structure.
type Menu struct {
	SessionID string       `json:"session_id"`
	Kind      MenuKind     `json:"kind"`
	Body      string       `json:"body"`
	Options   []MenuOption `json:"options"`
}
