package models

import "time"

// Default session lifetime knobs. TTLMinutes is recorded on each session at
// creation; the sweeper evicts on SweepIdleMinutes of inactivity. The two
// values are intentionally kept as separate knobs.
const (
	DefaultSessionTTLMinutes = 60
	SweepIdleMinutes         = 120
)

// Session holds the per-user conversation state for the FSM engine.
// Sessions are owned exclusively by the session store.
type Session struct {
	ID             string       `json:"id"` // phone number, immutable
	State          SessionState `json:"state"`
	Data           SessionData  `json:"data"`
	CreatedAt      time.Time    `json:"created_at"`
	LastActivityAt time.Time    `json:"last_activity_at"`
	TTLMinutes     int          `json:"ttl_minutes"`
}

// SessionData carries the conversation-scoped payload, split into typed
// per-flow sub-structures selected by the current state.
type SessionData struct {
	// Identity captured by the CUIT flow.
	CuitRaw       string `json:"cuit_raw,omitempty"`
	NombreCliente string `json:"nombre_cliente,omitempty"`

	// PendingBalance marks that a balance request arrived before the client
	// identified itself; resolved right after the CUIT lookup succeeds.
	PendingBalance bool `json:"pending_balance,omitempty"`

	// ReturnState remembers where to come back after a human handoff.
	ReturnState SessionState `json:"return_state,omitempty"`

	// LastMenu is the last interactive menu shown to this user.
	LastMenu MenuKind `json:"last_menu,omitempty"`

	// Technical echo fields, preserved across resets.
	InboundMessageID string `json:"inbound_message_id,omitempty"`
	ConversationID   string `json:"conversation_id,omitempty"`

	Invoice  *InvoiceDraft  `json:"invoice,omitempty"`
	Consulta *ConsultaDraft `json:"consulta,omitempty"`
}

// Reset clears everything except the technical echo fields.
func (d *SessionData) Reset() {
	*d = SessionData{
		InboundMessageID: d.InboundMessageID,
		ConversationID:   d.ConversationID,
	}
}

// InvoiceDraft accumulates the invoice-request sub-flow data.
type InvoiceDraft struct {
	Lines        []string      `json:"lines,omitempty"`
	Fields       InvoiceFields `json:"fields"`
	EditingField string        `json:"editing_field,omitempty"`
}

// InvoiceFields are the structured fields extracted from the accumulated
// free text. Missing fields hold the NoInforma sentinel.
type InvoiceFields struct {
	Cuit         string `json:"cuit"`
	Concepto     string `json:"concepto"`
	ImporteTotal string `json:"importe_total"`
	Fecha        string `json:"fecha"`
	Destinatario string `json:"destinatario"`
}

// NoInforma is the explicit not-found sentinel for invoice fields.
const NoInforma = "NO INFORMA"

// ConsultaDraft accumulates the free-consultation sub-flow data.
type ConsultaDraft struct {
	Texts     []string  `json:"texts,omitempty"`
	Media     []string  `json:"media,omitempty"`
	LastAckAt time.Time `json:"last_ack_at,omitempty"`
}
