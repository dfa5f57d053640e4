// Package models defines the shared data types for contabot.
//
// It includes the conversation FSM states, inbound message classification and
// the result type returned by the session engine, which are shared across modules.
package models

// SessionState identifies a state of the conversation FSM.
type SessionState string

// Conversation FSM states. ROOT is the initial state; FINALIZA and
// DERIVA_IVAN loop back to ROOT on the next inbound message.
const (
	StateRoot                   SessionState = "ROOT"
	StateClienteTipoSelector    SessionState = "CLIENTE_TIPO_SELECTOR"
	StateClientePedirCuit       SessionState = "CLIENTE_PEDIR_CUIT"
	StateClienteMenu            SessionState = "CLIENTE_MENU"
	StateClienteEstadoGeneral   SessionState = "CLIENTE_ESTADO_GENERAL"
	StateClienteFacturaDatos    SessionState = "CLIENTE_FACTURA_PEDIR_DATOS"
	StateClienteFacturaConfirm  SessionState = "CLIENTE_FACTURA_CONFIRM"
	StateClienteFacturaEdit     SessionState = "CLIENTE_FACTURA_EDIT_FIELD"
	StateClienteVentasInfo      SessionState = "CLIENTE_VENTAS_INFO"
	StateClienteReunion         SessionState = "CLIENTE_REUNION"
	StateClienteHablarAlguien   SessionState = "CLIENTE_HABLAR_CON_ALGUIEN"
	StateClienteRIConsultaLibre SessionState = "CLIENTE_RI_CONSULTA_LIBRE"
	StateClienteOtroConsulta    SessionState = "CLIENTE_OTRO_CONSULTA_LIBRE"
	StateNoClienteMenu          SessionState = "NOCLIENTE_MENU"
	StateNCAltaMenu             SessionState = "NC_ALTA_MENU"
	StateNCAltaRequisitos       SessionState = "NC_ALTA_REQUISITOS"
	StateNCPlanMenu             SessionState = "NC_PLAN_MENU"
	StateNCPlanRequisitos       SessionState = "NC_PLAN_REQUISITOS"
	StateNCRIMenu               SessionState = "NC_RI_MENU"
	StateNCEstadoConsulta       SessionState = "NC_ESTADO_CONSULTA"
	StateNCDerivaIvanTexto      SessionState = "NC_DERIVA_IVAN_TEXTO"
	StateDerivaIvan             SessionState = "DERIVA_IVAN"
	StateFinaliza               SessionState = "FINALIZA"
)

// MessageType tags the kind of inbound WhatsApp message.
type MessageType string

const (
	MessageTypeText      MessageType = "text"
	MessageTypeImage     MessageType = "image"
	MessageTypeVideo     MessageType = "video"
	MessageTypeDocument  MessageType = "document"
	MessageTypeAudio     MessageType = "audio"
	MessageTypeVoice     MessageType = "voice"
	MessageTypeFile      MessageType = "file"
	MessageTypeSticker   MessageType = "sticker"
	MessageTypeUndefined MessageType = ""
)

// IsAttachment reports whether the message type is a genuine non-text payload.
func (t MessageType) IsAttachment() bool {
	switch t {
	case MessageTypeImage, MessageTypeVideo, MessageTypeDocument,
		MessageTypeAudio, MessageTypeVoice, MessageTypeFile, MessageTypeSticker:
		return true
	}
	return false
}

// Inbound is a single inbound message as seen by the session engine.
type Inbound struct {
	From           string      `json:"from"`
	Text           string      `json:"text"`
	MessageID      string      `json:"message_id,omitempty"`
	ConversationID string      `json:"conversation_id,omitempty"`
	Type           MessageType `json:"type,omitempty"`
	Timestamp      int64       `json:"timestamp,omitempty"`
}

// Result is the outcome of processing one inbound message.
// Replies is the ordered list of plain-text messages to send back.
// HandledByInteractive signals that an interactive menu payload was enqueued
// separately and no additional plain-text reply is required.
type Result struct {
	Session              *Session `json:"session"`
	Replies              []string `json:"replies"`
	HandledByInteractive bool     `json:"handled_by_interactive,omitempty"`
}

// DeliveryStatus tracks the channel delivery state of an outbound message row.
type DeliveryStatus string

const (
	DeliveryStatusQueued DeliveryStatus = "queued"
	DeliveryStatusSent   DeliveryStatus = "sent"
	DeliveryStatusFailed DeliveryStatus = "failed"
)
