// Package fsm implements the conversation session engine: the interceptor
// chain, the per-state handler registry and the text heuristics they share.
package fsm

import (
	"strconv"
	"strings"
)

// Normalize lowercases, strips accents and punctuation, and collapses
// whitespace. All command matching runs on normalized text.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		switch r {
		case 'á', 'à', 'ä', 'â':
			r = 'a'
		case 'é', 'è', 'ë', 'ê':
			r = 'e'
		case 'í', 'ì', 'ï', 'î':
			r = 'i'
		case 'ó', 'ò', 'ö', 'ô':
			r = 'o'
		case 'ú', 'ù', 'ü', 'û':
			r = 'u'
		case 'ñ':
			r = 'n'
		}
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		case r == ' ', r == '\t', r == '\n':
			if !lastSpace && b.Len() > 0 {
				b.WriteByte(' ')
				lastSpace = true
			}
		default:
			// punctuation and emoji dropped
		}
	}
	return strings.TrimSpace(b.String())
}

// DigitsOnly strips everything but ASCII digits.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// listoSynonyms are the recognized spellings of the "done" keyword that
// closes a free-form data-collection sub-flow. Matched on normalized text.
var listoSynonyms = map[string]struct{}{
	"listo":       {},
	"lsito":       {},
	"litso":       {},
	"listoo":      {},
	"lito":        {},
	"ya":          {},
	"ya esta":     {},
	"eso es todo": {},
	"es todo":     {},
	"termine":     {},
	"terminado":   {},
	"fin":         {},
	"finalizar":   {},
	"ok listo":    {},
}

// IsListo reports whether normalized text is the done keyword or a synonym.
func IsListo(norm string) bool {
	_, ok := listoSynonyms[norm]
	return ok
}

// IsAmountCommand reports whether normalized text is the explicit
// outstanding-balance command.
func IsAmountCommand(norm string) bool {
	return norm == "importe" || norm == "saldo"
}

var paymentIntentPhrases = []string{
	"quiero pagar",
	"como pago",
	"cbu",
	"alias",
	"transferencia",
	"medios de pago",
	"cuanto debo",
}

// HasPaymentIntent reports whether normalized text carries a broader
// payment-intent phrase.
func HasPaymentIntent(norm string) bool {
	for _, p := range paymentIntentPhrases {
		if strings.Contains(norm, p) {
			return true
		}
	}
	return false
}

var handoffPhrases = []string{
	"hablar con alguien",
	"hablar con una persona",
	"asesor",
	"humano",
	"operador",
	"atencion al cliente",
}

// IsHandoffPhrase reports whether normalized text asks for a human.
func IsHandoffPhrase(norm string) bool {
	for _, p := range handoffPhrases {
		if strings.Contains(norm, p) {
			return true
		}
	}
	return false
}

// FormatMoney renders an amount in the local convention: thousands separated
// by '.', decimals by ',', two decimal places. 1500.5 -> "1.500,50".
func FormatMoney(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := strconv.FormatFloat(v, 'f', 2, 64)
	intPart, decPart, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	b.WriteByte(',')
	b.WriteString(decPart)
	return b.String()
}
