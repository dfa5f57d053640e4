package fsm

import (
	"regexp"
	"strings"

	"github.com/estudiodigital/contabot/internal/models"
)

// Pattern matchers for the invoice-request free text. The extraction is
// heuristic: a field that cannot be found holds the NO INFORMA sentinel.
var (
	reCuitLabeled = regexp.MustCompile(`(?i)\bcui[tl]\b\D{0,5}(\d{2}-?\d{8}-?\d)`)
	reCuitBare    = regexp.MustCompile(`\b(\d{2}-\d{8}-\d|\d{11})\b`)
	reImporte     = regexp.MustCompile(`\$\s*([0-9][0-9.,]*[0-9]|[0-9])`)
	reImporteWord = regexp.MustCompile(`(?i)\b(?:importe|monto|total)\b\s*:?\s*\$?\s*([0-9][0-9.,]*[0-9]|[0-9])`)
	reFecha       = regexp.MustCompile(`\b([0-3]?\d/[01]?\d/(?:\d{4}|\d{2}))\b`)
	reConcepto    = regexp.MustCompile(`(?im)\bconcepto\b\s*:?\s*(.+)$`)
	reDestinat    = regexp.MustCompile(`(?im)\b(?:destinatario|a nombre de)\b\s*:?\s*(.+)$`)
)

// ExtractInvoiceFields heuristically pulls the structured invoice fields out
// of the accumulated free text.
func ExtractInvoiceFields(text string) models.InvoiceFields {
	fields := models.InvoiceFields{
		Cuit:         models.NoInforma,
		Concepto:     models.NoInforma,
		ImporteTotal: models.NoInforma,
		Fecha:        models.NoInforma,
		Destinatario: models.NoInforma,
	}

	if m := reCuitLabeled.FindStringSubmatch(text); m != nil {
		fields.Cuit = DigitsOnly(m[1])
	} else if m := reCuitBare.FindStringSubmatch(text); m != nil {
		fields.Cuit = DigitsOnly(m[1])
	}

	if m := reImporte.FindStringSubmatch(text); m != nil {
		fields.ImporteTotal = m[1]
	} else if m := reImporteWord.FindStringSubmatch(text); m != nil {
		fields.ImporteTotal = m[1]
	}

	if m := reFecha.FindStringSubmatch(text); m != nil {
		fields.Fecha = m[1]
	}

	if m := reConcepto.FindStringSubmatch(text); m != nil {
		if c := cleanConcepto(m[1]); c != "" {
			fields.Concepto = c
		}
	}

	if m := reDestinat.FindStringSubmatch(text); m != nil {
		if d := strings.TrimSpace(m[1]); d != "" {
			fields.Destinatario = d
		}
	}

	return fields
}

// cleanConcepto strips amount and date substrings out of the captured
// concept line so only the description remains.
func cleanConcepto(s string) string {
	s = reImporte.ReplaceAllString(s, "")
	s = reImporteWord.ReplaceAllString(s, "")
	s = reFecha.ReplaceAllString(s, "")
	s = strings.Trim(s, " \t-,.;:")
	return strings.Join(strings.Fields(s), " ")
}

// RenderInvoiceSummary renders the confirmation screen for extracted fields.
func RenderInvoiceSummary(f models.InvoiceFields) string {
	var b strings.Builder
	b.WriteString("Esto es lo que entendí del pedido de factura:\n\n")
	b.WriteString("1) CUIT: " + f.Cuit + "\n")
	b.WriteString("2) Concepto: " + f.Concepto + "\n")
	b.WriteString("3) Importe total: " + f.ImporteTotal + "\n")
	b.WriteString("4) Fecha: " + f.Fecha + "\n")
	b.WriteString("5) Destinatario: " + f.Destinatario + "\n\n")
	b.WriteString("Si está todo bien respondé *CONFIRMAR*. Para corregir un campo respondé *EDITAR* o el número del campo.")
	return b.String()
}
