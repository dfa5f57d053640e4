package fsm

import (
	"strings"
	"testing"

	"github.com/estudiodigital/contabot/internal/models"
)

func TestExtractInvoiceFieldsFull(t *testing.T) {
	text := "Concepto: Servicio de limpieza $1.234,56 15/03/2025\nCUIT 20-12345678-9\nDestinatario: Empresa SRL"
	fields := ExtractInvoiceFields(text)

	if fields.Cuit != "20123456789" {
		t.Errorf("Cuit = %q, expected 20123456789", fields.Cuit)
	}
	if fields.Concepto != "Servicio de limpieza" {
		t.Errorf("Concepto = %q, expected %q (amount and date stripped)", fields.Concepto, "Servicio de limpieza")
	}
	if fields.ImporteTotal != "1.234,56" {
		t.Errorf("ImporteTotal = %q, expected 1.234,56", fields.ImporteTotal)
	}
	if fields.Fecha != "15/03/2025" {
		t.Errorf("Fecha = %q, expected 15/03/2025", fields.Fecha)
	}
	if fields.Destinatario != "Empresa SRL" {
		t.Errorf("Destinatario = %q, expected Empresa SRL", fields.Destinatario)
	}
}

func TestExtractInvoiceFieldsBareCuit(t *testing.T) {
	fields := ExtractInvoiceFields("factura para el 20123456789 por favor")
	if fields.Cuit != "20123456789" {
		t.Errorf("Cuit = %q, expected bare CUIT to be detected", fields.Cuit)
	}
}

func TestExtractInvoiceFieldsNoMarkers(t *testing.T) {
	fields := ExtractInvoiceFields("necesito una factura urgente")
	expected := models.InvoiceFields{
		Cuit:         models.NoInforma,
		Concepto:     models.NoInforma,
		ImporteTotal: models.NoInforma,
		Fecha:        models.NoInforma,
		Destinatario: models.NoInforma,
	}
	if fields != expected {
		t.Errorf("fields = %+v, expected every field to hold %q", fields, models.NoInforma)
	}
}

func TestExtractInvoiceFieldsImporteWord(t *testing.T) {
	fields := ExtractInvoiceFields("importe: 5000")
	if fields.ImporteTotal != "5000" {
		t.Errorf("ImporteTotal = %q, expected 5000", fields.ImporteTotal)
	}
}

func TestRenderInvoiceSummary(t *testing.T) {
	fields := models.InvoiceFields{
		Cuit:         "20123456789",
		Concepto:     "Honorarios",
		ImporteTotal: "1.000,00",
		Fecha:        "01/02/2025",
		Destinatario: models.NoInforma,
	}
	out := RenderInvoiceSummary(fields)

	for _, want := range []string{
		"1) CUIT: 20123456789",
		"2) Concepto: Honorarios",
		"3) Importe total: 1.000,00",
		"4) Fecha: 01/02/2025",
		"5) Destinatario: NO INFORMA",
		"*CONFIRMAR*",
		"*EDITAR*",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
