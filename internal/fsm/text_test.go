package fsm

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "lowercases", input: "LISTO", expected: "listo"},
		{name: "strips accents", input: "facturación", expected: "facturacion"},
		{name: "strips punctuation and emoji", input: "¡Hola! 👋", expected: "hola"},
		{name: "collapses whitespace", input: "  ya   esta  ", expected: "ya esta"},
		{name: "keeps digits", input: "20-12345678-9", expected: "20123456789"},
		{name: "enie", input: "mañana", expected: "manana"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.expected {
				t.Errorf("Normalize(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestIsListo(t *testing.T) {
	accepted := []string{
		"listo", "lsito", "litso", "listoo", "lito", "ya", "ya esta",
		"eso es todo", "es todo", "termine", "terminado", "fin", "finalizar", "ok listo",
	}
	for _, s := range accepted {
		if !IsListo(s) {
			t.Errorf("IsListo(%q) = false, expected true", s)
		}
	}

	rejected := []string{"lista", "ya estamos", "listo ya", "", "hola"}
	for _, s := range rejected {
		if IsListo(s) {
			t.Errorf("IsListo(%q) = true, expected false", s)
		}
	}
}

func TestIsListoThroughNormalize(t *testing.T) {
	// Raw user text goes through Normalize before the keyword check.
	raw := []string{"LISTO", "Listo!", "¡Ya está!", "Terminé."}
	for _, s := range raw {
		if !IsListo(Normalize(s)) {
			t.Errorf("IsListo(Normalize(%q)) = false, expected true", s)
		}
	}
}

func TestIsAmountCommand(t *testing.T) {
	if !IsAmountCommand("importe") || !IsAmountCommand("saldo") {
		t.Error("expected importe and saldo to be amount commands")
	}
	if IsAmountCommand("importes") || IsAmountCommand("cuanto debo") {
		t.Error("expected non-exact text to be rejected")
	}
}

func TestHasPaymentIntent(t *testing.T) {
	positives := []string{"quiero pagar los honorarios", "como pago", "pasame el cbu", "me das el alias"}
	for _, s := range positives {
		if !HasPaymentIntent(s) {
			t.Errorf("HasPaymentIntent(%q) = false, expected true", s)
		}
	}
	if HasPaymentIntent("quiero una factura") {
		t.Error("HasPaymentIntent should not match invoice requests")
	}
}

func TestIsHandoffPhrase(t *testing.T) {
	if !IsHandoffPhrase("quiero hablar con alguien") {
		t.Error("expected handoff phrase to match")
	}
	if !IsHandoffPhrase("necesito un asesor") {
		t.Error("expected asesor to match")
	}
	if IsHandoffPhrase("hablar de negocios") {
		t.Error("unrelated text should not match")
	}
}

func TestDigitsOnly(t *testing.T) {
	if got := DigitsOnly("20-12345678-9"); got != "20123456789" {
		t.Errorf("DigitsOnly = %q, expected 20123456789", got)
	}
	if got := DigitsOnly("sin numeros"); got != "" {
		t.Errorf("DigitsOnly = %q, expected empty", got)
	}
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		value    float64
		expected string
	}{
		{1500.5, "1.500,50"},
		{0, "0,00"},
		{999.99, "999,99"},
		{1234567.8, "1.234.567,80"},
		{-42.5, "-42,50"},
	}
	for _, tt := range tests {
		if got := FormatMoney(tt.value); got != tt.expected {
			t.Errorf("FormatMoney(%v) = %q, expected %q", tt.value, got, tt.expected)
		}
	}
}
