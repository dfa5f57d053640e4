package fsm

// Derivation phrases sent to the user when their conversation is handed to a
// human operator.
var frasesDerivacion = map[string]string{
	"belen": "Perfecto, le paso tu consulta a Belén 👩‍💼. Te va a escribir por acá apenas se desocupe.",
	"ivan":  "Perfecto, le paso tu consulta a Iván 👨‍💼. Te va a escribir por acá apenas se desocupe.",
}

const fraseDerivacionDefault = "Perfecto, le paso tu consulta al equipo. Te van a escribir por acá a la brevedad."

// GetFraseDerivacion returns the handoff phrase for a person, falling back
// to a generic phrase for unknown names.
func GetFraseDerivacion(person string) string {
	if f, ok := frasesDerivacion[Normalize(person)]; ok {
		return f
	}
	return fraseDerivacionDefault
}
