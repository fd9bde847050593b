package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const goodAnswer = "La matrícula regular cuesta S/. 200.00 y se paga en el Banco de la Nación antes de acudir a Tesorería."

func TestUsefulRejectsShortAnswers(t *testing.T) {
	t.Parallel()
	assert.False(t, Useful("No sé.", "general"))
	assert.False(t, Useful("   ", "general"))
	assert.True(t, Useful(goodAnswer, "general"))
}

func TestUsefulRejectsShortRawDumps(t *testing.T) {
	t.Parallel()
	dump := "--- Página 2 ---\nVISTO el expediente presentado por la interesada."
	assert.False(t, Useful(dump, "general"))

	// A long answer quoting a resolution in passing is tolerated.
	long := "Según la Resolución Directoral vigente, el trámite de convalidación sigue estos pasos. " +
		strings.Repeat("Primero se presenta la solicitud en mesa de partes con los documentos requeridos. ", 4)
	assert.True(t, Useful(long, "general"))
}

func TestUsefulRejectsRefusals(t *testing.T) {
	t.Parallel()
	cases := []string{
		"Lo siento, no tengo informacion sobre ese tema en este momento, te sugiero consultar otras fuentes disponibles.",
		"No encuentro esa información específica en los documentos disponibles, quizás puedas reformular tu pregunta de otra manera.",
		"Para resolver ese trámite te recomiendo contactar a la secretaría académica del instituto en horario de atención.",
		"En los documentos proporcionados no se menciona nada sobre ese procedimiento ni sobre sus plazos de atención.",
		"Lamentablemente no se indica esa información en el material institucional al que tengo acceso en este momento.",
	}
	for _, refusal := range cases {
		assert.False(t, Useful(refusal, "general"), refusal)
	}

	// A refusal that still hands over a contact is actionable.
	referral := "No tengo informacion sobre ese trámite, pero puedes escribir al correo secretaria.academica@iestpjva.edu.pe para confirmarlo."
	assert.True(t, Useful(referral, "general"))
}

func TestUsefulCostAnswersNeedFigures(t *testing.T) {
	t.Parallel()
	vague := "El costo de la matrícula depende de varios factores administrativos que debes consultar directamente."
	assert.False(t, Useful(vague, "costos"))
	assert.True(t, Useful(goodAnswer, "costos"))

	// The hard check keys off the answer mentioning cost vocabulary; an
	// answer about something else entirely is not constrained.
	hours := "La oficina de tesorería atiende de lunes a viernes por las mañanas en el pabellón principal del instituto."
	assert.True(t, Useful(hours, "costos"))
}

func TestUsefulDateQuestionsNeedDates(t *testing.T) {
	t.Parallel()
	vague := "El examen de admisión se realiza normalmente durante el primer semestre de cada año académico."
	assert.False(t, Useful(vague, "fechas"))

	dated := "El examen de admisión está programado para el domingo 13 de abril, con inscripciones abiertas hasta esa semana."
	assert.True(t, Useful(dated, "fechas"))

	monthOnly := "Las clases del periodo académico comienzan en abril y las inscripciones cierran unas semanas antes."
	assert.True(t, Useful(monthOnly, "fechas"))
}
