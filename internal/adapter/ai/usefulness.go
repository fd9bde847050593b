package ai

import (
	"regexp"
	"strings"

	"github.com/exdly/conectai/pkg/textx"
)

// The usefulness filter rejects model output that would read as broken to a
// student: one-liners, verbatim document dumps, refusals, and answers to
// money or date questions that carry no figures.

const (
	minUsefulRunes   = 40
	rawDumpTolerance = 300
)

var refusalPhrases = []string{
	"no tengo informacion",
	"no tengo esa informacion",
	"no encuentro",
	"no se menciona",
	"no se indica",
	"no puedo ayudarte",
	"no puedo responder",
	"no cuento con",
	"no dispongo de",
	"lo siento, no",
	"como modelo de lenguaje",
	"contacta a secretaria",
	"contacta a la secretaria",
	"contactar a secretaria",
	"contactar a la secretaria",
}

// salvageMarkers rescue an apparent refusal that still carries actionable
// data, usually a referral with contact details or an itemized list.
var salvageMarkers = []string{"correo", "telefono", "s/.", "1.", "•"}

var costWords = []string{"costo", "precio", "cuanto cuesta", "pago", "tarifa", "mensualidad"}

var (
	moneyRe = regexp.MustCompile(`(?i)s/\.|soles|\d`)
	dayRe   = regexp.MustCompile(`\b\d{1,2}\b`)
)

var monthNames = []string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "setiembre", "octubre", "noviembre", "diciembre",
}

// Useful judges whether a model answer is worth returning for the given
// topic.
func Useful(answer, topic string) bool {
	answer = strings.TrimSpace(answer)
	runes := len([]rune(answer))
	if runes < minUsefulRunes {
		return false
	}
	if textx.LooksLikeRawDump(answer) && runes < rawDumpTolerance {
		return false
	}
	norm := textx.Normalize(answer)
	if textx.ContainsAny(norm, refusalPhrases) && !textx.ContainsAny(norm, salvageMarkers) {
		return false
	}
	switch topic {
	case "costos", "matricula", "titulacion":
		if textx.ContainsAny(norm, costWords) && !moneyRe.MatchString(answer) {
			return false
		}
	case "fechas", "cronograma":
		if !dayRe.MatchString(answer) && !textx.ContainsAny(norm, monthNames) {
			return false
		}
	}
	return true
}
