package textx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeText(t *testing.T) {
	in := "he\x00llo\nwo\x7frld\t!"
	got := SanitizeText(in)
	if got != "hello\nworld\t!" {
		t.Fatalf("unexpected: %q", got)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "¿cuanto cuesta la matricula?", Normalize("  ¿Cuánto cuesta la MATRÍCULA?  "))
	assert.Equal(t, "ensenanza", Normalize("Enseñanza"))
}

func TestCacheKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "cuanto cuesta la matrícula", CacheKey("¿Cuánto   cuesta la matrícula?!"))
	// Same question with different punctuation collapses to the same key.
	assert.Equal(t, CacheKey("cuanto cuesta la matrícula"), CacheKey("¿¿Cuanto cuesta, la matrícula??"))
}

func TestKeywords(t *testing.T) {
	t.Parallel()
	kws := Keywords("Quisiera que me explicaras el proceso de matrícula")
	assert.Equal(t, []string{"proceso", "matricula"}, kws)

	assert.Empty(t, Keywords("el de en y"))
}

func TestContainsAny(t *testing.T) {
	t.Parallel()
	assert.True(t, ContainsAny("cuanto dura la carrera", []string{"duracion", "dura"}))
	assert.False(t, ContainsAny("horario de clases", []string{"costo", "pago"}))
}

func TestLooksLikeRawDump(t *testing.T) {
	t.Parallel()
	assert.True(t, LooksLikeRawDump("--- Página 3 ---\ncontenido"))
	assert.True(t, LooksLikeRawDump("RESOLUCIÓN DIRECTORAL N° 123-2025"))
	assert.False(t, LooksLikeRawDump("La matrícula cuesta S/. 200.00"))
}

func TestTruncateRunes(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "matrí", TruncateRunes("matrícula", 5))
	assert.Equal(t, "corto", TruncateRunes("corto", 10))
	assert.Equal(t, "", TruncateRunes("algo", 0))
}
