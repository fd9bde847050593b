// Package textx provides small text utilities used across the project.
package textx

import (
	"regexp"
	"strings"
)

// SanitizeText removes control characters except tab/newline/CR and trims spaces.
func SanitizeText(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

var accentReplacer = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n",
	"Á", "a", "É", "e", "Í", "i", "Ó", "o", "Ú", "u", "Ñ", "n",
)

// Normalize lowercases, trims, and maps accented Spanish vowels and ñ to
// their ASCII equivalents. All keyword matching operates on this form.
func Normalize(s string) string {
	return accentReplacer.Replace(strings.ToLower(strings.TrimSpace(s)))
}

var (
	nonWordRe    = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// CacheKey derives the content-addressed cache key for a query: normalized,
// punctuation stripped, whitespace collapsed.
func CacheKey(s string) string {
	clean := nonWordRe.ReplaceAllString(strings.ToLower(s), "")
	clean = whitespaceRe.ReplaceAllString(clean, " ")
	return strings.TrimSpace(clean)
}

// Stopwords excluded from query keyword extraction.
var Stopwords = map[string]struct{}{
	"el": {}, "la": {}, "de": {}, "en": {}, "y": {}, "que": {},
	"los": {}, "las": {}, "un": {}, "una": {}, "quisiera": {},
	"me": {}, "explicaras": {}, "sobre": {}, "para": {}, "cual": {},
}

// Keywords extracts the normalized words longer than three characters that
// are not stopwords. Punctuation is stripped first. Order follows the input.
func Keywords(query string) []string {
	var out []string
	for _, w := range strings.Fields(nonWordRe.ReplaceAllString(Normalize(query), "")) {
		if len(w) <= 3 {
			continue
		}
		if _, skip := Stopwords[w]; skip {
			continue
		}
		out = append(out, w)
	}
	return out
}

// ContainsAny reports whether the normalized text contains any of the given
// substrings. Triggers are expected to already be in normalized form.
func ContainsAny(normalized string, triggers []string) bool {
	for _, t := range triggers {
		if strings.Contains(normalized, t) {
			return true
		}
	}
	return false
}

// rawDumpMarkers betray text lifted verbatim from scanned institutional
// documents rather than composed prose.
var rawDumpMarkers = []string{
	"--- pagina",
	"--- página",
	"resolucion directoral",
	"resolución directoral",
	"visto el expediente",
	"se resuelve:",
	"articulo 1",
	"artículo 1",
}

// LooksLikeRawDump reports whether text reads like an unprocessed document
// fragment (OCR page breaks, resolution boilerplate).
func LooksLikeRawDump(s string) bool {
	return ContainsAny(strings.ToLower(s), rawDumpMarkers)
}

// TruncateRunes caps s at n runes. Byte-slicing would split multibyte
// characters in Spanish text.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
