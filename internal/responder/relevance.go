package responder

import (
	"sort"
	"strings"

	"github.com/exdly/conectai/pkg/textx"
)

// chunkSeparator joins selected chunks and marks elided material between them.
const chunkSeparator = "\n\n...\n\n"

// minChunkRunes drops fragments too short to carry meaning on their own.
const minChunkRunes = 50

type scoredChunk struct {
	text  string
	score int
	pos   int
}

// SelectRelevant trims text to at most maxChars runes, keeping the paragraphs
// that share the most keywords with the query; non-matching paragraphs fill
// whatever budget remains. Text already under budget is returned untouched.
// When nothing fits, the prefix of the text is returned instead of nothing:
// upstream retrieval already judged it relevant.
func SelectRelevant(query, text string, maxChars int) string {
	if len([]rune(text)) <= maxChars {
		return text
	}
	keywords := textx.Keywords(query)
	if len(keywords) == 0 {
		return textx.TruncateRunes(text, maxChars)
	}

	var chunks []scoredChunk
	for i, raw := range strings.Split(text, "\n\n") {
		chunk := strings.TrimSpace(raw)
		if len([]rune(chunk)) < minChunkRunes {
			continue
		}
		lower := strings.ToLower(chunk)
		score := 0
		for _, kw := range keywords {
			score += strings.Count(lower, kw)
		}
		// Zero-score chunks stay in the list: they fill whatever budget is
		// left after the matching ones.
		chunks = append(chunks, scoredChunk{text: chunk, score: score, pos: i})
	}
	if len(chunks) == 0 {
		return textx.TruncateRunes(text, maxChars)
	}

	// Highest score first; original position breaks ties.
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].score != chunks[j].score {
			return chunks[i].score > chunks[j].score
		}
		return chunks[i].pos < chunks[j].pos
	})

	sepLen := len([]rune(chunkSeparator))
	var selected []string
	used := 0
	for _, c := range chunks {
		need := len([]rune(c.text))
		if len(selected) > 0 {
			need += sepLen
		}
		if used+need > maxChars {
			break
		}
		selected = append(selected, c.text)
		used += need
	}
	if len(selected) == 0 {
		return textx.TruncateRunes(text, maxChars)
	}
	return strings.Join(selected, chunkSeparator)
}
