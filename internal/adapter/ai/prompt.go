package ai

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/exdly/conectai/internal/domain"
)

const systemFraming = `Eres el asistente virtual del IESTP "Juan Velasco Alvarado" de Villa María del Triunfo, Lima.
Respondes en español, de forma clara y directa, solo sobre temas del instituto.
Reglas:
- Usa los DATOS OFICIALES VERIFICADOS como fuente principal; nunca los contradigas.
- No copies texto crudo de documentos ni encabezados de resoluciones.
- Si falta un dato, indica a qué oficina acudir (correo o teléfono) en lugar de inventarlo.`

// PromptBuilder assembles provider prompts and keeps them under a token
// budget by shrinking retrieved context before touching anything else.
type PromptBuilder struct {
	InjectEvidence bool
	MaxTokens      int
}

// Build renders the prompt for a request. Retrieved document and website
// context is halved until the estimate fits the budget; evidence, history and
// the question itself are never cut.
func (b PromptBuilder) Build(req domain.GenerateRequest) string {
	doc, web := req.DocContext, req.WebContext
	prompt := b.render(req, doc, web)
	if b.MaxTokens <= 0 {
		return prompt
	}
	for EstimateTokens(prompt) > b.MaxTokens && (doc != "" || web != "") {
		doc = halve(doc)
		web = halve(web)
		prompt = b.render(req, doc, web)
	}
	return prompt
}

func (b PromptBuilder) render(req domain.GenerateRequest, doc, web string) string {
	var sb strings.Builder
	sb.WriteString(systemFraming)
	if b.InjectEvidence && req.Evidence != "" {
		sb.WriteString("\n\nDATOS OFICIALES VERIFICADOS:\n")
		sb.WriteString(req.Evidence)
	}
	if doc != "" {
		sb.WriteString("\n\nDOCUMENTOS INSTITUCIONALES:\n")
		sb.WriteString(doc)
	}
	if web != "" {
		sb.WriteString("\n\nCONTENIDO DEL SITIO WEB:\n")
		sb.WriteString(web)
	}
	if len(req.History) > 0 {
		sb.WriteString("\n\nCONVERSACIÓN RECIENTE:")
		for _, turn := range req.History {
			label := "Usuario"
			if turn.Role == domain.RoleAssistant {
				label = "Asistente"
			}
			sb.WriteString("\n")
			sb.WriteString(label)
			sb.WriteString(": ")
			sb.WriteString(turn.Content)
		}
	}
	sb.WriteString("\n\nPREGUNTA: ")
	sb.WriteString(req.Query)
	return sb.String()
}

func halve(s string) string {
	r := []rune(s)
	return strings.TrimSpace(string(r[:len(r)/2]))
}

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// EstimateTokens counts prompt tokens with the cl100k_base encoding. When the
// encoding cannot be loaded it falls back to the four-bytes-per-token rule.
func EstimateTokens(s string) int {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	if encoding == nil {
		return (len(s) + 3) / 4
	}
	return len(encoding.Encode(s, nil, nil))
}
