// Package responder routes an incoming query through the answer pipeline:
// topic classification, the FAQ fast path, document and website retrieval,
// and finally delegation to the model orchestrator.
package responder

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/exdly/conectai/internal/domain"
	"github.com/exdly/conectai/internal/knowledge"
	"github.com/exdly/conectai/pkg/textx"
)

// complexityTriggers force a query onto the model path even when a FAQ entry
// matches: the user asked for an explanation, not a data card.
var complexityTriggers = []string{
	"explicar", "explica", "detalle", "detallado",
	"paso", "procedimiento", "como hago", "guia",
}

// directAnswerMaxRunes caps document fragments returned verbatim as answers.
// Longer fragments become model context instead.
const directAnswerMaxRunes = 600

// historyTurns is how many trailing conversation turns reach the prompt.
const historyTurns = 2

// Config bounds the retrieval context handed to the orchestrator.
type Config struct {
	DocContextBudget int
	WebContextBudget int
}

// Router is the query pipeline. Document search and web content are optional
// collaborators; a nil port just yields empty context.
type Router struct {
	kb   *knowledge.Base
	docs domain.DocumentSearcher
	web  domain.WebContentProvider
	gen  domain.AnswerGenerator
	cfg  Config
	log  *slog.Logger
}

func New(kb *knowledge.Base, docs domain.DocumentSearcher, web domain.WebContentProvider, gen domain.AnswerGenerator, cfg Config, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{kb: kb, docs: docs, web: web, gen: gen, cfg: cfg, log: log}
}

// IsComplex reports whether a query asks for an elaborated explanation.
func IsComplex(query string) bool {
	return textx.ContainsAny(textx.Normalize(query), complexityTriggers)
}

// Respond answers a query. The returned Answer records which stage produced
// the text so callers can log and meter the pipeline.
func (r *Router) Respond(ctx domain.Context, query string, history []domain.Turn) (domain.Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.Answer{}, fmt.Errorf("op=responder.Respond: %w: empty query", domain.ErrInvalidArgument)
	}

	topic := r.kb.Classify(query)
	if canned, ok := r.kb.Canned(topic); ok {
		return domain.Answer{Text: canned, Source: domain.SourceFAQ, Topic: topic}, nil
	}

	complex := IsComplex(query)
	faqHit, gotFAQ := r.kb.KeywordMatch(query)
	if !gotFAQ {
		faqHit, gotFAQ = r.kb.FuzzyMatch(query)
	}
	if gotFAQ && !complex {
		r.log.InfoContext(ctx, "faq hit", slog.String("topic", topic))
		return domain.Answer{Text: faqHit, Source: domain.SourceFAQ, Topic: topic}, nil
	}

	docCtx := r.documentContext(ctx, query)
	if !complex && docCtx != "" &&
		!textx.LooksLikeRawDump(docCtx) &&
		len([]rune(docCtx)) <= directAnswerMaxRunes {
		r.log.InfoContext(ctx, "document hit", slog.String("topic", topic))
		return domain.Answer{Text: docCtx, Source: domain.SourceSearch, Topic: topic}, nil
	}

	req := domain.GenerateRequest{
		Query:      query,
		Topic:      topic,
		DocContext: SelectRelevant(query, docCtx, r.cfg.DocContextBudget),
		WebContext: SelectRelevant(query, r.websiteContext(ctx), r.cfg.WebContextBudget),
		Evidence:   r.evidence(topic, query, faqHit),
		History:    lastTurns(history, historyTurns),
	}
	text, err := r.gen.Generate(ctx, req)
	if err != nil {
		if gotFAQ {
			r.log.WarnContext(ctx, "generation failed, degrading to faq",
				slog.String("topic", topic), slog.Any("error", err))
			return domain.Answer{Text: faqHit, Source: domain.SourceFAQ, Topic: topic}, nil
		}
		return domain.Answer{}, fmt.Errorf("op=responder.Respond: %w", err)
	}
	return domain.Answer{Text: text, Source: domain.SourceAI, Topic: topic}, nil
}

func (r *Router) documentContext(ctx domain.Context, query string) string {
	if r.docs == nil {
		return ""
	}
	text, err := r.docs.SearchDocuments(ctx, query)
	if err != nil {
		r.log.WarnContext(ctx, "document search failed", slog.Any("error", err))
		return ""
	}
	return text
}

func (r *Router) websiteContext(ctx domain.Context) string {
	if r.web == nil {
		return ""
	}
	text, err := r.web.WebsiteContent(ctx, false)
	if err != nil {
		r.log.WarnContext(ctx, "website content unavailable", slog.Any("error", err))
		return ""
	}
	return text
}

// evidence stacks the verified fact blocks and any FAQ hit so they ride
// ahead of retrieved text in the prompt.
func (r *Router) evidence(topic, query, faqHit string) string {
	var parts []string
	if v := r.kb.VerifiedContext(topic, query); v != "" {
		parts = append(parts, v)
	}
	if faqHit != "" {
		parts = append(parts, faqHit)
	}
	return strings.Join(parts, "\n\n")
}

func lastTurns(history []domain.Turn, n int) []domain.Turn {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
