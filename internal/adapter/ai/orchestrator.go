// Package ai runs the model fallback pipeline: an ordered set of provider
// chains, per-model cooldowns after rate limits, a usefulness filter over
// every response, and a soft degrade to the best text seen when nothing
// passes the filter.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/exdly/conectai/internal/domain"
)

// Chain is one provider with its ordered model list. Cooldowns only apply to
// chains that opt in; a provider that never returns usable retry hints can
// leave them off.
type Chain struct {
	Client          domain.ProviderClient
	Models          []string
	CooldownEnabled bool
}

// Options tune the orchestrator.
type Options struct {
	Cooldowns CooldownPolicy
	Prompt    PromptBuilder
}

// Orchestrator implements domain.AnswerGenerator over provider chains.
type Orchestrator struct {
	chains  []Chain
	opts    Options
	tracker *cooldownTracker
	log     *slog.Logger
}

func NewOrchestrator(chains []Chain, opts Options, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{chains: chains, opts: opts, tracker: newCooldownTracker(), log: log}
}

// Generate walks every chain in order and returns the first useful answer.
// Models under cooldown are skipped. A chain that yields nothing useful falls
// through to the next one; when every chain is exhausted, the earliest chain's
// non-empty text is returned instead, and with nothing at all,
// domain.ErrNoAnswer.
func (o *Orchestrator) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	prompt := o.opts.Prompt.Build(req)
	var degraded string

	for _, chain := range o.chains {
		text, ok := o.runChain(ctx, chain, prompt, req)
		if ctx.Err() != nil {
			return "", fmt.Errorf("op=ai.Generate: %w", ctx.Err())
		}
		if ok {
			return text, nil
		}
		if text != "" && degraded == "" {
			degraded = text
		}
	}
	if degraded != "" {
		o.log.WarnContext(ctx, "no useful answer, degrading to first non-empty response",
			slog.String("topic", req.Topic))
		return degraded, nil
	}
	return "", fmt.Errorf("op=ai.Generate: %w", domain.ErrNoAnswer)
}

// runChain tries every model of one chain. It returns (text, true) for a
// useful answer, or the last non-empty text with false.
func (o *Orchestrator) runChain(ctx context.Context, chain Chain, prompt string, req domain.GenerateRequest) (string, bool) {
	provider := chain.Client.Name()
	var degraded string

	for _, model := range chain.Models {
		if remaining, benched := o.tracker.active(provider, model); benched {
			o.log.DebugContext(ctx, "model under cooldown",
				slog.String("provider", provider),
				slog.String("model", model),
				slog.Duration("remaining", remaining))
			continue
		}

		text, err := chain.Client.Complete(ctx, model, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return degraded, false
			}
			o.handleModelError(ctx, chain, provider, model, err)
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if Useful(text, req.Topic) {
			o.log.InfoContext(ctx, "model answered",
				slog.String("provider", provider), slog.String("model", model))
			return text, true
		}
		o.log.DebugContext(ctx, "answer rejected by usefulness filter",
			slog.String("provider", provider), slog.String("model", model))
		degraded = text
	}
	return degraded, false
}

func (o *Orchestrator) handleModelError(ctx context.Context, chain Chain, provider, model string, err error) {
	var rl *domain.RateLimitError
	switch {
	case errors.As(err, &rl):
		if chain.CooldownEnabled {
			d := o.opts.Cooldowns.Duration(rl.RetryAfter)
			o.tracker.set(provider, model, d)
			o.log.WarnContext(ctx, "model rate limited",
				slog.String("provider", provider),
				slog.String("model", model),
				slog.Duration("cooldown", d))
			return
		}
		o.log.WarnContext(ctx, "model rate limited",
			slog.String("provider", provider), slog.String("model", model))
	case errors.Is(err, domain.ErrModelNotFound):
		o.log.WarnContext(ctx, "model not available",
			slog.String("provider", provider), slog.String("model", model))
	default:
		o.log.ErrorContext(ctx, "model call failed",
			slog.String("provider", provider),
			slog.String("model", model),
			slog.Any("error", err))
	}
}
