package weave

import (
	"context"
	"log/slog"
	"strings"

	"github.com/treggify/mindweaver/internal/llm"
)

// validate issues one binary relevance judgment comparing full note bodies.
// Only the literal response "true" (case-insensitive, trimmed) is a positive.
// This stage fails closed: a provider error or anything unparseable counts as
// "false". A false negative here costs one missed connection, nothing more.
func (e *Engine) validate(ctx context.Context, sourceBody, candidateBody string) bool {
	if err := e.limiter.Await(ctx); err != nil {
		return false
	}

	resp, err := e.completer.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: validatorSystemPrompt(e.opts.Strength, e.opts.SpecialInstructions)},
		{Role: llm.RoleUser, Content: validatorUserPrompt(sourceBody, candidateBody)},
	})
	if err != nil {
		e.logger.Warn("validator: call failed, treating as negative",
			slog.String("error", err.Error()))
		return false
	}
	return strings.EqualFold(strings.TrimSpace(resp), "true")
}
