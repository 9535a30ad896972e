package prompt

import (
	"context"

	"telegram-ai-generation/internal/domain/ports/adapter"
)

var _ adapter.PromptRefiner = (*NoopRefiner)(nil)

// NoopRefiner echoes the user text back unchanged.
type NoopRefiner struct{}

func NewNoopRefiner() *NoopRefiner { return &NoopRefiner{} }

func (NoopRefiner) Refine(ctx context.Context, section, userText string) (string, error) {
	return userText, nil
}
