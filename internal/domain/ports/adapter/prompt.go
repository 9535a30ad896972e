package adapter

import "context"

// PromptRefiner turns raw user wording into a single finished generation
// prompt. Best-effort: callers fall back to the raw text when it errors.
type PromptRefiner interface {
	Refine(ctx context.Context, section, userText string) (string, error)
}
