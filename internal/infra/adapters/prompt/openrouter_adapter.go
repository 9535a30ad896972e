package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"telegram-ai-generation/internal/domain/ports/adapter"
)

var _ adapter.PromptRefiner = (*OpenRouterRefiner)(nil)

// OpenRouterRefiner turns raw user wording into one finished generation
// prompt through an OpenAI-compatible chat completions endpoint. The model
// answers with the prompt text only, one paragraph, in Russian.
type OpenRouterRefiner struct {
	client openai.Client
	model  string
}

func NewOpenRouterRefiner(apiKey, model, baseURL string) (*OpenRouterRefiner, error) {
	if apiKey == "" {
		return nil, errors.New("openrouter api key empty")
	}
	return &OpenRouterRefiner{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(baseURL),
		),
		model: model,
	}, nil
}

// Section names match the bot's scenario flows.
func sectionInstruction(section string) string {
	base := "You write prompts for the nano-banana-pro image model. " +
		"Produce exactly ONE final prompt, in Russian, as a single paragraph. " +
		"No markdown, no lists, no quotes, no explanations."
	switch strings.TrimSpace(section) {
	case "presentation_desc":
		return base + " The prompt must describe the framing and presentation of a product: " +
			"where it sits (hand, ears, nails), camera angle, shot size, light, background, style. " +
			"It must ask to keep the product exactly faithful to the reference photo " +
			"(color, texture, shape, prints, logos)."
	case "model_desc":
		return base + " The prompt must describe the model's appearance and the staging: " +
			"age, looks, clothing style, pose, expression, light, background, composition."
	case "tryon_desc":
		return base + " The prompt is for virtual clothing try-on: body part and framing, " +
			"how the garment sits, realistic fabric and folds, light, background, pose. " +
			"It must keep the person's identity and the garment faithful to the photos."
	default:
		return base + " Build the prompt from the user's input."
	}
}

func (r *OpenRouterRefiner) Refine(ctx context.Context, section, userText string) (string, error) {
	user := fmt.Sprintf("Section: %s\nUser input:\n%s\n\nAssemble the final prompt.", section, userText)

	resp, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(r.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(sectionInstruction(section)),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(0.4),
		MaxTokens:   openai.Int(700),
	})
	if err != nil {
		return "", err
	}
	for _, c := range resp.Choices {
		if text := strings.TrimSpace(c.Message.Content); text != "" {
			return text, nil
		}
	}
	return "", errors.New("no choice content")
}
