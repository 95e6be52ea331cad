package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/recapd/recapd/internal/recaperr"
)

// AnthropicProvider is the chat-completion backend for the anthropic
// provider tag.
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider creates a provider with the given API key. baseURL
// is optional and used by tests.
func NewAnthropicProvider(apiKey, baseURL string) *AnthropicProvider {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	return &AnthropicProvider{client: anthropic.NewClient(reqOpts...)}
}

// Name implements Provider.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// Complete implements Provider.
func (p *AnthropicProvider) Complete(ctx context.Context, model, system, user string, maxTokens int) (string, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", classifyAnthropicError(err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", recaperr.NewLLMProviderError("anthropic", recaperr.LLMErrorProvider,
			errors.New("response contains no text blocks"))
	}
	return b.String(), nil
}

func classifyAnthropicError(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return recaperr.NewLLMProviderError("anthropic", kindForStatus(apierr.StatusCode), err)
	}
	return recaperr.NewLLMProviderError("anthropic", kindForTransport(err), err)
}
