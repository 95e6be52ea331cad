package llm

import (
	"context"
	"errors"
	"net/http"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/recapd/recapd/internal/recaperr"
)

// OpenAIProvider is the chat-completion backend for the openai provider
// tag.
type OpenAIProvider struct {
	client oai.Client
}

// NewOpenAIProvider creates a provider with the given API key. baseURL is
// optional and used by tests.
func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	return &OpenAIProvider{client: oai.NewClient(reqOpts...)}
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return "openai" }

// Complete implements Provider.
func (p *OpenAIProvider) Complete(ctx context.Context, model, system, user string, maxTokens int) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(system),
			oai.UserMessage(user),
		},
		MaxCompletionTokens: param.NewOpt(int64(maxTokens)),
	})
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", recaperr.NewLLMProviderError("openai", recaperr.LLMErrorProvider,
			errors.New("empty choices in response"))
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAIError(err error) error {
	var apierr *oai.Error
	if errors.As(err, &apierr) {
		return recaperr.NewLLMProviderError("openai", kindForStatus(apierr.StatusCode), err)
	}
	return recaperr.NewLLMProviderError("openai", kindForTransport(err), err)
}

func kindForStatus(status int) recaperr.LLMErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return recaperr.LLMErrorAuth
	case status == http.StatusTooManyRequests:
		return recaperr.LLMErrorRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return recaperr.LLMErrorTimeout
	default:
		return recaperr.LLMErrorProvider
	}
}

func kindForTransport(err error) recaperr.LLMErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return recaperr.LLMErrorTimeout
	}
	return recaperr.LLMErrorNetwork
}
