package input

import (
	"strings"

	"github.com/recapd/recapd/internal/recaperr"
)

// Credential shape checks. These validate the format of provider keys before
// any network call so misconfiguration fails fast with a clear message. They
// never verify the key against the provider.

// ValidateOpenAIKey checks the shape of an OpenAI API key (sk-* or sk-proj-*).
func ValidateOpenAIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return recaperr.NewValidationError("openai_api_key", "key is empty")
	}
	if strings.HasPrefix(key, "sk-ant-") {
		return recaperr.NewValidationError("openai_api_key", "key looks like an Anthropic key")
	}
	if !strings.HasPrefix(key, "sk-") {
		return recaperr.NewValidationError("openai_api_key", "key must start with sk-")
	}
	if len(key) < 20 {
		return recaperr.NewValidationError("openai_api_key", "key is too short")
	}
	return nil
}

// ValidateAnthropicKey checks the shape of an Anthropic API key (sk-ant-*).
func ValidateAnthropicKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return recaperr.NewValidationError("anthropic_api_key", "key is empty")
	}
	if !strings.HasPrefix(key, "sk-ant-") {
		return recaperr.NewValidationError("anthropic_api_key", "key must start with sk-ant-")
	}
	if len(key) < 20 {
		return recaperr.NewValidationError("anthropic_api_key", "key is too short")
	}
	return nil
}

// ValidateReplicateToken checks the shape of a Replicate API token (r8_*).
func ValidateReplicateToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return recaperr.NewValidationError("replicate_api_token", "token is empty")
	}
	if !strings.HasPrefix(token, "r8_") {
		return recaperr.NewValidationError("replicate_api_token", "token must start with r8_")
	}
	if len(token) < 12 {
		return recaperr.NewValidationError("replicate_api_token", "token is too short")
	}
	return nil
}
