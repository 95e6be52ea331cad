package envcreds

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recapd/recapd/internal/config"
	"github.com/recapd/recapd/internal/recaperr"
)

func TestGetPrefersConfigOverEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-environment-0123456789")

	s := NewStore(config.CredentialsConfig{OpenAIAPIKey: "sk-from-config-0123456789"}, nil)
	assert.Equal(t, "sk-from-config-0123456789", s.Get(OpenAIAPIKey))
}

func TestGetFallsBackToEnv(t *testing.T) {
	t.Setenv("REPLICATE_API_TOKEN", "r8_environment_token")

	s := NewStore(config.CredentialsConfig{}, nil)
	assert.Equal(t, "r8_environment_token", s.Get(ReplicateAPIToken))
}

func TestGetUnknownName(t *testing.T) {
	t.Setenv("SOME_OTHER_SECRET", "value")
	s := NewStore(config.CredentialsConfig{}, nil)
	assert.Equal(t, "value", s.Get("SOME_OTHER_SECRET"))
}

func TestGetTrimsWhitespace(t *testing.T) {
	s := NewStore(config.CredentialsConfig{AnthropicAPIKey: " sk-ant-padded-0123456789 \n"}, nil)
	assert.Equal(t, "sk-ant-padded-0123456789", s.Get(AnthropicAPIKey))
}

func TestValidateAcceptsAbsentCredentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("REPLICATE_API_TOKEN", "")

	s := NewStore(config.CredentialsConfig{}, nil)
	assert.NoError(t, s.Validate())
}

func TestValidateRejectsMalformedKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("REPLICATE_API_TOKEN", "")

	s := NewStore(config.CredentialsConfig{OpenAIAPIKey: "not-a-key"}, nil)
	var valErr *recaperr.ValidationError
	require.ErrorAs(t, s.Validate(), &valErr)
	assert.Equal(t, "openai_api_key", valErr.Field)
}

func TestValidateRejectsSwappedProviderKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("REPLICATE_API_TOKEN", "")

	s := NewStore(config.CredentialsConfig{OpenAIAPIKey: "sk-ant-REDACTED"}, nil)
	assert.Error(t, s.Validate())
}

func TestAvailable(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("REPLICATE_API_TOKEN", "")

	s := NewStore(config.CredentialsConfig{
		OpenAIAPIKey:      "sk-valid-key-0123456789",
		ReplicateAPIToken: "r8_valid_token",
	}, nil)
	assert.Equal(t, []string{"openai", "replicate"}, s.Available())
}
