// Package envcreds resolves provider credentials from configuration with an
// environment fallback, and validates their shape before first use.
package envcreds

import (
	"log/slog"
	"os"
	"strings"

	"github.com/recapd/recapd/internal/config"
	"github.com/recapd/recapd/internal/input"
)

// Canonical credential names.
const (
	OpenAIAPIKey      = "OPENAI_API_KEY"
	AnthropicAPIKey   = "ANTHROPIC_API_KEY"
	ReplicateAPIToken = "REPLICATE_API_TOKEN"
)

// Store implements capability.CredentialStore over the loaded configuration,
// falling back to the process environment for names configuration does not
// carry.
type Store struct {
	creds  config.CredentialsConfig
	logger *slog.Logger
}

// NewStore creates a Store.
func NewStore(creds config.CredentialsConfig, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{creds: creds, logger: logger}
}

// Get implements capability.CredentialStore.
func (s *Store) Get(name string) string {
	var val string
	switch name {
	case OpenAIAPIKey:
		val = s.creds.OpenAIAPIKey
	case AnthropicAPIKey:
		val = s.creds.AnthropicAPIKey
	case ReplicateAPIToken:
		val = s.creds.ReplicateAPIToken
	}
	if val == "" {
		val = os.Getenv(name)
	}
	return strings.TrimSpace(val)
}

// Validate shape-checks every credential that is present. Absent credentials
// are not errors; a provider is simply unavailable without one.
func (s *Store) Validate() error {
	if key := s.Get(OpenAIAPIKey); key != "" {
		if err := input.ValidateOpenAIKey(key); err != nil {
			return err
		}
	}
	if key := s.Get(AnthropicAPIKey); key != "" {
		if err := input.ValidateAnthropicKey(key); err != nil {
			return err
		}
	}
	if tok := s.Get(ReplicateAPIToken); tok != "" {
		if err := input.ValidateReplicateToken(tok); err != nil {
			return err
		}
	}
	return nil
}

// Available reports which providers have a usable credential.
func (s *Store) Available() []string {
	providers := make([]string, 0, 3)
	if s.Get(OpenAIAPIKey) != "" {
		providers = append(providers, "openai")
	}
	if s.Get(AnthropicAPIKey) != "" {
		providers = append(providers, "anthropic")
	}
	if s.Get(ReplicateAPIToken) != "" {
		providers = append(providers, "replicate")
	}
	return providers
}
