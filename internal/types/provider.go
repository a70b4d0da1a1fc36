package types

import (
	"fmt"
	"strings"
)

// Provider identifies an LLM vendor API shape.
type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderAnthropic  Provider = "anthropic"
	ProviderOpenRouter Provider = "openrouter"
)

// ProviderPrecedence is the fixed order in which configured providers win.
var ProviderPrecedence = []Provider{ProviderOpenAI, ProviderAnthropic, ProviderOpenRouter}

// ParseProvider validates a provider name.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderOpenRouter:
		return p, nil
	}
	return "", fmt.Errorf("unknown provider %q (valid: openai, anthropic, openrouter)", s)
}

// DefaultBaseURL returns the public API root for p.
func (p Provider) DefaultBaseURL() string {
	switch p {
	case ProviderOpenAI:
		return "https://api.openai.com/v1"
	case ProviderAnthropic:
		return "https://api.anthropic.com/v1"
	case ProviderOpenRouter:
		return "https://openrouter.ai/api/v1"
	default:
		return ""
	}
}

// EndpointPath returns the completion endpoint suffix for p.
func (p Provider) EndpointPath() string {
	if p == ProviderAnthropic {
		return "/messages"
	}
	return "/chat/completions"
}

// DefaultModel is used when no model was selected for p.
func (p Provider) DefaultModel() string {
	switch p {
	case ProviderOpenAI:
		return "gpt-4o"
	case ProviderAnthropic:
		return "claude-3-5-sonnet-20241022"
	case ProviderOpenRouter:
		return "deepseek/deepseek-chat-v3-0324:free"
	default:
		return ""
	}
}

// ProviderSelection is the provider, key and model resolved for one request.
type ProviderSelection struct {
	Provider     Provider
	APIKey       string
	Model        string
	BaseURL      string
	EndpointPath string
}

// NewProviderSelection fills base URL and endpoint from the provider defaults.
func NewProviderSelection(p Provider, apiKey, model string) ProviderSelection {
	if model == "" {
		model = p.DefaultModel()
	}
	return ProviderSelection{
		Provider:     p,
		APIKey:       apiKey,
		Model:        model,
		BaseURL:      p.DefaultBaseURL(),
		EndpointPath: p.EndpointPath(),
	}
}

// URL returns the full completion endpoint.
func (s ProviderSelection) URL() string {
	return strings.TrimRight(s.BaseURL, "/") + s.EndpointPath
}

// Redacted returns a copy safe for logs: only the first four key characters survive.
func (s ProviderSelection) Redacted() ProviderSelection {
	s.APIKey = MaskKey(s.APIKey)
	return s
}

// String never includes the full API key.
func (s ProviderSelection) String() string {
	return fmt.Sprintf("%s model=%s base=%s key=%s", s.Provider, s.Model, s.BaseURL, MaskKey(s.APIKey))
}

// MaskKey hides all but a short prefix of a secret.
func MaskKey(key string) string {
	if key == "" {
		return "MISSING"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****"
}
