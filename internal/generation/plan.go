package generation

import (
	"strings"

	"agenticos/internal/types"
)

// FallbackPlan is the ordered list of models tried for one generation:
// the configured model first, then the provider's fallbacks without duplicates.
type FallbackPlan struct {
	models []string
}

// NewFallbackPlan builds a plan with head first. Blank entries are skipped
// and later duplicates dropped, preserving order.
func NewFallbackPlan(head string, tail []string) FallbackPlan {
	seen := make(map[string]bool, len(tail)+1)
	models := make([]string, 0, len(tail)+1)
	for _, m := range append([]string{head}, tail...) {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		models = append(models, m)
	}
	return FallbackPlan{models: models}
}

// Models returns a copy of the candidate models in order.
func (p FallbackPlan) Models() []string {
	return append([]string(nil), p.models...)
}

// Len is the number of candidates.
func (p FallbackPlan) Len() int { return len(p.models) }

// DefaultFallbackModels returns the fixed fallback list for a provider.
func DefaultFallbackModels(p types.Provider) []string {
	switch p {
	case types.ProviderOpenRouter:
		return []string{
			"deepseek/deepseek-chat-v3-0324:free",
			"microsoft/wizardlm-2-8x22b:free",
			"anthropic/claude-3-haiku:free",
			"meta-llama/llama-3.2-3b-instruct:free",
			"qwen/qwen-2.5-7b-instruct:free",
			"google/gemma-2-9b-it:free",
		}
	case types.ProviderOpenAI:
		return []string{"gpt-4o-mini", "gpt-3.5-turbo", "gpt-4"}
	case types.ProviderAnthropic:
		return []string{"claude-3-5-haiku-20241022", "claude-3-5-sonnet-20241022"}
	default:
		return nil
	}
}
