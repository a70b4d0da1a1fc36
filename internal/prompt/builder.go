package prompt

import (
	"context"
	"fmt"
	"strings"

	"agenticos/internal/enrichment"
	"agenticos/internal/logging"
	"agenticos/internal/types"
)

// Builder turns a GenerationRequest into the system and user prompts.
// Build never fails; enrichment failures become a note in the user prompt.
type Builder struct {
	catalog  *Catalog
	enricher enrichment.Enricher
}

// NewBuilder creates a builder. A nil catalog means no selections; a nil
// enricher behaves like enrichment.Disabled.
func NewBuilder(catalog *Catalog, enricher enrichment.Enricher) *Builder {
	if enricher == nil {
		enricher = enrichment.Disabled{}
	}
	return &Builder{catalog: catalog, enricher: enrichment.Safe(enricher)}
}

// Build composes both prompts. The only side effect is one enrichment call
// for the info agent.
func (b *Builder) Build(ctx context.Context, req types.GenerationRequest) types.PromptPair {
	timer := logging.StartTimer(logging.CategoryPrompt, "Build")
	defer timer.Stop()

	pair := types.PromptPair{
		System: b.SystemPrompt(ctx, req.Agent),
		User:   b.UserPrompt(ctx, req),
	}
	logging.PromptDebug("built prompts for %s: system=%d chars user=%d chars", req.Agent.ID(), len(pair.System), len(pair.User))
	return pair
}

// SystemPrompt is the base instructions plus the selected template's prompt,
// or the built-in description of the agent when nothing is selected.
func (b *Builder) SystemPrompt(ctx context.Context, agent types.AgentType) string {
	addendum := agentDescription(agent)
	if b.catalog != nil {
		if t, ok := b.catalog.SelectedTemplate(ctx, agent); ok {
			addendum = t.AgentPrompt
			logging.PromptDebug("using template %s for %s", t.ID, agent.ID())
		}
	}
	return basePrompt + "\n\n" + addendum
}

// UserPrompt is the request, optional search results, the agent checklist,
// the selected instruction, any extra context and the closing directive.
func (b *Builder) UserPrompt(ctx context.Context, req types.GenerationRequest) string {
	var sb strings.Builder
	sb.WriteString("Create a web application based on this request: \"" + req.Prompt + "\"")

	if req.Agent == types.AgentInfo {
		outcome := b.enricher.Enrich(ctx, req.Prompt)
		if outcome.Failed() {
			if outcome.Err != nil {
				logging.EnrichmentWarn("proceeding without current information: %v", outcome.Err)
			}
			fmt.Fprintf(&sb, "\n\nNote: Unable to fetch current information. Please create an informational app about \"%s\" using your knowledge base.", req.Prompt)
		} else {
			writeSearchResults(&sb, req.Prompt, outcome.Result)
		}
		sb.WriteString("\n\n" + infoChecklist)
	} else {
		sb.WriteString("\n\n" + appChecklist)
	}

	if b.catalog != nil {
		if in, ok := b.catalog.SelectedInstruction(ctx, req.Agent); ok {
			sb.WriteString("\n\nAdditional instructions: " + in.Text)
		}
	}

	if strings.TrimSpace(req.Context) != "" {
		sb.WriteString("\n\nAdditional context: " + req.Context)
	}

	sb.WriteString("\n\n" + closingDirective)
	return sb.String()
}

func writeSearchResults(sb *strings.Builder, query string, result types.SearchResult) {
	fmt.Fprintf(sb, "\n\nCURRENT INFORMATION SEARCH RESULTS for \"%s\":", query)
	for i, item := range result.Items {
		published := "unknown"
		if !item.PublishedAt.IsZero() {
			published = item.PublishedAt.Format("1/2/2006")
		}
		fmt.Fprintf(sb, "\n\n%d. **%s**\n   Source: %s\n   Published: %s\n   Description: %s\n   URL: %s",
			i+1, item.Title, item.Source, published, item.Description, item.URL)
	}
	sb.WriteString("\n\n" + presentationInstructions)
}

// agentDescription is the built-in specialization for each agent. AgentType
// is closed; an out-of-range value is a programming error.
func agentDescription(agent types.AgentType) string {
	switch agent {
	case types.AgentApp:
		return "You specialize in creating interactive applications like calculators, converters, text editors, forms, and productivity tools.\n" +
			"Focus on functionality and user experience."
	case types.AgentUtility:
		return "You create simple utility tools like timers, counters, unit converters, password generators, and small helper apps.\n" +
			"Prioritize simplicity and usefulness."
	case types.AgentWidget:
		return "You build dashboard widgets like clocks, weather displays, progress bars, charts, and status indicators.\n" +
			"Focus on visual appeal and real-time updates."
	case types.AgentGame:
		return "You create simple games like tic-tac-toe, memory games, word games, puzzles, and interactive entertainment.\n" +
			"Emphasize fun gameplay and clear rules."
	case types.AgentInfo:
		return "You specialize in creating information apps that display current news, research results, fact sheets, and knowledge summaries.\n" +
			"Focus on presenting information in an organized, readable format with proper citations and sources.\n" +
			"Create apps that display research results, news summaries, fact comparisons, timelines, and informational dashboards."
	default:
		panic(fmt.Sprintf("prompt: unhandled agent type %d", int(agent)))
	}
}
