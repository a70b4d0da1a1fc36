package types

import (
	"html"
	"strings"
	"time"
)

// MinHTMLLength is the shortest trimmed html body accepted as a real app.
// Lower than the historical 20 so that short but complete bodies such as
// `<div id="d"></div>` (18 chars) are kept.
const MinHTMLLength = 8

// GenerationRequest is one user prompt bound for a model.
// Cancellation is carried by the context passed alongside it.
type GenerationRequest struct {
	Prompt  string    `json:"prompt"`
	Agent   AgentType `json:"agent"`
	Context string    `json:"context,omitempty"`
}

// PromptPair is the system and user prompt built for one request.
type PromptPair struct {
	System string
	User   string
}

// Artifact is the structured unit handed to the renderer.
type Artifact struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	HTML        string `json:"html"`
	CSS         string `json:"css"`
	JS          string `json:"js"`
}

// HasValidHTML reports whether the html looks like markup and is not trivially short.
func (a Artifact) HasValidHTML() bool {
	body := strings.TrimSpace(a.HTML)
	return strings.Contains(body, "<") && len(body) >= MinHTMLLength
}

// Document composes a standalone page for export.
func (a Artifact) Document() string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	b.WriteString("<title>" + html.EscapeString(a.Name) + "</title>\n")
	b.WriteString("<style>\n" + ThemeVariables + "\n" + a.CSS + "\n</style>\n</head>\n<body>\n")
	b.WriteString(a.HTML)
	b.WriteString("\n<script>\n" + a.JS + "\n</script>\n</body>\n</html>\n")
	return b.String()
}

// ThemeVariables are the css custom properties generated apps are told to use.
const ThemeVariables = `:root {
  --bg-primary: #1a1a1a;
  --bg-secondary: #2d2d2d;
  --bg-tertiary: #3a3a3a;
  --text-primary: #ffffff;
  --text-secondary: #b0b0b0;
  --accent-blue: #007acc;
  --accent-green: #4caf50;
  --border-color: #404040;
  --border-radius: 8px;
}
body { margin: 0; background: var(--bg-primary); color: var(--text-primary); font-family: system-ui, sans-serif; }`

// SearchItem is one piece of retrieved reference material.
type SearchItem struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	URL         string    `json:"url"`
}

// SearchResult is what the context enricher found for a query.
type SearchResult struct {
	Items        []SearchItem `json:"items"`
	TotalResults int          `json:"total_results"`
	Query        string       `json:"query"`
	SearchedAt   time.Time    `json:"searched_at"`
}

// Usage is the token accounting reported by a provider envelope.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}
