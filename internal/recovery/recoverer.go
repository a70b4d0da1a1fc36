// Package recovery turns loosely structured model output into an Artifact.
//
// Recovery is total: for any input string Recover returns an artifact whose html
// satisfies types.Artifact.HasValidHTML. Malformed output is routine, so it
// becomes data (a diagnostic artifact) rather than an error.
package recovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"

	"agenticos/internal/types"
)

const (
	DefaultName       = "Generated App"
	DiagnosticName    = "Generated App (Parse Error)"
	defaultCSS        = `.generated-app { padding: 20px; background: var(--bg-secondary); border-radius: var(--border-radius); color: var(--text-primary); }`
	defaultJS         = `console.log("Generated app loaded");`
	diagnosticJS      = `console.log("App generation failed during parsing, showing debug info");`
	placeholderFormat = `<div class="generated-app"><h2>%s</h2><p>Content generation incomplete</p></div>`
)

var (
	// ErrNotObject is returned when the repaired text is valid JSON but not an object.
	ErrNotObject = errors.New("response is not a JSON object")
	// ErrInvalidHTML is returned when the parsed html is missing markup or too short.
	ErrInvalidHTML = errors.New("generated HTML appears to be incomplete or invalid")
)

// Outcome describes one recovery run.
type Outcome struct {
	Artifact    types.Artifact
	Strategy    Strategy
	BracesAdded int
	// Diagnostic is true when parsing failed and Artifact is the debug card.
	Diagnostic bool
	// Err is the parse or validation failure behind a diagnostic artifact.
	Err error
}

// Recover returns a renderable artifact for raw model output. It never panics.
func Recover(raw, prompt string) types.Artifact {
	return Analyze(raw, prompt).Artifact
}

// Analyze is Recover with the details needed for logging and metrics.
func Analyze(raw, prompt string) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = diagnosticOutcome(raw, prompt, out.Strategy, fmt.Errorf("recovery panic: %v", r))
		}
	}()

	text, strategy := extract(raw)
	repaired, added := repair(text)

	artifact, err := parseArtifact(repaired, prompt)
	if err != nil {
		out = diagnosticOutcome(raw, prompt, strategy, err)
		out.BracesAdded = added
		return out
	}

	return Outcome{
		Artifact:    artifact,
		Strategy:    strategy,
		BracesAdded: added,
	}
}

// parseArtifact strictly decodes an object and fills absent fields with defaults.
func parseArtifact(text, prompt string) (types.Artifact, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return types.Artifact{}, fmt.Errorf("parse response JSON: %w", err)
	}
	if fields == nil {
		return types.Artifact{}, ErrNotObject
	}

	a := types.Artifact{
		Name:        stringField(fields, "name"),
		Description: stringField(fields, "description"),
		HTML:        stringField(fields, "html"),
		CSS:         stringField(fields, "css"),
		JS:          stringField(fields, "js"),
	}

	if a.Name == "" {
		a.Name = DefaultName
	}
	if a.HTML == "" {
		a.HTML = fmt.Sprintf(placeholderFormat, html.EscapeString(a.Name))
	}
	if a.CSS == "" {
		a.CSS = defaultCSS
	}
	if a.JS == "" {
		a.JS = defaultJS
	}
	if a.Description == "" {
		a.Description = `Generated from: "` + prompt + `"`
	}

	if !a.HasValidHTML() {
		return types.Artifact{}, ErrInvalidHTML
	}
	return a, nil
}

// stringField returns a non-blank string value; other JSON types count as absent.
func stringField(fields map[string]any, key string) string {
	s, ok := fields[key].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}

func diagnosticOutcome(raw, prompt string, strategy Strategy, err error) Outcome {
	return Outcome{
		Artifact:   Diagnostic(raw, prompt),
		Strategy:   strategy,
		Diagnostic: true,
		Err:        err,
	}
}

// Diagnostic builds the debug card shown when a response cannot be parsed.
// Both the request and the raw output are escaped so they render as text.
func Diagnostic(raw, prompt string) types.Artifact {
	var b strings.Builder
	b.WriteString(`<div class="error-app">` + "\n")
	b.WriteString("  <h2>AI Generation Attempted</h2>\n")
	b.WriteString(`  <p><strong>Request:</strong> "` + html.EscapeString(prompt) + `"</p>` + "\n")
	b.WriteString("  <p><strong>Issue:</strong> The AI response couldn't be parsed properly.</p>\n")
	b.WriteString("  <details>\n    <summary>Show Raw AI Response</summary>\n")
	b.WriteString("    <pre>" + html.EscapeString(raw) + "</pre>\n")
	b.WriteString("  </details>\n")
	b.WriteString(`  <p class="hint"><em>The AI did respond, but the response format needs improvement.</em></p>` + "\n")
	b.WriteString("</div>")

	return types.Artifact{
		Name:        DiagnosticName,
		Description: `AI-generated app for: "` + prompt + `" (parsing failed)`,
		HTML:        b.String(),
		CSS:         diagnosticCSS,
		JS:          diagnosticJS,
	}
}

const diagnosticCSS = `.error-app {
  padding: 20px;
  background: var(--bg-secondary);
  border-radius: var(--border-radius);
  color: var(--text-primary);
  max-width: 700px;
  margin: 20px auto;
  line-height: 1.6;
}
.error-app h2 { color: #ffa726; margin-bottom: 15px; }
.error-app details { margin: 15px 0; }
.error-app summary {
  cursor: pointer;
  padding: 8px;
  background: var(--bg-tertiary);
  border-radius: 4px;
  margin-bottom: 5px;
}
.error-app pre {
  max-height: 300px;
  overflow: auto;
  background: var(--bg-primary);
  padding: 10px;
  border-radius: 4px;
  font-size: 11px;
  color: var(--text-secondary);
}
.error-app .hint { margin-top: 15px; }`
