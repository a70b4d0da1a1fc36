package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agenticos/cmd/agentic/ui"
	"agenticos/internal/config"
	"agenticos/internal/generation"
	"agenticos/internal/store"
	"agenticos/internal/types"
)

var (
	genAgent     string
	genContext   string
	genOut       string
	genNoHistory bool
)

// generateCmd runs one generation and prints a summary
var generateCmd = &cobra.Command{
	Use:   "generate [prompt]",
	Short: "Generate an app from a prompt",
	Long: `Sends the prompt to the active provider and prints a summary of the
generated app. The app is saved to history and, with --out, exported as a
standalone HTML document.

Agents: app, utility, widget, game, info. The info agent searches for
current information before generating.

Example:
  agentic generate "a pomodoro timer with a progress ring" --agent utility --out timer.html`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&genAgent, "agent", "a", "app", "Agent type (app, utility, widget, game, info)")
	generateCmd.Flags().StringVar(&genContext, "context", "", "Extra context (default: names of recent apps)")
	generateCmd.Flags().StringVarP(&genOut, "out", "o", "", "Write the app as an HTML document to this path")
	generateCmd.Flags().BoolVar(&genNoHistory, "no-history", false, "Do not save the app to history")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	agent, err := types.ParseAgentType(genAgent)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	req := types.GenerationRequest{Prompt: strings.Join(args, " "), Agent: agent}
	if cmd.Flags().Changed("context") {
		req.Context = genContext
	} else {
		req.Context = a.db.History().ContextFor(ctx)
	}

	logger.Info("generating", zap.String("agent", agent.ID()), zap.Int("prompt_len", len(req.Prompt)))
	res, err := a.orch.Run(ctx, req)
	if err != nil {
		return errors.New(userMessage(err))
	}

	var saved store.Record
	if !genNoHistory {
		saved = saveResult(ctx, a.db.History(), req, res)
	}

	out := genOut
	if out != "" {
		if err := exportDocument(out, res.Artifact); err != nil {
			return err
		}
	}

	styles := ui.DefaultStyles()
	fmt.Fprint(cmd.OutOrStdout(), ui.RenderMarkdown(summaryMarkdown(res, saved.ID, out), 100, styles.Theme))
	return nil
}

// summaryMarkdown describes a generation result.
func summaryMarkdown(res *generation.Result, id, exported string) string {
	var b strings.Builder
	name := res.Artifact.Name
	if name == "" {
		name = "Untitled app"
	}
	fmt.Fprintf(&b, "## %s\n\n", name)
	if res.Artifact.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", res.Artifact.Description)
	}
	if res.Diagnostic {
		b.WriteString("> The model's response could not be parsed; a diagnostic card was generated instead.\n\n")
	}

	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Provider | %s |\n", res.Provider)
	fmt.Fprintf(&b, "| Model | `%s` |\n", res.Model)
	fmt.Fprintf(&b, "| Attempts | %d |\n", len(res.Attempts))
	fmt.Fprintf(&b, "| Recovery | %s |\n", res.Strategy)
	if res.BracesAdded > 0 {
		fmt.Fprintf(&b, "| Braces repaired | %d |\n", res.BracesAdded)
	}
	if res.Usage.TotalTokens > 0 {
		fmt.Fprintf(&b, "| Tokens | %d in / %d out |\n", res.Usage.InputTokens, res.Usage.OutputTokens)
	}
	fmt.Fprintf(&b, "| Size | html %d, css %d, js %d bytes |\n", len(res.Artifact.HTML), len(res.Artifact.CSS), len(res.Artifact.JS))
	if id != "" {
		fmt.Fprintf(&b, "| History id | `%s` |\n", id)
	}
	if exported != "" {
		fmt.Fprintf(&b, "| Exported | `%s` |\n", exported)
	}
	return b.String()
}

// exportDocument writes the artifact as a standalone page.
func exportDocument(path string, art types.Artifact) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(art.Document()), 0644); err != nil {
		return fmt.Errorf("failed to export app: %w", err)
	}
	return nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// slugify turns an app name into a file name stem.
func slugify(name string) string {
	s := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if s == "" {
		return "app"
	}
	if len(s) > 60 {
		s = strings.TrimRight(s[:60], "-")
	}
	return s
}

// appsDir is where the shell exports generated apps.
func appsDir(ws string) string {
	return filepath.Join(ws, config.WorkspaceDir, "apps")
}

// saveResult records a successful generation, logging instead of failing.
func saveResult(ctx context.Context, h *store.History, req types.GenerationRequest, res *generation.Result) store.Record {
	rec, err := h.Save(ctx, store.Record{
		Prompt:     req.Prompt,
		Agent:      req.Agent,
		Artifact:   res.Artifact,
		Provider:   res.Provider,
		Model:      res.Model,
		Diagnostic: res.Diagnostic,
	})
	if err != nil {
		logger.Warn("app not saved to history", zap.Error(err))
	}
	return rec
}
