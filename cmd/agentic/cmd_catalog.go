package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agenticos/cmd/agentic/ui"
	"agenticos/internal/config"
	"agenticos/internal/prompt"
	"agenticos/internal/store"
	"agenticos/internal/types"
)

var catalogAgent string

// templatesCmd manages prompt templates
var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List and select prompt templates",
	Long: `Templates replace the built-in agent description in the system prompt.
Custom templates are read from .agentic/templates/templates*.yaml and
override built-in templates with the same id.`,
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List templates and the selection per agent",
	RunE:  runTemplatesList,
}

var templatesSelectCmd = &cobra.Command{
	Use:   "select [agent] [template-id|none]",
	Short: "Select a template for an agent",
	Args:  cobra.ExactArgs(2),
	RunE:  runTemplatesSelect,
}

// instructionsCmd manages instruction snippets
var instructionsCmd = &cobra.Command{
	Use:   "instructions",
	Short: "List and select instruction snippets",
	Long: `An instruction snippet is appended to the user prompt of every
generation for the agent it is selected for.`,
}

var instructionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List instruction snippets",
	RunE:  runInstructionsList,
}

var instructionsSelectCmd = &cobra.Command{
	Use:   "select [agent] [instruction-id|none]",
	Short: "Select an instruction snippet for an agent",
	Args:  cobra.ExactArgs(2),
	RunE:  runInstructionsSelect,
}

func init() {
	instructionsListCmd.Flags().StringVarP(&catalogAgent, "agent", "a", "", "Only snippets that apply to this agent")

	templatesCmd.AddCommand(templatesListCmd)
	templatesCmd.AddCommand(templatesSelectCmd)
	instructionsCmd.AddCommand(instructionsListCmd)
	instructionsCmd.AddCommand(instructionsSelectCmd)
}

// openCatalog opens the catalog backed by the workspace selections.
func openCatalog() (*prompt.Catalog, func(), error) {
	ws, cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := store.Open(cfg.ResolveStorePath(ws))
	if err != nil {
		return nil, nil, err
	}
	catalog, err := prompt.NewCatalog(db.Selections())
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	if _, err := catalog.LoadDir(filepath.Join(ws, config.WorkspaceDir, "templates")); err != nil {
		logger.Warn("custom templates not loaded", zap.Error(err))
	}
	return catalog, func() { db.Close() }, nil
}

func runTemplatesList(cmd *cobra.Command, args []string) error {
	catalog, done, err := openCatalog()
	if err != nil {
		return err
	}
	defer done()

	styles := ui.DefaultStyles()
	out := cmd.OutOrStdout()
	for _, t := range catalog.Templates() {
		id := t.ID
		if t.Default {
			id += " (default)"
		}
		fmt.Fprintf(out, "%s  %s\n", styles.Title.Render(id), t.Name)
		fmt.Fprintln(out, styles.Muted.Render("    "+t.Description))
	}
	writeSelections(cmd, styles, catalog.Selections(context.Background()))
	return nil
}

func runInstructionsList(cmd *cobra.Command, args []string) error {
	catalog, done, err := openCatalog()
	if err != nil {
		return err
	}
	defer done()

	var list []prompt.Instruction
	if catalogAgent != "" {
		agent, err := types.ParseAgentType(catalogAgent)
		if err != nil {
			return err
		}
		list = catalog.Instructions(agent)
	} else {
		list = catalog.AllInstructions()
	}

	styles := ui.DefaultStyles()
	out := cmd.OutOrStdout()
	for _, in := range list {
		line := styles.Title.Render(in.ID) + "  " + in.Name
		if len(in.Agents) > 0 {
			line += styles.Muted.Render(" [" + strings.Join(in.Agents, ", ") + "]")
		}
		fmt.Fprintln(out, line)
		fmt.Fprintln(out, styles.Muted.Render("    "+in.Text))
	}
	writeSelections(cmd, styles, catalog.Selections(context.Background()))
	return nil
}

func writeSelections(cmd *cobra.Command, styles ui.Styles, sel []prompt.Selection) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, styles.Header.Render("Selections"))
	for _, s := range sel {
		tmpl, inst := s.Template, s.Instruction
		if tmpl == "" {
			tmpl = "-"
		}
		if inst == "" {
			inst = "-"
		}
		fmt.Fprintf(out, "  %-14s template=%-14s instruction=%s\n", s.Agent.ID(), tmpl, inst)
	}
}

func runTemplatesSelect(cmd *cobra.Command, args []string) error {
	return runSelect(cmd, args, func(c *prompt.Catalog) func(context.Context, types.AgentType, string) error {
		return c.SelectTemplate
	})
}

func runInstructionsSelect(cmd *cobra.Command, args []string) error {
	return runSelect(cmd, args, func(c *prompt.Catalog) func(context.Context, types.AgentType, string) error {
		return c.SelectInstruction
	})
}

func runSelect(cmd *cobra.Command, args []string, pick func(*prompt.Catalog) func(context.Context, types.AgentType, string) error) error {
	agent, err := types.ParseAgentType(args[0])
	if err != nil {
		return err
	}
	id := strings.TrimSpace(args[1])
	if strings.EqualFold(id, "none") {
		id = ""
	}

	catalog, done, err := openCatalog()
	if err != nil {
		return err
	}
	defer done()

	if err := pick(catalog)(context.Background(), agent, id); err != nil {
		return err
	}
	if id == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared selection for %s\n", agent.Label())
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s now uses %s\n", agent.Label(), id)
	return nil
}
