package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"agenticos/cmd/agentic/ui"
	"agenticos/internal/store"
)

var (
	historyLimit int
	historyOut   string
)

// historyCmd manages generated apps
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List, show, export and delete generated apps",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent apps, newest first",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show an app's details",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyExportCmd = &cobra.Command{
	Use:   "export [id]",
	Short: "Export an app as a standalone HTML document",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryExport,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete an app from history",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryDelete,
}

func init() {
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum apps to list")
	historyExportCmd.Flags().StringVarP(&historyOut, "out", "o", "", "Output path (default: .agentic/apps/<name>.html)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyDeleteCmd)
}

// openHistory opens the history store without the generation stack.
func openHistory() (string, *store.History, func(), error) {
	ws, cfg, err := loadConfig()
	if err != nil {
		return "", nil, nil, err
	}
	db, err := store.Open(cfg.ResolveStorePath(ws))
	if err != nil {
		return "", nil, nil, err
	}
	return ws, db.History(), func() { db.Close() }, nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	_, h, done, err := openHistory()
	if err != nil {
		return err
	}
	defer done()

	recs, err := h.Recent(context.Background(), historyLimit)
	if err != nil {
		return err
	}
	styles := ui.DefaultStyles()
	out := cmd.OutOrStdout()
	if len(recs) == 0 {
		fmt.Fprintln(out, styles.Muted.Render("No apps yet. Try `agentic generate \"a tip calculator\"`."))
		return nil
	}
	for _, r := range recs {
		name := r.Artifact.Name
		if r.Diagnostic {
			name += styles.Warning.Render(" (diagnostic)")
		}
		fmt.Fprintf(out, "%s  %s  %s\n",
			styles.Muted.Render(shortID(r.ID)),
			styles.Bold.Render(name),
			styles.Muted.Render(fmt.Sprintf("%s · %s/%s · %s", r.Agent.Label(), r.Provider, r.Model, r.CreatedAt.Local().Format("2006-01-02 15:04"))))
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// findRecord resolves a full id or a unique prefix of one.
func findRecord(ctx context.Context, h *store.History, id string) (store.Record, error) {
	rec, err := h.Get(ctx, id)
	if err == nil || len(id) >= 36 {
		return rec, err
	}
	recs, lerr := h.Recent(ctx, 500)
	if lerr != nil {
		return store.Record{}, lerr
	}
	var match []store.Record
	for _, r := range recs {
		if len(r.ID) >= len(id) && r.ID[:len(id)] == id {
			match = append(match, r)
		}
	}
	switch len(match) {
	case 0:
		return store.Record{}, err
	case 1:
		return match[0], nil
	default:
		return store.Record{}, fmt.Errorf("id prefix %q is ambiguous (%d apps)", id, len(match))
	}
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	_, h, done, err := openHistory()
	if err != nil {
		return err
	}
	defer done()

	r, err := findRecord(context.Background(), h, args[0])
	if err != nil {
		return err
	}
	md := fmt.Sprintf("## %s\n\n%s\n\n**Prompt:** %s\n\n| | |\n|---|---|\n| Id | `%s` |\n| Agent | %s |\n| Provider | %s |\n| Model | `%s` |\n| Created | %s |\n| Size | html %d, css %d, js %d bytes |\n",
		r.Artifact.Name, r.Artifact.Description, r.Prompt, r.ID, r.Agent.Label(), r.Provider, r.Model,
		r.CreatedAt.Local().Format("2006-01-02 15:04:05"), len(r.Artifact.HTML), len(r.Artifact.CSS), len(r.Artifact.JS))
	fmt.Fprint(cmd.OutOrStdout(), ui.RenderMarkdown(md, 100, ui.DetectTheme()))
	return nil
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	ws, h, done, err := openHistory()
	if err != nil {
		return err
	}
	defer done()

	r, err := findRecord(context.Background(), h, args[0])
	if err != nil {
		return err
	}
	out := historyOut
	if out == "" {
		out = filepath.Join(appsDir(ws), slugify(r.Artifact.Name)+".html")
	}
	if err := exportDocument(out, r.Artifact); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", r.Artifact.Name, out)
	return nil
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	_, h, done, err := openHistory()
	if err != nil {
		return err
	}
	defer done()

	ctx := context.Background()
	r, err := findRecord(ctx, h, args[0])
	if err != nil {
		return err
	}
	if err := h.Delete(ctx, r.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", r.Artifact.Name)
	return nil
}
