package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"agenticos/cmd/agentic/ui"
	"agenticos/internal/usage"
)

// usageCmd shows token usage
var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show token usage by provider, model and agent",
	RunE:  runUsage,
}

func runUsage(cmd *cobra.Command, args []string) error {
	ws, _, err := loadConfig()
	if err != nil {
		return err
	}
	tracker, err := usage.NewTracker(ws)
	if err != nil {
		return err
	}
	defer tracker.Close()

	writeUsage(cmd.OutOrStdout(), ui.DefaultStyles(), tracker.Stats())
	return nil
}

func writeUsage(w io.Writer, styles ui.Styles, stats usage.AggregatedStats) {
	fmt.Fprintln(w, styles.Header.Render("Token Usage"))
	fmt.Fprintf(w, "Total Input:  %d\n", stats.Total.Input)
	fmt.Fprintf(w, "Total Output: %d\n", stats.Total.Output)
	fmt.Fprintf(w, "Grand Total:  %d\n", stats.Total.Total)
	fmt.Fprintf(w, "Generations:  %d (%d diagnostic)\n", stats.Generations, stats.Diagnostics)
	fmt.Fprintf(w, "Attempts:     %d\n", stats.Attempts)

	renderTable := func(title string, data map[string]usage.TokenCounts) {
		if len(data) == 0 {
			return
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, styles.Title.Render(title))
		keys := make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(w, "  %-40s %10s %10s %10s\n", "Name", "Input", "Output", "Total")
		for _, k := range keys {
			c := data[k]
			fmt.Fprintf(w, "  %-40s %10d %10d %10d\n", k, c.Input, c.Output, c.Total)
		}
	}
	renderTable("By Provider", stats.ByProvider)
	renderTable("By Model", stats.ByModel)
	renderTable("By Agent", stats.ByAgent)

	if len(stats.Failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, styles.Title.Render("Failures"))
		kinds := make([]string, 0, len(stats.Failures))
		for k := range stats.Failures {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Fprintf(w, "  %-20s %d\n", k, stats.Failures[k])
		}
	}
}
