package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"agenticos/cmd/agentic/ui"
	"agenticos/internal/config"
	"agenticos/internal/types"
)

var statusProbe bool

const probeTimeout = 30 * time.Second

// statusCmd shows provider configuration
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configured providers and the active one",
	Long: `Lists each provider with where its key comes from (credentials file or
environment), the masked key and the model that will be used. The first
configured provider in the order openai, anthropic, openrouter is active.

With --probe, the active provider's /models endpoint is called to check the
key and connectivity.`,
	RunE: runStatus,
}

// keysCmd manages API keys
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage provider API keys",
}

var keysSetCmd = &cobra.Command{
	Use:   "set [provider] [key]",
	Short: "Store an API key (an empty key removes it)",
	Long: `Stores the key in .agentic/credentials.json with owner-only permissions.

Example:
  agentic keys set anthropic sk-ant-...
  agentic keys set openai ""    # remove`,
	Args: cobra.ExactArgs(2),
	RunE: runKeysSet,
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured keys (masked)",
	RunE:  runStatus,
}

// modelsCmd selects models
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Show or select the model per provider",
	RunE:  runModelsList,
}

var modelsSetCmd = &cobra.Command{
	Use:   "set [provider] [model]",
	Short: "Select the model for a provider (unknown names are stored as custom)",
	Args:  cobra.ExactArgs(2),
	RunE:  runModelsSet,
}

func init() {
	statusCmd.Flags().BoolVar(&statusProbe, "probe", false, "Check connectivity to the active provider")

	keysCmd.AddCommand(keysSetCmd)
	keysCmd.AddCommand(keysListCmd)
	modelsCmd.AddCommand(modelsSetCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ws, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	creds := credentialStore(ws, cfg)
	styles := ui.DefaultStyles()
	out := cmd.OutOrStdout()

	writeProviderStatus(out, styles, creds.Status())

	sel, ok := creds.ActiveProvider()
	if !ok {
		fmt.Fprintln(out, styles.Warning.Render("No API key configured."))
		fmt.Fprintln(out, styles.Muted.Render("Run `agentic keys set <provider> <key>` or set "+config.EnvKey(types.ProviderOpenAI)+"."))
		return nil
	}
	fmt.Fprintf(out, "Active: %s\n", styles.Bold.Render(sel.String()))

	if statusProbe {
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		defer cancel()
		if err := providerClient(cfg).Probe(ctx, sel); err != nil {
			fmt.Fprintln(out, styles.Error.Render("Probe failed: ")+err.Error())
			return nil
		}
		fmt.Fprintln(out, styles.Success.Render("Probe ok: ")+sel.URL())
	}
	return nil
}

func writeProviderStatus(w io.Writer, styles ui.Styles, status []config.ProviderStatus) {
	fmt.Fprintln(w, styles.Header.Render("Providers"))
	for _, st := range status {
		marker := "  "
		if st.Active {
			marker = styles.Success.Render("* ")
		}
		key := st.MaskedKey
		if st.Source == config.SourceNone {
			key = styles.Muted.Render("not set")
		}
		fmt.Fprintf(w, "%s%-11s %-6s %-14s %s\n", marker, st.Provider, st.Source, key, styles.Muted.Render(st.Model))
	}
}

func runKeysSet(cmd *cobra.Command, args []string) error {
	p, err := types.ParseProvider(args[0])
	if err != nil {
		return err
	}
	ws, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	creds := credentialStore(ws, cfg)
	if err := creds.Update(func(c *config.Credentials) { c.SetKey(p, args[1]) }); err != nil {
		return err
	}
	if strings.TrimSpace(args[1]) == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s key\n", p)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s key %s to %s\n", p, types.MaskKey(args[1]), creds.Path())
	return nil
}

func runModelsList(cmd *cobra.Command, args []string) error {
	ws, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	status := credentialStore(ws, cfg).Status()
	styles := ui.DefaultStyles()
	out := cmd.OutOrStdout()

	for _, st := range status {
		fmt.Fprintf(out, "%s  %s\n", styles.Title.Render(string(st.Provider)), st.Model)
		known := append([]string(nil), config.KnownModels[st.Provider]...)
		sort.Strings(known)
		for _, m := range known {
			fmt.Fprintln(out, styles.Muted.Render("    "+m))
		}
	}
	return nil
}

func runModelsSet(cmd *cobra.Command, args []string) error {
	p, err := types.ParseProvider(args[0])
	if err != nil {
		return err
	}
	ws, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := credentialStore(ws, cfg).Update(func(c *config.Credentials) { c.SetModel(p, args[1]) }); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s will use %s\n", p, args[1])
	return nil
}
