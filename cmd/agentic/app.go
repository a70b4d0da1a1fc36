package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"agenticos/internal/config"
	"agenticos/internal/enrichment"
	"agenticos/internal/generation"
	"agenticos/internal/logging"
	"agenticos/internal/metrics"
	"agenticos/internal/prompt"
	"agenticos/internal/provider"
	"agenticos/internal/store"
	"agenticos/internal/usage"
)

// app holds the components a command needs, wired from the workspace config.
type app struct {
	ws      string
	cfg     *config.Config
	creds   *config.CredentialStore
	client  *provider.Client
	db      *store.DB
	catalog *prompt.Catalog
	usage   *usage.Tracker
	metrics *metrics.Metrics
	orch    *generation.Orchestrator
}

// resolveWorkspace returns the --workspace flag or the detected workspace root.
func resolveWorkspace() (string, error) {
	if workspace != "" {
		return filepath.Abs(workspace)
	}
	return config.FindWorkspaceRoot()
}

// loadConfig reads and validates the workspace configuration and initializes logging.
func loadConfig() (string, *config.Config, error) {
	ws, err := resolveWorkspace()
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve workspace: %w", err)
	}
	cfg, err := config.Load(config.DefaultConfigPath(ws))
	if err != nil {
		return "", nil, err
	}
	if err := cfg.Validate(); err != nil {
		return "", nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := logging.Initialize(ws, cfg.Logging.Options()); err != nil {
		logger.Warn("file logging disabled", zap.Error(err))
	}
	return ws, cfg, nil
}

func credentialStore(ws string, cfg *config.Config) *config.CredentialStore {
	return config.NewCredentialStore(config.DefaultCredentialsPath(ws), config.WithBaseURLs(cfg.BaseURLOverrides()))
}

func providerClient(cfg *config.Config) *provider.Client {
	return provider.NewClientWithConfig(provider.Config{
		Timeout:  cfg.GetRequestTimeout(),
		SiteURL:  cfg.LLM.SiteURL,
		SiteName: cfg.LLM.SiteName,
	})
}

func newEnricher(cfg *config.Config) enrichment.Enricher {
	switch cfg.Enrichment.Source {
	case config.SourceFeed:
		return enrichment.NewFeedEnricher(enrichment.FeedConfig{
			SearchURL: cfg.Enrichment.SearchURL,
			Limit:     cfg.Enrichment.Limit,
			CacheSize: cfg.Enrichment.CacheSize,
			CacheTTL:  cfg.GetCacheTTL(),
			Timeout:   cfg.GetEnrichmentTimeout(),
			UserAgent: cfg.Enrichment.UserAgent,
		})
	case config.SourceStatic:
		return enrichment.NewKnowledgeBase()
	default:
		return enrichment.Disabled{}
	}
}

type appOptions struct {
	metrics bool
}

// openApp wires the full generation stack for the workspace.
func openApp(opts appOptions) (*app, error) {
	ws, cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{
		ws:     ws,
		cfg:    cfg,
		creds:  credentialStore(ws, cfg),
		client: providerClient(cfg),
	}

	a.db, err = store.Open(cfg.ResolveStorePath(ws))
	if err != nil {
		return nil, err
	}

	a.catalog, err = prompt.NewCatalog(a.db.Selections())
	if err != nil {
		a.Close()
		return nil, err
	}
	if n, err := a.catalog.LoadDir(filepath.Join(ws, config.WorkspaceDir, "templates")); err != nil {
		logger.Warn("custom templates not loaded", zap.Error(err))
	} else if n > 0 {
		logger.Debug("custom catalog entries loaded", zap.Int("count", n))
	}

	a.usage, err = usage.NewTracker(ws)
	if err != nil {
		a.Close()
		return nil, err
	}

	observers := []generation.Observer{a.usage}
	if opts.metrics {
		a.metrics = metrics.New()
		observers = append(observers, a.metrics)
	}

	builder := prompt.NewBuilder(a.catalog, newEnricher(cfg))
	a.orch = generation.New(a.creds, builder, a.client,
		generation.WithAttemptTimeout(cfg.GetAttemptTimeout()),
		generation.WithObserver(observers...),
	)

	logger.Debug("workspace opened",
		zap.String("workspace", ws),
		zap.String("db", a.db.Path()),
		zap.String("enrichment", cfg.Enrichment.Source))
	return a, nil
}

// Close flushes usage and closes the database.
func (a *app) Close() {
	if a.usage != nil {
		if err := a.usage.Close(); err != nil {
			logger.Warn("usage not saved", zap.Error(err))
		}
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	logging.CloseAll()
}

// signalContext returns a context cancelled by SIGINT/SIGTERM or the --timeout flag.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	return tctx, func() {
		cancel()
		stop()
	}
}

// userMessage converts a generation error into the text shown to the user.
func userMessage(err error) string {
	switch generation.KindOf(err) {
	case generation.KindNoCredential:
		return "No API key configured. Run `agentic keys set <openai|anthropic|openrouter> <key>` or set " +
			"OPENAI_API_KEY, ANTHROPIC_API_KEY or OPENROUTER_API_KEY."
	case generation.KindCancelled:
		return "Generation stopped."
	case generation.KindAllModelsFailed:
		return "Sorry, I couldn't generate that app: " + err.Error()
	default:
		return err.Error()
	}
}
