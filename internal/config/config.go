package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"agenticos/internal/types"
)

// WorkspaceDir is the per-workspace state directory.
const WorkspaceDir = ".agentic"

// Config holds all agentic configuration.
type Config struct {
	Name string `yaml:"name"`

	// LLM transport
	LLM LLMConfig `yaml:"llm"`

	// Current-information search for the info agent
	Enrichment EnrichmentConfig `yaml:"enrichment"`

	// SQLite history and selections
	Store StoreConfig `yaml:"store"`

	// HTTP API for the browser shell
	Server ServerConfig `yaml:"server"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures provider transport. Keys and models live in credentials.json.
type LLMConfig struct {
	// Per candidate model; empty disables the per-attempt deadline.
	AttemptTimeout string `yaml:"attempt_timeout"`
	// Upper bound on any single HTTP exchange.
	RequestTimeout string `yaml:"request_timeout"`
	// Sent to OpenRouter as HTTP-Referer and X-Title.
	SiteURL  string `yaml:"site_url"`
	SiteName string `yaml:"site_name"`
	// Provider name -> base URL override (proxies, local gateways).
	BaseURLs map[string]string `yaml:"base_urls"`
}

// EnrichmentConfig configures the context enricher.
type EnrichmentConfig struct {
	Source    string `yaml:"source"`     // feed, static, off
	SearchURL string `yaml:"search_url"` // %s is replaced by the escaped query
	Limit     int    `yaml:"limit"`
	CacheSize int    `yaml:"cache_size"`
	CacheTTL  string `yaml:"cache_ttl"`
	Timeout   string `yaml:"timeout"`
	UserAgent string `yaml:"user_agent"`
}

// StoreConfig configures persistence.
type StoreConfig struct {
	Path string `yaml:"path"` // relative paths resolve against the workspace
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxConcurrent  int      `yaml:"max_concurrent"`
}

// Enrichment sources.
const (
	SourceFeed   = "feed"
	SourceStatic = "static"
	SourceOff    = "off"
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Name: "agentic",

		LLM: LLMConfig{
			AttemptTimeout: "90s",
			RequestTimeout: "10m",
			SiteURL:        "http://localhost:3000",
			SiteName:       "Agentic OS Prototype",
		},

		Enrichment: EnrichmentConfig{
			Source:    SourceFeed,
			SearchURL: "https://news.google.com/rss/search?q=%s&hl=en-US&gl=US&ceid=US:en",
			Limit:     5,
			CacheSize: 128,
			CacheTTL:  "10m",
			Timeout:   "8s",
			UserAgent: "agentic/1.0 (+https://github.com/agenticos)",
		},

		Store: StoreConfig{
			Path: "agentic.db",
		},

		Server: ServerConfig{
			Addr:           "127.0.0.1:8787",
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			MaxConcurrent:  4,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// DefaultConfigPath returns <workspace>/.agentic/config.yaml.
func DefaultConfigPath(ws string) string {
	return filepath.Join(ws, WorkspaceDir, "config.yaml")
}

// Load reads configuration from path, falling back to defaults when it does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save writes the configuration as YAML, creating the directory if needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies AGENTIC_* environment variables.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("AGENTIC_DB"); path != "" {
		c.Store.Path = path
	}
	if addr := os.Getenv("AGENTIC_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if src := os.Getenv("AGENTIC_ENRICHMENT_SOURCE"); src != "" {
		c.Enrichment.Source = src
	}
	if v := os.Getenv("AGENTIC_ATTEMPT_TIMEOUT"); v != "" {
		c.LLM.AttemptTimeout = v
	}
	if v := os.Getenv("AGENTIC_DEBUG"); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = on
		}
	}
}

// GetAttemptTimeout returns the per-model deadline; zero means none.
func (c *Config) GetAttemptTimeout() time.Duration {
	if strings.TrimSpace(c.LLM.AttemptTimeout) == "" {
		return 0
	}
	return parseDuration(c.LLM.AttemptTimeout, 90*time.Second)
}

// GetRequestTimeout returns the HTTP client timeout.
func (c *Config) GetRequestTimeout() time.Duration {
	return parseDuration(c.LLM.RequestTimeout, 10*time.Minute)
}

// GetEnrichmentTimeout returns the feed fetch timeout.
func (c *Config) GetEnrichmentTimeout() time.Duration {
	return parseDuration(c.Enrichment.Timeout, 8*time.Second)
}

// GetCacheTTL returns how long enrichment results stay cached.
func (c *Config) GetCacheTTL() time.Duration {
	return parseDuration(c.Enrichment.CacheTTL, 10*time.Minute)
}

// BaseURLOverrides returns the validated base URL overrides keyed by provider.
func (c *Config) BaseURLOverrides() map[types.Provider]string {
	out := make(map[types.Provider]string, len(c.LLM.BaseURLs))
	for name, url := range c.LLM.BaseURLs {
		p, err := types.ParseProvider(name)
		if err != nil || strings.TrimSpace(url) == "" {
			continue
		}
		out[p] = strings.TrimRight(url, "/")
	}
	return out
}

// ResolveStorePath resolves the database path against the workspace.
func (c *Config) ResolveStorePath(ws string) string {
	if filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(ws, WorkspaceDir, c.Store.Path)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// ValidSources lists the accepted enrichment sources.
var ValidSources = []string{SourceFeed, SourceStatic, SourceOff}

// Validate checks the configuration for values that would fail at runtime.
func (c *Config) Validate() error {
	validSource := false
	for _, s := range ValidSources {
		if c.Enrichment.Source == s {
			validSource = true
			break
		}
	}
	if !validSource {
		return fmt.Errorf("invalid enrichment source: %s (valid: %v)", c.Enrichment.Source, ValidSources)
	}
	if c.Enrichment.Source == SourceFeed && !strings.Contains(c.Enrichment.SearchURL, "%s") {
		return fmt.Errorf("enrichment.search_url must contain %%s for the query")
	}
	if c.Enrichment.Limit <= 0 {
		return fmt.Errorf("enrichment.limit must be positive, got %d", c.Enrichment.Limit)
	}
	if c.Server.MaxConcurrent <= 0 {
		return fmt.Errorf("server.max_concurrent must be positive, got %d", c.Server.MaxConcurrent)
	}
	for name, value := range map[string]string{
		"llm.attempt_timeout":  c.LLM.AttemptTimeout,
		"llm.request_timeout":  c.LLM.RequestTimeout,
		"enrichment.cache_ttl": c.Enrichment.CacheTTL,
		"enrichment.timeout":   c.Enrichment.Timeout,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
	}
	for name := range c.LLM.BaseURLs {
		if _, err := types.ParseProvider(name); err != nil {
			return fmt.Errorf("llm.base_urls: %w", err)
		}
	}
	return nil
}

// FindWorkspaceRoot walks up from the working directory looking for .agentic or go.mod.
// Falls back to the working directory.
func FindWorkspaceRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	originalDir := dir
	for {
		if _, err := os.Stat(filepath.Join(dir, WorkspaceDir)); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return originalDir, nil
}
