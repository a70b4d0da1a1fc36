package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenticos/internal/types"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "agentic" {
		t.Errorf("expected Name=agentic, got %s", cfg.Name)
	}
	if cfg.Enrichment.Source != SourceFeed {
		t.Errorf("expected feed enrichment, got %s", cfg.Enrichment.Source)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("AGENTIC_DB", "")
	t.Setenv("AGENTIC_ADDR", "")

	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Server.Addr = "0.0.0.0:9000"
	cfg.LLM.BaseURLs = map[string]string{"openai": "http://proxy.local/v1/"}

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", loaded.Server.Addr)
	assert.Equal(t, map[types.Provider]string{types.ProviderOpenAI: "http://proxy.local/v1"}, loaded.BaseURLOverrides())
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Store.Path, cfg.Store.Path)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unterminated"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("AGENTIC_DB", "/tmp/custom.db")
	t.Setenv("AGENTIC_ADDR", ":1234")
	t.Setenv("AGENTIC_ENRICHMENT_SOURCE", "static")
	t.Setenv("AGENTIC_DEBUG", "true")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "/tmp/custom.db", cfg.Store.Path)
	assert.Equal(t, ":1234", cfg.Server.Addr)
	assert.Equal(t, SourceStatic, cfg.Enrichment.Source)
	assert.True(t, cfg.Logging.DebugMode)
	assert.Equal(t, "/tmp/custom.db", cfg.ResolveStorePath("/ws"))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad source", func(c *Config) { c.Enrichment.Source = "twitter" }},
		{"search url without placeholder", func(c *Config) { c.Enrichment.SearchURL = "https://example.com/rss" }},
		{"zero limit", func(c *Config) { c.Enrichment.Limit = 0 }},
		{"zero concurrency", func(c *Config) { c.Server.MaxConcurrent = 0 }},
		{"bad duration", func(c *Config) { c.LLM.AttemptTimeout = "soon" }},
		{"unknown provider url", func(c *Config) { c.LLM.BaseURLs = map[string]string{"gemini": "x"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 90*time.Second, cfg.GetAttemptTimeout())
	assert.Equal(t, 10*time.Minute, cfg.GetRequestTimeout())
	assert.Equal(t, 8*time.Second, cfg.GetEnrichmentTimeout())

	cfg.LLM.AttemptTimeout = ""
	assert.Zero(t, cfg.GetAttemptTimeout(), "empty attempt timeout disables the deadline")

	cfg.Enrichment.CacheTTL = "garbage"
	assert.Equal(t, 10*time.Minute, cfg.GetCacheTTL())
}

func TestResolveStorePath(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, filepath.Join("/ws", ".agentic", "agentic.db"), cfg.ResolveStorePath("/ws"))
}

func TestFindWorkspaceRoot_PrefersAgenticDir(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".agentic"), 0o755); err != nil {
		t.Fatalf("mkdir .agentic: %v", err)
	}
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir nested: %v", err)
	}

	origWD, _ := os.Getwd()
	if err := os.Chdir(nested); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWD) })

	got, err := FindWorkspaceRoot()
	if err != nil {
		t.Fatalf("FindWorkspaceRoot: %v", err)
	}
	// macOS temp dirs resolve through /private; compare evaluated paths.
	wantEval, _ := filepath.EvalSymlinks(root)
	gotEval, _ := filepath.EvalSymlinks(got)
	if gotEval != wantEval {
		t.Fatalf("FindWorkspaceRoot=%q, want %q", got, root)
	}
}

func TestLoggingConfig(t *testing.T) {
	lc := LoggingConfig{DebugMode: true, Format: "text", Categories: map[string]bool{"api": false}}
	assert.False(t, lc.IsCategoryEnabled("api"))
	assert.True(t, lc.IsCategoryEnabled("generation"))
	assert.False(t, lc.Options().JSONFormat)

	lc.DebugMode = false
	assert.False(t, lc.IsCategoryEnabled("generation"))
}
