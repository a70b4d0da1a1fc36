package usage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"agenticos/internal/generation"
	"agenticos/internal/types"
)

func TestTracker_TrackAggregatesAndPersists(t *testing.T) {
	ws := t.TempDir()
	tracker, err := NewTracker(ws)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	defer tracker.Close()

	tracker.Track(types.ProviderOpenRouter, "deepseek/deepseek-chat-v3-0324:free", types.AgentGame, types.Usage{InputTokens: 10, OutputTokens: 5})
	tracker.Track(types.ProviderOpenRouter, "deepseek/deepseek-chat-v3-0324:free", types.AgentInfo, types.Usage{InputTokens: 2, OutputTokens: 3})

	stats := tracker.Stats()
	if stats.Total.Input != 12 || stats.Total.Output != 8 || stats.Total.Total != 20 {
		t.Fatalf("Total=%+v, want input=12 output=8 total=20", stats.Total)
	}
	if got := stats.ByProvider["openrouter"]; got.Total != 20 {
		t.Fatalf("ByProvider[openrouter]=%+v, want total=20", got)
	}
	if got := stats.ByModel["deepseek/deepseek-chat-v3-0324:free"]; got.Total != 20 {
		t.Fatalf("ByModel=%+v, want total=20", got)
	}
	if got := stats.ByAgent["game-agent"]; got.Total != 15 {
		t.Fatalf("ByAgent[game-agent]=%+v, want total=15", got)
	}

	if err := tracker.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(ws, ".agentic", "usage.json"))
	if err != nil {
		t.Fatalf("read usage.json: %v", err)
	}
	var persisted UsageData
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("unmarshal usage.json: %v", err)
	}
	if persisted.Aggregate.Total.Total != 20 {
		t.Fatalf("persisted total=%d, want 20", persisted.Aggregate.Total.Total)
	}
}

func TestTracker_ObservesGenerations(t *testing.T) {
	tracker, err := NewTracker(t.TempDir())
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	defer tracker.Close()

	ctx := context.Background()
	req := types.GenerationRequest{Prompt: "clock", Agent: types.AgentWidget}

	tracker.AttemptFinished(ctx, req, generation.Attempt{Provider: types.ProviderOpenAI, Model: "gpt-4o", Err: errors.New("500")})
	tracker.AttemptFinished(ctx, req, generation.Attempt{Provider: types.ProviderOpenAI, Model: "gpt-4o-mini", Usage: types.Usage{InputTokens: 100, OutputTokens: 50}})
	tracker.GenerationFinished(ctx, req, &generation.Result{Diagnostic: true}, nil)
	tracker.GenerationFinished(ctx, req, nil, &generation.Error{Kind: generation.KindCancelled})

	stats := tracker.Stats()
	if stats.Attempts != 2 {
		t.Errorf("Attempts=%d, want 2", stats.Attempts)
	}
	if _, ok := stats.ByModel["gpt-4o"]; ok {
		t.Errorf("failed attempt should not record tokens")
	}
	if got := stats.ByAgent["widget-agent"].Total; got != 150 {
		t.Errorf("ByAgent[widget-agent]=%d, want 150", got)
	}
	if stats.Generations != 1 || stats.Diagnostics != 1 {
		t.Errorf("Generations=%d Diagnostics=%d, want 1/1", stats.Generations, stats.Diagnostics)
	}
	if stats.Failures["cancelled"] != 1 {
		t.Errorf("Failures=%v, want cancelled=1", stats.Failures)
	}
}

func TestTracker_CloseFlushes(t *testing.T) {
	ws := t.TempDir()
	tracker, err := NewTracker(ws)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	tracker.Track(types.ProviderAnthropic, "claude-3-5-sonnet-20241022", types.AgentApp, types.Usage{InputTokens: 1, OutputTokens: 1})
	if err := tracker.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reloaded, err := NewTracker(ws)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	defer reloaded.Close()
	if got := reloaded.Stats().ByProvider["anthropic"].Total; got != 2 {
		t.Fatalf("reloaded anthropic total=%d, want 2", got)
	}
}

func TestTracker_LoadCorruptStartsFresh(t *testing.T) {
	ws := t.TempDir()
	if err := os.MkdirAll(filepath.Join(ws, ".agentic"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ws, ".agentic", "usage.json"), []byte("{broken"), 0644); err != nil {
		t.Fatal(err)
	}

	tracker, err := NewTracker(ws)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	defer tracker.Close()
	if tracker.Stats().Total.Total != 0 {
		t.Fatalf("expected empty stats")
	}
}
