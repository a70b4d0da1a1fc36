// Package usage tracks token consumption per provider, model and agent and
// persists the totals to .agentic/usage.json.
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"agenticos/internal/generation"
	"agenticos/internal/logging"
	"agenticos/internal/types"
)

// saveDelay debounces writes after a burst of generations.
const saveDelay = 5 * time.Second

// Tracker manages token usage recording and persistence. It implements
// generation.Observer.
type Tracker struct {
	mu        sync.Mutex
	data      UsageData
	filePath  string
	dirty     bool
	saveTimer *time.Timer
	closed    bool
}

var _ generation.Observer = (*Tracker)(nil)

// NewTracker creates a tracker persisting to <ws>/.agentic/usage.json.
func NewTracker(ws string) (*Tracker, error) {
	dir := filepath.Join(ws, ".agentic")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create .agentic dir: %w", err)
	}

	t := &Tracker{
		filePath: filepath.Join(dir, "usage.json"),
		data:     UsageData{Version: "1.0", Aggregate: newAggregate()},
	}
	if err := t.Load(); err != nil {
		logging.Get(logging.CategoryStore).Warn("usage file unreadable, starting fresh: %v", err)
	}
	return t, nil
}

// Path returns the persistence file.
func (t *Tracker) Path() string { return t.filePath }

// Load reads the usage data from disk.
func (t *Tracker) Load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := os.ReadFile(t.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	loaded := UsageData{Aggregate: newAggregate()}
	if err := json.Unmarshal(data, &loaded); err != nil {
		return err
	}

	// Ensure maps are initialized if file was empty/partial
	agg := &loaded.Aggregate
	if agg.ByProvider == nil {
		agg.ByProvider = make(map[string]TokenCounts)
	}
	if agg.ByModel == nil {
		agg.ByModel = make(map[string]TokenCounts)
	}
	if agg.ByAgent == nil {
		agg.ByAgent = make(map[string]TokenCounts)
	}
	if agg.Failures == nil {
		agg.Failures = make(map[string]int64)
	}
	t.data = loaded
	return nil
}

// Save writes the usage data to disk.
func (t *Tracker) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.saveLocked()
}

func (t *Tracker) saveLocked() error {
	t.data.Updated = time.Now()
	data, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return err
	}
	t.dirty = false
	return os.WriteFile(t.filePath, data, 0644)
}

// Track records tokens used by one successful request.
func (t *Tracker) Track(p types.Provider, model string, agent types.AgentType, u types.Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	input, output := u.InputTokens, u.OutputTokens
	t.data.Aggregate.Total.Add(input, output)
	addToMap(t.data.Aggregate.ByProvider, string(p), input, output)
	addToMap(t.data.Aggregate.ByModel, model, input, output)
	addToMap(t.data.Aggregate.ByAgent, agent.ID(), input, output)
	t.scheduleSaveLocked()
}

// AttemptFinished counts the attempt and its tokens.
func (t *Tracker) AttemptFinished(_ context.Context, req types.GenerationRequest, a generation.Attempt) {
	t.mu.Lock()
	t.data.Aggregate.Attempts++
	t.mu.Unlock()

	if a.Succeeded() {
		t.Track(a.Provider, a.Model, req.Agent, a.Usage)
	}
}

// GenerationFinished counts outcomes by kind.
func (t *Tracker) GenerationFinished(_ context.Context, _ types.GenerationRequest, res *generation.Result, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err != nil {
		t.data.Aggregate.Failures[generation.KindOf(err).String()]++
	} else {
		t.data.Aggregate.Generations++
		if res != nil && res.Diagnostic {
			t.data.Aggregate.Diagnostics++
		}
	}
	t.scheduleSaveLocked()
}

// scheduleSaveLocked arms a debounced save.
func (t *Tracker) scheduleSaveLocked() {
	if t.dirty || t.closed {
		t.dirty = true
		return
	}
	t.dirty = true
	t.saveTimer = time.AfterFunc(saveDelay, func() {
		if err := t.Save(); err != nil {
			logging.Get(logging.CategoryStore).Warn("failed to save usage: %v", err)
		}
	})
}

// Close stops the pending save and flushes unsaved counts.
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.saveTimer != nil {
		t.saveTimer.Stop()
	}
	if !t.dirty {
		return nil
	}
	return t.saveLocked()
}

// Stats returns a copy of the aggregated stats.
func (t *Tracker) Stats() AggregatedStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats := t.data.Aggregate
	stats.ByProvider = copyTokenCountsMap(stats.ByProvider)
	stats.ByModel = copyTokenCountsMap(stats.ByModel)
	stats.ByAgent = copyTokenCountsMap(stats.ByAgent)
	failures := make(map[string]int64, len(stats.Failures))
	for k, v := range stats.Failures {
		failures[k] = v
	}
	stats.Failures = failures
	return stats
}

func copyTokenCountsMap(src map[string]TokenCounts) map[string]TokenCounts {
	if src == nil {
		return nil
	}
	dst := make(map[string]TokenCounts, len(src))
	for key, counts := range src {
		dst[key] = counts
	}
	return dst
}

func addToMap(m map[string]TokenCounts, key string, input, output int) {
	entry := m[key]
	entry.Add(input, output)
	m[key] = entry
}
