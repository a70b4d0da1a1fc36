// Package prompt builds the system and user prompts sent to the model.
//
// The catalog holds the template marketplace and the instruction snippets,
// both baked into the binary from catalog/*.yaml. Per-agent selections are
// kept by a SelectionStore so they survive restarts.
package prompt

import (
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"agenticos/internal/logging"
	"agenticos/internal/types"
)

//go:embed catalog
var embeddedCatalog embed.FS

// Template is a marketplace entry. Its AgentPrompt replaces the built-in
// per-agent description in the system prompt.
type Template struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	AgentPrompt string `yaml:"agent_prompt" json:"agent_prompt"`
	Default     bool   `yaml:"default,omitempty" json:"default,omitempty"`
}

// Instruction is a snippet appended to the user prompt.
type Instruction struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	Text string `yaml:"text" json:"text"`
	// Agents restricts the snippet to these agent ids; empty means all.
	Agents []string `yaml:"agents,omitempty" json:"agents,omitempty"`
}

// AppliesTo reports whether the snippet is offered to agent.
func (i Instruction) AppliesTo(agent types.AgentType) bool {
	if len(i.Agents) == 0 {
		return true
	}
	for _, a := range i.Agents {
		if a == agent.ID() {
			return true
		}
	}
	return false
}

// SelectionStore persists per-agent template and instruction selections.
// An empty id means nothing is selected.
type SelectionStore interface {
	TemplateSelection(ctx context.Context, agent types.AgentType) (string, error)
	InstructionSelection(ctx context.Context, agent types.AgentType) (string, error)
	SetTemplateSelection(ctx context.Context, agent types.AgentType, id string) error
	SetInstructionSelection(ctx context.Context, agent types.AgentType, id string) error
}

// Catalog is the set of known templates and instructions plus the selections.
type Catalog struct {
	mu           sync.RWMutex
	templates    []Template
	instructions []Instruction
	selections   SelectionStore
}

// NewCatalog loads the embedded catalog. A nil store keeps selections in memory.
func NewCatalog(selections SelectionStore) (*Catalog, error) {
	templates, err := parseEmbedded[Template]("catalog/templates.yaml")
	if err != nil {
		return nil, err
	}
	instructions, err := parseEmbedded[Instruction]("catalog/instructions.yaml")
	if err != nil {
		return nil, err
	}
	if selections == nil {
		selections = NewMemorySelections()
	}
	c := &Catalog{selections: selections}
	for _, t := range templates {
		c.putTemplate(t)
	}
	for _, in := range instructions {
		c.putInstruction(in)
	}
	logging.PromptDebug("catalog loaded: %d templates, %d instructions", len(c.templates), len(c.instructions))
	return c, nil
}

func parseEmbedded[T any](path string) ([]T, error) {
	data, err := embeddedCatalog.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded %s: %w", path, err)
	}
	var out []T
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse embedded %s: %w", path, err)
	}
	return out, nil
}

// LoadDir merges user templates and instructions from dir. Files named
// templates*.yaml hold templates, instructions*.yaml hold instructions.
// Entries with an existing id replace the built-in one. A missing dir is fine.
func (c *Catalog) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	loaded := 0
	for _, e := range entries {
		name := strings.ToLower(e.Name())
		if e.IsDir() || (filepath.Ext(name) != ".yaml" && filepath.Ext(name) != ".yml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return loaded, fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}

		switch {
		case strings.HasPrefix(name, "templates"):
			var ts []Template
			if err := yaml.Unmarshal(data, &ts); err != nil {
				return loaded, fmt.Errorf("failed to parse %s: %w", e.Name(), err)
			}
			for _, t := range ts {
				if c.putTemplate(t) {
					loaded++
				}
			}
		case strings.HasPrefix(name, "instructions"):
			var is []Instruction
			if err := yaml.Unmarshal(data, &is); err != nil {
				return loaded, fmt.Errorf("failed to parse %s: %w", e.Name(), err)
			}
			for _, in := range is {
				if c.putInstruction(in) {
					loaded++
				}
			}
		default:
			logging.PromptDebug("skipping %s: not a templates or instructions file", e.Name())
		}
	}
	logging.Prompt("loaded %d user catalog entries from %s", loaded, dir)
	return loaded, nil
}

func (c *Catalog) putTemplate(t Template) bool {
	t.ID = strings.TrimSpace(t.ID)
	t.AgentPrompt = strings.TrimSpace(t.AgentPrompt)
	if t.ID == "" || t.AgentPrompt == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.templates {
		if c.templates[i].ID == t.ID {
			c.templates[i] = t
			return true
		}
	}
	c.templates = append(c.templates, t)
	return true
}

func (c *Catalog) putInstruction(in Instruction) bool {
	in.ID = strings.TrimSpace(in.ID)
	in.Text = strings.TrimSpace(in.Text)
	if in.ID == "" || in.Text == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.instructions {
		if c.instructions[i].ID == in.ID {
			c.instructions[i] = in
			return true
		}
	}
	c.instructions = append(c.instructions, in)
	return true
}

// Templates returns every template in catalog order.
func (c *Catalog) Templates() []Template {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Template(nil), c.templates...)
}

// AllInstructions returns every snippet in catalog order.
func (c *Catalog) AllInstructions() []Instruction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Instruction(nil), c.instructions...)
}

// Instructions returns the snippets offered to agent.
func (c *Catalog) Instructions(agent types.AgentType) []Instruction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Instruction
	for _, in := range c.instructions {
		if in.AppliesTo(agent) {
			out = append(out, in)
		}
	}
	return out
}

// Template looks up a template by id.
func (c *Catalog) Template(id string) (Template, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.templates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// Instruction looks up a snippet by id.
func (c *Catalog) Instruction(id string) (Instruction, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, in := range c.instructions {
		if in.ID == id {
			return in, true
		}
	}
	return Instruction{}, false
}

// DefaultTemplate returns the template flagged as default, if any.
func (c *Catalog) DefaultTemplate() (Template, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.templates {
		if t.Default {
			return t, true
		}
	}
	return Template{}, false
}

// SelectedTemplate returns the template explicitly selected for agent.
// Store errors and stale ids read as no selection.
func (c *Catalog) SelectedTemplate(ctx context.Context, agent types.AgentType) (Template, bool) {
	id, err := c.selections.TemplateSelection(ctx, agent)
	if err != nil {
		logging.Get(logging.CategoryPrompt).Warn("template selection for %s unavailable: %v", agent.ID(), err)
		return Template{}, false
	}
	if id == "" {
		return Template{}, false
	}
	t, ok := c.Template(id)
	if !ok {
		logging.PromptDebug("selected template %q for %s no longer exists", id, agent.ID())
	}
	return t, ok
}

// SelectedInstruction returns the snippet selected for agent.
func (c *Catalog) SelectedInstruction(ctx context.Context, agent types.AgentType) (Instruction, bool) {
	id, err := c.selections.InstructionSelection(ctx, agent)
	if err != nil {
		logging.Get(logging.CategoryPrompt).Warn("instruction selection for %s unavailable: %v", agent.ID(), err)
		return Instruction{}, false
	}
	if id == "" {
		return Instruction{}, false
	}
	in, ok := c.Instruction(id)
	if !ok || !in.AppliesTo(agent) {
		return Instruction{}, false
	}
	return in, true
}

// SelectTemplate selects template id for agent; an empty id clears it.
func (c *Catalog) SelectTemplate(ctx context.Context, agent types.AgentType, id string) error {
	if !agent.Valid() {
		return fmt.Errorf("unknown agent: %d", agent)
	}
	if id != "" {
		if _, ok := c.Template(id); !ok {
			return fmt.Errorf("unknown template: %s", id)
		}
	}
	if err := c.selections.SetTemplateSelection(ctx, agent, id); err != nil {
		return fmt.Errorf("failed to save template selection: %w", err)
	}
	logging.Prompt("template for %s set to %q", agent.ID(), id)
	return nil
}

// SelectInstruction selects snippet id for agent; an empty id clears it.
func (c *Catalog) SelectInstruction(ctx context.Context, agent types.AgentType, id string) error {
	if !agent.Valid() {
		return fmt.Errorf("unknown agent: %d", agent)
	}
	if id != "" {
		in, ok := c.Instruction(id)
		if !ok {
			return fmt.Errorf("unknown instruction: %s", id)
		}
		if !in.AppliesTo(agent) {
			return fmt.Errorf("instruction %s is not offered to %s", id, agent.ID())
		}
	}
	if err := c.selections.SetInstructionSelection(ctx, agent, id); err != nil {
		return fmt.Errorf("failed to save instruction selection: %w", err)
	}
	logging.Prompt("instruction for %s set to %q", agent.ID(), id)
	return nil
}

// Selection is one agent's current template and instruction ids.
type Selection struct {
	Agent       types.AgentType `json:"agent"`
	Template    string          `json:"template,omitempty"`
	Instruction string          `json:"instruction,omitempty"`
}

// Selections reports the current selections for every agent.
func (c *Catalog) Selections(ctx context.Context) []Selection {
	out := make([]Selection, 0, len(types.AllAgents))
	for _, a := range types.AllAgents {
		sel := Selection{Agent: a}
		if t, ok := c.SelectedTemplate(ctx, a); ok {
			sel.Template = t.ID
		}
		if in, ok := c.SelectedInstruction(ctx, a); ok {
			sel.Instruction = in.ID
		}
		out = append(out, sel)
	}
	return out
}

// MemorySelections is a SelectionStore held in memory.
type MemorySelections struct {
	mu           sync.Mutex
	templates    map[types.AgentType]string
	instructions map[types.AgentType]string
}

// NewMemorySelections creates an empty in-memory store.
func NewMemorySelections() *MemorySelections {
	return &MemorySelections{
		templates:    make(map[types.AgentType]string),
		instructions: make(map[types.AgentType]string),
	}
}

func (m *MemorySelections) TemplateSelection(_ context.Context, agent types.AgentType) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.templates[agent], nil
}

func (m *MemorySelections) InstructionSelection(_ context.Context, agent types.AgentType) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.instructions[agent], nil
}

func (m *MemorySelections) SetTemplateSelection(_ context.Context, agent types.AgentType, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	setOrDelete(m.templates, agent, id)
	return nil
}

func (m *MemorySelections) SetInstructionSelection(_ context.Context, agent types.AgentType, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	setOrDelete(m.instructions, agent, id)
	return nil
}

func setOrDelete(m map[types.AgentType]string, agent types.AgentType, id string) {
	if id == "" {
		delete(m, agent)
		return
	}
	m[agent] = id
}
