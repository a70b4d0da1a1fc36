package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agenticos/internal/types"
)

// Selections persists each agent's selected template and instruction.
// It implements prompt.SelectionStore.
type Selections struct {
	db *sql.DB
}

func (s *Selections) TemplateSelection(ctx context.Context, agent types.AgentType) (string, error) {
	return s.get(ctx, "template_id", agent)
}

func (s *Selections) InstructionSelection(ctx context.Context, agent types.AgentType) (string, error) {
	return s.get(ctx, "instruction_id", agent)
}

func (s *Selections) SetTemplateSelection(ctx context.Context, agent types.AgentType, id string) error {
	return s.set(ctx, "template_id", agent, id)
}

func (s *Selections) SetInstructionSelection(ctx context.Context, agent types.AgentType, id string) error {
	return s.set(ctx, "instruction_id", agent, id)
}

// column is one of the two fixed column names above, never user input.
func (s *Selections) get(ctx context.Context, column string, agent types.AgentType) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT `+column+` FROM agent_selections WHERE agent = ?`, agent.ID()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s for %s: %w", column, agent.ID(), err)
	}
	return id, nil
}

func (s *Selections) set(ctx context.Context, column string, agent types.AgentType, id string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_selections (agent, `+column+`, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(agent) DO UPDATE SET `+column+` = excluded.`+column+`, updated_at = excluded.updated_at`,
		agent.ID(), id, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save %s for %s: %w", column, agent.ID(), err)
	}
	return nil
}
