package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"agenticos/internal/logging"
	"agenticos/internal/types"
)

// Record is one generated app.
type Record struct {
	ID         string          `json:"id"`
	Prompt     string          `json:"prompt"`
	Agent      types.AgentType `json:"agent"`
	Artifact   types.Artifact  `json:"artifact"`
	Provider   types.Provider  `json:"provider,omitempty"`
	Model      string          `json:"model,omitempty"`
	Diagnostic bool            `json:"diagnostic"`
	CreatedAt  time.Time       `json:"created_at"`
}

// History persists generated apps, newest first.
type History struct {
	db *sql.DB
}

// Save inserts rec, assigning an id and timestamp when missing.
func (h *History) Save(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := h.db.ExecContext(ctx, `
		INSERT INTO app_history (id, prompt, agent, name, description, html, css, js, provider, model, diagnostic, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Prompt, rec.Agent.ID(),
		rec.Artifact.Name, rec.Artifact.Description, rec.Artifact.HTML, rec.Artifact.CSS, rec.Artifact.JS,
		string(rec.Provider), rec.Model, rec.Diagnostic, rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		logging.StoreError("failed to save app %s: %v", rec.ID, err)
		return Record{}, fmt.Errorf("failed to save app: %w", err)
	}
	logging.StoreDebug("saved app %s (%q)", rec.ID, rec.Artifact.Name)
	return rec, nil
}

const selectColumns = `id, prompt, agent, name, description, html, css, js, provider, model, diagnostic, created_at`

// Recent returns up to limit records, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM app_history ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get returns the record with id, or ErrNotFound.
func (h *History) Get(ctx context.Context, id string) (Record, error) {
	row := h.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM app_history WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("app %s: %w", id, ErrNotFound)
	}
	return rec, err
}

// Delete removes the record with id, or returns ErrNotFound.
func (h *History) Delete(ctx context.Context, id string) error {
	res, err := h.db.ExecContext(ctx, `DELETE FROM app_history WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete app: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("app %s: %w", id, ErrNotFound)
	}
	return nil
}

// RecentNames returns the names of the n most recent apps.
func (h *History) RecentNames(ctx context.Context, n int) ([]string, error) {
	recs, err := h.Recent(ctx, n)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(recs))
	for _, r := range recs {
		names = append(names, r.Artifact.Name)
	}
	return names, nil
}

// PreviousAppsContext is the request context describing recent apps,
// or "" when there are none.
func PreviousAppsContext(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return "Previous apps: " + strings.Join(names, ", ")
}

// ContextFor returns PreviousAppsContext for the three most recent apps.
// Lookup failures yield an empty context.
func (h *History) ContextFor(ctx context.Context) string {
	names, err := h.RecentNames(ctx, 3)
	if err != nil {
		logging.Get(logging.CategoryStore).Warn("history context unavailable: %v", err)
		return ""
	}
	return PreviousAppsContext(names)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var (
		rec       Record
		agentID   string
		provider  string
		createdNs int64
	)
	err := s.Scan(&rec.ID, &rec.Prompt, &agentID,
		&rec.Artifact.Name, &rec.Artifact.Description, &rec.Artifact.HTML, &rec.Artifact.CSS, &rec.Artifact.JS,
		&provider, &rec.Model, &rec.Diagnostic, &createdNs)
	if err != nil {
		return Record{}, err
	}
	agent, err := types.ParseAgentType(agentID)
	if err != nil {
		return Record{}, fmt.Errorf("app %s: %w", rec.ID, err)
	}
	rec.Agent = agent
	rec.Provider = types.Provider(provider)
	rec.CreatedAt = time.Unix(0, createdNs)
	return rec, nil
}
