package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenticos/internal/prompt"
	"agenticos/internal/types"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "agentic.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestHistory_SaveGetDelete(t *testing.T) {
	h := openTestDB(t).History()
	ctx := context.Background()

	saved, err := h.Save(ctx, Record{
		Prompt:   "a pomodoro timer",
		Agent:    types.AgentUtility,
		Artifact: types.Artifact{Name: "Pomodoro", HTML: "<div id=\"t\"></div>", CSS: "div{}", JS: "1"},
		Provider: types.ProviderAnthropic,
		Model:    "claude-3-5-sonnet-20241022",
	})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	require.False(t, saved.CreatedAt.IsZero())

	got, err := h.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.Artifact, got.Artifact)
	assert.Equal(t, types.AgentUtility, got.Agent)
	assert.Equal(t, types.ProviderAnthropic, got.Provider)
	assert.True(t, saved.CreatedAt.Equal(got.CreatedAt))

	require.NoError(t, h.Delete(ctx, saved.ID))
	_, err = h.Get(ctx, saved.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, h.Delete(ctx, saved.ID), ErrNotFound)
}

func TestHistory_RecentNewestFirst(t *testing.T) {
	h := openTestDB(t).History()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, name := range []string{"Clock", "Timer", "Snake", "Notes"} {
		_, err := h.Save(ctx, Record{
			Prompt:    name,
			Agent:     types.AgentApp,
			Artifact:  types.Artifact{Name: name, HTML: "<p>" + name + "</p>"},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	recent, err := h.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 4)
	assert.Equal(t, "Notes", recent[0].Artifact.Name)

	names, err := h.RecentNames(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Notes", "Snake", "Timer"}, names)
	assert.Equal(t, "Previous apps: Notes, Snake, Timer", h.ContextFor(ctx))
}

func TestHistory_EmptyContext(t *testing.T) {
	h := openTestDB(t).History()
	assert.Equal(t, "", h.ContextFor(context.Background()))
	assert.Equal(t, "", PreviousAppsContext(nil))
}

func TestSelections_ImplementsCatalogStore(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	catalog, err := prompt.NewCatalog(db.Selections())
	require.NoError(t, err)

	require.NoError(t, catalog.SelectTemplate(ctx, types.AgentGame, "interactive"))
	require.NoError(t, catalog.SelectInstruction(ctx, types.AgentGame, "inst-high-score"))
	require.NoError(t, catalog.SelectTemplate(ctx, types.AgentGame, "visual"))

	tpl, ok := catalog.SelectedTemplate(ctx, types.AgentGame)
	require.True(t, ok)
	assert.Equal(t, "visual", tpl.ID)

	in, ok := catalog.SelectedInstruction(ctx, types.AgentGame)
	require.True(t, ok, "updating the template keeps the instruction")
	assert.Equal(t, "inst-high-score", in.ID)

	_, ok = catalog.SelectedTemplate(ctx, types.AgentApp)
	assert.False(t, ok)
}

func TestSelections_SurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentic.db")
	ctx := context.Background()

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Selections().SetTemplateSelection(ctx, types.AgentInfo, "data-driven"))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	id, err := db.Selections().TemplateSelection(ctx, types.AgentInfo)
	require.NoError(t, err)
	assert.Equal(t, "data-driven", id)
}

func TestOpen_Memory(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.History().Save(context.Background(), Record{Prompt: "x", Artifact: types.Artifact{Name: "X", HTML: "<p>xx</p>"}})
	require.NoError(t, err)
}
