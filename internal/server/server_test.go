package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"agenticos/internal/config"
	"agenticos/internal/generation"
	"agenticos/internal/metrics"
	"agenticos/internal/prompt"
	"agenticos/internal/recovery"
	"agenticos/internal/store"
	"agenticos/internal/types"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))
}

type fakeGenerator struct {
	mu   sync.Mutex
	reqs []types.GenerationRequest
	run  func(ctx context.Context, req types.GenerationRequest) (*generation.Result, error)
}

func (f *fakeGenerator) Run(ctx context.Context, req types.GenerationRequest) (*generation.Result, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	return f.run(ctx, req)
}

func (f *fakeGenerator) last() types.GenerationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[len(f.reqs)-1]
}

func succeed(name string) func(context.Context, types.GenerationRequest) (*generation.Result, error) {
	return func(context.Context, types.GenerationRequest) (*generation.Result, error) {
		return &generation.Result{
			Artifact: types.Artifact{Name: name, HTML: "<div>" + name + "</div>", CSS: "div{}", JS: ""},
			Provider: types.ProviderOpenAI,
			Model:    "gpt-4o",
			Attempts: []generation.Attempt{{Provider: types.ProviderOpenAI, Model: "gpt-4o"}},
			Strategy: recovery.StrategyFenced,
		}, nil
	}
}

type fakeCreds struct{ status []config.ProviderStatus }

func (f fakeCreds) ActiveProvider() (types.ProviderSelection, bool) {
	for _, st := range f.status {
		if st.Active {
			return types.NewProviderSelection(st.Provider, "sk-test", st.Model), true
		}
	}
	return types.ProviderSelection{}, false
}

func (f fakeCreds) Selection(p types.Provider) (types.ProviderSelection, bool) {
	for _, st := range f.status {
		if st.Provider == p && st.Source != config.SourceNone {
			return types.NewProviderSelection(st.Provider, "sk-test", st.Model), true
		}
	}
	return types.ProviderSelection{}, false
}

func (f fakeCreds) Status() []config.ProviderStatus { return f.status }

type fakeProber struct{ err error }

func (f fakeProber) Probe(context.Context, types.ProviderSelection) error { return f.err }

type harness struct {
	srv     *Server
	gen     *fakeGenerator
	history *store.History
	catalog *prompt.Catalog
}

func newHarness(t *testing.T, run func(context.Context, types.GenerationRequest) (*generation.Result, error)) *harness {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "agentic.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	catalog, err := prompt.NewCatalog(db.Selections())
	require.NoError(t, err)

	gen := &fakeGenerator{run: run}
	srv := New(config.ServerConfig{MaxConcurrent: 2, AllowedOrigins: []string{"http://localhost:5173"}}, Deps{
		Generator: gen,
		Catalog:   catalog,
		History:   db.History(),
		Creds: fakeCreds{status: []config.ProviderStatus{
			{Provider: types.ProviderOpenAI, Source: config.SourceNone, Model: "gpt-4o"},
			{Provider: types.ProviderAnthropic, Source: config.SourceFile, MaskedKey: "sk-a****", Model: "claude-3-5-sonnet-20241022", Active: true},
			{Provider: types.ProviderOpenRouter, Source: config.SourceNone, Model: "deepseek/deepseek-chat-v3-0324:free"},
		}},
		Prober:  fakeProber{},
		Metrics: metrics.New(),
	})
	return &harness{srv: srv, gen: gen, history: db.History(), catalog: catalog}
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestGenerate_SavesHistory(t *testing.T) {
	h := newHarness(t, succeed("Clock"))

	rec := h.do(t, http.MethodPost, "/api/generate", map[string]any{"prompt": "a clock", "agent": "widget-agent"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[GenerateResponse](t, rec)
	assert.Equal(t, "Clock", resp.Artifact.Name)
	assert.Equal(t, types.ProviderOpenAI, resp.Provider)
	assert.Equal(t, recovery.StrategyFenced, resp.Strategy)
	assert.Equal(t, 1, resp.Attempts)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, resp.SessionID, rec.Header().Get("X-Session-ID"))
	require.NotEmpty(t, resp.ID)

	saved, err := h.history.Get(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "a clock", saved.Prompt)
	assert.Equal(t, types.AgentWidget, saved.Agent)
	assert.Equal(t, "gpt-4o", saved.Model)
}

func TestGenerate_ContextDefaultsToRecentHistory(t *testing.T) {
	h := newHarness(t, succeed("Snake"))
	_, err := h.history.Save(context.Background(), store.Record{Prompt: "x", Artifact: types.Artifact{Name: "Calculator"}})
	require.NoError(t, err)

	rec := h.do(t, http.MethodPost, "/api/generate", map[string]any{"prompt": "snake"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Previous apps: Calculator", h.gen.last().Context)

	explicit := ""
	rec = h.do(t, http.MethodPost, "/api/generate", map[string]any{"prompt": "snake", "context": explicit})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, h.gen.last().Context, "an explicit empty context is kept")
}

func TestGenerate_BadRequests(t *testing.T) {
	h := newHarness(t, succeed("x"))

	tests := []struct {
		name string
		body any
	}{
		{"empty prompt", map[string]any{"prompt": "  "}},
		{"unknown agent", map[string]any{"prompt": "x", "agent": "music-agent"}},
		{"not json", "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(t, http.MethodPost, "/api/generate", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "bad_request", decode[ErrorResponse](t, rec).Kind)
		})
	}
}

func TestGenerate_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		kind string
	}{
		{"no credential", &generation.Error{Kind: generation.KindNoCredential}, http.StatusPreconditionFailed, "no_credential"},
		{"cancelled", &generation.Error{Kind: generation.KindCancelled, Err: context.Canceled}, StatusClientClosedRequest, "cancelled"},
		{"all failed", &generation.Error{Kind: generation.KindAllModelsFailed, Err: errors.New("HTTP 503")}, http.StatusBadGateway, "all_models_failed"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(context.Context, types.GenerationRequest) (*generation.Result, error) {
				return nil, tt.err
			})
			rec := h.do(t, http.MethodPost, "/api/generate", map[string]any{"prompt": "x"})
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.kind, decode[ErrorResponse](t, rec).Kind)

			recs, err := h.history.Recent(context.Background(), 10)
			require.NoError(t, err)
			assert.Empty(t, recs, "failures are not saved")
		})
	}
	t.Run("all failed message carries the last error", func(t *testing.T) {
		h := newHarness(t, func(context.Context, types.GenerationRequest) (*generation.Result, error) {
			return nil, &generation.Error{Kind: generation.KindAllModelsFailed, Err: errors.New("HTTP 503")}
		})
		rec := h.do(t, http.MethodPost, "/api/generate", map[string]any{"prompt": "x"})
		assert.Contains(t, decode[ErrorResponse](t, rec).Message, "Last error: HTTP 503")
	})
}

func TestCancelSession(t *testing.T) {
	started := make(chan struct{})
	h := newHarness(t, func(ctx context.Context, _ types.GenerationRequest) (*generation.Result, error) {
		close(started)
		<-ctx.Done()
		return nil, &generation.Error{Kind: generation.KindCancelled, Err: ctx.Err()}
	})

	done := make(chan *httptest.ResponseRecorder)
	go func() {
		done <- h.do(t, http.MethodPost, "/api/generate", map[string]any{"prompt": "x", "session_id": "tab-1"})
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("generation never started")
	}

	rec := h.do(t, http.MethodPost, "/api/sessions/tab-1/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]bool{"cancelled": true}, decode[map[string]bool](t, rec))

	select {
	case gen := <-done:
		assert.Equal(t, StatusClientClosedRequest, gen.Code)
	case <-time.After(5 * time.Second):
		t.Fatal("generation did not stop")
	}

	rec = h.do(t, http.MethodPost, "/api/sessions/tab-1/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "finished sessions are forgotten")
}

func TestGenerate_ConcurrencyLimit(t *testing.T) {
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(2)
	h := newHarness(t, func(ctx context.Context, req types.GenerationRequest) (*generation.Result, error) {
		started.Done()
		<-release
		return succeed("x")(ctx, req)
	})

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			h.do(t, http.MethodPost, "/api/generate", map[string]any{"prompt": "x", "session_id": id})
		}(id)
	}
	started.Wait()

	rec := h.do(t, http.MethodPost, "/api/generate", map[string]any{"prompt": "x", "session_id": "c"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	close(release)
	wg.Wait()
}

func TestGenerate_SameSessionSupersedesWhenSaturated(t *testing.T) {
	started := make(chan string, 3)
	h := newHarness(t, func(ctx context.Context, req types.GenerationRequest) (*generation.Result, error) {
		started <- req.Prompt
		if req.Prompt == "fresh" {
			return succeed("fresh")(ctx, req)
		}
		<-ctx.Done()
		return nil, &generation.Error{Kind: generation.KindCancelled, Err: ctx.Err()}
	})

	first := make(chan *httptest.ResponseRecorder, 1)
	other := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		first <- h.do(t, http.MethodPost, "/api/generate", map[string]any{"prompt": "slow", "session_id": "S"})
	}()
	go func() {
		other <- h.do(t, http.MethodPost, "/api/generate", map[string]any{"prompt": "other", "session_id": "T"})
	}()
	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(5 * time.Second):
			t.Fatal("generations never started")
		}
	}

	rec := h.do(t, http.MethodPost, "/api/generate", map[string]any{"prompt": "x", "session_id": "U"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "other sessions still get busy")

	rec = h.do(t, http.MethodPost, "/api/generate", map[string]any{"prompt": "fresh", "session_id": "S"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "fresh", decode[GenerateResponse](t, rec).Artifact.Name)

	select {
	case res := <-first:
		assert.Equal(t, StatusClientClosedRequest, res.Code)
	case <-time.After(5 * time.Second):
		t.Fatal("the earlier generation in the session was not cancelled")
	}

	require.True(t, h.srv.supersede("T"))
	assert.Equal(t, StatusClientClosedRequest, (<-other).Code)
}

func TestHistoryRoutes(t *testing.T) {
	h := newHarness(t, succeed("x"))
	ctx := context.Background()
	saved, err := h.history.Save(ctx, store.Record{
		Prompt:   "notes",
		Artifact: types.Artifact{Name: "Notes <1>", HTML: "<ul></ul>", CSS: "ul{}", JS: "let n = 1;"},
	})
	require.NoError(t, err)

	rec := h.do(t, http.MethodGet, "/api/history?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[map[string][]store.Record](t, rec)
	require.Len(t, list["apps"], 1)
	assert.Equal(t, saved.ID, list["apps"][0].ID)

	for _, q := range []string{"abc", "0", "-3"} {
		rec = h.do(t, http.MethodGet, "/api/history?limit="+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		assert.Equal(t, "bad_request", decode[ErrorResponse](t, rec).Kind)
	}

	rec = h.do(t, http.MethodGet, "/api/history/"+saved.ID+"/document", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, rec.Body.String(), "<title>Notes &lt;1&gt;</title>")
	assert.Contains(t, rec.Body.String(), "let n = 1;")

	rec = h.do(t, http.MethodDelete, "/api/history/"+saved.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	for _, path := range []string{"/api/history/" + saved.ID, "/api/history/" + saved.ID + "/document"} {
		assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, path, nil).Code, path)
	}
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodDelete, "/api/history/"+saved.ID, nil).Code)
}

func TestTemplateSelection(t *testing.T) {
	h := newHarness(t, succeed("x"))

	rec := h.do(t, http.MethodPut, "/api/templates/game", map[string]string{"id": "visual"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	tmpl, ok := h.catalog.SelectedTemplate(context.Background(), types.AgentGame)
	require.True(t, ok)
	assert.Equal(t, "visual", tmpl.ID)

	rec = h.do(t, http.MethodGet, "/api/templates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Templates  []prompt.Template  `json:"templates"`
		Selections []prompt.Selection `json:"selections"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Templates, 8)

	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodPut, "/api/templates/game", map[string]string{"id": "nope"}).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodPut, "/api/templates/robot", map[string]string{"id": "visual"}).Code)

	rec = h.do(t, http.MethodPut, "/api/templates/game", map[string]string{"id": ""})
	require.Equal(t, http.StatusNoContent, rec.Code)
	_, ok = h.catalog.SelectedTemplate(context.Background(), types.AgentGame)
	assert.False(t, ok, "an empty id clears the selection")
}

func TestInstructionRoutes(t *testing.T) {
	h := newHarness(t, succeed("x"))

	rec := h.do(t, http.MethodGet, "/api/instructions?agent=game", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Instructions []prompt.Instruction `json:"instructions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	ids := make([]string, 0, len(body.Instructions))
	for _, in := range body.Instructions {
		ids = append(ids, in.ID)
	}
	assert.Contains(t, ids, "inst-high-score")
	assert.NotContains(t, ids, "inst-real-time")

	rec = h.do(t, http.MethodPut, "/api/instructions/game-agent", map[string]string{"id": "inst-high-score"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	inst, ok := h.catalog.SelectedInstruction(context.Background(), types.AgentGame)
	require.True(t, ok)
	assert.Equal(t, "inst-high-score", inst.ID)

	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/instructions?agent=robot", nil).Code)
}

func TestStatus(t *testing.T) {
	h := newHarness(t, succeed("x"))

	rec := h.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[StatusResponse](t, rec)
	assert.Equal(t, "anthropic", st.Active)
	require.Len(t, st.Providers, 3)
	assert.Equal(t, "sk-a****", st.Providers[1].Key)
	assert.Nil(t, st.Reachable, "no probe unless asked")

	rec = h.do(t, http.MethodGet, "/api/status?probe=1", nil)
	st = decode[StatusResponse](t, rec)
	require.NotNil(t, st.Reachable)
	assert.True(t, *st.Reachable)
	require.NotNil(t, st.Providers[1].Reachable)
	assert.Nil(t, st.Providers[0].Reachable, "providers without a key are not probed")
}

func TestMetricsAndHealth(t *testing.T) {
	h := newHarness(t, succeed("x"))

	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/healthz", nil).Code)

	rec := h.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `agentic_http_requests_total{method="GET",path="/healthz",status="200"} 1`)
}

func TestCORS(t *testing.T) {
	h := newHarness(t, succeed("x"))

	req := httptest.NewRequest(http.MethodOptions, "/api/generate", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/generate", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec = httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
