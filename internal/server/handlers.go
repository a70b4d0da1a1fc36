package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"agenticos/internal/config"
	"agenticos/internal/generation"
	"agenticos/internal/logging"
	"agenticos/internal/prompt"
	"agenticos/internal/recovery"
	"agenticos/internal/store"
	"agenticos/internal/types"
)

// StatusClientClosedRequest is returned when a generation is cancelled.
const StatusClientClosedRequest = 499

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

func fail(c *gin.Context, code int, kind, msg string) {
	c.AbortWithStatusJSON(code, ErrorResponse{Code: code, Kind: kind, Message: msg})
}

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	Prompt    string          `json:"prompt"`
	Agent     types.AgentType `json:"agent"`
	Context   *string         `json:"context,omitempty"` // nil: use recent history
	SessionID string          `json:"session_id,omitempty"`
}

// GenerateResponse is the body of a successful generation.
type GenerateResponse struct {
	ID         string            `json:"id,omitempty"`
	SessionID  string            `json:"session_id"`
	Artifact   types.Artifact    `json:"artifact"`
	Provider   types.Provider    `json:"provider"`
	Model      string            `json:"model"`
	Attempts   int               `json:"attempts"`
	Diagnostic bool              `json:"diagnostic"`
	Strategy   recovery.Strategy `json:"strategy"`
	Usage      types.Usage       `json:"usage"`
}

func (s *Server) handleGenerate(c *gin.Context) {
	var body GenerateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "bad_request", "invalid request: "+err.Error())
		return
	}
	if strings.TrimSpace(body.Prompt) == "" {
		fail(c, http.StatusBadRequest, "bad_request", "prompt is required")
		return
	}
	if !body.Agent.Valid() {
		fail(c, http.StatusBadRequest, "bad_request", "unknown agent")
		return
	}
	if body.SessionID == "" {
		body.SessionID = c.GetHeader("X-Session-ID")
	}
	if body.SessionID == "" {
		body.SessionID = uuid.NewString()
	}
	c.Header("X-Session-ID", body.SessionID)

	// A new request replaces the session's running generation before it
	// competes for a slot.
	superseded := s.supersede(body.SessionID)
	if !s.sem.TryAcquire(1) {
		if !superseded {
			fail(c, http.StatusTooManyRequests, "busy", "too many generations in progress, try again shortly")
			return
		}
		if err := s.sem.Acquire(c.Request.Context(), 1); err != nil {
			fail(c, StatusClientClosedRequest, generation.KindCancelled.String(), "Generation stopped.")
			return
		}
	}
	defer s.sem.Release(1)

	ctx, end := s.begin(c.Request.Context(), body.SessionID)
	defer end()

	req := types.GenerationRequest{Prompt: body.Prompt, Agent: body.Agent}
	if body.Context != nil {
		req.Context = *body.Context
	} else if s.deps.History != nil {
		req.Context = s.deps.History.ContextFor(ctx)
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.InFlight.Inc()
		defer s.deps.Metrics.InFlight.Dec()
	}

	res, err := s.deps.Generator.Run(ctx, req)
	if err != nil {
		s.generationError(c, err)
		return
	}

	resp := GenerateResponse{
		SessionID:  body.SessionID,
		Artifact:   res.Artifact,
		Provider:   res.Provider,
		Model:      res.Model,
		Attempts:   len(res.Attempts),
		Diagnostic: res.Diagnostic,
		Strategy:   res.Strategy,
		Usage:      res.Usage,
	}
	if s.deps.History != nil {
		rec, err := s.deps.History.Save(c.Request.Context(), store.Record{
			Prompt:     req.Prompt,
			Agent:      req.Agent,
			Artifact:   res.Artifact,
			Provider:   res.Provider,
			Model:      res.Model,
			Diagnostic: res.Diagnostic,
		})
		if err != nil {
			logging.ServerWarn("generated app not saved to history: %v", err)
		} else {
			resp.ID = rec.ID
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) generationError(c *gin.Context, err error) {
	kind := generation.KindOf(err)
	switch kind {
	case generation.KindNoCredential:
		fail(c, http.StatusPreconditionFailed, kind.String(), "No API key configured. Add a key for OpenAI, Anthropic or OpenRouter to generate apps.")
	case generation.KindCancelled:
		fail(c, StatusClientClosedRequest, kind.String(), "Generation stopped.")
	case generation.KindAllModelsFailed:
		logging.ServerWarn("generation failed: %v", err)
		fail(c, http.StatusBadGateway, kind.String(), "Sorry, the app could not be generated: "+err.Error())
	default:
		logging.ServerWarn("unexpected generation error: %v", err)
		fail(c, http.StatusInternalServerError, "internal", err.Error())
	}
}

func (s *Server) handleCancel(c *gin.Context) {
	sess, ok := s.lookupSession(c.Param("id"))
	if !ok {
		fail(c, http.StatusNotFound, "not_found", "no active generation for this session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": sess.Cancel()})
}

func (s *Server) handleHistoryList(c *gin.Context) {
	if s.deps.History == nil {
		c.JSON(http.StatusOK, gin.H{"apps": []store.Record{}})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		fail(c, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
		return
	}
	recs, err := s.deps.History.Recent(c.Request.Context(), limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if recs == nil {
		recs = []store.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"apps": recs})
}

func (s *Server) record(c *gin.Context) (store.Record, bool) {
	if s.deps.History == nil {
		fail(c, http.StatusNotFound, "not_found", "history disabled")
		return store.Record{}, false
	}
	rec, err := s.deps.History.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "not_found", err.Error())
		return store.Record{}, false
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "internal", err.Error())
		return store.Record{}, false
	}
	return rec, true
}

func (s *Server) handleHistoryGet(c *gin.Context) {
	if rec, ok := s.record(c); ok {
		c.JSON(http.StatusOK, rec)
	}
}

func (s *Server) handleHistoryDocument(c *gin.Context) {
	if rec, ok := s.record(c); ok {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(rec.Artifact.Document()))
	}
}

func (s *Server) handleHistoryDelete(c *gin.Context) {
	if s.deps.History == nil {
		fail(c, http.StatusNotFound, "not_found", "history disabled")
		return
	}
	err := s.deps.History.Delete(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "not_found", err.Error())
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// selectRequest is the body of the template and instruction PUT routes.
type selectRequest struct {
	ID string `json:"id"` // empty clears the selection
}

func (s *Server) handleTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"templates":  s.deps.Catalog.Templates(),
		"selections": s.deps.Catalog.Selections(c.Request.Context()),
	})
}

func (s *Server) handleInstructions(c *gin.Context) {
	out := gin.H{"selections": s.deps.Catalog.Selections(c.Request.Context())}
	if q := c.Query("agent"); q != "" {
		agent, err := types.ParseAgentType(q)
		if err != nil {
			fail(c, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		out["instructions"] = s.deps.Catalog.Instructions(agent)
	} else {
		byAgent := make(map[string][]prompt.Instruction, len(types.AllAgents))
		for _, a := range types.AllAgents {
			byAgent[a.ID()] = s.deps.Catalog.Instructions(a)
		}
		out["instructions"] = byAgent
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleSelectTemplate(c *gin.Context) {
	s.handleSelect(c, s.deps.Catalog.SelectTemplate)
}

func (s *Server) handleSelectInstruction(c *gin.Context) {
	s.handleSelect(c, s.deps.Catalog.SelectInstruction)
}

func (s *Server) handleSelect(c *gin.Context, apply func(ctx context.Context, agent types.AgentType, id string) error) {
	agent, err := types.ParseAgentType(c.Param("agent"))
	if err != nil {
		fail(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	var body selectRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "bad_request", "invalid request: "+err.Error())
		return
	}
	if err := apply(c.Request.Context(), agent, strings.TrimSpace(body.ID)); err != nil {
		fail(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Providers []providerStatus `json:"providers"`
	Active    string           `json:"active,omitempty"`
	// Reachable is the probe result for the active provider.
	Reachable *bool  `json:"reachable,omitempty"`
	ProbeErr  string `json:"probe_error,omitempty"`
}

type providerStatus struct {
	Provider  string `json:"provider"`
	Source    string `json:"source"`
	Key       string `json:"key"`
	Model     string `json:"model"`
	Active    bool   `json:"active"`
	Reachable *bool  `json:"reachable,omitempty"`
	ProbeErr  string `json:"probe_error,omitempty"`
}

func (s *Server) handleStatus(c *gin.Context) {
	var resp StatusResponse
	for _, st := range s.deps.Creds.Status() {
		resp.Providers = append(resp.Providers, toProviderStatus(st))
		if st.Active {
			resp.Active = string(st.Provider)
		}
	}

	if c.Query("probe") != "" && s.deps.Prober != nil {
		s.probeAll(c.Request.Context(), resp.Providers)
		for _, p := range resp.Providers {
			if p.Active {
				resp.Reachable, resp.ProbeErr = p.Reachable, p.ProbeErr
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

// probeAll probes every provider with a key concurrently and fills in the
// results. Probe failures are reported, not returned.
func (s *Server) probeAll(ctx context.Context, providers []providerStatus) {
	var g errgroup.Group
	for i := range providers {
		p := &providers[i]
		sel, ok := s.deps.Creds.Selection(types.Provider(p.Provider))
		if !ok {
			continue
		}
		g.Go(func() error {
			err := s.deps.Prober.Probe(ctx, sel)
			reachable := err == nil
			p.Reachable = &reachable
			if err != nil {
				p.ProbeErr = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()
}

func toProviderStatus(st config.ProviderStatus) providerStatus {
	return providerStatus{
		Provider: string(st.Provider),
		Source:   string(st.Source),
		Key:      st.MaskedKey,
		Model:    st.Model,
		Active:   st.Active,
	}
}
